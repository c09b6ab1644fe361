package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	dbconfig "strangers/pkg/database"
	"strangers/pkg/interfaces"
	"strangers/pkg/types"
)

// setupTestDB creates a migrated in-memory database private to the test
func setupTestDB(t *testing.T) *Manager {
	t.Helper()

	config := dbconfig.DefaultConfig()
	config.DatabasePath = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	config.RetryDelay = 0

	manager, err := NewManager(config)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(func() { _ = manager.Close() })

	if err := dbconfig.NewMigrationManager(manager.GetDB()).ApplyAndValidate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return manager
}

func newMatch(id, a, b string) *types.Match {
	return &types.Match{
		ID:        id,
		PeerA:     a,
		PeerB:     b,
		ModeA:     "video",
		ModeB:     "audio",
		StartedAt: time.Now().Add(-time.Minute),
	}
}

// flush waits until every write queued so far has run
func flush(t *testing.T, manager *Manager) {
	t.Helper()
	if err := manager.executeWrite("flush", func(*sql.DB) error { return nil }); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

// record queues match starts through the recorder and waits for them
func record(t *testing.T, manager *Manager, matches ...*types.Match) {
	t.Helper()
	for _, m := range matches {
		manager.MatchStarted(m)
	}
	flush(t, manager)
}

func TestManager_RecorderCompliance(t *testing.T) {
	var _ interfaces.MatchRecorder = &Manager{}
}

func TestManager_RecordAndGetMatch(t *testing.T) {
	manager := setupTestDB(t)
	ctx := context.Background()

	record(t, manager, newMatch("m1", "a", "b"))

	match, err := manager.GetMatch(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if match.PeerA != "a" || match.PeerB != "b" {
		t.Errorf("Unexpected peers: %s/%s", match.PeerA, match.PeerB)
	}
	if match.ModeA != "video" || match.ModeB != "audio" {
		t.Errorf("Unexpected modes: %s/%s", match.ModeA, match.ModeB)
	}
	if match.EndedAt != nil {
		t.Error("New match should not have an end time")
	}
}

func TestManager_InvalidMatchNotRecorded(t *testing.T) {
	manager := setupTestDB(t)

	record(t, manager, &types.Match{ID: "m1", PeerA: "a", PeerB: "a"})
	if _, err := manager.GetMatch(context.Background(), "m1"); err != interfaces.ErrMatchNotFound {
		t.Errorf("Expected self-match to be dropped, got %v", err)
	}
}

func TestManager_GetMatchNotFound(t *testing.T) {
	manager := setupTestDB(t)

	_, err := manager.GetMatch(context.Background(), "missing")
	if err != interfaces.ErrMatchNotFound {
		t.Errorf("Expected ErrMatchNotFound, got %v", err)
	}
}

func TestManager_EndMatchKeepsFirstEnd(t *testing.T) {
	manager := setupTestDB(t)
	ctx := context.Background()

	record(t, manager, newMatch("m1", "a", "b"))

	first := time.Now()
	manager.MatchEnded("m1", first, types.EndReasonEnded)
	manager.MatchEnded("m1", first.Add(time.Hour), types.EndReasonDisconnected)
	flush(t, manager)

	match, err := manager.GetMatch(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if match.EndedAt == nil {
		t.Fatal("Match should be ended")
	}
	if match.EndReason != types.EndReasonEnded {
		t.Errorf("Expected first end reason to stick, got %s", match.EndReason)
	}
	if match.EndedAt.Sub(first.UTC()).Abs() > time.Second {
		t.Errorf("Expected end time near %v, got %v", first, *match.EndedAt)
	}
}

func TestManager_AsyncRecorderOrdering(t *testing.T) {
	manager := setupTestDB(t)

	// Start and end are queued on the same writer, so the end always lands
	// after the insert.
	manager.MatchStarted(newMatch("m1", "a", "b"))
	manager.MatchEnded("m1", time.Now(), types.EndReasonDisconnected)

	flush(t, manager)

	match, err := manager.GetMatch(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if match.EndReason != types.EndReasonDisconnected {
		t.Errorf("Expected end reason %s, got %q", types.EndReasonDisconnected, match.EndReason)
	}
}

func TestManager_RecorderIgnoresInvalidInput(t *testing.T) {
	manager := setupTestDB(t)

	manager.MatchStarted(nil)
	manager.MatchStarted(&types.Match{ID: ""})
	manager.MatchEnded("", time.Now(), types.EndReasonEnded)
	flush(t, manager)

	stats, err := manager.GetMatchStats(context.Background())
	if err != nil {
		t.Fatalf("GetMatchStats failed: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("Expected no matches, got %d", stats.Total)
	}
}

func TestManager_GetMatchStats(t *testing.T) {
	manager := setupTestDB(t)
	ctx := context.Background()

	record(t, manager,
		newMatch("m1", "a", "b"),
		newMatch("m2", "c", "d"),
		&types.Match{ID: "m3", PeerA: "e", PeerB: "f", ModeA: "video", ModeB: "video", StartedAt: time.Now()},
	)
	manager.MatchEnded("m1", time.Now(), types.EndReasonEnded)
	flush(t, manager)

	stats, err := manager.GetMatchStats(ctx)
	if err != nil {
		t.Fatalf("GetMatchStats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Expected 3 matches, got %d", stats.Total)
	}
	if stats.Active != 2 {
		t.Errorf("Expected 2 active matches, got %d", stats.Active)
	}
	if stats.ByCallTypes["audio+video"] != 2 {
		t.Errorf("Expected 2 audio+video matches, got %d", stats.ByCallTypes["audio+video"])
	}
	if stats.ByCallTypes["video+video"] != 1 {
		t.Errorf("Expected 1 video+video match, got %d", stats.ByCallTypes["video+video"])
	}
	if stats.AverageDuration < 30*time.Second {
		t.Errorf("Expected average duration around a minute, got %v", stats.AverageDuration)
	}
}

func TestManager_ConcurrentWrites(t *testing.T) {
	manager := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			manager.MatchStarted(newMatch(fmt.Sprintf("m%d", i), fmt.Sprintf("a%d", i), fmt.Sprintf("b%d", i)))
		}(i)
	}
	wg.Wait()
	flush(t, manager)

	stats, err := manager.GetMatchStats(ctx)
	if err != nil {
		t.Fatalf("GetMatchStats failed: %v", err)
	}
	if stats.Total != 20 {
		t.Errorf("Expected 20 matches, got %d", stats.Total)
	}
}

func TestManager_HealthCheck(t *testing.T) {
	manager := setupTestDB(t)

	if err := manager.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestManager_CleanShutdown(t *testing.T) {
	manager := setupTestDB(t)

	if err := manager.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Idempotent
	if err := manager.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}

	if _, err := manager.CloseOpenMatches(context.Background(), time.Now(), types.EndReasonInterrupted); err != ErrManagerClosed {
		t.Errorf("Expected ErrManagerClosed, got %v", err)
	}
	if err := manager.HealthCheck(context.Background()); err != ErrManagerClosed {
		t.Errorf("Expected ErrManagerClosed from HealthCheck, got %v", err)
	}

	// Recorder calls after close must not panic
	manager.MatchStarted(newMatch("m2", "a", "b"))
	manager.MatchEnded("m2", time.Now(), types.EndReasonEnded)
}

func TestManager_CloseOpenMatches(t *testing.T) {
	manager := setupTestDB(t)
	ctx := context.Background()

	record(t, manager, newMatch("m1", "a", "b"), newMatch("m2", "c", "d"))
	manager.MatchEnded("m1", time.Now(), types.EndReasonEnded)

	closed, err := manager.CloseOpenMatches(ctx, time.Now(), types.EndReasonInterrupted)
	if err != nil {
		t.Fatalf("CloseOpenMatches failed: %v", err)
	}
	if closed != 1 {
		t.Errorf("Expected 1 match closed, got %d", closed)
	}

	m1, _ := manager.GetMatch(ctx, "m1")
	m2, _ := manager.GetMatch(ctx, "m2")
	if m1 == nil || m1.EndReason != types.EndReasonEnded {
		t.Errorf("Ended match must keep its reason, got %+v", m1)
	}
	if m2 == nil || m2.EndReason != types.EndReasonInterrupted {
		t.Errorf("Expected open match to be interrupted, got %+v", m2)
	}

	stats, err := manager.GetMatchStats(ctx)
	if err != nil {
		t.Fatalf("GetMatchStats failed: %v", err)
	}
	if stats.Active != 0 {
		t.Errorf("Expected no active matches, got %d", stats.Active)
	}
}
