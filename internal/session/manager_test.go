package session

import (
	"errors"
	"fmt"
	"testing"
)

func addAll(m *Manager, ids ...string) {
	for _, id := range ids {
		m.Add(id)
	}
}

func mustCheck(t *testing.T, m *Manager) {
	t.Helper()
	if err := m.CheckInvariants(); err != nil {
		t.Fatalf("Invariant violated: %v", err)
	}
}

func TestManager_AddIsIdempotent(t *testing.T) {
	m := NewManager()

	first := m.Add("a")
	second := m.Add("a")
	if first != second {
		t.Error("Adding a known ID should return the existing participant")
	}
	if m.Len() != 1 {
		t.Errorf("Expected 1 participant, got %d", m.Len())
	}
	if first.Paired() {
		t.Error("New participant should be unpaired")
	}
}

func TestManager_EnqueueFIFO(t *testing.T) {
	m := NewManager()
	addAll(m, "a", "b", "c")

	for _, id := range []string{"a", "b", "c"} {
		if !m.Enqueue(id, "video") {
			t.Errorf("Enqueue(%s) should append", id)
		}
		mustCheck(t, m)
	}

	got := queueOrder(m)
	want := []string{"a", "b", "c"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expected queue %v, got %v", want, got)
	}
}

func TestManager_EnqueueIsASet(t *testing.T) {
	m := NewManager()
	addAll(m, "a")

	m.Enqueue("a", "video")
	if m.Enqueue("a", "audio") {
		t.Error("Second enqueue of a waiting participant should not append")
	}
	if m.QueueLen() != 1 {
		t.Errorf("Expected queue length 1, got %d", m.QueueLen())
	}

	p, _ := m.Get("a")
	if p.DesiredMode != "audio" {
		t.Errorf("Expected desired mode to be updated to audio, got %s", p.DesiredMode)
	}
	mustCheck(t, m)
}

func TestManager_EnqueueRejectsUnknownAndPaired(t *testing.T) {
	m := NewManager()
	addAll(m, "a", "b")

	if m.Enqueue("ghost", "video") {
		t.Error("Unknown participant should not be queued")
	}

	a, _ := m.Get("a")
	b, _ := m.Get("b")
	if err := m.Pair(a, b, "m1"); err != nil {
		t.Fatalf("Pair failed: %v", err)
	}

	if m.Enqueue("a", "audio") {
		t.Error("Paired participant should not be queued")
	}
	if a.DesiredMode != "" {
		t.Errorf("Paired participant's mode should be untouched, got %q", a.DesiredMode)
	}
	mustCheck(t, m)
}

func TestManager_PopPairOldestFirst(t *testing.T) {
	m := NewManager()
	addAll(m, "a", "b", "c", "d")
	for _, id := range []string{"a", "b", "c", "d"} {
		m.Enqueue(id, "")
	}

	first, second, ok := m.PopPair()
	if !ok {
		t.Fatal("Expected a pair")
	}
	if first.ID != "a" || second.ID != "b" {
		t.Errorf("Expected (a, b), got (%s, %s)", first.ID, second.ID)
	}
	if m.QueueLen() != 2 {
		t.Errorf("Expected 2 waiting, got %d", m.QueueLen())
	}
}

func TestManager_PopPairNeedsTwo(t *testing.T) {
	m := NewManager()
	addAll(m, "a")
	m.Enqueue("a", "")

	if _, _, ok := m.PopPair(); ok {
		t.Error("PopPair should fail with one waiting participant")
	}
	if m.QueueLen() != 1 {
		t.Error("Failed PopPair must not change the queue")
	}
}

func TestManager_PairIsMutual(t *testing.T) {
	m := NewManager()
	addAll(m, "a", "b")
	a, _ := m.Get("a")
	b, _ := m.Get("b")

	if err := m.Pair(a, b, "m1"); err != nil {
		t.Fatalf("Pair failed: %v", err)
	}
	if a.PartnerID != "b" || b.PartnerID != "a" {
		t.Errorf("Pairing not mutual: a->%s b->%s", a.PartnerID, b.PartnerID)
	}
	if a.MatchID != "m1" || b.MatchID != "m1" {
		t.Error("Both sides should carry the match id")
	}
	if m.Pairs() != 1 {
		t.Errorf("Expected 1 pair, got %d", m.Pairs())
	}
	mustCheck(t, m)
}

func TestManager_PairRejectsInvalid(t *testing.T) {
	m := NewManager()
	addAll(m, "a", "b", "c")
	a, _ := m.Get("a")
	b, _ := m.Get("b")
	c, _ := m.Get("c")

	if err := m.Pair(a, a, "m0"); !errors.Is(err, ErrSelfPairing) {
		t.Errorf("Expected ErrSelfPairing, got %v", err)
	}
	if err := m.Pair(a, nil, "m0"); err == nil {
		t.Error("Expected error for nil participant")
	}

	if err := m.Pair(a, b, "m1"); err != nil {
		t.Fatalf("Pair failed: %v", err)
	}
	// At most one partner at a time
	if err := m.Pair(a, c, "m2"); !errors.Is(err, ErrAsymmetricPairing) {
		t.Errorf("Expected ErrAsymmetricPairing, got %v", err)
	}
	if a.PartnerID != "b" {
		t.Error("Rejected pairing must not change existing partner")
	}
	mustCheck(t, m)
}

func TestManager_UnpairClearsBothSides(t *testing.T) {
	m := NewManager()
	addAll(m, "a", "b")
	a, _ := m.Get("a")
	b, _ := m.Get("b")
	_ = m.Pair(a, b, "m1")

	partnerID, matchID := m.Unpair(a)
	if partnerID != "b" || matchID != "m1" {
		t.Errorf("Expected (b, m1), got (%s, %s)", partnerID, matchID)
	}
	if a.Paired() || b.Paired() {
		t.Error("Both sides should be unpaired")
	}
	if m.IsWaiting("b") {
		t.Error("Former partner must not be re-queued")
	}
	if m.Pairs() != 0 {
		t.Errorf("Expected 0 pairs, got %d", m.Pairs())
	}
	mustCheck(t, m)

	// Second unpair is a no-op
	partnerID, matchID = m.Unpair(a)
	if partnerID != "" || matchID != "" {
		t.Errorf("Second Unpair should return nothing, got (%s, %s)", partnerID, matchID)
	}
	if m.Pairs() != 0 {
		t.Errorf("Second Unpair changed pair count to %d", m.Pairs())
	}
}

func TestManager_UnpairWithMissingPartner(t *testing.T) {
	m := NewManager()
	addAll(m, "a", "b")
	a, _ := m.Get("a")
	b, _ := m.Get("b")
	_ = m.Pair(a, b, "m1")

	delete(m.participants, "b")

	partnerID, _ := m.Unpair(a)
	if partnerID != "b" {
		t.Errorf("Expected former partner b, got %s", partnerID)
	}
	if a.Paired() {
		t.Error("Participant should be cleared even if the partner is gone")
	}
	mustCheck(t, m)
}

func TestManager_RemoveWhileWaiting(t *testing.T) {
	m := NewManager()
	addAll(m, "a", "b", "c")
	m.Enqueue("a", "")
	m.Enqueue("b", "")
	m.Enqueue("c", "")

	m.Remove("b")

	if _, exists := m.Get("b"); exists {
		t.Error("Removed participant should be gone")
	}
	if got := queueOrder(m); fmt.Sprint(got) != fmt.Sprint([]string{"a", "c"}) {
		t.Errorf("Unexpected queue after removal: %v", got)
	}
	mustCheck(t, m)

	// Removing twice is harmless
	m.Remove("b")
	mustCheck(t, m)
}

func TestManager_CheckInvariantsDetectsAsymmetry(t *testing.T) {
	m := NewManager()
	addAll(m, "a", "b")
	a, _ := m.Get("a")
	a.PartnerID = "b"

	if err := m.CheckInvariants(); !errors.Is(err, ErrAsymmetricPairing) {
		t.Errorf("Expected ErrAsymmetricPairing, got %v", err)
	}
}

func TestManager_CheckInvariantsDetectsPairedInQueue(t *testing.T) {
	m := NewManager()
	addAll(m, "a", "b")
	m.Enqueue("a", "")
	a, _ := m.Get("a")
	b, _ := m.Get("b")
	a.PartnerID, b.PartnerID = "b", "a"
	m.pairs = 1

	if err := m.CheckInvariants(); !errors.Is(err, ErrPairedInQueue) {
		t.Errorf("Expected ErrPairedInQueue, got %v", err)
	}
}

// queueOrder lists waiting ids in arrival order
func queueOrder(m *Manager) []string {
	ids := make([]string, 0, m.queue.Len())
	for e := m.queue.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(string))
	}
	return ids
}
