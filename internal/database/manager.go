package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "strangers/pkg/database"
	"strangers/pkg/interfaces"
	"strangers/pkg/types"
)

var (
	ErrManagerClosed   = errors.New("database manager is closed")
	ErrWriteQueueFull  = errors.New("database write queue is full")
	ErrWriteTimeout    = errors.New("write operation timeout")
	ErrManagerShutdown = errors.New("database manager is shutting down")
)

// Manager persists the match log. All writes go through a single writer
// goroutine; reads use the pool directly.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
	logger       *slog.Logger
}

// writeOperation is one queued write. result is nil for fire-and-forget writes.
type writeOperation struct {
	name      string
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database and starts the writer goroutine
func NewManager(config *dbconfig.Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A shared-cache memory database locks at table level and vanishes with its
	// last connection, so it gets exactly one connection that never expires.
	if config.IsMemory() {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(config.MaxConnections)
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	if err := dbconfig.ApplyOptimizations(db, config); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, config.WriteBuffer),
		shutdown:     make(chan struct{}),
		logger:       slog.Default().With("component", "database"),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine.
// A failed write is retried once after the configured delay.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			m.runWrite(op)

		case <-m.shutdown:
			// Flush what is already queued so pairing records are not lost on
			// a clean stop.
			for {
				select {
				case op := <-m.writeChannel:
					m.runWrite(op)
				default:
					m.logger.Debug("write loop stopped")
					return
				}
			}
		}
	}
}

func (m *Manager) runWrite(op writeOperation) {
	err := op.operation(m.db)
	if err != nil {
		m.logger.Warn("write failed, retrying", "op", op.name, "delay", m.config.RetryDelay, "error", err)
		time.Sleep(m.config.RetryDelay)
		err = op.operation(m.db)
		if err != nil {
			m.logger.Error("write failed after retry", "op", op.name, "error", err)
		}
	}
	if op.result != nil {
		op.result <- err
	}
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(name string, operation func(*sql.DB) error) error {
	if m.isClosed() {
		return ErrManagerClosed
	}

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{name: name, operation: operation, result: result}:
		return <-result
	case <-time.After(m.config.WriteTimeout):
		return ErrWriteTimeout
	case <-m.shutdown:
		return ErrManagerShutdown
	}
}

// enqueueWrite queues a write without waiting. A full queue drops the write.
func (m *Manager) enqueueWrite(name string, operation func(*sql.DB) error) error {
	if m.isClosed() {
		return ErrManagerClosed
	}

	select {
	case m.writeChannel <- writeOperation{name: name, operation: operation}:
		return nil
	default:
		return ErrWriteQueueFull
	}
}

// CloseOpenMatches ends every match still marked active and reports how many
// were closed. It waits for the writer, so queued starts and ends land first.
func (m *Manager) CloseOpenMatches(ctx context.Context, endedAt time.Time, reason string) (int64, error) {
	var closed int64
	err := m.executeWrite("close_open_matches", func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, `
			UPDATE matches
			SET ended_at = ?, end_reason = ?
			WHERE ended_at IS NULL
		`, endedAt.UTC(), reason)
		if err != nil {
			return fmt.Errorf("failed to close open matches: %w", err)
		}
		closed, err = result.RowsAffected()
		return err
	})
	return closed, err
}

// MatchStarted implements interfaces.MatchRecorder without blocking the caller
func (m *Manager) MatchStarted(match *types.Match) {
	if match == nil {
		return
	}
	if err := match.Validate(); err != nil {
		m.logger.Warn("dropping invalid match record", "match", match.ID, "error", err)
		return
	}
	record := *match
	if err := m.enqueueWrite("create_match", insertMatch(context.Background(), &record)); err != nil {
		m.logger.Warn("dropping match start", "match", match.ID, "error", err)
	}
}

// MatchEnded implements interfaces.MatchRecorder without blocking the caller
func (m *Manager) MatchEnded(matchID string, endedAt time.Time, reason string) {
	if matchID == "" {
		return
	}
	if err := m.enqueueWrite("end_match", updateMatchEnd(context.Background(), matchID, endedAt, reason)); err != nil {
		m.logger.Warn("dropping match end", "match", matchID, "error", err)
	}
}

func insertMatch(ctx context.Context, match *types.Match) func(*sql.DB) error {
	return func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO matches (id, peer_a, peer_b, mode_a, mode_b, started_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			match.ID,
			match.PeerA,
			match.PeerB,
			match.ModeA,
			match.ModeB,
			match.StartedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert match: %w", err)
		}
		return nil
	}
}

func updateMatchEnd(ctx context.Context, matchID string, endedAt time.Time, reason string) func(*sql.DB) error {
	return func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			UPDATE matches
			SET ended_at = ?, end_reason = ?
			WHERE id = ? AND ended_at IS NULL
		`, endedAt.UTC(), reason, matchID)
		if err != nil {
			return fmt.Errorf("failed to end match: %w", err)
		}
		return nil
	}
}

// GetMatch retrieves a match by ID
func (m *Manager) GetMatch(ctx context.Context, matchID string) (*types.Match, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, peer_a, peer_b, mode_a, mode_b, started_at, ended_at, end_reason
		FROM matches
		WHERE id = ?
	`, matchID)

	var (
		match     types.Match
		endedAt   sql.NullTime
		endReason sql.NullString
	)
	err := row.Scan(
		&match.ID,
		&match.PeerA,
		&match.PeerB,
		&match.ModeA,
		&match.ModeB,
		&match.StartedAt,
		&endedAt,
		&endReason,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to query match: %w", err)
	}

	if endedAt.Valid {
		match.EndedAt = &endedAt.Time
	}
	if endReason.Valid {
		match.EndReason = endReason.String
	}

	return &match, nil
}

// GetMatchStats aggregates the match log
func (m *Manager) GetMatchStats(ctx context.Context) (*types.MatchStats, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT mode_a, mode_b, started_at, ended_at FROM matches`)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := &types.MatchStats{ByCallTypes: make(map[string]int)}
	var (
		totalDuration time.Duration
		ended         int
	)

	for rows.Next() {
		var (
			modeA, modeB string
			startedAt    time.Time
			endedAt      sql.NullTime
		)
		if err := rows.Scan(&modeA, &modeB, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}

		stats.Total++
		stats.ByCallTypes[types.CallTypePair(modeA, modeB)]++
		if endedAt.Valid {
			ended++
			totalDuration += endedAt.Time.Sub(startedAt)
		} else {
			stats.Active++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}

	if ended > 0 {
		stats.AverageDuration = totalDuration / time.Duration(ended)
	}
	return stats, nil
}

// HealthCheck validates database connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	if m.isClosed() {
		return ErrManagerClosed
	}
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var count int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM matches").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// GetDB returns the underlying database connection for migrations
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close flushes queued writes and closes the database
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
