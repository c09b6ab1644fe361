package matcher

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"strangers/internal/session"
	"strangers/pkg/interfaces"
	"strangers/pkg/types"
)

// Matcher admits match requests into the waiting queue and forms pairings
// strictly in arrival order. Call types are not used for filtering: a video
// seeker may be paired with an audio seeker, and each side is told what the
// other asked for.
type Matcher struct {
	sessions *session.Manager
	emitter  interfaces.Emitter
	recorder interfaces.MatchRecorder
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
}

// NewMatcher creates a matcher. A nil recorder disables the match log.
func NewMatcher(sessions *session.Manager, emitter interfaces.Emitter, recorder interfaces.MatchRecorder) *Matcher {
	if recorder == nil {
		recorder = interfaces.NopRecorder{}
	}
	return &Matcher{
		sessions: sessions,
		emitter:  emitter,
		recorder: recorder,
		logger:   slog.Default().With("component", "matcher"),
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
}

// RequestMatch records the desired mode and queues the connection, then pairs
// off the two oldest waiting connections while at least two are waiting.
// Requests from unknown or already paired connections are no-ops.
func (m *Matcher) RequestMatch(connID, desiredMode string) {
	p, exists := m.sessions.Get(connID)
	if !exists {
		m.logger.Debug("match request from unknown connection", "conn", connID)
		return
	}
	if p.Paired() {
		m.logger.Debug("ignoring match request from paired connection", "conn", connID, "partner", p.PartnerID)
		return
	}

	if m.sessions.Enqueue(connID, desiredMode) {
		m.logger.Info("looking for a stranger", "conn", connID, "type", desiredMode, "waiting", m.sessions.QueueLen())
	}

	for {
		a, b, ok := m.sessions.PopPair()
		if !ok {
			return
		}
		m.pair(a, b)
	}
}

func (m *Matcher) pair(a, b *session.Participant) {
	matchID := m.newID()
	if err := m.sessions.Pair(a, b, matchID); err != nil {
		m.logger.Error("pairing failed", "a", a.ID, "b", b.ID, "error", err)
		return
	}

	now := m.now()
	m.logger.Info("paired", "match", matchID, "a", a.ID, "b", b.ID,
		"a_waited", now.Sub(a.WaitingFrom), "b_waited", now.Sub(b.WaitingFrom))

	m.emitter.Emit(a.ID, types.EventStrangerFound, types.StrangerFound{ID: b.ID, CallType: b.DesiredMode})
	m.emitter.Emit(b.ID, types.EventStrangerFound, types.StrangerFound{ID: a.ID, CallType: a.DesiredMode})

	m.recorder.MatchStarted(&types.Match{
		ID:        matchID,
		PeerA:     a.ID,
		PeerB:     b.ID,
		ModeA:     a.DesiredMode,
		ModeB:     b.DesiredMode,
		StartedAt: now,
	})
}
