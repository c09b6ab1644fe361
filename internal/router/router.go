package router

import (
	"log/slog"
	"time"

	"strangers/internal/session"
	"strangers/pkg/interfaces"
	"strangers/pkg/types"
)

// Router relays events between paired strangers and tears pairings down.
// Relays are fire-and-forget: a missing or vanished recipient drops the
// event silently and nothing is reported back to the sender.
type Router struct {
	sessions *session.Manager
	emitter  interfaces.Emitter
	recorder interfaces.MatchRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewRouter creates a router. A nil recorder disables the match log.
func NewRouter(sessions *session.Manager, emitter interfaces.Emitter, recorder interfaces.MatchRecorder) *Router {
	if recorder == nil {
		recorder = interfaces.NopRecorder{}
	}
	return &Router{
		sessions: sessions,
		emitter:  emitter,
		recorder: recorder,
		logger:   slog.Default().With("component", "router"),
		now:      time.Now,
	}
}

// RelaySignal forwards an opaque WebRTC signal to the addressed connection,
// tagged with the sender's id. The target need not be the sender's partner.
func (r *Router) RelaySignal(fromID, toID string, signal any) bool {
	if toID == "" {
		return false
	}
	delivered := r.emitter.Emit(toID, types.EventWebRTCSignal, types.RelayedSignal{From: fromID, Signal: signal})
	if !delivered {
		r.logger.Debug("signal dropped", "from", fromID, "to", toID)
	}
	return delivered
}

// RelayMessage forwards chat text to the sender's partner only
func (r *Router) RelayMessage(fromID, text string) error {
	partnerID, err := r.partnerOf(fromID)
	if err != nil {
		return err
	}
	r.emitter.Emit(partnerID, types.EventNewMessage, types.NewMessage{Text: text})
	return nil
}

// RelayMediaStatus forwards the sender's camera state to its partner only
func (r *Router) RelayMediaStatus(fromID string, video bool) error {
	partnerID, err := r.partnerOf(fromID)
	if err != nil {
		return err
	}
	r.emitter.Emit(partnerID, types.EventStrangerMediaStatus, types.StrangerMediaStatus{Video: video})
	return nil
}

func (r *Router) partnerOf(id string) (string, error) {
	p, exists := r.sessions.Get(id)
	if !exists {
		return "", ErrUnknownConnection
	}
	if !p.Paired() {
		return "", ErrSenderNotPaired
	}
	return p.PartnerID, nil
}

// EndChat dissolves id's pairing, tells the former partner exactly once and
// takes id out of the waiting queue. The connection itself stays registered.
// Calling it again, or for an unpaired connection, changes nothing.
func (r *Router) EndChat(id, reason string) {
	p, exists := r.sessions.Get(id)
	if !exists {
		return
	}

	partnerID, matchID := r.sessions.Unpair(p)
	if partnerID != "" {
		r.emitter.Emit(partnerID, types.EventStrangerDisconnected, nil)
		r.recorder.MatchEnded(matchID, r.now(), reason)
		r.logger.Info("chat ended", "match", matchID, "conn", id, "partner", partnerID, "reason", reason)
	}

	if r.sessions.Dequeue(id) {
		r.logger.Debug("left waiting queue", "conn", id)
	}
}
