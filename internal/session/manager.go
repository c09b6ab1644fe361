package session

import (
	"container/list"
	"fmt"
	"time"
)

// Participant is one live connection's matching state
type Participant struct {
	ID          string
	DesiredMode string
	PartnerID   string
	MatchID     string
	ConnectedAt time.Time
	WaitingFrom time.Time
}

// Paired reports whether the participant currently has a partner
func (p *Participant) Paired() bool {
	return p.PartnerID != ""
}

// Manager owns the connection table, the waiting queue and the pairing
// relation. It has no locks: it must only be used from the hub goroutine.
type Manager struct {
	participants map[string]*Participant
	queue        *list.List               // of participant IDs, oldest first
	queued       map[string]*list.Element // membership index into queue
	pairs        int
	now          func() time.Time
}

// NewManager creates an empty session manager
func NewManager() *Manager {
	return &Manager{
		participants: make(map[string]*Participant),
		queue:        list.New(),
		queued:       make(map[string]*list.Element),
		now:          time.Now,
	}
}

// Add registers a new connection. Adding a known ID returns the existing entry.
func (m *Manager) Add(id string) *Participant {
	if p, exists := m.participants[id]; exists {
		return p
	}
	p := &Participant{ID: id, ConnectedAt: m.now()}
	m.participants[id] = p
	return p
}

// Get looks up a live participant
func (m *Manager) Get(id string) (*Participant, bool) {
	p, exists := m.participants[id]
	return p, exists
}

// Remove discards a participant and its queue entry. Callers unpair first.
func (m *Manager) Remove(id string) {
	m.Dequeue(id)
	delete(m.participants, id)
}

// Enqueue appends a participant to the waiting queue with its desired mode.
// Paired participants are never queued. A participant already waiting keeps
// its position but takes the new mode. Returns true if it was appended.
func (m *Manager) Enqueue(id, mode string) bool {
	p, exists := m.participants[id]
	if !exists || p.Paired() {
		return false
	}

	p.DesiredMode = mode
	if _, waiting := m.queued[id]; waiting {
		return false
	}

	p.WaitingFrom = m.now()
	m.queued[id] = m.queue.PushBack(id)
	return true
}

// Dequeue removes a participant from the waiting queue if present
func (m *Manager) Dequeue(id string) bool {
	elem, waiting := m.queued[id]
	if !waiting {
		return false
	}
	m.queue.Remove(elem)
	delete(m.queued, id)
	return true
}

// IsWaiting reports queue membership
func (m *Manager) IsWaiting(id string) bool {
	_, waiting := m.queued[id]
	return waiting
}

// PopPair removes the two oldest waiting participants, strictly FIFO
func (m *Manager) PopPair() (*Participant, *Participant, bool) {
	if m.queue.Len() < 2 {
		return nil, nil, false
	}

	first := m.popFront()
	second := m.popFront()
	return first, second, true
}

func (m *Manager) popFront() *Participant {
	elem := m.queue.Front()
	id := elem.Value.(string)
	m.queue.Remove(elem)
	delete(m.queued, id)
	return m.participants[id]
}

// Pair links two unpaired participants to each other. Both sides are written
// here and only here.
func (m *Manager) Pair(a, b *Participant, matchID string) error {
	if a == nil || b == nil {
		return fmt.Errorf("pair: nil participant")
	}
	if a.ID == b.ID {
		return ErrSelfPairing
	}
	if a.Paired() || b.Paired() {
		return fmt.Errorf("pair %s with %s: %w", a.ID, b.ID, ErrAsymmetricPairing)
	}

	m.Dequeue(a.ID)
	m.Dequeue(b.ID)
	a.PartnerID, b.PartnerID = b.ID, a.ID
	a.MatchID, b.MatchID = matchID, matchID
	m.pairs++
	return nil
}

// Unpair clears p's pairing on both sides and returns the former partner's
// ID and the match ID. The partner may be absent from the table, in which
// case only p is cleared. Unpairing an unpaired participant returns "".
func (m *Manager) Unpair(p *Participant) (partnerID, matchID string) {
	if p == nil || !p.Paired() {
		return "", ""
	}

	partnerID, matchID = p.PartnerID, p.MatchID
	p.PartnerID, p.MatchID = "", ""

	if partner, exists := m.participants[partnerID]; exists && partner.PartnerID == p.ID {
		partner.PartnerID, partner.MatchID = "", ""
	}
	m.pairs--
	return partnerID, matchID
}

// QueueLen returns the number of waiting participants
func (m *Manager) QueueLen() int {
	return m.queue.Len()
}

// Len returns the number of live participants
func (m *Manager) Len() int {
	return len(m.participants)
}

// Pairs returns the number of active pairings
func (m *Manager) Pairs() int {
	return m.pairs
}

// CheckInvariants verifies queue membership, the queue index and pairing
// symmetry. It is meant to be called between events.
func (m *Manager) CheckInvariants() error {
	if len(m.queued) != m.queue.Len() {
		return ErrQueueIndex
	}

	for e := m.queue.Front(); e != nil; e = e.Next() {
		id := e.Value.(string)
		if m.queued[id] != e {
			return ErrQueueIndex
		}
		p, exists := m.participants[id]
		if !exists {
			return fmt.Errorf("%w: unknown participant %s", ErrQueueIndex, id)
		}
		if p.Paired() {
			return fmt.Errorf("%w: %s", ErrPairedInQueue, id)
		}
	}

	paired := 0
	for id, p := range m.participants {
		if !p.Paired() {
			continue
		}
		if p.PartnerID == id {
			return fmt.Errorf("%w: %s", ErrSelfPairing, id)
		}
		partner, exists := m.participants[p.PartnerID]
		if !exists || partner.PartnerID != id {
			return fmt.Errorf("%w: %s -> %s", ErrAsymmetricPairing, id, p.PartnerID)
		}
		paired++
	}

	if paired != 2*m.pairs {
		return fmt.Errorf("%w: %d paired participants for %d pairs", ErrAsymmetricPairing, paired, m.pairs)
	}
	return nil
}
