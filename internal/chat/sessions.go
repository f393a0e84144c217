// Package chat tracks the consent handshake between peer pairs. A private
// message is only ever relayed while its pair's session is active; everything
// else is dropped on the floor.
package chat

import (
	"log/slog"
	"sync"
)

type State int

const (
	StateNone State = iota
	StatePending
	StateActive
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateActive:
		return "ACTIVE"
	default:
		return "NONE"
	}
}

// pairKey identifies the unordered peer pair; lo sorts before hi so both
// orderings of the same two peers map to one key.
type pairKey struct {
	lo, hi string
}

func keyFor(a, b string) pairKey {
	if a < b {
		return pairKey{lo: a, hi: b}
	}
	return pairKey{lo: b, hi: a}
}

type session struct {
	state     State
	requester string
}

// Sessions is the pair-keyed negotiation table. All transitions are serialized
// under one mutex, so two simultaneous requests from both sides of a pair
// resolve to exactly one pending owner.
type Sessions struct {
	mu       sync.Mutex
	logger   *slog.Logger
	sessions map[pairKey]*session
}

func NewSessions(logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		logger:   logger,
		sessions: make(map[pairKey]*session),
	}
}

// Request moves the pair from NONE to PENDING with from as requester. It
// reports whether a new pending cycle started; re-requests while PENDING and
// requests against an ACTIVE session are no-ops.
func (s *Sessions) Request(from, to string) bool {
	if from == to {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(from, to)
	if _, exists := s.sessions[key]; exists {
		s.logger.Debug("Chat request ignored, session already exists", "from", from, "to", to)
		return false
	}

	s.sessions[key] = &session{state: StatePending, requester: from}
	s.logger.Debug("Chat pending", "from", from, "to", to)
	return true
}

// Accept moves the pair from PENDING to ACTIVE. Only the original target may
// accept; anything else is silently ignored.
func (s *Sessions) Accept(to, from string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(from, to)
	sess, exists := s.sessions[key]
	if !exists || sess.state != StatePending || sess.requester != from {
		return false
	}

	sess.state = StateActive
	s.logger.Debug("Chat active", "requester", from, "target", to)
	return true
}

// Decline tears a PENDING session down. Only the original target may decline.
func (s *Sessions) Decline(to, from string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(from, to)
	sess, exists := s.sessions[key]
	if !exists || sess.state != StatePending || sess.requester != from {
		return false
	}

	delete(s.sessions, key)
	s.logger.Debug("Chat declined", "requester", from, "target", to)
	return true
}

// Active reports whether the pair holds a mutually accepted session.
func (s *Sessions) Active(a, b string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[keyFor(a, b)]
	return exists && sess.state == StateActive
}

// StateOf returns the pair's current negotiation state.
func (s *Sessions) StateOf(a, b string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[keyFor(a, b)]
	if !exists {
		return StateNone
	}
	return sess.state
}

// DropPeer force-closes every session involving the peer, pending or active.
// The other side is not notified.
func (s *Sessions) DropPeer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.sessions {
		if key.lo == id || key.hi == id {
			delete(s.sessions, key)
		}
	}
}
