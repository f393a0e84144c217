// Package registry owns the table of live peers. It is the single source of
// truth for who is online: a peer id is present here if and only if its
// connection is open.
package registry

import (
	"errors"
	"log/slog"
	"sync"

	"flowshare/internal/identity"
	"flowshare/internal/protocol"
)

var ErrPeerIDTaken = errors.New("peer id already registered")

// Conn is the outbound half of a peer's connection. Send must not block the
// caller; a send to a closed connection returns an error and nothing more.
type Conn interface {
	Send(msg protocol.Message) error
	Close() error
}

type Peer struct {
	ID        string
	Character string
	Conn      Conn
}

type Registry struct {
	mu       sync.Mutex
	logger   *slog.Logger
	assigner *identity.Assigner
	peers    map[string]*Peer
	order    []string
	onEvict  []func(peerID string)
}

func NewRegistry(assigner *identity.Assigner, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		assigner: assigner,
		peers:    make(map[string]*Peer),
	}
}

// OnEvict registers a hook run whenever a peer leaves the registry. Hooks run
// outside the registry lock.
func (r *Registry) OnEvict(fn func(peerID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = append(r.onEvict, fn)
}

// Admit registers a new peer under the client-supplied id, assigns it a
// display name, tells the peer who it is and announces the change to
// everyone.
func (r *Registry) Admit(id string, conn Conn) (*Peer, error) {
	r.mu.Lock()
	if _, exists := r.peers[id]; exists {
		r.mu.Unlock()
		return nil, ErrPeerIDTaken
	}

	peer := &Peer{
		ID:        id,
		Character: r.assigner.Assign(),
		Conn:      conn,
	}
	r.peers[id] = peer
	r.order = append(r.order, id)
	r.mu.Unlock()

	r.logger.Info("Peer admitted", "peer", id, "character", peer.Character)

	if err := conn.Send(&protocol.CharacterAssigned{Character: peer.Character, UserID: id}); err != nil {
		r.logger.Debug("Identity delivery failed", "peer", id, "error", err)
	}

	r.BroadcastUserList()
	return peer, nil
}

// Remove evicts the peer and announces the change. Removing an unknown id is a
// no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	peer, exists := r.peers[id]
	if !exists {
		r.mu.Unlock()
		return
	}
	delete(r.peers, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	hooks := r.onEvict
	r.mu.Unlock()

	r.assigner.Release(peer.Character)
	for _, fn := range hooks {
		fn(id)
	}

	r.logger.Info("Peer removed", "peer", id, "character", peer.Character)
	r.BroadcastUserList()
}

func (r *Registry) Lookup(id string) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	peer, ok := r.peers[id]
	return peer, ok
}

// Snapshot returns every registered peer in admission order. Callers deliver
// presence lists peer-relative, filtering the receiver out themselves.
func (r *Registry) Snapshot() []protocol.UserInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []protocol.UserInfo {
	users := make([]protocol.UserInfo, 0, len(r.order))
	for _, id := range r.order {
		peer := r.peers[id]
		users = append(users, protocol.UserInfo{UserID: peer.ID, Character: peer.Character})
	}
	return users
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// BroadcastUserList pushes the current presence list to every live peer, with
// the receiver excluded from its own copy. Deliveries are fire-and-forget; a
// dead connection never blocks the rest.
func (r *Registry) BroadcastUserList() {
	r.mu.Lock()
	users := r.snapshotLocked()
	conns := make([]*Peer, 0, len(r.order))
	for _, id := range r.order {
		conns = append(conns, r.peers[id])
	}
	r.mu.Unlock()

	for _, peer := range conns {
		visible := make([]protocol.UserInfo, 0, len(users))
		for _, u := range users {
			if u.UserID == peer.ID {
				continue
			}
			visible = append(visible, u)
		}

		if err := peer.Conn.Send(&protocol.UserListUpdate{Users: visible}); err != nil {
			r.logger.Debug("Presence delivery failed", "peer", peer.ID, "error", err)
		}
	}
}
