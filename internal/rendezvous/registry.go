package rendezvous

import (
	"context"
	"sync"

	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/rs/zerolog/log"
)

type peerEntry struct {
	Conn   *Conn
	Cancel context.CancelFunc
}

// Registry maps every connected peer id to its socket. An id is held by at
// most one socket at a time.
type Registry struct {
	mu    sync.RWMutex
	peers map[domain.PeerID]*peerEntry
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[domain.PeerID]*peerEntry)}
}

func (r *Registry) Bind(conn *Conn, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[conn.ID()]; ok {
		return core.ErrIDTaken
	}
	r.peers[conn.ID()] = &peerEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "rendezvous.registry").Str("peer", conn.ID().String()).Msg("bound peer")
	return nil
}

func (r *Registry) Get(id domain.PeerID) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.peers[id]; ok {
		return e.Conn, true
	}
	return nil, false
}

func (r *Registry) Online(id domain.PeerID) bool {
	_, ok := r.Get(id)
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Unbind releases id only while it is still held by conn, so a stale socket
// cannot evict the peer that registered after it.
func (r *Registry) Unbind(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[conn.ID()]
	if !ok || e.Conn != conn {
		return
	}
	delete(r.peers, conn.ID())
	log.Info().Str("module", "rendezvous.registry").Str("peer", conn.ID().String()).Msg("unbind peer")
}

// CancelAll stops the pumps of every peer.
func (r *Registry) CancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.peers {
		if e.Cancel != nil {
			e.Cancel()
		}
	}
}
