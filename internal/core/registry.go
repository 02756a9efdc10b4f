package core

import (
	"errors"
	"sync"

	"github.com/dkeye/Venue/internal/domain"
)

var ErrUnknownConnection = errors.New("unknown connection")

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []domain.ParticipantID
}

// Registry tracks the live connections of one room.
// Identities are issued here and are never reused.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ParticipantID]SignalConnection
	newID func() domain.ParticipantID
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[domain.ParticipantID]SignalConnection),
		newID: domain.NewParticipantID,
	}
}

func (r *Registry) Register(conn SignalConnection) domain.ParticipantID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.newID()
	for _, taken := r.conns[id]; taken; _, taken = r.conns[id] {
		id = r.newID()
	}
	r.conns[id] = conn
	return id
}

func (r *Registry) Unregister(id domain.ParticipantID) (SignalConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	delete(r.conns, id)
	return conn, ok
}

func (r *Registry) Has(id domain.ParticipantID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

func (r *Registry) conn(id domain.ParticipantID) (SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) IDs() []domain.ParticipantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ParticipantID, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}

func (r *Registry) SendTo(id domain.ParticipantID, f Frame) error {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownConnection
	}
	return conn.TrySend(f)
}

// Fanout sends f to every live connection except the one held by except.
// An empty except addresses everyone. Failed recipients are reported, not retried.
func (r *Registry) Fanout(except domain.ParticipantID, f Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for id, conn := range r.conns {
		if id == except {
			continue
		}
		if err := conn.TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SendTo++
	}
	return res
}

// CloseAll closes every connection and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[domain.ParticipantID]SignalConnection)
	r.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
