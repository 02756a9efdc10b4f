package app

import (
	"context"
	"sync"

	"github.com/dkeye/Venue/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	RoomName domain.RoomName
	Cancel   context.CancelFunc
}

// Registry indexes live sessions across rooms: which room a participant is in
// and how to stop its transport.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ParticipantID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.ParticipantID]*sessionEntry)}
}

func (r *Registry) Bind(id domain.ParticipantID, roomName domain.RoomName, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &sessionEntry{RoomName: roomName, Cancel: cancel}
	log.Debug().Str("module", "app.registry").Str("id", string(id)).Str("room", string(roomName)).Msg("bound session")
}

func (r *Registry) Unbind(id domain.ParticipantID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	if ok {
		log.Debug().Str("module", "app.registry").Str("id", string(id)).Msg("unbind session")
	}
	return ok
}

func (r *Registry) RoomOf(id domain.ParticipantID) (domain.RoomName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return "", false
	}
	return e.RoomName, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Cancel(id domain.ParticipantID) bool {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("id", string(id)).Msg("canceled session")
	return true
}

// CancelRoom stops every session bound to name.
func (r *Registry) CancelRoom(name domain.RoomName) int {
	r.mu.RLock()
	var cancels []context.CancelFunc
	for _, e := range r.sessions {
		if e.RoomName == name && e.Cancel != nil {
			cancels = append(cancels, e.Cancel)
		}
	}
	r.mu.RUnlock()
	for _, c := range cancels {
		c()
	}
	return len(cancels)
}
