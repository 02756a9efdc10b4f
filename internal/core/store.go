package core

import (
	"errors"
	"sync"

	"github.com/dkeye/Venue/internal/domain"
)

var ErrStoreUnavailable = errors.New("room state storage unavailable")

// StateStore is the single source of truth for participant presence in a room.
// Mutations of unknown identities are no-ops reported through the bool result.
type StateStore interface {
	Add(p domain.Participant) error
	Get(id domain.ParticipantID) (domain.Participant, bool, error)
	GetAll() (map[domain.ParticipantID]domain.Participant, error)
	Upsert(id domain.ParticipantID, patch domain.PositionPatch) (domain.Participant, bool, error)
	SetName(id domain.ParticipantID, name string) (domain.Participant, bool, error)
	SetRole(id domain.ParticipantID, role domain.Role) (domain.Participant, bool, error)
	Remove(id domain.ParticipantID) (bool, error)
}

// MemoryStore is a threadsafe in-memory StateStore.
type MemoryStore struct {
	mu           sync.RWMutex
	participants map[domain.ParticipantID]domain.Participant
	lost         bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{participants: make(map[domain.ParticipantID]domain.Participant)}
}

// Close drops the state and makes every operation fail with ErrStoreUnavailable until Reopen.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost = true
	s.participants = nil
}

// Reopen makes the store available again, starting empty.
func (s *MemoryStore) Reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost = false
	s.participants = make(map[domain.ParticipantID]domain.Participant)
}

func (s *MemoryStore) Add(p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lost {
		return ErrStoreUnavailable
	}
	s.participants[p.ID] = p
	return nil
}

func (s *MemoryStore) Get(id domain.ParticipantID) (domain.Participant, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lost {
		return domain.Participant{}, false, ErrStoreUnavailable
	}
	p, ok := s.participants[id]
	return p, ok, nil
}

func (s *MemoryStore) GetAll() (map[domain.ParticipantID]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lost {
		return nil, ErrStoreUnavailable
	}
	out := make(map[domain.ParticipantID]domain.Participant, len(s.participants))
	for id, p := range s.participants {
		out[id] = p
	}
	return out, nil
}

func (s *MemoryStore) Upsert(id domain.ParticipantID, patch domain.PositionPatch) (domain.Participant, bool, error) {
	return s.update(id, func(p *domain.Participant) { p.Position = patch.Apply(p.Position) })
}

func (s *MemoryStore) SetName(id domain.ParticipantID, name string) (domain.Participant, bool, error) {
	return s.update(id, func(p *domain.Participant) { p.Name = name })
}

func (s *MemoryStore) SetRole(id domain.ParticipantID, role domain.Role) (domain.Participant, bool, error) {
	return s.update(id, func(p *domain.Participant) { p.Role = role })
}

func (s *MemoryStore) update(id domain.ParticipantID, fn func(*domain.Participant)) (domain.Participant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lost {
		return domain.Participant{}, false, ErrStoreUnavailable
	}
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, false, nil
	}
	fn(&p)
	s.participants[id] = p
	return p, true, nil
}

func (s *MemoryStore) Remove(id domain.ParticipantID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lost {
		return false, ErrStoreUnavailable
	}
	_, ok := s.participants[id]
	delete(s.participants, id)
	return ok, nil
}
