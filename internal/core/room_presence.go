package core

import (
	"github.com/dkeye/Venue/internal/domain"
	"github.com/rs/zerolog/log"
)

// presence wraps the room's StateStore and remembers the last record written
// for each participant, so open connections can be written back when the
// store returns empty after an outage. Only used under the room mutex.
type presence struct {
	StateStore
	last map[domain.ParticipantID]domain.Participant
}

func newPresence(store StateStore) *presence {
	return &presence{StateStore: store, last: make(map[domain.ParticipantID]domain.Participant)}
}

func (s *presence) Add(p domain.Participant) error {
	if err := s.StateStore.Add(p); err != nil {
		return err
	}
	s.last[p.ID] = p
	return nil
}

func (s *presence) Upsert(id domain.ParticipantID, patch domain.PositionPatch) (domain.Participant, bool, error) {
	return s.remember(s.StateStore.Upsert(id, patch))
}

func (s *presence) SetName(id domain.ParticipantID, name string) (domain.Participant, bool, error) {
	return s.remember(s.StateStore.SetName(id, name))
}

func (s *presence) SetRole(id domain.ParticipantID, role domain.Role) (domain.Participant, bool, error) {
	return s.remember(s.StateStore.SetRole(id, role))
}

// Remove forgets id even when the store is unavailable.
func (s *presence) Remove(id domain.ParticipantID) (bool, error) {
	delete(s.last, id)
	return s.StateStore.Remove(id)
}

func (s *presence) remember(p domain.Participant, ok bool, err error) (domain.Participant, bool, error) {
	if err == nil && ok {
		s.last[p.ID] = p
	}
	return p, ok, err
}

// reseed writes the remembered record of an open connection back into a store
// that no longer has it.
func (r *Room) reseed(id domain.ParticipantID) (domain.Participant, bool) {
	if !r.conns.Has(id) {
		return domain.Participant{}, false
	}
	p, ok := r.store.last[id]
	if !ok {
		return domain.Participant{}, false
	}
	if err := r.store.StateStore.Add(p); err != nil {
		return domain.Participant{}, false
	}
	log.Warn().Str("module", "core.room").Str("room", string(r.name)).Str("id", string(id)).Msg("participant reseeded after storage loss")
	return p, true
}

// participants lists every record, reseeding open connections the store lost.
func (r *Room) participants() (map[domain.ParticipantID]domain.Participant, error) {
	users, err := r.store.GetAll()
	if err != nil {
		return nil, err
	}
	for _, id := range r.conns.IDs() {
		if _, ok := users[id]; ok {
			continue
		}
		if p, ok := r.reseed(id); ok {
			users[id] = p
		}
	}
	return users, nil
}

func (r *Room) get(id domain.ParticipantID) (domain.Participant, bool, error) {
	p, ok, err := r.store.Get(id)
	if err != nil || ok {
		return p, ok, err
	}
	p, ok = r.reseed(id)
	return p, ok, nil
}

// update runs a store mutation, retrying once after reseeding a lost record.
func (r *Room) update(id domain.ParticipantID, fn func() (domain.Participant, bool, error)) (domain.Participant, bool, error) {
	p, ok, err := fn()
	if err != nil || ok {
		return p, ok, err
	}
	if _, seeded := r.reseed(id); !seeded {
		return p, false, nil
	}
	return fn()
}
