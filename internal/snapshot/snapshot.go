// Package snapshot persists room state on a best effort basis. Only the room
// settings are ever restored; participants are tied to live connections.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
)

var ErrUnknownBackend = errors.New("unknown snapshot backend")

type Record struct {
	Room         domain.RoomName        `json:"room"`
	Settings     domain.RoomSettings    `json:"settings"`
	Participants []domain.Participant   `json:"participants"`
	Speakers     []domain.ParticipantID `json:"speakers"`
	SavedAt      time.Time              `json:"saved_at"`
}

// FromState flattens a room state into a record, participants sorted by id.
func FromState(s core.RoomState) Record {
	users := make([]domain.Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		users = append(users, p)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	speakers := make([]domain.ParticipantID, len(s.Speakers))
	copy(speakers, s.Speakers)
	return Record{
		Room:         s.Name,
		Settings:     s.Settings,
		Participants: users,
		Speakers:     speakers,
		SavedAt:      s.TakenAt.UTC(),
	}
}

type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, room domain.RoomName) (Record, bool, error)
	Close() error
}

// NoopStore keeps nothing.
type NoopStore struct{}

func (NoopStore) Save(context.Context, Record) error { return nil }
func (NoopStore) Load(context.Context, domain.RoomName) (Record, bool, error) {
	return Record{}, false, nil
}
func (NoopStore) Close() error { return nil }

type Options struct {
	Backend        string
	Path           string
	ValkeyAddr     string
	ValkeyPassword string
}

// Open returns the store for the configured backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "none":
		return NoopStore{}, nil
	case "sqlite":
		return OpenSQLite(opts.Path)
	case "valkey":
		return OpenValkey(opts.ValkeyAddr, opts.ValkeyPassword)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
