package app

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// RoomFactory builds a new room the first time its name is used.
type RoomFactory func(name domain.RoomName) *core.Room

// RoomConfig carries the per-room settings shared by every room the server creates.
type RoomConfig struct {
	Capacity     int
	ChatLimit    int
	ChatInterval time.Duration
	Spawn        domain.SpawnRegion
	Verifier     core.HostVerifier
	Observer     core.Observer
	OnCreate     func(*core.Room)
}

// NewRoomFactory returns a factory giving each room its own store and rate limiter.
func NewRoomFactory(cfg RoomConfig) RoomFactory {
	return func(name domain.RoomName) *core.Room {
		opts := core.RoomOptions{
			Capacity: cfg.Capacity,
			Spawn:    cfg.Spawn,
			Observer: cfg.Observer,
			Verifier: cfg.Verifier,
			Store:    core.NewMemoryStore(),
		}
		if cfg.ChatLimit > 0 {
			opts.Limiter = NewRoomRateLimiter(cfg.ChatLimit, cfg.ChatInterval)
		}
		room := core.NewRoom(name, opts)
		if cfg.OnCreate != nil {
			cfg.OnCreate(room)
		}
		return room
	}
}

// RoomManager owns the rooms of the venue. Rooms never share state; the
// manager lock only guards the directory itself and is never held while a
// room is being built.
type RoomManager struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomName]*core.Room
	factory  RoomFactory
	creating singleflight.Group
}

func NewRoomManager(factory RoomFactory) *RoomManager {
	if factory == nil {
		factory = NewRoomFactory(RoomConfig{})
	}
	return &RoomManager{rooms: make(map[domain.RoomName]*core.Room), factory: factory}
}

// GetOrCreate returns the live room called name, building it first if needed.
// Concurrent callers for the same name share one factory call; callers for
// other rooms are not held up by it.
func (m *RoomManager) GetOrCreate(name domain.RoomName) *core.Room {
	if room, ok := m.Get(name); ok {
		return room
	}
	v, _, _ := m.creating.Do(string(name), func() (any, error) {
		if room, ok := m.Get(name); ok {
			return room, nil
		}
		room := m.factory(name)
		m.mu.Lock()
		m.rooms[name] = room
		m.mu.Unlock()
		log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room created")
		return room, nil
	})
	return v.(*core.Room)
}

func (m *RoomManager) Get(name domain.RoomName) (*core.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[name]
	return room, ok
}

// Rooms returns the live rooms sorted by name.
func (m *RoomManager) Rooms() []*core.Room {
	m.mu.RLock()
	out := make([]*core.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (m *RoomManager) List() []core.RoomInfo {
	rooms := m.Rooms()
	out := make([]core.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	return out
}

func (m *RoomManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// RemoveIfEmpty closes and forgets room when nobody is in it and it is still
// the live room for its name.
func (m *RoomManager) RemoveIfEmpty(room *core.Room) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rooms[room.Name()] != room || !room.CloseIfEmpty() {
		return false
	}
	delete(m.rooms, room.Name())
	return true
}

// StopRoom closes the room and forgets it. Returns the stopped room, if any.
func (m *RoomManager) StopRoom(name domain.RoomName) (*core.Room, bool) {
	m.mu.Lock()
	room, ok := m.rooms[name]
	delete(m.rooms, name)
	m.mu.Unlock()
	if ok {
		room.Close()
	}
	return room, ok
}
