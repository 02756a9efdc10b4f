package core

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrRoomClosed = errors.New("room closed")

type RoomOptions struct {
	Capacity int
	Spawn    domain.SpawnRegion
	Settings domain.RoomSettings
	Store    StateStore
	Limiter  RateLimiter
	Verifier HostVerifier
	Observer Observer
	Now      func() time.Time
}

type JoinOptions struct {
	Name string
	Host bool
}

// Room is the event relay of one venue room. A single mutex serializes every
// state mutation together with the fan-out it produces, so all recipients see
// one room's events in the same order and init always carries a consistent snapshot.
type Room struct {
	name domain.RoomName

	mu       sync.Mutex
	conns    *Registry
	store    *presence
	speak    *SpeakCoordinator
	settings domain.RoomSettings
	closed   bool
	dropped  []domain.ParticipantID

	spawn    domain.SpawnRegion
	limiter  RateLimiter
	verifier HostVerifier
	observer Observer
	now      func() time.Time
}

func NewRoom(name domain.RoomName, opts RoomOptions) *Room {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Spawn == (domain.SpawnRegion{}) {
		opts.Spawn = domain.DefaultSpawnRegion()
	}
	if opts.Settings == (domain.RoomSettings{}) {
		opts.Settings = domain.DefaultSettings()
	}
	return &Room{
		name:     name,
		conns:    NewRegistry(),
		store:    newPresence(opts.Store),
		speak:    NewSpeakCoordinator(opts.Capacity),
		settings: opts.Settings,
		spawn:    opts.Spawn,
		limiter:  opts.Limiter,
		verifier: opts.Verifier,
		observer: opts.Observer,
		now:      opts.Now,
	}
}

func (r *Room) Name() domain.RoomName { return r.name }

// Join registers conn, seeds its participant at a random spawn position, sends
// it the current snapshot and announces it to everyone else.
func (r *Room) Join(conn SignalConnection, opts JoinOptions) (domain.ParticipantID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrRoomClosed
	}
	// The slow consumer policy is not applied on join.
	defer func() { r.dropped = nil }()

	users, err := r.participants()
	if err != nil {
		return "", err
	}
	id := r.conns.Register(conn)
	role := domain.RoleGuest
	if opts.Host {
		role = domain.RoleHost
	}
	p := domain.Participant{
		ID:       id,
		Name:     domain.NormalizeName(opts.Name, id),
		Position: r.spawn.Random(),
		Role:     role,
	}
	if err := r.store.Add(p); err != nil {
		r.conns.Unregister(id)
		return "", err
	}

	r.sendTo(id, protocol.Init{
		Type:     protocol.TypeInit,
		YourID:   id,
		Self:     p,
		Role:     role,
		Users:    users,
		Settings: r.settings,
		Speakers: r.speak.Speakers(),
		Capacity: r.speak.Capacity(),
	})
	r.broadcast(id, protocol.UserJoin{Type: protocol.TypeUserJoin, User: p})
	if role == domain.RoleHost {
		r.sendTo(id, r.pendingFrame())
	}
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("id", string(id)).
		Str("role", string(role)).Int("participants", r.conns.Len()).Msg("participant joined")
	return id, nil
}

// Leave tears down id: state, pending request and speaker slot go first, then
// userLeave is broadcast once. Calling it again is a no-op.
func (r *Room) Leave(id domain.ParticipantID) []domain.ParticipantID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = nil
	if _, ok := r.conns.Unregister(id); !ok {
		return nil
	}
	if _, err := r.store.Remove(id); err != nil {
		log.Warn().Err(err).Str("module", "core.room").Str("room", string(r.name)).Str("id", string(id)).Msg("remove participant")
	}
	if r.limiter != nil {
		r.limiter.Forget(id)
	}
	hadRequest, wasSpeaker := r.speak.Forget(id)
	if wasSpeaker {
		r.broadcast("", r.speakersFrame())
	}
	if hadRequest {
		r.sendToHosts(r.pendingFrame())
	}
	if hadRequest || wasSpeaker {
		r.speakChanged()
	}
	r.broadcast("", protocol.UserLeave{Type: protocol.TypeUserLeave, UserID: id})
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("id", string(id)).
		Int("participants", r.conns.Len()).Msg("participant left")
	return r.takeDropped()
}

// Evict closes the connection of id after tearing down its state. Like Leave,
// it returns the peers that could not be told about the departure.
func (r *Room) Evict(id domain.ParticipantID) []domain.ParticipantID {
	r.mu.Lock()
	conn, ok := r.conns.conn(id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	dropped := r.Leave(id)
	conn.Close()
	return dropped
}

// HandleFrame processes one inbound frame from id. It returns the recipients
// that could not be reached while fanning out the result.
func (r *Room) HandleFrame(id domain.ParticipantID, data []byte) []domain.ParticipantID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = nil
	// A closed identity is never serviced again.
	if !r.conns.Has(id) {
		return nil
	}
	r.dispatch(id, data)
	return r.takeDropped()
}

// Close disconnects everyone and rejects further joins.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.conns.CloseAll()
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Msg("room closed")
}

// CloseIfEmpty closes the room when nobody is connected and reports whether it did.
func (r *Room) CloseIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.conns.Len() > 0 {
		return false
	}
	r.closed = true
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Msg("empty room closed")
	return true
}

func (r *Room) Settings() domain.RoomSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// RestoreSettings replaces the room-wide settings without broadcasting.
func (r *Room) RestoreSettings(s domain.RoomSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = s
}

func (r *Room) ParticipantCount() int { return r.conns.Len() }

func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		Name:             r.name,
		ParticipantCount: r.conns.Len(),
		SpeakerCount:     len(r.speak.Speakers()),
		Capacity:         r.speak.Capacity(),
	}
}

// State returns a consistent copy of the room.
func (r *Room) State() (RoomState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, err := r.participants()
	if err != nil {
		return RoomState{}, err
	}
	return RoomState{
		Name:         r.name,
		Settings:     r.settings,
		Participants: users,
		Speakers:     r.speak.Speakers(),
		Pending:      r.speak.Pending(),
		TakenAt:      r.now(),
	}, nil
}

func (r *Room) encode(v any) (Frame, bool) {
	b, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Msg("encode frame")
		return nil, false
	}
	return b, true
}

func (r *Room) sendTo(id domain.ParticipantID, v any) {
	f, ok := r.encode(v)
	if !ok {
		return
	}
	if err := r.conns.SendTo(id, f); err != nil {
		r.dropped = append(r.dropped, id)
		r.observer.Published(r.name, PublishResult{Dropped: []domain.ParticipantID{id}})
		return
	}
	r.observer.Published(r.name, PublishResult{SendTo: 1})
}

func (r *Room) broadcast(except domain.ParticipantID, v any) {
	f, ok := r.encode(v)
	if !ok {
		return
	}
	res := r.conns.Fanout(except, f)
	r.dropped = append(r.dropped, res.Dropped...)
	r.observer.Published(r.name, res)
}

func (r *Room) sendToHosts(v any) {
	users, err := r.participants()
	if err != nil {
		return
	}
	f, ok := r.encode(v)
	if !ok {
		return
	}
	res := PublishResult{}
	for id, p := range users {
		if p.Role != domain.RoleHost {
			continue
		}
		if err := r.conns.SendTo(id, f); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SendTo++
	}
	r.dropped = append(r.dropped, res.Dropped...)
	r.observer.Published(r.name, res)
}

func (r *Room) sendError(id domain.ParticipantID, code, ref, msg string) {
	r.observer.FrameRejected(r.name, code)
	r.sendTo(id, protocol.NewError(code, ref, msg))
}

func (r *Room) takeDropped() []domain.ParticipantID {
	out := r.dropped
	r.dropped = nil
	return out
}

func (r *Room) pendingFrame() protocol.SpeakRequests {
	return protocol.SpeakRequests{Type: protocol.TypeSpeakRequests, Requests: r.speak.Pending()}
}

func (r *Room) speakersFrame() protocol.CurrentSpeakers {
	ids := r.speak.Speakers()
	out := make([]protocol.Speaker, 0, len(ids))
	for _, id := range ids {
		p, ok, err := r.get(id)
		if err != nil || !ok {
			continue
		}
		out = append(out, protocol.Speaker{UserID: id, Name: p.Name, Role: p.Role})
	}
	return protocol.CurrentSpeakers{Type: protocol.TypeCurrentSpeakers, Speakers: out, Capacity: r.speak.Capacity()}
}
