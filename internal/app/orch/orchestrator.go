package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Venue/internal/app"
	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/metrics"
	"github.com/rs/zerolog/log"
)

// joinAttempts bounds retries when an emptied room closes between lookup and join.
const joinAttempts = 3

// Orchestrator ties transport sessions to rooms.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Policy   app.Policy
	Metrics  *metrics.Metrics

	// OnRoomRemoved runs after the last participant left and the room was forgotten.
	OnRoomRemoved func(*core.Room)
}

func New(rooms *app.RoomManager, policy app.Policy, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    rooms,
		Policy:   policy,
		Metrics:  m,
	}
}

// Connect joins conn to roomName. cancel stops the transport of the session and
// is used when the session is kicked.
func (o *Orchestrator) Connect(roomName domain.RoomName, conn core.SignalConnection, opts core.JoinOptions, cancel context.CancelFunc) (domain.ParticipantID, error) {
	for attempt := 1; ; attempt++ {
		room := o.Rooms.GetOrCreate(roomName)
		o.Metrics.RoomsActive(o.Rooms.Count())

		id, err := room.Join(conn, opts)
		if errors.Is(err, core.ErrRoomClosed) && attempt < joinAttempts {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("module", "app.orch").Str("room", string(roomName)).Msg("join failed")
			o.release(room)
			return "", err
		}
		o.Registry.Bind(id, roomName, cancel)
		o.Metrics.ConnectionOpened()
		return id, nil
	}
}

func (o *Orchestrator) OnFrame(id domain.ParticipantID, data []byte) {
	room, ok := o.roomOf(id)
	if !ok {
		return
	}
	o.applyPolicy(room, room.HandleFrame(id, data))
}

// OnDisconnect tears the session down. Safe to call more than once.
func (o *Orchestrator) OnDisconnect(id domain.ParticipantID) {
	room, ok := o.roomOf(id)
	if !o.Registry.Unbind(id) {
		return
	}
	o.Metrics.ConnectionClosed()
	if !ok {
		return
	}
	o.applyPolicy(room, room.Leave(id))
	o.release(room)
}

// Kick closes the session of id and removes it from its room.
func (o *Orchestrator) Kick(id domain.ParticipantID) {
	room, ok := o.roomOf(id)
	var dropped []domain.ParticipantID
	if ok {
		dropped = room.Evict(id)
	}
	o.Registry.Cancel(id)
	o.OnDisconnect(id)
	if ok {
		o.applyPolicy(room, dropped)
	}
}

// release forgets room once its last participant is gone.
func (o *Orchestrator) release(room *core.Room) {
	if !o.Rooms.RemoveIfEmpty(room) {
		return
	}
	o.Metrics.RoomRemoved(room.Name())
	o.Metrics.RoomsActive(o.Rooms.Count())
	if o.OnRoomRemoved != nil {
		o.OnRoomRemoved(room)
	}
}

// EvictRoom disconnects everyone in name and forgets the room.
func (o *Orchestrator) EvictRoom(name domain.RoomName) bool {
	n := o.Registry.CancelRoom(name)
	_, ok := o.Rooms.StopRoom(name)
	if ok {
		o.Metrics.RoomRemoved(name)
		o.Metrics.RoomsActive(o.Rooms.Count())
		log.Info().Str("module", "app.orch").Str("room", string(name)).Int("sessions", n).Msg("room evicted")
	}
	return ok
}

func (o *Orchestrator) roomOf(id domain.ParticipantID) (*core.Room, bool) {
	name, ok := o.Registry.RoomOf(id)
	if !ok {
		return nil, false
	}
	return o.Rooms.Get(name)
}

func (o *Orchestrator) applyPolicy(room *core.Room, dropped []domain.ParticipantID) {
	if o.Policy == nil || len(dropped) == 0 {
		return
	}
	seen := make(map[domain.ParticipantID]struct{}, len(dropped))
	for _, slow := range dropped {
		if _, dup := seen[slow]; dup {
			continue
		}
		seen[slow] = struct{}{}
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "app.orch").Str("room", string(room.Name())).Str("id", string(slow)).Msg("kicking slow consumer")
			o.Metrics.Evicted()
			o.Kick(slow)
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}
