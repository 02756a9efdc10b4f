package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
)

// Mirror is the client-side copy of a room. The server serializes each room,
// so applying frames in arrival order yields last-write-wins per participant.
type Mirror struct {
	mu       sync.RWMutex
	self     domain.ParticipantID
	role     domain.Role
	users    map[domain.ParticipantID]domain.Participant
	speakers []protocol.Speaker
	pending  []domain.SpeakRequest
	settings domain.RoomSettings
	capacity int
}

func NewMirror() *Mirror {
	return &Mirror{users: make(map[domain.ParticipantID]domain.Participant)}
}

// Apply folds one server frame into the mirror. It returns the decoded frame
// for types it understands and nil for the rest.
func (m *Mirror) Apply(typ string, data []byte) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch typ {
	case protocol.TypeInit:
		var in protocol.Init
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		m.self = in.YourID
		m.role = in.Role
		m.users = make(map[domain.ParticipantID]domain.Participant, len(in.Users)+1)
		for id, p := range in.Users {
			m.users[id] = p
		}
		m.users[in.YourID] = in.Self
		m.settings = in.Settings
		m.capacity = in.Capacity
		m.speakers = m.speakers[:0]
		for _, id := range in.Speakers {
			p := m.users[id]
			m.speakers = append(m.speakers, protocol.Speaker{UserID: id, Name: p.Name, Role: p.Role})
		}
		return in, nil
	case protocol.TypeUserJoin, protocol.TypeUserUpdate:
		var in protocol.UserJoin
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		m.users[in.User.ID] = in.User
		if typ == protocol.TypeUserUpdate {
			return protocol.UserUpdate(in), nil
		}
		return in, nil
	case protocol.TypeUserLeave:
		var in protocol.UserLeave
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		delete(m.users, in.UserID)
		return in, nil
	case protocol.TypePosition:
		var in protocol.Position
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		if p, ok := m.users[in.UserID]; ok {
			p.Position = domain.Vec3{X: in.X, Y: in.Y, Z: in.Z}
			m.users[in.UserID] = p
		}
		return in, nil
	case protocol.TypeCurrentSpeakers:
		var in protocol.CurrentSpeakers
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		on := make(map[domain.ParticipantID]struct{}, len(in.Speakers))
		for _, s := range in.Speakers {
			on[s.UserID] = struct{}{}
			m.setRole(s.UserID, domain.RoleSpeaker)
		}
		for _, s := range m.speakers {
			if _, still := on[s.UserID]; !still {
				m.setRole(s.UserID, domain.RoleGuest)
			}
		}
		m.speakers = append(m.speakers[:0], in.Speakers...)
		m.capacity = in.Capacity
		return in, nil
	case protocol.TypeSpeakRequests:
		var in protocol.SpeakRequests
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		m.pending = append(m.pending[:0], in.Requests...)
		return in, nil
	case protocol.TypeBackgroundChanged:
		var in protocol.BackgroundChanged
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		m.settings.Background = in.Background
		return in, nil
	case protocol.TypeBrightnessChanged:
		var in protocol.BrightnessChanged
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		m.settings.Brightness = in.Brightness
		return in, nil
	case protocol.TypeRole:
		var in protocol.RoleChanged
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		m.setRole(m.self, in.Role)
		return in, nil
	case protocol.TypeReaction:
		var in protocol.Reaction
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		return in, nil
	case protocol.TypeChat:
		var in protocol.Chat
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		return in, nil
	case protocol.TypeSpeakRequested, protocol.TypeSpeakApproved, protocol.TypeSpeakDenied, protocol.TypeSpeakRevoked:
		var in protocol.Notice
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		return in, nil
	case protocol.TypeError:
		var in protocol.Error
		if err := decode(typ, data, &in); err != nil {
			return nil, err
		}
		return in, nil
	case protocol.TypePong:
		return protocol.Pong{Type: typ}, nil
	}
	return nil, nil
}

// setRole updates a known participant. Hosts keep their role on the stage list.
func (m *Mirror) setRole(id domain.ParticipantID, role domain.Role) {
	p, ok := m.users[id]
	if !ok {
		return
	}
	if p.Role == domain.RoleHost && role != domain.RoleHost {
		return
	}
	p.Role = role
	m.users[id] = p
	if id == m.self {
		m.role = role
	}
}

func decode(typ string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", typ, err)
	}
	return nil
}

func (m *Mirror) Self() domain.ParticipantID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.self
}

func (m *Mirror) Role() domain.Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.role
}

func (m *Mirror) Get(id domain.ParticipantID) (domain.Participant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.users[id]
	return p, ok
}

// Participants returns everyone in the room, including self, sorted by id.
func (m *Mirror) Participants() []domain.Participant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Participant, 0, len(m.users))
	for _, p := range m.users {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Mirror) Speakers() []protocol.Speaker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]protocol.Speaker, len(m.speakers))
	copy(out, m.speakers)
	return out
}

func (m *Mirror) Pending() []domain.SpeakRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SpeakRequest, len(m.pending))
	copy(out, m.pending)
	return out
}

func (m *Mirror) Settings() domain.RoomSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

func (m *Mirror) Capacity() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.capacity
}
