package client

import (
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
)

// Handlers are UI hooks. They run one at a time on the dispatcher goroutine,
// after the mirror has been updated. Nil hooks are skipped.
type Handlers struct {
	OnInit                  func(protocol.Init)
	OnUserJoin              func(domain.Participant)
	OnUserLeave             func(domain.ParticipantID)
	OnUserUpdate            func(domain.Participant)
	OnPosition              func(protocol.Position)
	OnReaction              func(protocol.Reaction)
	OnChat                  func(protocol.Chat)
	OnSpeakRequestsUpdate   func([]domain.SpeakRequest)
	OnCurrentSpeakersUpdate func([]protocol.Speaker)
	OnBackgroundChange      func(string)
	OnBrightnessChange      func(float64)
	OnNotice                func(protocol.Notice)
	OnRole                  func(domain.Role)
	OnError                 func(protocol.Error)
}

// callback binds the hook for a decoded frame, or returns nil.
func (h Handlers) callback(msg any) func() {
	switch m := msg.(type) {
	case protocol.Init:
		if h.OnInit != nil {
			return func() { h.OnInit(m) }
		}
	case protocol.UserJoin:
		if h.OnUserJoin != nil {
			return func() { h.OnUserJoin(m.User) }
		}
	case protocol.UserLeave:
		if h.OnUserLeave != nil {
			return func() { h.OnUserLeave(m.UserID) }
		}
	case protocol.UserUpdate:
		if h.OnUserUpdate != nil {
			return func() { h.OnUserUpdate(m.User) }
		}
	case protocol.Position:
		if h.OnPosition != nil {
			return func() { h.OnPosition(m) }
		}
	case protocol.Reaction:
		if h.OnReaction != nil {
			return func() { h.OnReaction(m) }
		}
	case protocol.Chat:
		if h.OnChat != nil {
			return func() { h.OnChat(m) }
		}
	case protocol.SpeakRequests:
		if h.OnSpeakRequestsUpdate != nil {
			return func() { h.OnSpeakRequestsUpdate(m.Requests) }
		}
	case protocol.CurrentSpeakers:
		if h.OnCurrentSpeakersUpdate != nil {
			return func() { h.OnCurrentSpeakersUpdate(m.Speakers) }
		}
	case protocol.BackgroundChanged:
		if h.OnBackgroundChange != nil {
			return func() { h.OnBackgroundChange(m.Background) }
		}
	case protocol.BrightnessChanged:
		if h.OnBrightnessChange != nil {
			return func() { h.OnBrightnessChange(m.Brightness) }
		}
	case protocol.Notice:
		if h.OnNotice != nil {
			return func() { h.OnNotice(m) }
		}
	case protocol.RoleChanged:
		if h.OnRole != nil {
			return func() { h.OnRole(m.Role) }
		}
	case protocol.Error:
		if h.OnError != nil {
			return func() { h.OnError(m) }
		}
	}
	return nil
}
