package core

import (
	"time"

	"github.com/dkeye/Venue/internal/domain"
)

// RateLimiter throttles chatty per-participant events (chat, reactions).
type RateLimiter interface {
	Allow(id domain.ParticipantID) bool
	Forget(id domain.ParticipantID)
}

// HostVerifier checks a host credential presented over an open connection.
type HostVerifier interface {
	VerifyHostToken(token string) error
}

// Observer receives room events for metrics. Calls happen under the room lock
// and must not block.
type Observer interface {
	FrameHandled(room domain.RoomName, msgType string)
	FrameRejected(room domain.RoomName, code string)
	Published(room domain.RoomName, res PublishResult)
	SpeakersChanged(room domain.RoomName, speakers, pending int)
}

type nopObserver struct{}

func (nopObserver) FrameHandled(domain.RoomName, string)      {}
func (nopObserver) FrameRejected(domain.RoomName, string)     {}
func (nopObserver) Published(domain.RoomName, PublishResult)  {}
func (nopObserver) SpeakersChanged(domain.RoomName, int, int) {}

// RoomState is a consistent copy of a room taken under its lock.
type RoomState struct {
	Name         domain.RoomName
	Settings     domain.RoomSettings
	Participants map[domain.ParticipantID]domain.Participant
	Speakers     []domain.ParticipantID
	Pending      []domain.SpeakRequest
	TakenAt      time.Time
}

type RoomInfo struct {
	Name             domain.RoomName `json:"name"`
	ParticipantCount int             `json:"participant_count"`
	SpeakerCount     int             `json:"speaker_count"`
	Capacity         int             `json:"capacity"`
}
