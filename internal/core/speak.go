package core

import (
	"errors"
	"slices"

	"github.com/dkeye/Venue/internal/domain"
)

const DefaultSpeakerCapacity = 5

var (
	ErrAlreadyPending   = errors.New("speak request already pending")
	ErrAlreadySpeaker   = errors.New("already a speaker")
	ErrNotPending       = errors.New("no pending speak request")
	ErrNotSpeaker       = errors.New("not a speaker")
	ErrCapacityExceeded = errors.New("speaker capacity exceeded")
)

// SpeakCoordinator holds pending speak requests and the active speaker set.
// It is owned by a Room and relies on the room lock for serialization.
type SpeakCoordinator struct {
	capacity int
	pending  []domain.SpeakRequest
	speakers []domain.ParticipantID
}

func NewSpeakCoordinator(capacity int) *SpeakCoordinator {
	if capacity <= 0 {
		capacity = DefaultSpeakerCapacity
	}
	return &SpeakCoordinator{capacity: capacity}
}

func (s *SpeakCoordinator) Capacity() int { return s.capacity }

func (s *SpeakCoordinator) IsPending(id domain.ParticipantID) bool {
	return s.pendingIndex(id) >= 0
}

func (s *SpeakCoordinator) IsSpeaker(id domain.ParticipantID) bool {
	return slices.Contains(s.speakers, id)
}

func (s *SpeakCoordinator) Request(req domain.SpeakRequest) error {
	if s.IsSpeaker(req.ParticipantID) {
		return ErrAlreadySpeaker
	}
	if s.IsPending(req.ParticipantID) {
		return ErrAlreadyPending
	}
	s.pending = append(s.pending, req)
	return nil
}

func (s *SpeakCoordinator) Cancel(id domain.ParticipantID) bool {
	i := s.pendingIndex(id)
	if i < 0 {
		return false
	}
	s.pending = slices.Delete(s.pending, i, i+1)
	return true
}

// Approve moves a pending request into the speaker set.
// A full set leaves both the request and the set untouched.
func (s *SpeakCoordinator) Approve(id domain.ParticipantID) error {
	i := s.pendingIndex(id)
	if i < 0 {
		if s.IsSpeaker(id) {
			return ErrAlreadySpeaker
		}
		return ErrNotPending
	}
	if len(s.speakers) >= s.capacity {
		return ErrCapacityExceeded
	}
	s.pending = slices.Delete(s.pending, i, i+1)
	s.speakers = append(s.speakers, id)
	return nil
}

func (s *SpeakCoordinator) Deny(id domain.ParticipantID) error {
	if !s.Cancel(id) {
		return ErrNotPending
	}
	return nil
}

func (s *SpeakCoordinator) Kick(id domain.ParticipantID) error {
	i := slices.Index(s.speakers, id)
	if i < 0 {
		return ErrNotSpeaker
	}
	s.speakers = slices.Delete(s.speakers, i, i+1)
	return nil
}

// Forget drops every trace of id, reporting what it held.
func (s *SpeakCoordinator) Forget(id domain.ParticipantID) (hadRequest, wasSpeaker bool) {
	hadRequest = s.Cancel(id)
	wasSpeaker = s.Kick(id) == nil
	return hadRequest, wasSpeaker
}

// Pending returns the pending requests, oldest first.
func (s *SpeakCoordinator) Pending() []domain.SpeakRequest {
	out := make([]domain.SpeakRequest, len(s.pending))
	copy(out, s.pending)
	return out
}

// Speakers returns the active speakers in approval order.
func (s *SpeakCoordinator) Speakers() []domain.ParticipantID {
	out := make([]domain.ParticipantID, len(s.speakers))
	copy(out, s.speakers)
	return out
}

func (s *SpeakCoordinator) pendingIndex(id domain.ParticipantID) int {
	return slices.IndexFunc(s.pending, func(r domain.SpeakRequest) bool { return r.ParticipantID == id })
}
