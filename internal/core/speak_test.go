package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dkeye/Venue/internal/domain"
)

func req(id string) domain.SpeakRequest {
	return domain.SpeakRequest{ParticipantID: domain.ParticipantID(id), Name: id}
}

func TestSpeakCoordinator_Lifecycle(t *testing.T) {
	s := NewSpeakCoordinator(0)
	if s.Capacity() != DefaultSpeakerCapacity {
		t.Fatalf("expected default capacity %d, got %d", DefaultSpeakerCapacity, s.Capacity())
	}
	if err := s.Request(req("a")); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := s.Request(req("a")); !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("expected ErrAlreadyPending, got %v", err)
	}
	if err := s.Approve("a"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if s.IsPending("a") || !s.IsSpeaker("a") {
		t.Fatalf("a should be a speaker without a pending request")
	}
	if err := s.Request(req("a")); !errors.Is(err, ErrAlreadySpeaker) {
		t.Fatalf("expected ErrAlreadySpeaker, got %v", err)
	}
	if err := s.Kick("a"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if err := s.Kick("a"); !errors.Is(err, ErrNotSpeaker) {
		t.Fatalf("expected ErrNotSpeaker, got %v", err)
	}
}

func TestSpeakCoordinator_Deny(t *testing.T) {
	s := NewSpeakCoordinator(5)
	_ = s.Request(req("a"))
	if err := s.Deny("a"); err != nil {
		t.Fatalf("deny: %v", err)
	}
	if err := s.Deny("a"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if err := s.Approve("a"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending after deny, got %v", err)
	}
}

func TestSpeakCoordinator_CapacityExceeded(t *testing.T) {
	s := NewSpeakCoordinator(2)
	for _, id := range []string{"a", "b", "c"} {
		_ = s.Request(req(id))
	}
	_ = s.Approve("a")
	_ = s.Approve("b")
	if err := s.Approve("c"); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if len(s.Speakers()) != 2 {
		t.Fatalf("speaker set changed on rejected approve: %v", s.Speakers())
	}
	if !s.IsPending("c") {
		t.Fatalf("rejected approve must keep the request pending")
	}
}

func TestSpeakCoordinator_PendingOrderAndForget(t *testing.T) {
	s := NewSpeakCoordinator(5)
	for i := 0; i < 4; i++ {
		_ = s.Request(req(fmt.Sprintf("p%d", i)))
	}
	_ = s.Approve("p0")
	got := s.Pending()
	if len(got) != 3 || got[0].ParticipantID != "p1" || got[2].ParticipantID != "p3" {
		t.Fatalf("pending order not preserved: %v", got)
	}

	had, was := s.Forget("p0")
	if had || !was {
		t.Fatalf("p0: expected speaker only, got request=%v speaker=%v", had, was)
	}
	had, was = s.Forget("p2")
	if !had || was {
		t.Fatalf("p2: expected request only, got request=%v speaker=%v", had, was)
	}
	had, was = s.Forget("nobody")
	if had || was {
		t.Fatalf("unknown id should hold nothing")
	}
}

func TestSpeakCoordinator_EmptyListsAreNonNil(t *testing.T) {
	s := NewSpeakCoordinator(5)
	if s.Pending() == nil || s.Speakers() == nil {
		t.Fatalf("empty lists must encode as [] not null")
	}
}
