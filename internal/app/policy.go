package app

import (
	"fmt"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a recipient whose send buffer was full.
type Policy interface {
	OnBackPressure(room *core.Room, id domain.ParticipantID) BackpressureAction
}

// SimplePolicy applies the same action to every slow recipient.
type SimplePolicy struct {
	Action BackpressureAction
}

func (p SimplePolicy) OnBackPressure(*core.Room, domain.ParticipantID) BackpressureAction {
	return p.Action
}

// ParsePolicy maps the slow_consumer_policy config value.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "drop":
		return SimplePolicy{Action: DropFrame}, nil
	case "kick":
		return SimplePolicy{Action: KickMember}, nil
	default:
		return nil, fmt.Errorf("unknown slow consumer policy %q", s)
	}
}
