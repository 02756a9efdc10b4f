// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxNameRunes    = 32
	MaxMessageRunes = 500
)

type ParticipantID string

func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

type Role string

const (
	RoleGuest   Role = "guest"
	RoleSpeaker Role = "speaker"
	RoleHost    Role = "host"
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PositionPatch carries the fields of a position update; nil fields are left untouched.
type PositionPatch struct {
	X *float64
	Y *float64
	Z *float64
}

func (p PositionPatch) Apply(v Vec3) Vec3 {
	if p.X != nil {
		v.X = *p.X
	}
	if p.Y != nil {
		v.Y = *p.Y
	}
	if p.Z != nil {
		v.Z = *p.Z
	}
	return v
}

type Participant struct {
	ID       ParticipantID `json:"id"`
	Name     string        `json:"name"`
	Position Vec3          `json:"position"`
	Role     Role          `json:"role"`
}

// NormalizeName trims the display name and falls back to a generated one.
// Names longer than MaxNameRunes are truncated.
func NormalizeName(name string, id ParticipantID) string {
	name = strings.TrimSpace(name)
	if name == "" {
		short := string(id)
		if len(short) > 4 {
			short = short[:4]
		}
		return "Guest-" + short
	}
	if utf8.RuneCountInString(name) > MaxNameRunes {
		runes := []rune(name)
		name = string(runes[:MaxNameRunes])
	}
	return name
}
