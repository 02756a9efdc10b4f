package domain

import (
	"errors"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	MaxRoomNameLen  = 64
	DefaultRoomName = RoomName("main")
)

var (
	ErrRoomNameTooLong = errors.New("room name too long")
	ErrRoomNameInvalid = errors.New("room name invalid")
)

type RoomName string

// ParseRoomName validates a room key taken from a request. Empty means the default room.
func ParseRoomName(raw string) (RoomName, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultRoomName, nil
	}
	if len(raw) > MaxRoomNameLen {
		return "", ErrRoomNameTooLong
	}
	if strings.ContainsAny(raw, "/\\ \t\r\n") {
		return "", ErrRoomNameInvalid
	}
	return RoomName(raw), nil
}

// RoomSettings are room-wide presentation settings set by hosts.
type RoomSettings struct {
	Background string  `json:"background"`
	Brightness float64 `json:"brightness"`
}

func DefaultSettings() RoomSettings {
	return RoomSettings{Background: "default", Brightness: 1}
}

// SpawnRegion bounds the randomized initial position of a new participant.
// Spawns cluster in front of the stage: z is offset forward of the centre.
type SpawnRegion struct {
	MinX, MaxX float64
	Y          float64
	MinZ, MaxZ float64
}

func DefaultSpawnRegion() SpawnRegion {
	return SpawnRegion{MinX: -8, MaxX: 8, Y: 0, MinZ: 4, MaxZ: 10}
}

func (s SpawnRegion) Random() Vec3 {
	return Vec3{
		X: s.MinX + rand.Float64()*(s.MaxX-s.MinX),
		Y: s.Y,
		Z: s.MinZ + rand.Float64()*(s.MaxZ-s.MinZ),
	}
}

func (s SpawnRegion) Contains(v Vec3) bool {
	return v.X >= s.MinX && v.X <= s.MaxX && v.Y == s.Y && v.Z >= s.MinZ && v.Z <= s.MaxZ
}

// SpeakRequest is a pending ask to be promoted to the speaker role.
type SpeakRequest struct {
	ParticipantID ParticipantID `json:"userId"`
	Name          string        `json:"name"`
	RequestedAt   time.Time     `json:"requestedAt"`
}
