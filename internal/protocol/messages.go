// Package protocol defines the JSON text frames exchanged between venue clients and the
// room server. Every frame is a single JSON object discriminated by its "type" field.
package protocol

import (
	"encoding/json"

	"github.com/dkeye/Venue/internal/domain"
)

// Client -> server types.
const (
	TypePosition         = "position"
	TypeReaction         = "reaction"
	TypeChat             = "chat"
	TypeBackgroundChange = "background-change"
	TypeBrightnessChange = "brightness-change"
	TypeSetName          = "set-name"
	TypeRequestSpeak     = "request-speak"
	TypeCancelSpeak      = "cancel-speak"
	TypeApproveSpeak     = "approve-speak"
	TypeDenySpeak        = "deny-speak"
	TypeKickSpeaker      = "kick-speaker"
	TypeLeaveStage       = "leave-stage"
	TypeClaimHost        = "claim-host"
	TypePing             = "ping"
)

// Server -> client types.
const (
	TypeInit              = "init"
	TypeUserJoin          = "userJoin"
	TypeUserLeave         = "userLeave"
	TypeUserUpdate        = "userUpdate"
	TypeBackgroundChanged = "backgroundChange"
	TypeBrightnessChanged = "brightnessChange"
	TypeSpeakRequests     = "speakRequests"
	TypeCurrentSpeakers   = "currentSpeakers"
	TypeSpeakRequested    = "speakRequested"
	TypeSpeakApproved     = "speakApproved"
	TypeSpeakDenied       = "speakDenied"
	TypeSpeakRevoked      = "speakRevoked"
	TypeRole              = "role"
	TypePong              = "pong"
	TypeError             = "error"
)

// Error codes carried by Error frames.
const (
	CodeBadPayload       = "bad_payload"
	CodePermissionDenied = "permission_denied"
	CodeCapacityExceeded = "capacity_exceeded"
	CodeAlreadyPending   = "already_pending"
	CodeAlreadySpeaker   = "already_speaker"
	CodeNotPending       = "not_pending"
	CodeNotSpeaker       = "not_speaker"
	CodeRateLimited      = "rate_limited"
	CodeRoomUnavailable  = "room_unavailable"
	CodeInvalidToken     = "invalid_token"
	CodeInvalidValue     = "invalid_value"
)

// Aliases maps the camelCase spellings some clients send onto the canonical inbound type.
var Aliases = map[string]string{
	"backgroundChange": TypeBackgroundChange,
	"brightnessChange": TypeBrightnessChange,
	"requestSpeak":     TypeRequestSpeak,
	"approveSpeak":     TypeApproveSpeak,
	"denySpeak":        TypeDenySpeak,
	"kickSpeaker":      TypeKickSpeaker,
}

type Envelope struct {
	Type string `json:"type"`
}

// Canonical returns the inbound type with aliases resolved.
func (e Envelope) Canonical() string {
	if t, ok := Aliases[e.Type]; ok {
		return t
	}
	return e.Type
}

// Inbound payloads.

type PositionIn struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

type ReactionIn struct {
	Reaction string `json:"reaction"`
	Color    string `json:"color,omitempty"`
}

type ChatIn struct {
	Message string `json:"message"`
}

type BackgroundIn struct {
	Background string `json:"background"`
	Value      string `json:"value"`
}

type BrightnessIn struct {
	Brightness *float64 `json:"brightness"`
	Value      *float64 `json:"value"`
}

type SetNameIn struct {
	Name string `json:"name"`
}

// TargetIn addresses a host-only speak operation at another participant.
type TargetIn struct {
	UserID domain.ParticipantID `json:"userId"`
}

type ClaimHostIn struct {
	Token string `json:"token"`
}

// Outbound messages.

type Init struct {
	Type     string                                      `json:"type"`
	YourID   domain.ParticipantID                        `json:"yourId"`
	Self     domain.Participant                          `json:"self"`
	Role     domain.Role                                 `json:"role"`
	Users    map[domain.ParticipantID]domain.Participant `json:"users"`
	Settings domain.RoomSettings                         `json:"settings"`
	Speakers []domain.ParticipantID                      `json:"speakers"`
	Capacity int                                         `json:"capacity"`
}

type UserJoin struct {
	Type string             `json:"type"`
	User domain.Participant `json:"user"`
}

type UserLeave struct {
	Type   string               `json:"type"`
	UserID domain.ParticipantID `json:"userId"`
}

type UserUpdate struct {
	Type string             `json:"type"`
	User domain.Participant `json:"user"`
}

type Position struct {
	Type   string               `json:"type"`
	UserID domain.ParticipantID `json:"userId"`
	X      float64              `json:"x"`
	Y      float64              `json:"y"`
	Z      float64              `json:"z"`
}

type Reaction struct {
	Type     string               `json:"type"`
	UserID   domain.ParticipantID `json:"userId"`
	Reaction string               `json:"reaction"`
	Color    string               `json:"color,omitempty"`
}

type Chat struct {
	Type    string               `json:"type"`
	UserID  domain.ParticipantID `json:"userId"`
	Name    string               `json:"name"`
	Message string               `json:"message"`
}

type BackgroundChanged struct {
	Type       string `json:"type"`
	Background string `json:"background"`
}

type BrightnessChanged struct {
	Type       string  `json:"type"`
	Brightness float64 `json:"brightness"`
}

type SpeakRequests struct {
	Type     string                `json:"type"`
	Requests []domain.SpeakRequest `json:"requests"`
}

// Speaker is a member of the active speaker set as shown to clients.
type Speaker struct {
	UserID domain.ParticipantID `json:"userId"`
	Name   string               `json:"name"`
	Role   domain.Role          `json:"role"`
}

type CurrentSpeakers struct {
	Type     string    `json:"type"`
	Speakers []Speaker `json:"speakers"`
	Capacity int       `json:"capacity"`
}

// Notice is a private acknowledgement addressed to one participant.
type Notice struct {
	Type   string               `json:"type"`
	UserID domain.ParticipantID `json:"userId"`
}

type RoleChanged struct {
	Type string      `json:"type"`
	Role domain.Role `json:"role"`
}

type Pong struct {
	Type string `json:"type"`
}

type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Ref     string `json:"ref,omitempty"`
}

func NewError(code, ref, message string) Error {
	return Error{Type: TypeError, Code: code, Ref: ref, Message: message}
}

// Encode marshals one outbound frame. encoding/json never emits raw newlines,
// so the result is always a single newline-free text frame.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
