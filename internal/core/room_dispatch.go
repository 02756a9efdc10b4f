package core

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	maxReactionLen   = 32
	maxColorLen      = 32
	maxBackgroundLen = 256
	MaxBrightness    = 4.0
)

func (r *Room) dispatch(id domain.ParticipantID, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "core.room").Str("room", string(r.name)).Str("id", string(id)).Msg("bad json")
		r.sendError(id, protocol.CodeBadPayload, "", "frame is not a JSON object")
		return
	}
	t := env.Canonical()

	switch t {
	case protocol.TypePosition:
		r.handlePosition(id, data)
	case protocol.TypeReaction:
		r.handleReaction(id, data)
	case protocol.TypeChat:
		r.handleChat(id, data)
	case protocol.TypeBackgroundChange:
		r.handleBackground(id, data)
	case protocol.TypeBrightnessChange:
		r.handleBrightness(id, data)
	case protocol.TypeSetName:
		r.handleSetName(id, data)
	case protocol.TypeRequestSpeak:
		r.handleRequestSpeak(id)
	case protocol.TypeCancelSpeak:
		r.handleCancelSpeak(id)
	case protocol.TypeApproveSpeak:
		r.handleApprove(id, data)
	case protocol.TypeDenySpeak:
		r.handleDeny(id, data)
	case protocol.TypeKickSpeaker:
		r.handleKick(id, data)
	case protocol.TypeLeaveStage:
		r.handleLeaveStage(id)
	case protocol.TypeClaimHost:
		r.handleClaimHost(id, data)
	case protocol.TypePing:
		r.sendTo(id, protocol.Pong{Type: protocol.TypePong})
	default:
		log.Debug().Str("module", "core.room").Str("type", env.Type).Msg("unknown message type")
		return
	}
	r.observer.FrameHandled(r.name, t)
}

// decode unmarshals a typed payload, replying with bad_payload on failure.
func (r *Room) decode(id domain.ParticipantID, ref string, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "core.room").Str("type", ref).Str("id", string(id)).Msg("bad payload")
		r.sendError(id, protocol.CodeBadPayload, ref, err.Error())
		return false
	}
	return true
}

// self loads the sender's record. Storage loss is reported to the sender.
func (r *Room) self(id domain.ParticipantID, ref string) (domain.Participant, bool) {
	p, ok, err := r.get(id)
	if err != nil {
		r.sendError(id, protocol.CodeRoomUnavailable, ref, err.Error())
		return domain.Participant{}, false
	}
	return p, ok
}

func (r *Room) requireHost(id domain.ParticipantID, ref string) bool {
	p, ok := r.self(id, ref)
	if !ok {
		return false
	}
	if p.Role != domain.RoleHost {
		r.sendError(id, protocol.CodePermissionDenied, ref, "host role required")
		return false
	}
	return true
}

func (r *Room) allow(id domain.ParticipantID, ref string) bool {
	if r.limiter == nil || r.limiter.Allow(id) {
		return true
	}
	r.sendError(id, protocol.CodeRateLimited, ref, "slow down")
	return false
}

func finite(v *float64) bool {
	return v == nil || !(math.IsNaN(*v) || math.IsInf(*v, 0))
}

func (r *Room) handlePosition(id domain.ParticipantID, data []byte) {
	var in protocol.PositionIn
	if !r.decode(id, protocol.TypePosition, data, &in) {
		return
	}
	if !finite(in.X) || !finite(in.Y) || !finite(in.Z) {
		r.sendError(id, protocol.CodeInvalidValue, protocol.TypePosition, "coordinates must be finite")
		return
	}
	p, ok, err := r.update(id, func() (domain.Participant, bool, error) {
		return r.store.Upsert(id, domain.PositionPatch{X: in.X, Y: in.Y, Z: in.Z})
	})
	if err != nil {
		r.sendError(id, protocol.CodeRoomUnavailable, protocol.TypePosition, err.Error())
		return
	}
	if !ok {
		return
	}
	r.broadcast(id, protocol.Position{
		Type:   protocol.TypePosition,
		UserID: id,
		X:      p.Position.X,
		Y:      p.Position.Y,
		Z:      p.Position.Z,
	})
}

func (r *Room) handleReaction(id domain.ParticipantID, data []byte) {
	var in protocol.ReactionIn
	if !r.decode(id, protocol.TypeReaction, data, &in) {
		return
	}
	in.Reaction = strings.TrimSpace(in.Reaction)
	if in.Reaction == "" || len(in.Reaction) > maxReactionLen || len(in.Color) > maxColorLen {
		r.sendError(id, protocol.CodeInvalidValue, protocol.TypeReaction, "invalid reaction")
		return
	}
	if _, ok := r.self(id, protocol.TypeReaction); !ok {
		return
	}
	if !r.allow(id, protocol.TypeReaction) {
		return
	}
	r.broadcast(id, protocol.Reaction{
		Type:     protocol.TypeReaction,
		UserID:   id,
		Reaction: in.Reaction,
		Color:    in.Color,
	})
}

func (r *Room) handleChat(id domain.ParticipantID, data []byte) {
	var in protocol.ChatIn
	if !r.decode(id, protocol.TypeChat, data, &in) {
		return
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		r.sendError(id, protocol.CodeInvalidValue, protocol.TypeChat, "empty message")
		return
	}
	if utf8.RuneCountInString(msg) > domain.MaxMessageRunes {
		msg = string([]rune(msg)[:domain.MaxMessageRunes])
	}
	p, ok := r.self(id, protocol.TypeChat)
	if !ok {
		return
	}
	if !r.allow(id, protocol.TypeChat) {
		return
	}
	// Chat echoes to the sender too so its own log matches everyone else's.
	r.broadcast("", protocol.Chat{
		Type:    protocol.TypeChat,
		UserID:  id,
		Name:    p.Name,
		Message: msg,
	})
}

func (r *Room) handleBackground(id domain.ParticipantID, data []byte) {
	var in protocol.BackgroundIn
	if !r.decode(id, protocol.TypeBackgroundChange, data, &in) {
		return
	}
	if !r.requireHost(id, protocol.TypeBackgroundChange) {
		return
	}
	v := in.Background
	if v == "" {
		v = in.Value
	}
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxBackgroundLen {
		r.sendError(id, protocol.CodeInvalidValue, protocol.TypeBackgroundChange, "invalid background")
		return
	}
	r.settings.Background = v
	r.broadcast(id, protocol.BackgroundChanged{Type: protocol.TypeBackgroundChanged, Background: v})
}

func (r *Room) handleBrightness(id domain.ParticipantID, data []byte) {
	var in protocol.BrightnessIn
	if !r.decode(id, protocol.TypeBrightnessChange, data, &in) {
		return
	}
	if !r.requireHost(id, protocol.TypeBrightnessChange) {
		return
	}
	v := in.Brightness
	if v == nil {
		v = in.Value
	}
	if v == nil || !finite(v) || *v < 0 || *v > MaxBrightness {
		r.sendError(id, protocol.CodeInvalidValue, protocol.TypeBrightnessChange, "invalid brightness")
		return
	}
	r.settings.Brightness = *v
	r.broadcast(id, protocol.BrightnessChanged{Type: protocol.TypeBrightnessChanged, Brightness: *v})
}

func (r *Room) handleSetName(id domain.ParticipantID, data []byte) {
	var in protocol.SetNameIn
	if !r.decode(id, protocol.TypeSetName, data, &in) {
		return
	}
	name := domain.NormalizeName(in.Name, id)
	p, ok, err := r.update(id, func() (domain.Participant, bool, error) {
		return r.store.SetName(id, name)
	})
	if err != nil {
		r.sendError(id, protocol.CodeRoomUnavailable, protocol.TypeSetName, err.Error())
		return
	}
	if !ok {
		return
	}
	upd := protocol.UserUpdate{Type: protocol.TypeUserUpdate, User: p}
	r.sendTo(id, upd)
	r.broadcast(id, upd)
}

func (r *Room) handleClaimHost(id domain.ParticipantID, data []byte) {
	var in protocol.ClaimHostIn
	if !r.decode(id, protocol.TypeClaimHost, data, &in) {
		return
	}
	if r.verifier == nil {
		r.sendError(id, protocol.CodeInvalidToken, protocol.TypeClaimHost, "host login disabled")
		return
	}
	if err := r.verifier.VerifyHostToken(in.Token); err != nil {
		log.Warn().Err(err).Str("module", "core.room").Str("id", string(id)).Msg("host claim rejected")
		r.sendError(id, protocol.CodeInvalidToken, protocol.TypeClaimHost, "invalid host token")
		return
	}
	cur, ok := r.self(id, protocol.TypeClaimHost)
	if !ok {
		return
	}
	if cur.Role == domain.RoleHost {
		r.sendTo(id, protocol.RoleChanged{Type: protocol.TypeRole, Role: domain.RoleHost})
		return
	}

	// Hosts moderate the stage and hold no speak slot or request of their own.
	hadRequest, wasSpeaker := r.speak.Forget(id)
	p, ok, err := r.store.SetRole(id, domain.RoleHost)
	if err != nil {
		r.sendError(id, protocol.CodeRoomUnavailable, protocol.TypeClaimHost, err.Error())
		return
	}
	if !ok {
		return
	}
	if wasSpeaker {
		r.broadcast("", r.speakersFrame())
	}
	if hadRequest {
		r.sendToHosts(r.pendingFrame())
	} else {
		r.sendTo(id, r.pendingFrame())
	}
	if hadRequest || wasSpeaker {
		r.speakChanged()
	}
	r.broadcast(id, protocol.UserUpdate{Type: protocol.TypeUserUpdate, User: p})
	r.sendTo(id, protocol.RoleChanged{Type: protocol.TypeRole, Role: domain.RoleHost})
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("id", string(id)).Msg("host role granted")
}

func speakErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyPending):
		return protocol.CodeAlreadyPending
	case errors.Is(err, ErrAlreadySpeaker):
		return protocol.CodeAlreadySpeaker
	case errors.Is(err, ErrNotPending):
		return protocol.CodeNotPending
	case errors.Is(err, ErrNotSpeaker):
		return protocol.CodeNotSpeaker
	case errors.Is(err, ErrCapacityExceeded):
		return protocol.CodeCapacityExceeded
	case errors.Is(err, ErrStoreUnavailable):
		return protocol.CodeRoomUnavailable
	default:
		return protocol.CodeInvalidValue
	}
}
