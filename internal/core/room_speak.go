package core

import (
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (r *Room) speakChanged() {
	r.observer.SpeakersChanged(r.name, len(r.speak.Speakers()), len(r.speak.Pending()))
}

func (r *Room) handleRequestSpeak(id domain.ParticipantID) {
	p, ok := r.self(id, protocol.TypeRequestSpeak)
	if !ok {
		return
	}
	if p.Role == domain.RoleHost {
		r.sendError(id, protocol.CodePermissionDenied, protocol.TypeRequestSpeak, "hosts cannot request the stage")
		return
	}
	err := r.speak.Request(domain.SpeakRequest{ParticipantID: id, Name: p.Name, RequestedAt: r.now()})
	if err != nil {
		r.sendError(id, speakErrorCode(err), protocol.TypeRequestSpeak, err.Error())
		return
	}
	r.sendTo(id, protocol.Notice{Type: protocol.TypeSpeakRequested, UserID: id})
	r.sendToHosts(r.pendingFrame())
	r.speakChanged()
}

func (r *Room) handleCancelSpeak(id domain.ParticipantID) {
	if !r.speak.Cancel(id) {
		r.sendError(id, protocol.CodeNotPending, protocol.TypeCancelSpeak, ErrNotPending.Error())
		return
	}
	r.sendToHosts(r.pendingFrame())
	r.speakChanged()
}

// target decodes the userId of a host-only operation after checking the caller is a host.
// Nothing is mutated when either check fails.
func (r *Room) target(id domain.ParticipantID, ref string, data []byte) (domain.ParticipantID, bool) {
	var in protocol.TargetIn
	if !r.decode(id, ref, data, &in) {
		return "", false
	}
	if !r.requireHost(id, ref) {
		return "", false
	}
	if in.UserID == "" {
		r.sendError(id, protocol.CodeBadPayload, ref, "userId required")
		return "", false
	}
	return in.UserID, true
}

func (r *Room) handleApprove(id domain.ParticipantID, data []byte) {
	target, ok := r.target(id, protocol.TypeApproveSpeak, data)
	if !ok {
		return
	}
	if err := r.speak.Approve(target); err != nil {
		r.sendError(id, speakErrorCode(err), protocol.TypeApproveSpeak, err.Error())
		return
	}
	_, ok, err := r.update(target, func() (domain.Participant, bool, error) {
		return r.store.SetRole(target, domain.RoleSpeaker)
	})
	if err != nil || !ok {
		// The request outlived its participant; undo the slot.
		_ = r.speak.Kick(target)
		code := protocol.CodeNotPending
		if err != nil {
			code = protocol.CodeRoomUnavailable
		}
		r.sendError(id, code, protocol.TypeApproveSpeak, "participant unavailable")
		return
	}
	r.broadcast("", r.speakersFrame())
	r.sendTo(target, protocol.Notice{Type: protocol.TypeSpeakApproved, UserID: target})
	r.sendToHosts(r.pendingFrame())
	r.speakChanged()
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("host", string(id)).
		Str("speaker", string(target)).Msg("speak approved")
}

func (r *Room) handleDeny(id domain.ParticipantID, data []byte) {
	target, ok := r.target(id, protocol.TypeDenySpeak, data)
	if !ok {
		return
	}
	if err := r.speak.Deny(target); err != nil {
		r.sendError(id, speakErrorCode(err), protocol.TypeDenySpeak, err.Error())
		return
	}
	r.sendTo(target, protocol.Notice{Type: protocol.TypeSpeakDenied, UserID: target})
	r.sendToHosts(r.pendingFrame())
	r.speakChanged()
}

func (r *Room) handleKick(id domain.ParticipantID, data []byte) {
	target, ok := r.target(id, protocol.TypeKickSpeaker, data)
	if !ok {
		return
	}
	if err := r.speak.Kick(target); err != nil {
		r.sendError(id, speakErrorCode(err), protocol.TypeKickSpeaker, err.Error())
		return
	}
	r.revertToGuest(target)
	r.sendTo(target, protocol.Notice{Type: protocol.TypeSpeakRevoked, UserID: target})
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("host", string(id)).
		Str("speaker", string(target)).Msg("speaker kicked")
}

func (r *Room) handleLeaveStage(id domain.ParticipantID) {
	if err := r.speak.Kick(id); err != nil {
		r.sendError(id, speakErrorCode(err), protocol.TypeLeaveStage, err.Error())
		return
	}
	r.revertToGuest(id)
}

func (r *Room) revertToGuest(id domain.ParticipantID) {
	_, _, err := r.update(id, func() (domain.Participant, bool, error) {
		return r.store.SetRole(id, domain.RoleGuest)
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "core.room").Str("id", string(id)).Msg("revert role")
	}
	r.broadcast("", r.speakersFrame())
	r.speakChanged()
}
