package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/watchalong/syncengine/internal/domain"
)

// SetMicOn toggles the local microphone. Acquisition failures leave the mic
// off and broadcast nothing; the partially acquired stream, if any, is the
// media source's to release.
func (s *Session) SetMicOn(ctx context.Context, on bool) error {
	if on {
		track, err := s.media.AcquireTrack(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire mic track: %w", err)
		}

		s.mesh.ReplaceLocalTrack(track)
		s.mu.Lock()
		s.micOn = true
		s.mu.Unlock()
	} else {
		s.mesh.ReplaceLocalTrack(nil)
		s.media.Release()
		s.mu.Lock()
		s.micOn = false
		s.mu.Unlock()
	}

	if err := s.relay.Send(domain.MicStatusMessage{
		Type:     domain.MessageTypeMicStatus,
		Identity: s.identity,
		IsMicOn:  on,
	}); err != nil {
		return fmt.Errorf("failed to send mic status: %w", err)
	}

	return nil
}

// SendChat posts a message to the room and records it locally right away.
func (s *Session) SendChat(text string) (domain.ChatMessage, error) {
	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		Type:      domain.MessageTypeChat,
		Author:    s.identity,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		IsHost:    s.IsAuthoritative(),
	}

	s.chat.Add(msg)

	if err := s.relay.Send(msg); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("failed to send chat message: %w", err)
	}

	return msg, nil
}

// PromoteCoHost grants another participant authoritative playback. Host only.
func (s *Session) PromoteCoHost(identity string) error {
	return s.sendRoleChange(domain.MessageTypeCohostPromoted, identity)
}

func (s *Session) DemoteCoHost(identity string) error {
	return s.sendRoleChange(domain.MessageTypeCohostDemoted, identity)
}

func (s *Session) sendRoleChange(messageType, identity string) error {
	if s.Role() != domain.RoleHost {
		return ErrNotAuthoritative
	}

	if err := s.relay.Send(domain.CohostMessage{
		Type:     messageType,
		Identity: identity,
	}); err != nil {
		return fmt.Errorf("failed to send role change: %w", err)
	}

	return nil
}
