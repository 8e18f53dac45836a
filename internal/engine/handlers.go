package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/watchalong/syncengine/internal/domain"
)

func (s *Session) handleUsers(ctx context.Context, raw json.RawMessage) error {
	var msg domain.UsersMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal users message: %w", err)
	}

	s.mu.Lock()
	roster := make(map[string]domain.Participant, len(msg.Users))
	for _, user := range msg.Users {
		if user.Presence == "" {
			user.Presence = domain.PresenceConnected
		}
		roster[user.Identity] = user

		if user.Identity == s.identity && user.Role != "" {
			s.role = user.Role
		}
	}
	s.roster = roster
	meshRoster := s.meshRosterLocked()
	s.mu.Unlock()

	s.mesh.SetRoster(meshRoster)

	return nil
}

func (s *Session) handleUserDeparted(ctx context.Context, raw json.RawMessage) error {
	var msg domain.UserDepartedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal user departed message: %w", err)
	}
	if _, ok := s.validate.Validate(msg); !ok {
		return fmt.Errorf("invalid user departed message")
	}

	s.mu.Lock()
	delete(s.roster, msg.Identity)
	meshRoster := s.meshRosterLocked()
	s.mu.Unlock()

	s.mesh.SetRoster(meshRoster)

	return nil
}

func (s *Session) handleLobbyUpdate(ctx context.Context, raw json.RawMessage) error {
	var msg domain.LobbyUpdateMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal lobby update message: %w", err)
	}

	s.mu.Lock()
	for _, identity := range msg.Waiting {
		participant, ok := s.roster[identity]
		if !ok {
			participant = domain.Participant{Identity: identity, Role: domain.RoleGuest}
		}
		participant.Presence = domain.PresenceLobby
		s.roster[identity] = participant
	}
	for _, identity := range msg.Admitted {
		if participant, ok := s.roster[identity]; ok {
			participant.Presence = domain.PresenceConnected
			s.roster[identity] = participant
		}
	}
	s.mu.Unlock()

	return nil
}

func (s *Session) handleMicStatusUpdate(ctx context.Context, raw json.RawMessage) error {
	var msg domain.MicStatusMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal mic status message: %w", err)
	}

	s.mu.Lock()
	if participant, ok := s.roster[msg.Identity]; ok {
		participant.IsMicOn = msg.IsMicOn
		s.roster[msg.Identity] = participant
	}
	s.mu.Unlock()

	return nil
}

func (s *Session) handleCohostPromoted(ctx context.Context, raw json.RawMessage) error {
	return s.applyRoleChange(raw, domain.RoleCoHost)
}

func (s *Session) handleCohostDemoted(ctx context.Context, raw json.RawMessage) error {
	return s.applyRoleChange(raw, domain.RoleGuest)
}

func (s *Session) applyRoleChange(raw json.RawMessage, role domain.Role) error {
	var msg domain.CohostMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal cohost message: %w", err)
	}
	if _, ok := s.validate.Validate(msg); !ok {
		return fmt.Errorf("invalid cohost message")
	}

	s.mu.Lock()
	if msg.Identity == s.identity {
		s.role = role
	}
	if participant, ok := s.roster[msg.Identity]; ok {
		participant.Role = role
		s.roster[msg.Identity] = participant
	}
	s.mu.Unlock()

	s.logger.Debug("engine.Session.applyRoleChange", "identity", msg.Identity, "role", role)

	return nil
}

func (s *Session) handleSignal(ctx context.Context, raw json.RawMessage) error {
	var msg domain.SignalMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal signal message: %w", err)
	}
	if msg.From == "" || len(msg.Signal) == 0 {
		return fmt.Errorf("signal message missing sender or payload")
	}

	if err := s.mesh.HandleSignal(msg.From, msg.Signal); err != nil {
		return fmt.Errorf("failed to handle signal: %w", err)
	}

	return nil
}

func (s *Session) handleSync(ctx context.Context, raw json.RawMessage) error {
	var msg domain.SyncMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal sync message: %w", err)
	}
	if _, ok := s.validate.Validate(msg); !ok {
		return fmt.Errorf("invalid sync message")
	}

	s.router.HandleSync(msg, domain.TransportWebSocket)

	return nil
}

func (s *Session) handleRequestVideoState(ctx context.Context, raw json.RawMessage) error {
	if !s.IsAuthoritative() {
		return nil
	}

	playlist := s.store.Playlist()
	s.arbiter.Propagate(s.buildSyncMessage(domain.SyncTypeVideo, &playlist), true)
	s.arbiter.Propagate(s.buildSyncMessage(domain.SyncTypeMusic, nil), true)

	return nil
}

func (s *Session) handleChat(ctx context.Context, raw json.RawMessage) error {
	var msg domain.ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal chat message: %w", err)
	}

	s.chat.Add(msg)

	return nil
}

func (s *Session) handleSystem(ctx context.Context, raw json.RawMessage) error {
	var msg domain.SystemMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal system message: %w", err)
	}

	s.chat.Add(domain.ChatMessage{
		Type: domain.MessageTypeSystem,
		Text: msg.Text,
	})

	return nil
}

func (s *Session) handleChatCleared(ctx context.Context, raw json.RawMessage) error {
	s.chat.Clear()
	return nil
}

func (s *Session) handleRoomEnding(ctx context.Context, raw json.RawMessage) error {
	s.logger.Info("room ending")
	s.Close()
	s.onEnded("room ended by host")

	return nil
}

func (s *Session) handleNoop(ctx context.Context, raw json.RawMessage) error {
	return nil
}

// meshRosterLocked lists the identities eligible for mesh links: lobby
// members are excluded until admitted.
func (s *Session) meshRosterLocked() []string {
	roster := make([]string, 0, len(s.roster))
	for identity, participant := range s.roster {
		if participant.Presence == domain.PresenceConnected {
			roster = append(roster, identity)
		}
	}

	return roster
}
