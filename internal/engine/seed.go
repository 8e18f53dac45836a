package engine

import (
	"github.com/watchalong/syncengine/internal/domain"
	"github.com/watchalong/syncengine/internal/store"
)

type SeedParams struct {
	Role     domain.Role
	Video    domain.PlaybackState
	Music    domain.PlaybackState
	Playlist domain.Playlist
	Chat     []domain.ChatMessage
}

// Seed loads the state-restoration payload returned by the backend on join,
// before any live traffic is processed.
func (s *Session) Seed(params *SeedParams) {
	s.mu.Lock()
	if params.Role != "" {
		s.role = params.Role
	}
	s.mu.Unlock()

	s.seedState(domain.SyncTypeVideo, params.Video)
	s.seedState(domain.SyncTypeMusic, params.Music)
	s.store.SetPlaylist(params.Playlist)
	s.chat.Seed(params.Chat)
}

func (s *Session) seedState(syncType domain.SyncType, state domain.PlaybackState) {
	s.store.UpdateState(syncType, &store.UpdateStateParams{
		MediaURL:    &state.MediaURL,
		IsPlaying:   &state.IsPlaying,
		CurrentTime: &state.CurrentTime,
		Volume:      &state.Volume,
		UpdatedAt:   state.UpdatedAt,
	})
}
