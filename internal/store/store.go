package store

import (
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/watchalong/syncengine/internal/domain"
)

var (
	ErrItemNotFound  = errors.New("playlist item not found")
	ErrEmptyPlaylist = errors.New("playlist is empty")
)

// store is the single in-memory source of truth per room for video state,
// music state and the playlist. Local host actions and the sync message
// router are its only writers; everything else reads snapshots.
type store struct {
	mu       sync.RWMutex
	video    domain.PlaybackState
	music    domain.PlaybackState
	playlist domain.Playlist

	intn func(n int) int
}

func NewStore() *store {
	return &store{
		intn: rand.IntN,
	}
}

func (s *store) State(syncType domain.SyncType) domain.PlaybackState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if syncType == domain.SyncTypeMusic {
		return s.music
	}

	return s.video
}

func (s *store) Playlist() domain.Playlist {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.playlist.Copy()
}

type UpdateStateParams struct {
	MediaURL    *string
	IsPlaying   *bool
	CurrentTime *float64
	Volume      *float64
	UpdatedAt   int64
}

// UpdateState applies a partial update to one playback surface and returns
// the resulting snapshot. Nil fields are left untouched.
func (s *store) UpdateState(syncType domain.SyncType, params *UpdateStateParams) domain.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.statePtr(syncType)
	if params.MediaURL != nil {
		state.MediaURL = *params.MediaURL
	}
	if params.IsPlaying != nil {
		state.IsPlaying = *params.IsPlaying
	}
	if params.CurrentTime != nil {
		state.CurrentTime = *params.CurrentTime
	}
	if params.Volume != nil {
		state.Volume = *params.Volume
	}
	state.UpdatedAt = params.UpdatedAt

	return *state
}

func (s *store) statePtr(syncType domain.SyncType) *domain.PlaybackState {
	if syncType == domain.SyncTypeMusic {
		return &s.music
	}

	return &s.video
}
