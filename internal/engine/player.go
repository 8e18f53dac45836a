package engine

import (
	"time"

	"github.com/watchalong/syncengine/internal/domain"
	"github.com/watchalong/syncengine/internal/store"
)

// UpdatePlayerState applies a local play/pause/seek. The store is updated
// optimistically for every role; only an authoritative participant
// propagates the change as state-of-record.
func (s *Session) UpdatePlayerState(syncType domain.SyncType, isPlaying bool, currentTime float64) domain.PlaybackState {
	prev := s.store.State(syncType)

	state := s.store.UpdateState(syncType, &store.UpdateStateParams{
		IsPlaying:   &isPlaying,
		CurrentTime: &currentTime,
		UpdatedAt:   time.Now().UnixMilli(),
	})

	if s.IsAuthoritative() {
		important := prev.IsPlaying != isPlaying
		s.arbiter.Propagate(s.buildSyncMessage(syncType, nil), important)
	}

	return state
}

// SetMedia switches the current media reference for one surface. Media
// changes are always important.
func (s *Session) SetMedia(syncType domain.SyncType, mediaURL string) domain.PlaybackState {
	isPlaying := true
	currentTime := 0.0
	state := s.store.UpdateState(syncType, &store.UpdateStateParams{
		MediaURL:    &mediaURL,
		IsPlaying:   &isPlaying,
		CurrentTime: &currentTime,
		UpdatedAt:   time.Now().UnixMilli(),
	})

	if s.IsAuthoritative() {
		var playlist *domain.Playlist
		if syncType == domain.SyncTypeVideo {
			p := s.store.Playlist()
			playlist = &p
		}
		s.arbiter.Propagate(s.buildSyncMessage(syncType, playlist), true)
	}

	return state
}

// SetMusicVolume is viewer comfort, not state-of-record: it never counts as
// important and music volume is only mirrored on periodic syncs.
func (s *Session) SetMusicVolume(volume float64) domain.PlaybackState {
	state := s.store.UpdateState(domain.SyncTypeMusic, &store.UpdateStateParams{
		Volume:    &volume,
		UpdatedAt: time.Now().UnixMilli(),
	})

	if s.IsAuthoritative() {
		s.arbiter.Propagate(s.buildSyncMessage(domain.SyncTypeMusic, nil), false)
	}

	return state
}

// TrackEnded advances the playlist when the current video finishes. This is
// a host-only trigger: viewers wait for the host's sync instead.
func (s *Session) TrackEnded() (domain.Playlist, bool) {
	if !s.IsAuthoritative() {
		return s.store.Playlist(), false
	}

	playlist, ok := s.store.Advance()
	if !ok {
		return playlist, false
	}

	item, found := playlist.Current()
	if !found {
		return playlist, false
	}

	isPlaying := true
	currentTime := 0.0
	s.store.UpdateState(domain.SyncTypeVideo, &store.UpdateStateParams{
		MediaURL:    &item.URL,
		IsPlaying:   &isPlaying,
		CurrentTime: &currentTime,
		UpdatedAt:   time.Now().UnixMilli(),
	})

	s.arbiter.Propagate(s.buildSyncMessage(domain.SyncTypeVideo, &playlist), true)

	return playlist, true
}

// State returns the current snapshot for one playback surface.
func (s *Session) State(syncType domain.SyncType) domain.PlaybackState {
	return s.store.State(syncType)
}

func (s *Session) buildSyncMessage(syncType domain.SyncType, playlist *domain.Playlist) domain.SyncMessage {
	state := s.store.State(syncType)

	playState := domain.PlayStatePaused
	if state.IsPlaying {
		playState = domain.PlayStatePlaying
	}

	msg := domain.SyncMessage{
		State:  playState,
		Time:   state.CurrentTime,
		Sender: s.identity,
	}

	if syncType == domain.SyncTypeMusic {
		msg.Type = domain.MessageTypeMusicSync
		msg.Track = state.MediaURL
		volume := state.Volume
		msg.Volume = &volume
	} else {
		msg.Type = domain.MessageTypeVideoSync
		msg.URL = state.MediaURL
		msg.ExtendedState = playlist
	}

	return msg
}
