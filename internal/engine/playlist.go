package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/watchalong/syncengine/internal/domain"
	"github.com/watchalong/syncengine/internal/store"
)

type AddVideoParams struct {
	URL       string
	Title     string
	Type      string
	Duration  float64
	Thumbnail string
}

// AddVideo appends an item to the playlist, resolving a title and thumbnail
// for it when the caller did not supply them. Any participant may propose
// additions locally; only authoritative playlists are broadcast.
func (s *Session) AddVideo(ctx context.Context, params *AddVideoParams) (domain.PlaylistItem, domain.Playlist) {
	itemType := params.Type
	if itemType == "" {
		itemType = "video"
	}

	item := domain.PlaylistItem{
		ID:        uuid.NewString(),
		URL:       params.URL,
		Title:     params.Title,
		Type:      itemType,
		Duration:  params.Duration,
		Thumbnail: params.Thumbnail,
	}

	if (item.Title == "" || item.Thumbnail == "") && s.meta != nil {
		meta, err := s.meta.Lookup(ctx, item.URL)
		if err != nil {
			s.logger.Warn("engine.Session.AddVideo: metadata lookup failed", "url", item.URL, "error", err)
		} else {
			if item.Title == "" {
				item.Title = meta.Title
			}
			if item.Thumbnail == "" {
				item.Thumbnail = meta.ThumbnailURL
			}
		}
	}

	playlist := s.store.AddPlaylistItem(item)
	s.propagatePlaylist(playlist, false)

	return item, playlist
}

func (s *Session) RemoveVideo(itemID string) (domain.Playlist, error) {
	playlist, err := s.store.RemovePlaylistItem(itemID)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("failed to remove playlist item: %w", err)
	}

	s.propagatePlaylist(playlist, false)

	return playlist, nil
}

// SelectVideo jumps playback to a playlist item. A media change rides along,
// so the propagated sync is important.
func (s *Session) SelectVideo(itemID string) (domain.Playlist, error) {
	current := s.store.Playlist()
	idx := -1
	for i, item := range current.Items {
		if item.ID == itemID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return domain.Playlist{}, ErrVideoNotFound
	}

	playlist, err := s.store.SetCurrentIndex(idx)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("failed to set current index: %w", err)
	}

	item := playlist.Items[idx]
	isPlaying := true
	currentTime := 0.0
	s.store.UpdateState(domain.SyncTypeVideo, &store.UpdateStateParams{
		MediaURL:    &item.URL,
		IsPlaying:   &isPlaying,
		CurrentTime: &currentTime,
		UpdatedAt:   time.Now().UnixMilli(),
	})

	s.propagatePlaylist(playlist, true)

	return playlist, nil
}

// MoveVideo reorders a playlist item without touching playback.
func (s *Session) MoveVideo(itemID string, toIdx int) (domain.Playlist, error) {
	playlist, err := s.store.MovePlaylistItem(itemID, toIdx)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("failed to move playlist item: %w", err)
	}

	s.propagatePlaylist(playlist, false)

	return playlist, nil
}

func (s *Session) ToggleLoop() domain.Playlist {
	playlist := s.store.ToggleLoop()
	s.propagatePlaylist(playlist, false)

	return playlist
}

func (s *Session) ToggleShuffle() domain.Playlist {
	playlist := s.store.ToggleShuffle()
	s.propagatePlaylist(playlist, false)

	return playlist
}

func (s *Session) Playlist() domain.Playlist {
	return s.store.Playlist()
}

func (s *Session) propagatePlaylist(playlist domain.Playlist, important bool) {
	if !s.IsAuthoritative() {
		return
	}

	s.arbiter.Propagate(s.buildSyncMessage(domain.SyncTypeVideo, &playlist), important)
}
