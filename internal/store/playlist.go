package store

import (
	"github.com/watchalong/syncengine/internal/domain"
)

// SetPlaylist replaces the whole playlist, used when a sync message carries
// an extended state from the host.
func (s *store) SetPlaylist(playlist domain.Playlist) domain.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playlist = playlist.Copy()

	return s.playlist.Copy()
}

func (s *store) AddPlaylistItem(item domain.PlaylistItem) domain.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist := s.playlist.Copy()
	playlist.Items = append(playlist.Items, item)
	s.playlist = playlist

	return playlist.Copy()
}

func (s *store) RemovePlaylistItem(itemID string) (domain.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, item := range s.playlist.Items {
		if item.ID == itemID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return domain.Playlist{}, ErrItemNotFound
	}

	playlist := s.playlist.Copy()
	playlist.Items = append(playlist.Items[:idx], playlist.Items[idx+1:]...)
	if playlist.CurrentIndex > idx {
		playlist.CurrentIndex--
	}
	if playlist.CurrentIndex >= len(playlist.Items) {
		playlist.CurrentIndex = 0
	}
	s.playlist = playlist

	return playlist.Copy(), nil
}

// MovePlaylistItem reorders one item to a new position. The current index
// follows the item it pointed at, so playback is unaffected by reordering.
func (s *store) MovePlaylistItem(itemID string, toIdx int) (domain.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromIdx := -1
	for i, item := range s.playlist.Items {
		if item.ID == itemID {
			fromIdx = i
			break
		}
	}
	if fromIdx == -1 {
		return domain.Playlist{}, ErrItemNotFound
	}
	if toIdx < 0 || toIdx >= len(s.playlist.Items) {
		return domain.Playlist{}, ErrItemNotFound
	}

	playlist := s.playlist.Copy()
	currentID := ""
	if current, ok := playlist.Current(); ok {
		currentID = current.ID
	}

	item := playlist.Items[fromIdx]
	playlist.Items = append(playlist.Items[:fromIdx], playlist.Items[fromIdx+1:]...)
	rest := playlist.Items[toIdx:]
	playlist.Items = append(playlist.Items[:toIdx], append([]domain.PlaylistItem{item}, rest...)...)

	if currentID != "" {
		for i, it := range playlist.Items {
			if it.ID == currentID {
				playlist.CurrentIndex = i
				break
			}
		}
	}
	s.playlist = playlist

	return playlist.Copy(), nil
}

func (s *store) SetCurrentIndex(idx int) (domain.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx < 0 || idx >= len(s.playlist.Items) {
		return domain.Playlist{}, ErrItemNotFound
	}

	playlist := s.playlist.Copy()
	playlist.CurrentIndex = idx
	s.playlist = playlist

	return playlist.Copy(), nil
}

func (s *store) ToggleLoop() domain.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist := s.playlist.Copy()
	playlist.Loop = !playlist.Loop
	s.playlist = playlist

	return playlist.Copy()
}

func (s *store) ToggleShuffle() domain.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist := s.playlist.Copy()
	playlist.Shuffle = !playlist.Shuffle
	s.playlist = playlist

	return playlist.Copy()
}

// Advance moves the playlist to the next track after the current one ended.
// Sequential mode picks (current+1) % length; shuffle picks a uniformly
// random index that is never the current one when more than one item exists.
// With loop disabled the last track does not wrap, and ok is false.
func (s *store) Advance() (domain.Playlist, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.playlist.Items)
	if n == 0 {
		return s.playlist.Copy(), false
	}

	playlist := s.playlist.Copy()
	switch {
	case playlist.Shuffle && n > 1:
		next := s.intn(n - 1)
		if next >= playlist.CurrentIndex {
			next++
		}
		playlist.CurrentIndex = next
	case playlist.CurrentIndex == n-1 && !playlist.Loop:
		return s.playlist.Copy(), false
	default:
		playlist.CurrentIndex = (playlist.CurrentIndex + 1) % n
	}
	s.playlist = playlist

	return playlist.Copy(), true
}
