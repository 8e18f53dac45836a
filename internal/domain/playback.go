package domain

type SyncType string

const (
	SyncTypeVideo SyncType = "video"
	SyncTypeMusic SyncType = "music"
)

type PlaylistItem struct {
	ID        string  `json:"id"`
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Type      string  `json:"type"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail,omitempty"`
}

type Playlist struct {
	Items        []PlaylistItem `json:"items"`
	CurrentIndex int            `json:"current_index"`
	Loop         bool           `json:"loop"`
	Shuffle      bool           `json:"shuffle"`
}

// Current returns the item at the current index, if any.
func (p Playlist) Current() (PlaylistItem, bool) {
	if p.CurrentIndex < 0 || p.CurrentIndex >= len(p.Items) {
		return PlaylistItem{}, false
	}

	return p.Items[p.CurrentIndex], true
}

// Copy returns a deep copy, so snapshots handed to readers are never aliased
// with the stored playlist.
func (p Playlist) Copy() Playlist {
	cp := p
	cp.Items = make([]PlaylistItem, len(p.Items))
	copy(cp.Items, p.Items)

	return cp
}

// PlaybackState is the mirrored view of one media surface (video or music).
// On the host it is authoritative; on viewers it is overwritten by applied
// sync messages.
type PlaybackState struct {
	MediaURL    string  `json:"media_url"`
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
	Volume      float64 `json:"volume"`
	UpdatedAt   int64   `json:"updated_at"`
}
