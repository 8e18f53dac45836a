package domain

// ChatMessage travels over both transports during races, so consumers must
// deduplicate: by id first, then by (author, text, timestamp within one
// second) for messages that lost their id in relaying.
type ChatMessage struct {
	ID        string `json:"id"`
	Type      string `json:"type,omitempty"`
	Author    string `json:"author"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	IsHost    bool   `json:"is_host,omitempty"`
}

// SameAs reports whether other is a duplicate delivery of this message.
func (m ChatMessage) SameAs(other ChatMessage) bool {
	if m.ID != "" && m.ID == other.ID {
		return true
	}

	if m.Author != other.Author || m.Text != other.Text {
		return false
	}

	diff := m.Timestamp - other.Timestamp
	if diff < 0 {
		diff = -diff
	}

	return diff <= 1000
}
