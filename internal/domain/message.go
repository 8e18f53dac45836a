package domain

import "encoding/json"

// Message types multiplexed on the room socket.
const (
	MessageTypeChat              = "chat"
	MessageTypeSystem            = "system"
	MessageTypeUsers             = "users"
	MessageTypeMicStatus         = "mic_status"
	MessageTypeMicStatusUpdate   = "mic_status_update"
	MessageTypeSignal            = "signal"
	MessageTypeVideoSync         = "video_sync"
	MessageTypeMusicSync         = "music_sync"
	MessageTypeRequestVideoState = "request_video_state"
	MessageTypeChatCleared       = "chat_cleared"
	MessageTypeRoomStateUpdate   = "room_state_update"
	MessageTypeRoomEnding        = "room_ending"
	MessageTypeCohostPromoted    = "cohost_promoted"
	MessageTypeCohostDemoted     = "cohost_demoted"
	MessageTypeLobbyStatus       = "lobby_status"
	MessageTypeLobbyUpdate       = "lobby_update"
	MessageTypeUserDeparted      = "user_departed"
)

// Transport identifies which channel delivered or carries a message.
type Transport string

const (
	TransportWebSocket Transport = "websocket"
	TransportWebRTC    Transport = "webrtc"

	// TransportBackup marks a delayed websocket copy of a mesh broadcast.
	TransportBackup Transport = "websocket_backup"
)

const (
	PlayStatePlaying = "playing"
	PlayStatePaused  = "paused"
)

// SyncMessage is the wire record propagating playback state. sync_timestamp
// is a per-type logical clock issued only by the host side; sequence_id, when
// set, takes precedence over it for ordering.
type SyncMessage struct {
	Type          string          `json:"type" validate:"required,oneof=video_sync music_sync"`
	State         string          `json:"state" validate:"omitempty,oneof=playing paused"`
	Time          float64         `json:"time"`
	URL           string          `json:"url,omitempty"`
	Track         string          `json:"track,omitempty"`
	Volume        *float64        `json:"volume,omitempty"`
	SyncTimestamp int64           `json:"sync_timestamp" validate:"required"`
	SequenceID    int64           `json:"sequence_id,omitempty"`
	IsHost        bool            `json:"is_host"`
	FromHost      bool            `json:"from_host"`
	ExtendedState *Playlist       `json:"extended_state,omitempty"`
	Transport     Transport       `json:"transport,omitempty"`
	Sender        string          `json:"sender,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

// SyncType maps the wire tag to the per-type sequence bucket.
func (m SyncMessage) SyncType() SyncType {
	if m.Type == MessageTypeMusicSync {
		return SyncTypeMusic
	}

	return SyncTypeVideo
}

// SequenceNumber is the ordering key: the explicit sequence id when present,
// the logical timestamp otherwise.
func (m SyncMessage) SequenceNumber() int64 {
	if m.SequenceID != 0 {
		return m.SequenceID
	}

	return m.SyncTimestamp
}

// MediaRef is the media reference the message carries, regardless of sync type.
func (m SyncMessage) MediaRef() string {
	if m.URL != "" {
		return m.URL
	}

	return m.Track
}

// SignalMessage wraps an opaque WebRTC signaling payload addressed to one peer.
type SignalMessage struct {
	Type   string          `json:"type"`
	Target string          `json:"target" validate:"required"`
	From   string          `json:"from,omitempty"`
	Signal json.RawMessage `json:"signal" validate:"required"`
}

// UsersMessage is the roster push.
type UsersMessage struct {
	Type  string        `json:"type"`
	Users []Participant `json:"users"`
}

type UserDepartedMessage struct {
	Type     string `json:"type"`
	Identity string `json:"identity" validate:"required"`
}

type MicStatusMessage struct {
	Type     string `json:"type"`
	Identity string `json:"identity"`
	IsMicOn  bool   `json:"is_mic_on"`
}

type CohostMessage struct {
	Type     string `json:"type"`
	Identity string `json:"identity" validate:"required"`
}

type LobbyUpdateMessage struct {
	Type     string   `json:"type"`
	Waiting  []string `json:"waiting"`
	Admitted []string `json:"admitted,omitempty"`
}

type RoomStateUpdateMessage struct {
	Type     string `json:"type"`
	RoomName string `json:"room_name,omitempty"`
	IsLocked bool   `json:"is_locked,omitempty"`
}

type SystemMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type RequestVideoStateMessage struct {
	Type     string `json:"type"`
	Identity string `json:"identity,omitempty"`
}
