package domain

type Role string

const (
	RoleHost   Role = "host"
	RoleCoHost Role = "co-host"
	RoleGuest  Role = "guest"
)

// IsAuthoritative reports whether playback state written by a participant
// with this role is state-of-record for the room.
func (r Role) IsAuthoritative() bool {
	return r == RoleHost || r == RoleCoHost
}

type Presence string

const (
	PresenceConnected Presence = "connected"
	PresenceLobby     Presence = "lobby"
	PresenceDeparted  Presence = "departed"
)

// Participant identity is unique per room, derived from the user's email or
// display name by the backend.
type Participant struct {
	Identity  string   `json:"identity"`
	Role      Role     `json:"role"`
	Presence  Presence `json:"presence"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	IsMicOn   bool     `json:"is_mic_on"`
}
