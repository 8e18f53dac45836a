package controller

import (
	"context"
	"log/slog"

	"github.com/watchalong/syncengine/internal/domain"
	"github.com/watchalong/syncengine/internal/engine"
	"github.com/watchalong/syncengine/pkg/randstr"
	"github.com/watchalong/syncengine/pkg/validator"
)

type iEngine interface {
	Identity() string
	Role() domain.Role
	IsMicOn() bool
	Roster() []domain.Participant
	State(domain.SyncType) domain.PlaybackState
	Playlist() domain.Playlist
	ChatMessages() []domain.ChatMessage

	UpdatePlayerState(domain.SyncType, bool, float64) domain.PlaybackState
	SetMedia(domain.SyncType, string) domain.PlaybackState
	SetMusicVolume(float64) domain.PlaybackState
	TrackEnded() (domain.Playlist, bool)

	AddVideo(context.Context, *engine.AddVideoParams) (domain.PlaylistItem, domain.Playlist)
	RemoveVideo(string) (domain.Playlist, error)
	SelectVideo(string) (domain.Playlist, error)
	MoveVideo(string, int) (domain.Playlist, error)
	ToggleLoop() domain.Playlist
	ToggleShuffle() domain.Playlist

	SetMicOn(context.Context, bool) error
	SendChat(string) (domain.ChatMessage, error)
	PromoteCoHost(string) error
	DemoteCoHost(string) error
}

// controller exposes the running session over a local REST surface so other
// processes on the machine (player UI, scripts) can drive it.
type controller struct {
	engine    iEngine
	logger    *slog.Logger
	validate  *validator.Validator
	generator *randstr.Generator
}

func NewController(engine iEngine, logger *slog.Logger) *controller {
	return &controller{
		engine:    engine,
		logger:    logger,
		validate:  validator.NewValidator(),
		generator: randstr.New([]byte("abcdefghijklmnopqrstuvwxyz0123456789")),
	}
}
