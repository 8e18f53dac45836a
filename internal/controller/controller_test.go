package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchalong/syncengine/internal/domain"
	"github.com/watchalong/syncengine/internal/engine"
)

type fakeEngine struct {
	identity string
	role     domain.Role
	micOn    bool
	micErr   error
	playlist domain.Playlist
	video    domain.PlaybackState
	music    domain.PlaybackState
	chat     []domain.ChatMessage

	lastSyncType    domain.SyncType
	lastIsPlaying   bool
	lastCurrentTime float64
	lastMediaURL    string
	lastVolume      float64
	lastAddParams   *engine.AddVideoParams
	removedID       string
	selectedID      string
	movedID         string
	movedTo         int
	loopToggled     bool
	shuffleToggled  bool
	promoted        string
	demoted         string
	sentChat        string
	trackEndedCalls int
}

func (f *fakeEngine) Identity() string                   { return f.identity }
func (f *fakeEngine) Role() domain.Role                  { return f.role }
func (f *fakeEngine) IsMicOn() bool                      { return f.micOn }
func (f *fakeEngine) Roster() []domain.Participant       { return nil }
func (f *fakeEngine) Playlist() domain.Playlist          { return f.playlist }
func (f *fakeEngine) ChatMessages() []domain.ChatMessage { return f.chat }

func (f *fakeEngine) State(st domain.SyncType) domain.PlaybackState {
	if st == domain.SyncTypeMusic {
		return f.music
	}
	return f.video
}

func (f *fakeEngine) UpdatePlayerState(st domain.SyncType, isPlaying bool, currentTime float64) domain.PlaybackState {
	f.lastSyncType, f.lastIsPlaying, f.lastCurrentTime = st, isPlaying, currentTime
	return domain.PlaybackState{IsPlaying: isPlaying, CurrentTime: currentTime}
}

func (f *fakeEngine) SetMedia(st domain.SyncType, mediaURL string) domain.PlaybackState {
	f.lastSyncType, f.lastMediaURL = st, mediaURL
	return domain.PlaybackState{MediaURL: mediaURL, IsPlaying: true}
}

func (f *fakeEngine) SetMusicVolume(volume float64) domain.PlaybackState {
	f.lastVolume = volume
	return domain.PlaybackState{Volume: volume}
}

func (f *fakeEngine) TrackEnded() (domain.Playlist, bool) {
	f.trackEndedCalls++
	return f.playlist, f.role.IsAuthoritative()
}

func (f *fakeEngine) AddVideo(_ context.Context, params *engine.AddVideoParams) (domain.PlaylistItem, domain.Playlist) {
	f.lastAddParams = params
	item := domain.PlaylistItem{ID: "new-item", URL: params.URL, Title: params.Title}
	f.playlist.Items = append(f.playlist.Items, item)
	return item, f.playlist
}

func (f *fakeEngine) RemoveVideo(id string) (domain.Playlist, error) {
	if id == "missing" {
		return domain.Playlist{}, engine.ErrVideoNotFound
	}
	f.removedID = id
	return f.playlist, nil
}

func (f *fakeEngine) SelectVideo(id string) (domain.Playlist, error) {
	if id == "missing" {
		return domain.Playlist{}, engine.ErrVideoNotFound
	}
	f.selectedID = id
	return f.playlist, nil
}

func (f *fakeEngine) MoveVideo(id string, toIdx int) (domain.Playlist, error) {
	if id == "missing" {
		return domain.Playlist{}, engine.ErrVideoNotFound
	}
	f.movedID, f.movedTo = id, toIdx
	return f.playlist, nil
}

func (f *fakeEngine) ToggleLoop() domain.Playlist {
	f.loopToggled = true
	return f.playlist
}

func (f *fakeEngine) ToggleShuffle() domain.Playlist {
	f.shuffleToggled = true
	return f.playlist
}

func (f *fakeEngine) SetMicOn(_ context.Context, on bool) error {
	if f.micErr != nil {
		return f.micErr
	}
	f.micOn = on
	return nil
}

func (f *fakeEngine) SendChat(text string) (domain.ChatMessage, error) {
	f.sentChat = text
	return domain.ChatMessage{ID: "c1", Author: f.identity, Text: text}, nil
}

func (f *fakeEngine) PromoteCoHost(identity string) error {
	if !f.role.IsAuthoritative() {
		return engine.ErrNotAuthoritative
	}
	f.promoted = identity
	return nil
}

func (f *fakeEngine) DemoteCoHost(identity string) error {
	if !f.role.IsAuthoritative() {
		return engine.ErrNotAuthoritative
	}
	f.demoted = identity
	return nil
}

func newTestController(t *testing.T, eng *fakeEngine) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewController(eng, logger).Mux()
}

func doJSON(t *testing.T, mux http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	return rec
}

func TestControllerGetState(t *testing.T) {
	eng := &fakeEngine{
		identity: "alice@x.com",
		role:     domain.RoleHost,
		video:    domain.PlaybackState{MediaURL: "https://v.example/1", IsPlaying: true},
	}
	mux := newTestController(t, eng)

	rec := doJSON(t, mux, http.MethodGet, "/api/state", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data stateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice@x.com", resp.Data.Identity)
	assert.Equal(t, domain.RoleHost, resp.Data.Role)
	assert.Equal(t, "https://v.example/1", resp.Data.Video.MediaURL)
}

func TestControllerUpdatePlayerState(t *testing.T) {
	eng := &fakeEngine{role: domain.RoleHost}
	mux := newTestController(t, eng)

	rec := doJSON(t, mux, http.MethodPost, "/api/player/state", map[string]any{
		"is_playing":   true,
		"current_time": 42.5,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SyncTypeVideo, eng.lastSyncType)
	assert.True(t, eng.lastIsPlaying)
	assert.Equal(t, 42.5, eng.lastCurrentTime)
}

func TestControllerUpdatePlayerStateMusic(t *testing.T) {
	eng := &fakeEngine{}
	mux := newTestController(t, eng)

	rec := doJSON(t, mux, http.MethodPost, "/api/player/state", map[string]any{
		"sync_type":    "music",
		"is_playing":   true,
		"current_time": 3.0,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SyncTypeMusic, eng.lastSyncType)
}

func TestControllerUpdatePlayerStateRejectsBadSyncType(t *testing.T) {
	mux := newTestController(t, &fakeEngine{})

	rec := doJSON(t, mux, http.MethodPost, "/api/player/state", map[string]any{
		"sync_type": "podcast",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControllerSetVideoValidatesURL(t *testing.T) {
	eng := &fakeEngine{}
	mux := newTestController(t, eng)

	rec := doJSON(t, mux, http.MethodPost, "/api/player/video", map[string]any{"url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/player/video", map[string]any{"url": "https://v.example/1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://v.example/1", eng.lastMediaURL)
}

func TestControllerAddAndRemoveVideo(t *testing.T) {
	eng := &fakeEngine{}
	mux := newTestController(t, eng)

	rec := doJSON(t, mux, http.MethodPost, "/api/playlist/videos", map[string]any{
		"url":   "https://v.example/2",
		"title": "second",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, eng.lastAddParams)
	assert.Equal(t, "https://v.example/2", eng.lastAddParams.URL)

	rec = doJSON(t, mux, http.MethodDelete, "/api/playlist/videos/new-item", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new-item", eng.removedID)

	rec = doJSON(t, mux, http.MethodDelete, "/api/playlist/videos/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestControllerSelectVideo(t *testing.T) {
	eng := &fakeEngine{}
	mux := newTestController(t, eng)

	rec := doJSON(t, mux, http.MethodPost, "/api/playlist/videos/item-1/select", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "item-1", eng.selectedID)
}

func TestControllerMoveVideo(t *testing.T) {
	eng := &fakeEngine{}
	mux := newTestController(t, eng)

	rec := doJSON(t, mux, http.MethodPost, "/api/playlist/videos/item-1/move", map[string]any{"index": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "item-1", eng.movedID)
	assert.Equal(t, 2, eng.movedTo)

	rec = doJSON(t, mux, http.MethodPost, "/api/playlist/videos/missing/move", map[string]any{"index": 0})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestControllerAdvance(t *testing.T) {
	eng := &fakeEngine{role: domain.RoleHost}
	mux := newTestController(t, eng)

	rec := doJSON(t, mux, http.MethodPost, "/api/playlist/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, eng.trackEndedCalls)
}

func TestControllerToggles(t *testing.T) {
	eng := &fakeEngine{}
	mux := newTestController(t, eng)

	require.Equal(t, http.StatusOK, doJSON(t, mux, http.MethodPost, "/api/playlist/loop", nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, mux, http.MethodPost, "/api/playlist/shuffle", nil).Code)
	assert.True(t, eng.loopToggled)
	assert.True(t, eng.shuffleToggled)
}

func TestControllerMicFailure(t *testing.T) {
	eng := &fakeEngine{micErr: errors.New("permission denied")}
	mux := newTestController(t, eng)

	rec := doJSON(t, mux, http.MethodPost, "/api/mic", map[string]any{"on": true})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, eng.micOn)
}

func TestControllerChat(t *testing.T) {
	eng := &fakeEngine{identity: "alice@x.com"}
	mux := newTestController(t, eng)

	rec := doJSON(t, mux, http.MethodPost, "/api/chat", map[string]any{"text": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "hello", eng.sentChat)

	rec = doJSON(t, mux, http.MethodPost, "/api/chat", map[string]any{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControllerRoleChangeForbiddenForGuest(t *testing.T) {
	eng := &fakeEngine{role: domain.RoleGuest}
	mux := newTestController(t, eng)

	rec := doJSON(t, mux, http.MethodPost, "/api/members/bob/promote", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestControllerRoleChange(t *testing.T) {
	eng := &fakeEngine{role: domain.RoleHost}
	mux := newTestController(t, eng)

	require.Equal(t, http.StatusOK, doJSON(t, mux, http.MethodPost, "/api/members/bob/promote", nil).Code)
	assert.Equal(t, "bob", eng.promoted)

	require.Equal(t, http.StatusOK, doJSON(t, mux, http.MethodPost, "/api/members/bob/demote", nil).Code)
	assert.Equal(t, "bob", eng.demoted)
}
