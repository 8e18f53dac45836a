package backend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchalong/syncengine/internal/domain"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "viewer@example.com",
		"exp":   exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return signed
}

type backendFixture struct {
	srv         *httptest.Server
	client      *Client
	tokenIssued int
	lastAuth    string
	token       string
}

func newBackendFixture(t *testing.T, handler http.HandlerFunc) *backendFixture {
	t.Helper()

	f := &backendFixture{
		token: signedToken(t, time.Now().Add(time.Hour)),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/token" {
			f.tokenIssued++
			json.NewEncoder(w).Encode(tokenResponse{Token: f.token})
			return
		}
		f.lastAuth = r.Header.Get("Authorization")
		handler(w, r)
	}))
	t.Cleanup(f.srv.Close)

	f.client = NewClient(&Config{
		BaseURL: f.srv.URL,
		Email:   "viewer@example.com",
	}, slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	return f
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestClient_BearerAttached(t *testing.T) {
	f := newBackendFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Room{ID: "room-1"})
	})

	room, err := f.client.GetRoom(context.Background(), "room-1")
	require.NoError(t, err)

	assert.Equal(t, "room-1", room.ID)
	assert.Equal(t, "Bearer "+f.token, f.lastAuth)
	assert.Equal(t, 1, f.tokenIssued)
}

func TestClient_TokenCachedAcrossCalls(t *testing.T) {
	f := newBackendFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Room{ID: "room-1"})
	})

	ctx := context.Background()
	for range 3 {
		_, err := f.client.GetRoom(ctx, "room-1")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, f.tokenIssued)
}

func TestClient_TokenRefreshedNearExpiry(t *testing.T) {
	f := newBackendFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Room{ID: "room-1"})
	})
	// Already inside the refresh leeway, so every call re-issues.
	f.token = signedToken(t, time.Now().Add(30*time.Second))

	ctx := context.Background()
	_, err := f.client.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	_, err = f.client.GetRoom(ctx, "room-1")
	require.NoError(t, err)

	assert.Equal(t, 2, f.tokenIssued)
}

func TestClient_OpaqueTokenCached(t *testing.T) {
	f := newBackendFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Room{ID: "room-1"})
	})
	f.token = "opaque-session-token"

	ctx := context.Background()
	_, err := f.client.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	_, err = f.client.GetRoom(ctx, "room-1")
	require.NoError(t, err)

	assert.Equal(t, 1, f.tokenIssued)
}

func TestClient_NotFoundMapped(t *testing.T) {
	f := newBackendFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := f.client.GetRoom(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestClient_ForbiddenMapped(t *testing.T) {
	f := newBackendFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	err := f.client.DeleteRoom(context.Background(), "room-1")
	assert.ErrorIs(t, err, ErrRoomForbidden)
}

func TestClient_JoinRoomDecodesSeedPayload(t *testing.T) {
	f := newBackendFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/rooms/room-1/members", r.URL.Path)

		json.NewEncoder(w).Encode(JoinRoomResponse{
			Role: domain.RoleGuest,
			Participants: []domain.Participant{
				{Identity: "alice", Role: domain.RoleHost, Presence: domain.PresenceConnected},
			},
			ChatMessages: []domain.ChatMessage{
				{ID: "m1", Author: "alice", Text: "welcome", Timestamp: 1700000000000},
			},
			SyncStates: SyncStates{
				Video: domain.PlaybackState{MediaURL: "https://v.example/1", IsPlaying: true, CurrentTime: 12.5},
				Music: domain.PlaybackState{Volume: 0.4},
			},
			Playlist: domain.Playlist{
				Items:        []domain.PlaylistItem{{ID: "v1", URL: "https://v.example/1"}},
				CurrentIndex: 0,
			},
		})
	})

	resp, err := f.client.JoinRoom(context.Background(), "room-1")
	require.NoError(t, err)

	assert.Equal(t, domain.RoleGuest, resp.Role)
	require.Len(t, resp.Participants, 1)
	assert.Equal(t, domain.RoleHost, resp.Participants[0].Role)
	assert.Equal(t, "https://v.example/1", resp.SyncStates.Video.MediaURL)
	assert.True(t, resp.SyncStates.Video.IsPlaying)
	require.Len(t, resp.Playlist.Items, 1)
}

func TestClient_RoomPaths(t *testing.T) {
	var gotMethod, gotPath string
	f := newBackendFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()

	require.NoError(t, f.client.PromoteCoHost(ctx, "room-1", "bob"))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/rooms/room-1/cohosts", gotPath)

	require.NoError(t, f.client.DemoteCoHost(ctx, "room-1", "bob"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/rooms/room-1/cohosts/bob", gotPath)

	require.NoError(t, f.client.LeaveRoom(ctx, "room-1"))
	assert.Equal(t, "/api/rooms/room-1/members/me", gotPath)

	require.NoError(t, f.client.ClearChatHistory(ctx, "room-1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/rooms/room-1/chat", gotPath)
}
