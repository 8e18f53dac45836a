package engine

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchalong/syncengine/internal/domain"
	"github.com/watchalong/syncengine/internal/store"
)

const testDeferDelay = 20 * time.Millisecond

func newTestRouter(t *testing.T) (*Router, iPlaybackStore) {
	t.Helper()

	st := store.NewStore()
	r := NewRouter(st, testDeferDelay, slog.Default())
	t.Cleanup(r.Stop)

	return r, st
}

func videoSync(seq int64, state string, at float64) domain.SyncMessage {
	return domain.SyncMessage{
		Type:          domain.MessageTypeVideoSync,
		State:         state,
		Time:          at,
		URL:           "https://example.com/v",
		SyncTimestamp: seq,
		FromHost:      true,
	}
}

func TestRouterRejectsNonHostMessages(t *testing.T) {
	r, st := newTestRouter(t)

	msg := videoSync(100, domain.PlayStatePlaying, 12.5)
	msg.FromHost = false
	r.HandleSync(msg, domain.TransportWebRTC)

	assert.Equal(t, domain.PlaybackState{}, st.State(domain.SyncTypeVideo))
}

func TestRouterDedupAcrossTransports(t *testing.T) {
	r, st := newTestRouter(t)

	// mesh delivery first
	r.HandleSync(videoSync(100, domain.PlayStatePlaying, 12.5), domain.TransportWebRTC)
	require.Equal(t, 12.5, st.State(domain.SyncTypeVideo).CurrentTime)

	// websocket duplicate 30ms later carries a different time; it must lose
	time.Sleep(30 * time.Millisecond)
	r.HandleSync(videoSync(100, domain.PlayStatePlaying, 13.1), domain.TransportWebSocket)
	time.Sleep(2 * testDeferDelay)

	assert.Equal(t, 12.5, st.State(domain.SyncTypeVideo).CurrentTime)
}

func TestRouterHighestSequenceWinsRegardlessOfArrival(t *testing.T) {
	r, st := newTestRouter(t)

	r.HandleSync(videoSync(200, domain.PlayStatePlaying, 50), domain.TransportWebRTC)
	r.HandleSync(videoSync(150, domain.PlayStatePlaying, 20), domain.TransportWebRTC)
	r.HandleSync(videoSync(199, domain.PlayStatePaused, 30), domain.TransportWebSocket)
	time.Sleep(2 * testDeferDelay)

	state := st.State(domain.SyncTypeVideo)
	assert.Equal(t, 50.0, state.CurrentTime)
	assert.True(t, state.IsPlaying)
}

func TestRouterSequencesPerSyncTypeAreIndependent(t *testing.T) {
	r, st := newTestRouter(t)

	r.HandleSync(videoSync(100, domain.PlayStatePlaying, 10), domain.TransportWebRTC)

	music := domain.SyncMessage{
		Type:          domain.MessageTypeMusicSync,
		State:         domain.PlayStatePlaying,
		Time:          5,
		Track:         "track-1",
		SyncTimestamp: 50, // lower than the video sequence
		FromHost:      true,
	}
	r.HandleSync(music, domain.TransportWebRTC)

	assert.Equal(t, 5.0, st.State(domain.SyncTypeMusic).CurrentTime)
	assert.Equal(t, "track-1", st.State(domain.SyncTypeMusic).MediaURL)
}

func TestRouterImportantWebsocketAppliesImmediately(t *testing.T) {
	r, st := newTestRouter(t)

	// store starts paused: a "playing" frame flips the flag, so no defer
	r.HandleSync(videoSync(100, domain.PlayStatePlaying, 1), domain.TransportWebSocket)

	assert.True(t, st.State(domain.SyncTypeVideo).IsPlaying)
}

func TestRouterBackupMarkerIsImportant(t *testing.T) {
	r, st := newTestRouter(t)

	msg := videoSync(100, domain.PlayStatePaused, 7)
	msg.Transport = domain.TransportBackup
	r.HandleSync(msg, domain.TransportWebSocket)

	assert.Equal(t, 7.0, st.State(domain.SyncTypeVideo).CurrentTime)
}

func TestRouterDefersNonImportantWebsocketMessages(t *testing.T) {
	r, st := newTestRouter(t)

	// paused -> paused: no flag change, not important
	r.HandleSync(videoSync(100, domain.PlayStatePaused, 42), domain.TransportWebSocket)

	assert.Equal(t, 0.0, st.State(domain.SyncTypeVideo).CurrentTime, "apply must be deferred")

	time.Sleep(2 * testDeferDelay)
	assert.Equal(t, 42.0, st.State(domain.SyncTypeVideo).CurrentTime)
}

func TestRouterDeferredApplyLosesToFasterMeshDuplicate(t *testing.T) {
	r, st := newTestRouter(t)

	r.HandleSync(videoSync(100, domain.PlayStatePaused, 42), domain.TransportWebSocket)
	r.HandleSync(videoSync(100, domain.PlayStatePaused, 41.8), domain.TransportWebRTC)

	time.Sleep(2 * testDeferDelay)
	assert.Equal(t, 41.8, st.State(domain.SyncTypeVideo).CurrentTime)
}

func TestRouterDeferredApplyCancelledWhenSuperseded(t *testing.T) {
	r, st := newTestRouter(t)

	r.HandleSync(videoSync(100, domain.PlayStatePaused, 10), domain.TransportWebSocket)
	r.HandleSync(videoSync(101, domain.PlayStatePlaying, 11), domain.TransportWebRTC)

	time.Sleep(2 * testDeferDelay)
	state := st.State(domain.SyncTypeVideo)
	assert.Equal(t, 11.0, state.CurrentTime)
	assert.True(t, state.IsPlaying)
}

func TestRouterDeferredApplySurvivesLowerSequenceApply(t *testing.T) {
	r, st := newTestRouter(t)

	// newest state arrives first over websocket and is deferred
	r.HandleSync(videoSync(100, domain.PlayStatePaused, 42), domain.TransportWebSocket)
	// an older mesh frame lands in the defer window and applies immediately;
	// it must not cancel the pending higher-sequence apply
	r.HandleSync(videoSync(99, domain.PlayStatePaused, 10), domain.TransportWebRTC)
	require.Equal(t, 10.0, st.State(domain.SyncTypeVideo).CurrentTime)

	time.Sleep(3 * testDeferDelay)
	assert.Equal(t, 42.0, st.State(domain.SyncTypeVideo).CurrentTime)
}

func TestRouterPendingApplyNotReplacedByOlderWebsocketFrame(t *testing.T) {
	r, st := newTestRouter(t)

	r.HandleSync(videoSync(100, domain.PlayStatePaused, 42), domain.TransportWebSocket)
	r.HandleSync(videoSync(98, domain.PlayStatePaused, 5), domain.TransportWebSocket)

	time.Sleep(3 * testDeferDelay)
	assert.Equal(t, 42.0, st.State(domain.SyncTypeVideo).CurrentTime)
}

func TestRouterMergesEmbeddedPlaylist(t *testing.T) {
	r, st := newTestRouter(t)

	msg := videoSync(100, domain.PlayStatePlaying, 0)
	msg.ExtendedState = &domain.Playlist{
		Items: []domain.PlaylistItem{
			{ID: "a", URL: "https://example.com/a"},
			{ID: "b", URL: "https://example.com/b"},
		},
		CurrentIndex: 1,
		Loop:         true,
	}
	r.HandleSync(msg, domain.TransportWebRTC)

	playlist := st.(interface{ Playlist() domain.Playlist }).Playlist()
	require.Len(t, playlist.Items, 2)
	assert.Equal(t, 1, playlist.CurrentIndex)
	assert.True(t, playlist.Loop)
}

func TestRouterExplicitSequenceIDTakesPrecedence(t *testing.T) {
	r, st := newTestRouter(t)

	msg := videoSync(100, domain.PlayStatePlaying, 5)
	msg.SequenceID = 500
	r.HandleSync(msg, domain.TransportWebRTC)

	// stale by sequence_id even though its timestamp is newer
	older := videoSync(400, domain.PlayStatePlaying, 6)
	older.SequenceID = 450
	r.HandleSync(older, domain.TransportWebRTC)

	assert.Equal(t, 5.0, st.State(domain.SyncTypeVideo).CurrentTime)
}
