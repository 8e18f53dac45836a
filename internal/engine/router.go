package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/watchalong/syncengine/internal/domain"
	"github.com/watchalong/syncengine/internal/store"
)

type iPlaybackStore interface {
	State(domain.SyncType) domain.PlaybackState
	UpdateState(domain.SyncType, *store.UpdateStateParams) domain.PlaybackState
	SetPlaylist(domain.Playlist) domain.Playlist
}

// Router decides whether an inbound playback sync message is applied, and
// with what latency, regardless of which transport delivered it. Stale and
// duplicate messages are silently dropped; this channel is a best-effort
// mirror with no acknowledgement semantics.
type Router struct {
	store      iPlaybackStore
	logger     *slog.Logger
	deferDelay time.Duration

	mu          sync.Mutex
	lastApplied map[domain.SyncType]int64
	pending     map[domain.SyncType]*time.Timer
	pendingSeq  map[domain.SyncType]int64
}

func NewRouter(playbackStore iPlaybackStore, deferDelay time.Duration, logger *slog.Logger) *Router {
	return &Router{
		store:       playbackStore,
		logger:      logger,
		deferDelay:  deferDelay,
		lastApplied: make(map[domain.SyncType]int64),
		pending:     make(map[domain.SyncType]*time.Timer),
		pendingSeq:  make(map[domain.SyncType]int64),
	}
}

// HandleSync routes one sync message delivered over the given transport.
//
// Only host-issued messages with a sequence strictly greater than the last
// applied one for their sync type are applied. Important messages (backup
// copies and play/pause flips) and anything delivered over the mesh apply
// immediately; other websocket messages wait DeferDelay so that a faster
// mesh duplicate can land first and win the sequence check.
func (r *Router) HandleSync(msg domain.SyncMessage, transport domain.Transport) {
	if !msg.FromHost {
		r.logger.Debug("engine.Router.HandleSync", "drop", "not from host")
		return
	}

	syncType := msg.SyncType()
	seq := msg.SequenceNumber()

	r.mu.Lock()
	defer r.mu.Unlock()

	if seq <= r.lastApplied[syncType] {
		r.logger.Debug("engine.Router.HandleSync", "drop", "stale", "seq", seq, "last", r.lastApplied[syncType])
		return
	}

	if transport == domain.TransportWebRTC || r.isImportant(msg) {
		r.applyLocked(msg, syncType, seq)
		return
	}

	// non-important websocket delivery: defer, superseding any older pending apply
	if timer, ok := r.pending[syncType]; ok {
		if seq < r.pendingSeq[syncType] {
			r.logger.Debug("engine.Router.HandleSync", "drop", "older than pending", "seq", seq, "pending", r.pendingSeq[syncType])
			return
		}
		timer.Stop()
	}
	r.pendingSeq[syncType] = seq
	r.pending[syncType] = time.AfterFunc(r.deferDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.pendingSeq[syncType] == seq {
			delete(r.pending, syncType)
			delete(r.pendingSeq, syncType)
		}
		if seq <= r.lastApplied[syncType] {
			// a mesh duplicate got there first
			return
		}
		r.applyLocked(msg, syncType, seq)
	})
}

// Stop cancels any pending deferred applies. Called on session teardown.
func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for syncType, timer := range r.pending {
		timer.Stop()
		delete(r.pending, syncType)
		delete(r.pendingSeq, syncType)
	}
}

func (r *Router) isImportant(msg domain.SyncMessage) bool {
	if msg.Transport == domain.TransportBackup {
		return true
	}
	if msg.State == "" {
		return false
	}

	current := r.store.State(msg.SyncType())

	return (msg.State == domain.PlayStatePlaying) != current.IsPlaying
}

func (r *Router) applyLocked(msg domain.SyncMessage, syncType domain.SyncType, seq int64) {
	params := store.UpdateStateParams{
		CurrentTime: &msg.Time,
		Volume:      msg.Volume,
		UpdatedAt:   msg.SyncTimestamp,
	}
	if ref := msg.MediaRef(); ref != "" {
		params.MediaURL = &ref
	}
	if msg.State != "" {
		isPlaying := msg.State == domain.PlayStatePlaying
		params.IsPlaying = &isPlaying
	}

	r.store.UpdateState(syncType, &params)

	if syncType == domain.SyncTypeVideo && msg.ExtendedState != nil {
		r.store.SetPlaylist(*msg.ExtendedState)
	}

	// a pending deferred apply with a higher sequence stays scheduled; its
	// own sequence check decides at fire time
	if timer, ok := r.pending[syncType]; ok && r.pendingSeq[syncType] <= seq {
		timer.Stop()
		delete(r.pending, syncType)
		delete(r.pendingSeq, syncType)
	}
	r.lastApplied[syncType] = seq
}
