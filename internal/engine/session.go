package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/watchalong/syncengine/internal/domain"
	"github.com/watchalong/syncengine/internal/store"
	"github.com/watchalong/syncengine/pkg/mediameta"
	"github.com/watchalong/syncengine/pkg/validator"
	"github.com/watchalong/syncengine/pkg/wsrouter"
)

var (
	ErrNotAuthoritative = errors.New("participant is not host or co-host")
	ErrVideoNotFound    = errors.New("video not found in playlist")
)

type iSessionStore interface {
	State(domain.SyncType) domain.PlaybackState
	UpdateState(domain.SyncType, *store.UpdateStateParams) domain.PlaybackState
	Playlist() domain.Playlist
	SetPlaylist(domain.Playlist) domain.Playlist
	AddPlaylistItem(domain.PlaylistItem) domain.Playlist
	RemovePlaylistItem(string) (domain.Playlist, error)
	MovePlaylistItem(string, int) (domain.Playlist, error)
	SetCurrentIndex(int) (domain.Playlist, error)
	ToggleLoop() domain.Playlist
	ToggleShuffle() domain.Playlist
	Advance() (domain.Playlist, bool)
}

type iSyncRouter interface {
	HandleSync(domain.SyncMessage, domain.Transport)
	Stop()
}

type iArbiter interface {
	Propagate(domain.SyncMessage, bool) domain.SyncMessage
	Stop()
}

type iSessionMesh interface {
	SetRoster([]string)
	HandleSignal(string, json.RawMessage) error
	ReplaceLocalTrack(webrtc.TrackLocal)
	Shutdown()
}

type iMediaSource interface {
	AcquireTrack(context.Context) (webrtc.TrackLocal, error)
	Release()
}

type iMetaResolver interface {
	Lookup(ctx context.Context, mediaURL string) (mediameta.Metadata, error)
}

// Session ties the relay, mesh, router, arbiter and store together for one
// room membership: it owns the roster, the local role, the mic state and
// the chat log, and is the only component issuing local authoritative
// propagation.
type Session struct {
	identity string
	logger   *slog.Logger
	cfg      *Config

	store    iSessionStore
	router   iSyncRouter
	arbiter  iArbiter
	mesh     iSessionMesh
	relay    iRelaySender
	media    iMediaSource
	meta     iMetaResolver
	chat     *chatLog
	validate *validator.Validator

	onEnded func(reason string)

	mu         sync.Mutex
	role       domain.Role
	roster     map[string]domain.Participant
	micOn      bool
	resyncStop chan struct{}
	stopOnce   sync.Once
}

type SessionParams struct {
	Identity string
	Role     domain.Role
	Store    iSessionStore
	Router   iSyncRouter
	Arbiter  iArbiter
	Mesh     iSessionMesh
	Relay    iRelaySender
	Media    iMediaSource
	// Meta is optional; without it playlist items keep whatever title the
	// caller supplied.
	Meta   iMetaResolver
	Config *Config
	Logger *slog.Logger
	// OnEnded fires once when the room ends or the session is torn down.
	OnEnded func(reason string)
}

func NewSession(params *SessionParams) *Session {
	onEnded := params.OnEnded
	if onEnded == nil {
		onEnded = func(string) {}
	}

	return &Session{
		identity:   params.Identity,
		logger:     params.Logger,
		cfg:        params.Config,
		store:      params.Store,
		router:     params.Router,
		arbiter:    params.Arbiter,
		mesh:       params.Mesh,
		relay:      params.Relay,
		media:      params.Media,
		meta:       params.Meta,
		chat:       newChatLog(),
		validate:   validator.NewValidator(),
		onEnded:    onEnded,
		role:       params.Role,
		roster:     make(map[string]domain.Participant),
		resyncStop: make(chan struct{}),
	}
}

// SignalRelay adapts the relay into the mesh manager's signal side-channel,
// wrapping opaque payloads into "signal" envelopes.
type SignalRelay struct {
	relay    iRelaySender
	identity string
}

func NewSignalRelay(relay iRelaySender, identity string) *SignalRelay {
	return &SignalRelay{relay: relay, identity: identity}
}

func (r *SignalRelay) SendSignal(target string, signal json.RawMessage) error {
	return r.relay.Send(domain.SignalMessage{
		Type:   domain.MessageTypeSignal,
		Target: target,
		From:   r.identity,
		Signal: signal,
	})
}

// Routes returns the dispatch table for frames arriving on the room socket.
func (s *Session) Routes() *wsrouter.WSRouter {
	mux := wsrouter.New()

	// roster
	mux.Handle(domain.MessageTypeUsers, s.handleUsers)
	mux.Handle(domain.MessageTypeUserDeparted, s.handleUserDeparted)
	mux.Handle(domain.MessageTypeLobbyUpdate, s.handleLobbyUpdate)
	mux.Handle(domain.MessageTypeLobbyStatus, s.handleNoop)
	mux.Handle(domain.MessageTypeMicStatusUpdate, s.handleMicStatusUpdate)
	mux.Handle(domain.MessageTypeCohostPromoted, s.handleCohostPromoted)
	mux.Handle(domain.MessageTypeCohostDemoted, s.handleCohostDemoted)

	// sync
	mux.Handle(domain.MessageTypeSignal, s.handleSignal)
	mux.Handle(domain.MessageTypeVideoSync, s.handleSync)
	mux.Handle(domain.MessageTypeMusicSync, s.handleSync)
	mux.Handle(domain.MessageTypeRequestVideoState, s.handleRequestVideoState)

	// chat
	mux.Handle(domain.MessageTypeChat, s.handleChat)
	mux.Handle(domain.MessageTypeSystem, s.handleSystem)
	mux.Handle(domain.MessageTypeChatCleared, s.handleChatCleared)

	// lifecycle
	mux.Handle(domain.MessageTypeRoomStateUpdate, s.handleNoop)
	mux.Handle(domain.MessageTypeRoomEnding, s.handleRoomEnding)

	return mux
}

// Start launches the periodic re-sync loop. An authoritative participant
// re-announces its full state every ResyncInterval so late or desynced
// viewers converge without asking.
func (s *Session) Start(ctx context.Context) {
	if s.cfg.ResyncInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(s.cfg.ResyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.resyncStop:
				return
			case <-ticker.C:
				if !s.IsAuthoritative() {
					continue
				}
				playlist := s.store.Playlist()
				s.arbiter.Propagate(s.buildSyncMessage(domain.SyncTypeVideo, &playlist), false)
				s.arbiter.Propagate(s.buildSyncMessage(domain.SyncTypeMusic, nil), false)
			}
		}
	}()
}

// Close tears the session down: pending timers are cancelled, every peer
// connection is destroyed and the local media track is released.
func (s *Session) Close() {
	s.stopOnce.Do(func() {
		close(s.resyncStop)
		s.router.Stop()
		s.arbiter.Stop()
		s.mesh.Shutdown()
		s.media.Release()

		s.mu.Lock()
		s.micOn = false
		s.mu.Unlock()
	})
}

// HandleSocketDown reacts to the relay losing its connection: without the
// signaling side-channel the mesh cannot be maintained, so every link is
// destroyed. The roster push after reconnect rebuilds it.
func (s *Session) HandleSocketDown() {
	s.mesh.Shutdown()
}

// HandleSocketUp re-requests the authoritative state after a reconnect.
func (s *Session) HandleSocketUp() {
	if err := s.relay.Send(domain.RequestVideoStateMessage{
		Type:     domain.MessageTypeRequestVideoState,
		Identity: s.identity,
	}); err != nil {
		s.logger.Debug("engine.Session.HandleSocketUp", "error", err)
	}
}

// HandleMeshData routes a payload delivered over a mesh data channel. The
// mesh carries the same wire records as the socket.
func (s *Session) HandleMeshData(peerID string, b []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		s.logger.Debug("engine.Session.HandleMeshData", "peer", peerID, "error", err)
		return
	}

	switch env.Type {
	case domain.MessageTypeVideoSync, domain.MessageTypeMusicSync:
		var msg domain.SyncMessage
		if err := json.Unmarshal(b, &msg); err != nil {
			s.logger.Debug("engine.Session.HandleMeshData", "peer", peerID, "error", err)
			return
		}
		if _, ok := s.validate.Validate(msg); !ok {
			return
		}
		s.router.HandleSync(msg, domain.TransportWebRTC)
	case domain.MessageTypeChat:
		var msg domain.ChatMessage
		if err := json.Unmarshal(b, &msg); err != nil {
			return
		}
		s.chat.Add(msg)
	default:
		s.logger.Debug("engine.Session.HandleMeshData", "peer", peerID, "drop", env.Type)
	}
}

func (s *Session) Identity() string {
	return s.identity
}

func (s *Session) Role() domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.role
}

func (s *Session) IsAuthoritative() bool {
	return s.Role().IsAuthoritative()
}

func (s *Session) IsMicOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.micOn
}

func (s *Session) Roster() []domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	participants := maps.Values(s.roster)
	slices.SortFunc(participants, func(a, b domain.Participant) int {
		return cmpString(a.Identity, b.Identity)
	})

	return participants
}

func (s *Session) ChatMessages() []domain.ChatMessage {
	return s.chat.Messages()
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
