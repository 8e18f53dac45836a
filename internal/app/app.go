package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/watchalong/syncengine/internal/backend"
	"github.com/watchalong/syncengine/internal/controller"
	"github.com/watchalong/syncengine/internal/engine"
	"github.com/watchalong/syncengine/internal/media"
	"github.com/watchalong/syncengine/internal/mesh"
	"github.com/watchalong/syncengine/internal/relay"
	"github.com/watchalong/syncengine/internal/store"
	"github.com/watchalong/syncengine/pkg/ctxlogger"
	"github.com/watchalong/syncengine/pkg/mediameta"
	"github.com/watchalong/syncengine/pkg/wsrouter"
)

type AppConfig struct {
	BackendURL string `json:"backend_url"`
	RelayURL   string `json:"relay_url"`
	RoomID     string `json:"room_id"`
	Email      string `json:"-"`
	Identity   string `json:"identity"`
	AvatarURL  string `json:"avatar_url"`

	ControlHost string `json:"control_host"`
	ControlPort int    `json:"control_port"`
	LogLevel    string `json:"log_level"`

	STUNURLs []string `json:"stun_urls"`

	DeferDelayMs        int `json:"defer_delay_ms"`
	BackupDelayMs       int `json:"backup_delay_ms"`
	BackupPeerThreshold int `json:"backup_peer_threshold"`
	ResyncIntervalSec   int `json:"resync_interval_sec"`
	ReconnectDelayMs    int `json:"reconnect_delay_ms"`
}

const defaultReconnectDelay = 2 * time.Second

func (cfg *AppConfig) reconnectDelay() time.Duration {
	if cfg.ReconnectDelayMs > 0 {
		return time.Duration(cfg.ReconnectDelayMs) * time.Millisecond
	}
	return defaultReconnectDelay
}

func (cfg *AppConfig) Validate() error {
	if cfg.BackendURL == "" {
		return fmt.Errorf("backend url must be set")
	}
	if cfg.RelayURL == "" {
		return fmt.Errorf("relay url must be set")
	}
	if cfg.RoomID == "" {
		return fmt.Errorf("room id must be set")
	}
	if cfg.Identity == "" {
		return fmt.Errorf("identity must be set")
	}
	return nil
}

func (cfg *AppConfig) engineConfig() *engine.Config {
	ec := engine.DefaultConfig()
	if cfg.DeferDelayMs > 0 {
		ec.DeferDelay = time.Duration(cfg.DeferDelayMs) * time.Millisecond
	}
	if cfg.BackupDelayMs > 0 {
		ec.BackupDelay = time.Duration(cfg.BackupDelayMs) * time.Millisecond
	}
	if cfg.BackupPeerThreshold > 0 {
		ec.BackupPeerThreshold = cfg.BackupPeerThreshold
	}
	if cfg.ResyncIntervalSec > 0 {
		ec.ResyncInterval = time.Duration(cfg.ResyncIntervalSec) * time.Second
	}
	return ec
}

// relayDispatcher defers dispatch to a routing table that does not exist
// yet when the relay is constructed.
type relayDispatcher struct {
	routes *wsrouter.WSRouter
}

func (d *relayDispatcher) Dispatch(ctx context.Context, raw []byte) error {
	return d.routes.Dispatch(ctx, raw)
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	backendClient := backend.NewClient(&backend.Config{
		BaseURL: cfg.BackendURL,
		Email:   cfg.Email,
	}, logger)

	joined, err := backendClient.JoinRoom(ctx, cfg.RoomID)
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	engineCfg := cfg.engineConfig()
	playbackStore := store.NewStore()
	router := engine.NewRouter(playbackStore, engineCfg.DeferDelay, logger)

	dispatcher := &relayDispatcher{}
	var session *engine.Session
	roomRelay := relay.NewRelay(&relay.RelayParams{
		Config: &relay.Config{
			URL:            cfg.RelayURL,
			RoomID:         cfg.RoomID,
			Identity:       cfg.Identity,
			AvatarURL:      cfg.AvatarURL,
			ReconnectDelay: cfg.reconnectDelay(),
		},
		Logger:     logger,
		Dispatcher: dispatcher,
		OnUp:       func() { session.HandleSocketUp() },
		OnDown:     func() { session.HandleSocketDown() },
	})

	meshManager := mesh.NewManager(&mesh.ManagerParams{
		SelfID:   cfg.Identity,
		Logger:   logger,
		Signals:  engine.NewSignalRelay(roomRelay, cfg.Identity),
		STUNURLs: cfg.STUNURLs,
		OnData:   func(peerID string, b []byte) { session.HandleMeshData(peerID, b) },
	})

	arbiter := engine.NewArbiter(meshManager, roomRelay, engineCfg, logger)

	sessionCtx, sessionStop := context.WithCancel(ctx)
	defer sessionStop()

	session = engine.NewSession(&engine.SessionParams{
		Identity: cfg.Identity,
		Role:     joined.Role,
		Store:    playbackStore,
		Router:   router,
		Arbiter:  arbiter,
		Mesh:     meshManager,
		Relay:    roomRelay,
		Media:    media.NewStaticSource(),
		Meta:     mediameta.NewResolver(10 * time.Second),
		Config:   engineCfg,
		Logger:   logger,
		OnEnded: func(reason string) {
			logger.Info("room ended", "reason", reason)
			sessionStop()
		},
	})
	dispatcher.routes = session.Routes()

	session.Seed(&engine.SeedParams{
		Role:     joined.Role,
		Video:    joined.SyncStates.Video,
		Music:    joined.SyncStates.Music,
		Playlist: joined.Playlist,
		Chat:     joined.ChatMessages,
	})
	session.Start(sessionCtx)
	defer session.Close()

	relayErr := make(chan error, 1)
	go func() {
		relayErr <- roomRelay.Run(sessionCtx)
	}()

	ctrl := controller.NewController(session, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ControlHost, cfg.ControlPort),
		Handler: ctrl.Mux(),
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(sessionCtx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		select {
		case <-sig:
		case err := <-relayErr:
			if err != nil {
				logger.Error("relay stopped", "error", err)
			}
		case <-sessionCtx.Done():
		}

		roomRelay.Close()
		if err := backendClient.LeaveRoom(context.Background(), cfg.RoomID); err != nil {
			logger.Warn("failed to leave room", "error", err)
		}

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting control server", "address", server.Addr, "room_id", cfg.RoomID)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
