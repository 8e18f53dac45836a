package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("room socket is not connected")

type Config struct {
	// URL is the relay base, e.g. wss://relay.example.com.
	URL            string
	RoomID         string
	Identity       string
	AvatarURL      string
	ReconnectDelay time.Duration
}

type iDispatcher interface {
	Dispatch(ctx context.Context, raw []byte) error
}

// Relay is the thin envelope layer over the room websocket: signaling,
// roster, sync and chat all share this one connection. On unclean close it
// redials once after a fixed delay, unless the session left deliberately.
type Relay struct {
	cfg        *Config
	logger     *slog.Logger
	dispatcher iDispatcher
	onUp       func()
	onDown     func()

	connID  string
	leaving atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn
}

type RelayParams struct {
	Config     *Config
	Logger     *slog.Logger
	Dispatcher iDispatcher
	// OnUp fires after every successful dial, the initial one included;
	// this is where the session re-requests the authoritative state.
	OnUp func()
	// OnDown fires whenever the connection is lost, before any redial.
	OnDown func()
}

func NewRelay(params *RelayParams) *Relay {
	onUp := params.OnUp
	if onUp == nil {
		onUp = func() {}
	}
	onDown := params.OnDown
	if onDown == nil {
		onDown = func() {}
	}

	return &Relay{
		cfg:        params.Config,
		logger:     params.Logger,
		dispatcher: params.Dispatcher,
		onUp:       onUp,
		onDown:     onDown,
		connID:     uuid.NewString(),
	}
}

// Run dials the room socket and pumps inbound frames into the dispatcher
// until the context is cancelled, Close is called, or a reconnect fails.
func (r *Relay) Run(ctx context.Context) error {
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.endpoint(), nil)
		if err != nil {
			return fmt.Errorf("failed to dial room socket: %w", err)
		}

		r.mu.Lock()
		r.conn = conn
		r.mu.Unlock()

		r.logger.Info("room socket connected", "room", r.cfg.RoomID)
		r.onUp()

		readErr := r.readLoop(ctx, conn)

		r.mu.Lock()
		r.conn = nil
		r.mu.Unlock()
		r.onDown()

		if r.leaving.Load() || ctx.Err() != nil {
			return nil
		}

		r.logger.Info("room socket lost, reconnecting", "room", r.cfg.RoomID, "error", readErr)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.cfg.ReconnectDelay):
		}
	}
}

// Send writes one JSON frame. Not connected is an error the caller decides
// about; sync senders treat it as a silent gap for the mesh to cover.
func (r *Relay) Send(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return ErrNotConnected
	}

	if err := r.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	return nil
}

// Close marks the leave as deliberate, which turns every reconnect path
// into a no-op, and shuts the socket down cleanly.
func (r *Relay) Close() {
	r.leaving.Store(true)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return
	}

	deadline := time.Now().Add(time.Second)
	r.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	r.conn.Close()
	r.conn = nil
}

func (r *Relay) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		// malformed or unknown frames are dropped, never fatal
		if err := r.dispatcher.Dispatch(ctx, raw); err != nil {
			r.logger.Debug("relay.Relay.readLoop", "drop", string(raw), "error", err)
		}
	}
}

func (r *Relay) endpoint() string {
	base := strings.TrimRight(r.cfg.URL, "/")

	return fmt.Sprintf("%s/ws/chat/%s/%s?imageUrl=%s&cid=%s",
		base,
		r.cfg.RoomID,
		url.PathEscape(r.cfg.Identity),
		url.QueryEscape(r.cfg.AvatarURL),
		r.connID,
	)
}
