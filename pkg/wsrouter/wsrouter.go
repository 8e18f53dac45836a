package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrUnknownMessageType = errors.New("unknown message type")

// Frames on the room socket carry their discriminator at the top level,
// alongside the payload fields.
type envelope struct {
	Type string `json:"type"`
}

type HandlerFunc func(ctx context.Context, raw json.RawMessage) error

type WSRouter struct {
	routes map[string]HandlerFunc
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc)}
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// Dispatch routes a raw frame to the handler registered for its type. The
// full frame is handed to the handler, since payload fields sit next to the
// type tag on this wire.
func (r *WSRouter) Dispatch(ctx context.Context, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}

	handler, exists := r.routes[env.Type]
	if !exists {
		return ErrUnknownMessageType
	}

	return handler(ctx, raw)
}
