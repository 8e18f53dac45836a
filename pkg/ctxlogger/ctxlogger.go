package ctxlogger

import (
	"context"
	"log/slog"
)

type ctxKey int

const slogAttrsKey ctxKey = iota

// AppendCtx returns a context carrying the given attr, to be emitted by
// ContextHandler with every record logged under that context.
func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	if attrs, ok := parent.Value(slogAttrsKey).([]slog.Attr); ok {
		attrs = append(attrs[:len(attrs):len(attrs)], attr)
		return context.WithValue(parent, slogAttrsKey, attrs)
	}

	return context.WithValue(parent, slogAttrsKey, []slog.Attr{attr})
}

// ContextHandler wraps a slog.Handler and adds attrs stored in the context
// via AppendCtx to every record.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(slogAttrsKey).([]slog.Attr); ok {
		for _, attr := range attrs {
			r.AddAttrs(attr)
		}
	}

	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}
