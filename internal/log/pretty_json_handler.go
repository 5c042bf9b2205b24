package log

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"sync"
)

// NewPrettyJSONHandler returns a handler writing indented JSON. It is meant for local development,
// use [slog.JSONHandler] anywhere logs are shipped.
func NewPrettyJSONHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	return &prettyHandler{
		opts:   opts,
		writer: w,
		mu:     &sync.Mutex{},
	}
}

type prettyHandler struct {
	opts   *slog.HandlerOptions
	writer io.Writer
	mu     *sync.Mutex
	// derive replays WithAttrs and WithGroup calls on the per record JSON handler
	derive []func(slog.Handler) slog.Handler
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *prettyHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf bytes.Buffer
	var handler slog.Handler = slog.NewJSONHandler(&buf, h.opts)
	for _, derive := range h.derive {
		handler = derive(handler)
	}
	if err := handler.Handle(ctx, r); err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, bytes.TrimSpace(buf.Bytes()), "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(pretty.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(handler slog.Handler) slog.Handler {
		return handler.WithAttrs(attrs)
	})
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	return h.with(func(handler slog.Handler) slog.Handler {
		return handler.WithGroup(name)
	})
}

func (h *prettyHandler) with(derive func(slog.Handler) slog.Handler) *prettyHandler {
	return &prettyHandler{
		opts:   h.opts,
		writer: h.writer,
		mu:     h.mu,
		derive: append(slices.Clip(h.derive), derive),
	}
}
