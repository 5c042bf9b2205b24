package inspector

import (
	"context"
	"log/slog"
	"time"

	"github.com/dhis2-sre/update-manager/internal/log"
	"github.com/google/uuid"
)

func NewInspector(logger *slog.Logger, interval time.Duration, handlers ...Handler) *inspector {
	names := make([]string, 0, len(handlers))
	for _, h := range handlers {
		names = append(names, h.Name())
	}
	logger.Info("Handlers loaded", "count", slog.IntValue(len(handlers)), "handlers", names)

	return &inspector{
		logger:   logger,
		interval: interval,
		handlers: handlers,
	}
}

type inspector struct {
	logger   *slog.Logger
	interval time.Duration
	handlers []Handler
}

// Inspect runs the handlers every interval until ctx is done.
func (i inspector) Inspect(ctx context.Context) error {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			i.logger.Info("Inspector stopped")
			return nil
		case <-ticker.C:
			i.InspectOnce(ctx)
		}
	}
}

// InspectOnce runs every handler once. A failing handler doesn't keep the others from running.
func (i inspector) InspectOnce(ctx context.Context) {
	i.logger.DebugContext(ctx, "Starting inspection...")
	for _, h := range i.handlers {
		ctx := log.WithJob(ctx, h.Name(), uuid.NewString())
		start := time.Now()
		err := h.Handle(ctx)
		if err != nil {
			i.logger.ErrorContext(ctx, "Failed to run handler", "handler", h.Name(), "error", err)
			continue
		}
		i.logger.DebugContext(ctx, "Handler completed", "handler", h.Name(), "duration", time.Since(start))
	}
	i.logger.DebugContext(ctx, "Inspection ended")
}
