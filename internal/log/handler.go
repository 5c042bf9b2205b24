// Package log provides the slog handlers and the logger used throughout the update manager.
package log

import (
	"context"
	"log/slog"

	"github.com/dhis2-sre/update-manager/internal/middleware"
	"github.com/dhis2-sre/update-manager/pkg/model"
)

// KeyJob is the log attribute key of the background job a record was logged by.
const KeyJob = "job"

type jobKey struct{}

type job struct {
	name  string
	runID string
}

// WithJob returns a copy of ctx carrying the background job name and the id of its current run.
// Records logged with the returned context are attributed to the job.
func WithJob(ctx context.Context, name, runID string) context.Context {
	return context.WithValue(ctx, jobKey{}, job{name: name, runID: runID})
}

// ContextHandler adds values from the [context.Context] to the [slog.Record]. It uses the same
// attribute keys as the Gin [middleware.RequestLogger] so records of the middleware and of the
// context aware logger methods can be correlated. Background jobs like the rollout executor run
// without a request so every key is optional.
type ContextHandler struct {
	slog.Handler
}

func New(handler slog.Handler) *ContextHandler {
	return &ContextHandler{
		Handler: handler,
	}
}

func (rh *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := middleware.GetCorrelationID(ctx); ok {
		r.AddAttrs(slog.String(middleware.RequestLoggerKeyCorrelationID, id))
	}

	if j, ok := ctx.Value(jobKey{}).(job); ok {
		r.AddAttrs(slog.Group(KeyJob, slog.String("name", j.name), slog.String("runId", j.runID)))
	}

	// the health routes are not authenticated
	if user, ok := model.GetUserFromContext(ctx); ok {
		r.AddAttrs(slog.Any(middleware.RequestLoggerKeyUser, user))
	}

	return rh.Handler.Handle(ctx, r)
}

func (rh *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return New(rh.Handler.WithAttrs(attrs))
}

func (rh *ContextHandler) WithGroup(name string) slog.Handler {
	return New(rh.Handler.WithGroup(name))
}
