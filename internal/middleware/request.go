package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestLoggerKeyCorrelationID is the log attribute key of the correlation ID.
	RequestLoggerKeyCorrelationID = "correlationId"
	// RequestLoggerKeyUser is the log attribute key of the authenticated user.
	RequestLoggerKeyUser = "user"
	// CorrelationIDHeader is echoed back so clients can refer to a request when reporting issues.
	CorrelationIDHeader = "X-Correlation-ID"
)

type ctxKey int

var correlationIDKey ctxKey

// CorrelationID is a Gin middleware that adds a correlation ID to the [http.Request.Context]. A
// valid UUID sent by the client in the [CorrelationIDHeader] is reused, otherwise one is generated.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if err := uuid.Validate(id); err != nil {
			id = uuid.NewString()
		}

		ctx := NewContextWithCorrelationID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(CorrelationIDHeader, id)

		c.Next()
	}
}

// NewContextWithCorrelationID returns a new [context.Context] that carries value correlationID.
func NewContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// GetCorrelationID returns the correlation ID stored in the ctx, if any. It had to have been set by
// the [CorrelationID] middleware or [NewContextWithCorrelationID] before.
func GetCorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationIDKey).(string)
	return id, ok
}

// RequestLogger logs method, route, status, latency and errors of every request. Client errors are
// logged as warnings and server errors as errors.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		params := make(map[string]string, len(c.Params))
		for _, param := range c.Params {
			params[param.Key] = param.Value
		}
		requestAttribute := slog.Group("request",
			slog.Time("time", start),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("route", c.FullPath()),
			slog.String("query", c.Request.URL.RawQuery),
			slog.Any("params", params),
			slog.Int64("contentLength", c.Request.ContentLength),
			slog.String("userAgent", c.Request.UserAgent()),
			slog.String("ip", c.ClientIP()),
		)
		responseAttribute := slog.Group("response",
			slog.Duration("latency", latency),
			slog.Int("status", status),
			slog.Int("size", c.Writer.Size()),
		)

		attrs := []slog.Attr{requestAttribute, responseAttribute}
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		}

		// use the request context as authentication replaces it with one carrying the user
		logger.LogAttrs(c.Request.Context(), level, "Processed HTTP request", attrs...)
	}
}
