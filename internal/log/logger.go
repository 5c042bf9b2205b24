package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	FormatJSON   = "json"
	FormatText   = "text"
	FormatPretty = "pretty"
)

// NewLogger creates a logger writing in given format ("json", "text" or "pretty") at given level.
// Records carry the correlation ID and user found in the context and credentials are redacted.
func NewLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %v", level, err)
	}

	opts := &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: newRedactAttr(),
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case FormatJSON, "":
		handler = slog.NewJSONHandler(w, opts)
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	case FormatPretty:
		handler = NewPrettyJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q, supported formats are %s, %s and %s", format, FormatJSON, FormatText, FormatPretty)
	}

	return slog.New(New(handler)), nil
}
