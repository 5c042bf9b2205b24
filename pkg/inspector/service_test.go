package inspector

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInspectOnce(t *testing.T) {
	failing := &countingHandler{name: "failing", err: errors.New("boom")}
	succeeding := &countingHandler{name: "succeeding"}

	inspector := NewInspector(slog.Default(), time.Minute, failing, succeeding)
	inspector.InspectOnce(context.TODO())

	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, succeeding.calls)
}

func TestInspectStopsWithContext(t *testing.T) {
	handler := &countingHandler{name: "counting"}
	inspector := NewInspector(slog.Default(), time.Hour, handler)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := inspector.Inspect(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 0, handler.calls)
}

type countingHandler struct {
	name  string
	err   error
	calls int
}

func (c *countingHandler) Name() string { return c.name }

func (c *countingHandler) Handle(context.Context) error {
	c.calls++
	return c.err
}
