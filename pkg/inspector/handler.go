package inspector

import "context"

// Handler is a job run on every inspection.
type Handler interface {
	Name() string
	Handle(ctx context.Context) error
}
