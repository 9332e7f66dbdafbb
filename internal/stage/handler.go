package stage

import (
	"context"

	"bobbin/internal/store"
)

// Handler describes the contract the pipeline manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *store.Item) error
	Execute(context.Context, *store.Item) error
	HealthCheck(context.Context) Health
}
