// Package sink persists finalized read events. Sinks are best-effort: a
// failed write is logged and reported but never rolls back or re-queues the
// event, and never blocks the observation producer.
package sink

import (
	"context"

	"lpr-pipeline/internal/domain/plate"
)

// Sink consumes finalized read events.
type Sink interface {
	Persist(ctx context.Context, ev *plate.ReadEvent) error
}
