package ports

import (
	"context"

	"reviewflow/internal/domain/review"
)

// JobPublisher appends a work item to the durable review queue.
// Implementations do not retry; a returned error means the item may not be queued.
type JobPublisher interface {
	Publish(ctx context.Context, item review.WorkItem) error
}
