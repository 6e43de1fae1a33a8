package ports

import (
	"context"

	"reviewflow/internal/domain/review"
)

type ReviewTaskUpsert struct {
	InstallationID int64
	Owner          string
	Repo           string
	PRNumber       int
	BaseSHA        string
	HeadSHA        string
	Action         string
	EventType      string
	Status         string
	Metadata       map[string]any
}

type TaskLogCreate struct {
	TaskID    *uint64
	EventType string
	Action    *string
	Status    *string
	Payload   map[string]any
}

// ReviewTaskRepository holds the idempotent write operations of the ingestion path.
// Every method must be safe under concurrent identical calls.
type ReviewTaskRepository interface {
	// UpsertInstallation inserts the mapping if absent and never overwrites it.
	UpsertInstallation(ctx context.Context, installationID int64, owner string, repo string) error
	// UpsertReviewTask inserts or updates the task keyed by
	// (installation, owner, repo, pr number, head sha) and returns its stable id.
	UpsertReviewTask(ctx context.Context, input ReviewTaskUpsert) (uint64, error)
	InsertTaskLog(ctx context.Context, input TaskLogCreate) error
}

type ReviewReadRepository interface {
	ListTaskLogs(ctx context.Context, limit int) ([]review.TaskLogEntry, error)
	ListRecentReviews(ctx context.Context, limit int) ([]review.ReviewResult, error)
}

type ReviewRepository interface {
	ReviewTaskRepository
	ReviewReadRepository
}
