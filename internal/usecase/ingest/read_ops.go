package ingest

import (
	"context"
	"errors"

	"reviewflow/internal/domain/review"
	"reviewflow/internal/errs"
)

// ListTaskLogs returns the newest audit rows first. limit is clamped with
// ClampLimit against DefaultLogsLimit.
func (s *Service) ListTaskLogs(ctx context.Context, limit int) ([]review.TaskLogEntry, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logs, err := s.repo.ListTaskLogs(ctx, ClampLimit(limit, DefaultLogsLimit))
	if err != nil {
		return nil, errs.Wrap(err, "list task logs")
	}
	return logs, nil
}

// ListRecentReviews returns the newest reviewer results first.
func (s *Service) ListRecentReviews(ctx context.Context, limit int) ([]review.ReviewResult, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	reviews, err := s.repo.ListRecentReviews(ctx, ClampLimit(limit, DefaultReviewsLimit))
	if err != nil {
		return nil, errs.Wrap(err, "list review results")
	}
	return reviews, nil
}
