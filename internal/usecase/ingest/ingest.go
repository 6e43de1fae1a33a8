package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"reviewflow/internal/bootstrap/logging"
	"reviewflow/internal/domain/review"
	"reviewflow/internal/errs"
	"reviewflow/internal/ports"
)

// Ingest runs one delivery through verify, classify, persist and publish.
//
// Errors match one of review.ErrAuthentication, review.ErrValidation,
// review.ErrPersistence or review.ErrPublish. Nothing is written unless the
// delivery verifies and classifies as an accepted pull_request event, and
// nothing is published unless the write committed.
func (s *Service) Ingest(ctx context.Context, delivery Delivery) (Outcome, error) {
	if ctx == nil {
		return Outcome{}, errors.New("context is required")
	}

	eventType := strings.TrimSpace(delivery.EventType)
	logCtx := logging.WithAttrs(
		ctx,
		slog.String("component", "usecase.ingest"),
		slog.String("delivery_id", delivery.DeliveryID),
		slog.String("event", eventType),
	)

	if !VerifySignature(delivery.Body, delivery.Signature, s.secret) {
		logging.Warn(logCtx, "webhook signature rejected")
		return Outcome{}, review.ErrAuthentication
	}

	if eventType == "" {
		return Outcome{}, review.ErrMissingEventHeader
	}

	classification, err := Normalize(eventType, delivery.Body)
	if err != nil {
		logging.Warn(logCtx, "webhook payload rejected", slog.Any("err", errs.Loggable(err)))
		return Outcome{}, err
	}

	switch classification.Disposition {
	case DispositionPing:
		logging.Info(logCtx, "webhook ping received", slog.Int64("hook_id", classification.HookID))
		return Outcome{Status: OutcomePong}, nil
	case DispositionIgnored:
		logging.Debug(logCtx, "webhook ignored", slog.String("reason", classification.Reason))
		return Outcome{Status: OutcomeIgnored, Reason: classification.Reason}, nil
	}

	event := classification.Event
	event.DeliveryID = delivery.DeliveryID
	logCtx = logging.WithAttrs(
		logCtx,
		slog.String("repository", event.Owner+"/"+event.Repo),
		slog.Int("pr", event.PRNumber),
		slog.String("head_sha", event.HeadSHA),
		slog.String("action", string(event.Action)),
	)

	taskID, err := s.persist(ctx, event)
	if err != nil {
		err = errs.Mark(errs.WithStack(err), review.ErrPersistence)
		logging.Error(logCtx, "persist review task failed", slog.Any("err", errs.Loggable(err)))
		return Outcome{}, err
	}

	if !event.Actionable() {
		logging.Info(logCtx, "review task closed", slog.Uint64("task_id", taskID))
		return Outcome{Status: OutcomeClosed, TaskID: taskID}, nil
	}

	item := review.NewWorkItem(taskID, event)
	if err := s.publisher.Publish(ctx, item); err != nil {
		err = errs.Mark(errs.Wrapf(err, "publish task %d", taskID), review.ErrPublish)
		logging.Error(logCtx, "publish work item failed", slog.Uint64("task_id", taskID), slog.Any("err", errs.Loggable(err)))
		return Outcome{TaskID: taskID}, err
	}

	logging.Info(logCtx, "review task queued", slog.Uint64("task_id", taskID))
	return Outcome{Status: OutcomeQueued, TaskID: taskID, Job: &item}, nil
}

// persist writes the installation, the task and one audit row atomically.
func (s *Service) persist(ctx context.Context, event review.PullRequestEvent) (uint64, error) {
	var taskID uint64

	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpsertInstallation(txCtx, event.InstallationID, event.Owner, event.Repo); err != nil {
			return err
		}

		id, err := s.repo.UpsertReviewTask(txCtx, ports.ReviewTaskUpsert{
			InstallationID: event.InstallationID,
			Owner:          event.Owner,
			Repo:           event.Repo,
			PRNumber:       event.PRNumber,
			BaseSHA:        event.BaseSHA,
			HeadSHA:        event.HeadSHA,
			Action:         string(event.Action),
			EventType:      event.EventType,
			Status:         string(event.Status),
			Metadata:       taskMetadata(event),
		})
		if err != nil {
			return err
		}

		action := string(event.Action)
		status := string(event.Status)
		if err := s.repo.InsertTaskLog(txCtx, ports.TaskLogCreate{
			TaskID:    &id,
			EventType: event.EventType,
			Action:    &action,
			Status:    &status,
			Payload:   logPayload(event),
		}); err != nil {
			return err
		}

		taskID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return taskID, nil
}

func taskMetadata(event review.PullRequestEvent) map[string]any {
	out := map[string]any{}
	if event.DeliveryID != "" {
		out["deliveryId"] = event.DeliveryID
	}
	if event.Sender != "" {
		out["sender"] = event.Sender
	}
	return out
}

func logPayload(event review.PullRequestEvent) map[string]any {
	out := taskMetadata(event)
	out["owner"] = event.Owner
	out["repo"] = event.Repo
	out["prNumber"] = event.PRNumber
	out["baseSha"] = event.BaseSHA
	out["headSha"] = event.HeadSHA
	return out
}
