package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reviewflow/internal/domain/review"
	"reviewflow/internal/errs"
	"reviewflow/internal/infrastructure/persistence/model"
	"reviewflow/internal/ports"
)

var taskKeyColumns = []clause.Column{
	{Name: "installation_id"},
	{Name: "owner"},
	{Name: "repo"},
	{Name: "pr_number"},
	{Name: "head_sha"},
}

var taskMutableColumns = []string{
	"base_sha",
	"action",
	"event_type",
	"status",
	"queued_at",
	"metadata",
}

type ReviewRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.ReviewRepository = (*ReviewRepository)(nil)

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *ReviewRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *ReviewRepository) UpsertInstallation(ctx context.Context, installationID int64, owner string, repo string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Installation{
		InstallationID: installationID,
		Owner:          owner,
		Repo:           repo,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return errs.Wrapf(err, "upsert installation %d", installationID)
	}
	return nil
}

func (r *ReviewRepository) UpsertReviewTask(ctx context.Context, input ports.ReviewTaskUpsert) (uint64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	metadata, err := encodeJSON(input.Metadata)
	if err != nil {
		return 0, errs.Wrap(err, "encode task metadata")
	}

	row := model.ReviewTask{
		InstallationID: input.InstallationID,
		Owner:          input.Owner,
		Repo:           input.Repo,
		PRNumber:       input.PRNumber,
		BaseSHA:        input.BaseSHA,
		HeadSHA:        input.HeadSHA,
		Action:         input.Action,
		EventType:      input.EventType,
		Status:         input.Status,
		QueuedAt:       r.now(),
		Metadata:       metadata,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   taskKeyColumns,
		DoUpdates: clause.AssignmentColumns(taskMutableColumns),
	}).Create(&row).Error; err != nil {
		return 0, errs.Wrap(err, "upsert review task")
	}

	// The id gorm reports after an ON CONFLICT update is dialect dependent,
	// so read it back by key inside the same transaction.
	var stored model.ReviewTask
	if err := db.
		Select("id").
		Where(
			"installation_id = ? AND owner = ? AND repo = ? AND pr_number = ? AND head_sha = ?",
			input.InstallationID, input.Owner, input.Repo, input.PRNumber, input.HeadSHA,
		).
		Take(&stored).Error; err != nil {
		return 0, errs.Wrap(err, "resolve review task id")
	}
	return stored.ID, nil
}

func (r *ReviewRepository) InsertTaskLog(ctx context.Context, input ports.TaskLogCreate) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	payload, err := encodeJSON(input.Payload)
	if err != nil {
		return errs.Wrap(err, "encode task log payload")
	}

	row := model.ReviewTaskLog{
		TaskID:    input.TaskID,
		EventType: input.EventType,
		Action:    input.Action,
		Status:    input.Status,
		Payload:   payload,
		CreatedAt: r.now(),
	}
	if err := db.Omit("Task").Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert task log")
	}
	return nil
}

func (r *ReviewRepository) ListTaskLogs(ctx context.Context, limit int) ([]review.TaskLogEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ReviewTaskLog
	if err := db.
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query task logs")
	}

	items := make([]review.TaskLogEntry, 0, len(rows))
	for _, row := range rows {
		payload, err := decodeJSON(row.Payload)
		if err != nil {
			return nil, errs.Wrapf(err, "decode payload of task log %d", row.ID)
		}
		items = append(items, review.TaskLogEntry{
			ID:        row.ID,
			TaskID:    row.TaskID,
			EventType: row.EventType,
			Action:    row.Action,
			Status:    row.Status,
			Payload:   payload,
			CreatedAt: row.CreatedAt,
		})
	}
	return items, nil
}

func (r *ReviewRepository) ListRecentReviews(ctx context.Context, limit int) ([]review.ReviewResult, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ReviewResult
	if err := db.
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query review results")
	}

	items := make([]review.ReviewResult, 0, len(rows))
	for _, row := range rows {
		result, err := decodeJSON(row.Result)
		if err != nil {
			return nil, errs.Wrapf(err, "decode review result %d", row.ID)
		}
		items = append(items, review.ReviewResult{
			ID:        row.ID,
			TaskID:    row.TaskID,
			Owner:     row.Owner,
			Repo:      row.Repo,
			PRNumber:  row.PRNumber,
			HeadSHA:   row.HeadSHA,
			Phase:     row.Phase,
			Result:    result,
			CreatedAt: row.CreatedAt,
		})
	}
	return items, nil
}

func encodeJSON(value map[string]any) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodeJSON(raw datatypes.JSON) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
