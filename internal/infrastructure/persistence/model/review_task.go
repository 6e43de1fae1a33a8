package model

import (
	"time"

	"gorm.io/datatypes"
)

type ReviewTask struct {
	ID             uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	InstallationID int64          `gorm:"column:installation_id;not null;uniqueIndex:review_tasks_unique_key,priority:1"`
	Owner          string         `gorm:"column:owner;type:text;not null;uniqueIndex:review_tasks_unique_key,priority:2"`
	Repo           string         `gorm:"column:repo;type:text;not null;uniqueIndex:review_tasks_unique_key,priority:3"`
	PRNumber       int            `gorm:"column:pr_number;not null;uniqueIndex:review_tasks_unique_key,priority:4"`
	BaseSHA        string         `gorm:"column:base_sha;type:text"`
	HeadSHA        string         `gorm:"column:head_sha;type:text;not null;uniqueIndex:review_tasks_unique_key,priority:5"`
	Action         string         `gorm:"column:action;type:text;not null"`
	EventType      string         `gorm:"column:event_type;type:text;not null"`
	Status         string         `gorm:"column:status;type:text;not null;default:queued"`
	QueuedAt       time.Time      `gorm:"column:queued_at;not null"`
	Metadata       datatypes.JSON `gorm:"column:metadata"`
}

func (ReviewTask) TableName() string {
	return "review_tasks"
}
