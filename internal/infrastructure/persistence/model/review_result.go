package model

import (
	"time"

	"gorm.io/datatypes"
)

// ReviewResult rows are produced by the reviewer worker, one per task phase.
type ReviewResult struct {
	ID        uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	TaskID    *uint64        `gorm:"column:task_id;index"`
	Task      *ReviewTask    `gorm:"foreignKey:TaskID;references:ID"`
	Owner     string         `gorm:"column:owner;type:text;not null;uniqueIndex:review_results_unique_key,priority:1"`
	Repo      string         `gorm:"column:repo;type:text;not null;uniqueIndex:review_results_unique_key,priority:2"`
	PRNumber  int            `gorm:"column:pr_number;not null;uniqueIndex:review_results_unique_key,priority:3"`
	HeadSHA   string         `gorm:"column:head_sha;type:text;not null;uniqueIndex:review_results_unique_key,priority:4"`
	Phase     string         `gorm:"column:phase;type:text;not null;uniqueIndex:review_results_unique_key,priority:5"`
	Result    datatypes.JSON `gorm:"column:result;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;autoCreateTime;index"`
}

func (ReviewResult) TableName() string {
	return "review_results"
}
