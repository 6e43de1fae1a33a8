package model

import (
	"time"

	"gorm.io/datatypes"
)

// ReviewTaskLog is append-only; rows are never updated.
type ReviewTaskLog struct {
	ID        uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	TaskID    *uint64        `gorm:"column:task_id;index"`
	Task      *ReviewTask    `gorm:"foreignKey:TaskID;references:ID"`
	EventType string         `gorm:"column:event_type;type:text;not null"`
	Action    *string        `gorm:"column:action;type:text"`
	Status    *string        `gorm:"column:status;type:text"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;autoCreateTime;index"`
}

func (ReviewTaskLog) TableName() string {
	return "review_task_logs"
}
