package model

import "time"

// Installation binds a GitHub App installation to the repository it was first seen with.
type Installation struct {
	InstallationID int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	Owner          string    `gorm:"column:owner;type:text;not null"`
	Repo           string    `gorm:"column:repo;type:text;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

func (Installation) TableName() string {
	return "installations"
}
