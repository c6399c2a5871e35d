package models

import (
	"time"

	"gorm.io/gorm"
)

// Activity is one outbox entry: the immutable record of an executed command.
//
// ReaderID is the outbox the activity belongs to and always equals ActorID.
// Object and Target are JSON snapshots taken right after the command ran, so
// deleting the subject later never rewrites history.
type Activity struct {
	ID        ActivityID `gorm:"type:uuid;primary_key" json:"id"`
	Type      string     `gorm:"not null" json:"type"`
	Name      string     `gorm:"not null" json:"name"`
	ActorID   ReaderID   `gorm:"type:uuid;not null" json:"actorId"`
	ReaderID  ReaderID   `gorm:"type:uuid;not null;index:idx_activities_reader_published" json:"readerId"`
	Object    JSONMap    `gorm:"type:jsonb;not null" json:"object"`
	Target    JSONMap    `gorm:"type:jsonb" json:"target,omitempty"`
	Published time.Time  `gorm:"not null;index:idx_activities_reader_published" json:"published"`
}

// TableName returns the table name for the activity model
func (Activity) TableName() string {
	return "activities"
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID.IsZero() {
		a.ID = NewActivityID()
	}
	return nil
}
