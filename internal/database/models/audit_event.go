package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditEvent struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	ActorID    string    `gorm:"size:64;index" json:"actor_id"`
	Action     string    `gorm:"not null;index" json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `gorm:"size:64" json:"target_id"`
	Detail     string    `gorm:"type:text" json:"detail,omitempty"` // JSON
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}

func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
