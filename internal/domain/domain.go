package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionRead   AuditAction = "read"
	ActionDelete AuditAction = "delete"
	ActionClear  AuditAction = "clear"
)

// AuditLog records who did what to which resource. Entries are append-only.
type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	Action       AuditAction `gorm:"column:action;type:varchar(30);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(100);not null"`
	IPAddress    string      `gorm:"column:ip_address;type:varchar(45)"`
	RequestID    string      `gorm:"column:request_id;type:varchar(100)"`
	Detail       string      `gorm:"column:detail;type:text"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
