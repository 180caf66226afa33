package report

import (
	"time"

	"github.com/google/uuid"
)

// ReportData is the single synthesized narrative report for a profile.
// It is keyed by profile id alone: at most one report per profile, enforced
// by key uniqueness rather than application logic. A new synthesis
// overwrites the previous report.
type ReportData struct {
	ProfileID   uuid.UUID `gorm:"column:profile_id;type:uuid;primaryKey" json:"profile_id"`
	GeneratedAt time.Time `gorm:"column:generated_at;autoCreateTime" json:"generated_at"`

	History   string `gorm:"column:history;type:text;not null" json:"history"`
	Summary   string `gorm:"column:summary;type:text;not null" json:"summary"`
	Prognosis string `gorm:"column:prognosis;type:text;not null" json:"prognosis"`
}

func (ReportData) TableName() string {
	return "reports"
}
