package document

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeLab          Type = "LAB"
	TypeImaging      Type = "IMAGING"
	TypePrescription Type = "PRESCRIPTION"
	TypeNote         Type = "NOTE"
	TypeOther        Type = "OTHER"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeLab, TypeImaging, TypePrescription, TypeNote, TypeOther:
		return true
	}
	return false
}

// ParseType maps a free-form type string from the inference service onto the
// fixed enumeration, falling back to OTHER.
func ParseType(s string) Type {
	t := Type(s)
	if t.IsValid() {
		return t
	}
	return TypeOther
}

// ProcessedDocument is one normalized clinical record derived from one input
// file. Documents are keyed by the composite (profile_id, id): per-patient
// records stay independently addressable while sharing one table.
type ProcessedDocument struct {
	ProfileID uuid.UUID `gorm:"column:profile_id;type:uuid;primaryKey;index" json:"profile_id"`
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// DocumentDate is the standardized clinical date; nil when the service
	// could not determine one.
	DocumentDate *time.Time `gorm:"column:document_date;index" json:"document_date"`

	Type        Type   `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Summary     string `gorm:"column:summary;type:text;not null" json:"summary"`
	IsDuplicate bool   `gorm:"column:is_duplicate;not null;default:false" json:"is_duplicate"`

	// Retained source file. Preview URLs are derived from these bytes on
	// every load; they are process-local and never persisted.
	SourceName string `gorm:"column:source_name;type:varchar(255)" json:"source_name"`
	SourceMime string `gorm:"column:source_mime;type:varchar(100)" json:"source_mime"`
	SourceData []byte `gorm:"column:source_data" json:"-"`
}

func (ProcessedDocument) TableName() string {
	return "documents"
}

// DateLayout is the wire format for standardized clinical dates.
const DateLayout = "2006-01-02"

func (d *ProcessedDocument) FormattedDate() string {
	if d.DocumentDate == nil {
		return "Undated"
	}
	return d.DocumentDate.Format(DateLayout)
}
