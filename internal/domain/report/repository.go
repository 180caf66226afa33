package report

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Put inserts or overwrites the report for a profile.
	Put(ctx context.Context, r *ReportData) error

	// GetByProfile retrieves a profile's report. Returns ErrReportNotFound if absent.
	GetByProfile(ctx context.Context, profileID uuid.UUID) (*ReportData, error)

	// Delete removes a profile's report. Deleting an absent key is a no-op.
	Delete(ctx context.Context, profileID uuid.UUID) error
}
