package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clinvault/clinvault/internal/domain/report"
)

type reportRepo struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) report.Repository {
	return &reportRepo{db: db}
}

func (r *reportRepo) Put(ctx context.Context, rep *report.ReportData) error {
	// At most one report per profile: a new synthesis overwrites the old one
	// through the key, not through application logic.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile_id"}},
			UpdateAll: true,
		}).
		Create(rep).Error
}

func (r *reportRepo) GetByProfile(ctx context.Context, profileID uuid.UUID) (*report.ReportData, error) {
	var rep report.ReportData
	err := r.db.WithContext(ctx).First(&rep, "profile_id = ?", profileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, report.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *reportRepo) Delete(ctx context.Context, profileID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Delete(&report.ReportData{}).Error
}
