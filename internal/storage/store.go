// Package storage implements the entity store over gorm: keyed repositories
// for profiles, documents, and reports, plus the cascading delete
// operations that keep the three collections referentially consistent.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinvault/clinvault/internal/domain/document"
	"github.com/clinvault/clinvault/internal/domain/profile"
	"github.com/clinvault/clinvault/internal/domain/report"
	"github.com/clinvault/clinvault/pkg/metrics"
)

type Store struct {
	db      *gorm.DB
	metrics *metrics.Collector

	Profiles  profile.Repository
	Documents document.Repository
	Reports   report.Repository
}

func New(db *gorm.DB, m *metrics.Collector) *Store {
	return &Store{
		db:        db,
		metrics:   m,
		Profiles:  NewProfileRepository(db),
		Documents: NewDocumentRepository(db),
		Reports:   NewReportRepository(db),
	}
}

// DeleteProfileCompletely removes every document owned by the profile, its
// report if present, then the profile itself, in one transaction: readers
// never observe a partial cascade. Idempotent.
func (s *Store) DeleteProfileCompletely(ctx context.Context, profileID uuid.UUID) error {
	return s.observed("delete_profile", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := clearHistory(tx, profileID); err != nil {
				return err
			}
			return tx.Delete(&profile.Profile{}, "id = ?", profileID).Error
		})
	})
}

// ClearPatientHistory removes the profile's documents and report but keeps
// the identity record: a "reset" of clinical history. Idempotent.
func (s *Store) ClearPatientHistory(ctx context.Context, profileID uuid.UUID) error {
	return s.observed("clear_history", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return clearHistory(tx, profileID)
		})
	})
}

func clearHistory(tx *gorm.DB, profileID uuid.UUID) error {
	if err := tx.Where("profile_id = ?", profileID).Delete(&document.ProcessedDocument{}).Error; err != nil {
		return err
	}
	return tx.Where("profile_id = ?", profileID).Delete(&report.ReportData{}).Error
}

func (s *Store) observed(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	if s.metrics != nil {
		s.metrics.StoreTxDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
	return err
}
