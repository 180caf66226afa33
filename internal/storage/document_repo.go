package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clinvault/clinvault/internal/domain/document"
)

type documentRepo struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) document.Repository {
	return &documentRepo{db: db}
}

var documentKey = []clause.Column{{Name: "profile_id"}, {Name: "id"}}

func (r *documentRepo) Put(ctx context.Context, d *document.ProcessedDocument) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: documentKey, UpdateAll: true}).
		Create(d).Error
}

func (r *documentRepo) PutAll(ctx context.Context, docs []*document.ProcessedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.
			Clauses(clause.OnConflict{Columns: documentKey, UpdateAll: true}).
			Create(docs).Error
	})
}

func (r *documentRepo) Get(ctx context.Context, profileID, id uuid.UUID) (*document.ProcessedDocument, error) {
	var d document.ProcessedDocument
	err := r.db.WithContext(ctx).
		First(&d, "profile_id = ? AND id = ?", profileID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, document.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepo) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*document.ProcessedDocument, error) {
	var out []*document.ProcessedDocument
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *documentRepo) Delete(ctx context.Context, profileID, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("profile_id = ? AND id = ?", profileID, id).
		Delete(&document.ProcessedDocument{}).Error
}
