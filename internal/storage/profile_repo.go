package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clinvault/clinvault/internal/domain/profile"
)

type profileRepo struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) profile.Repository {
	return &profileRepo{db: db}
}

func (r *profileRepo) Put(ctx context.Context, p *profile.Profile) error {
	// Insert-or-replace by key: an existing row is fully overwritten, no
	// field merging.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(p).Error
}

func (r *profileRepo) GetByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	var p profile.Profile
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, profile.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepo) List(ctx context.Context) ([]*profile.Profile, error) {
	var out []*profile.Profile
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *profileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	// Idempotent: deleting an absent key is a no-op, not an error.
	return r.db.WithContext(ctx).Delete(&profile.Profile{}, "id = ?", id).Error
}
