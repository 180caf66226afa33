package profile

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Put inserts or fully replaces a profile by primary key. No field merging.
	Put(ctx context.Context, p *Profile) error

	// GetByID retrieves a profile by primary key. Returns ErrProfileNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)

	// List returns all profiles ordered by creation time.
	List(ctx context.Context) ([]*Profile, error)

	// Delete removes a profile by key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, id uuid.UUID) error
}
