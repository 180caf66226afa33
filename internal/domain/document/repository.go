package document

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Put inserts or fully replaces a document by its composite key.
	Put(ctx context.Context, d *ProcessedDocument) error

	// PutAll persists a batch of documents atomically.
	PutAll(ctx context.Context, docs []*ProcessedDocument) error

	// Get retrieves one document. Returns ErrDocumentNotFound if absent.
	Get(ctx context.Context, profileID, id uuid.UUID) (*ProcessedDocument, error)

	// ListByProfile returns all documents owned by a profile, newest first.
	// Reads are indexed on profile_id, proportional to that profile's records.
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*ProcessedDocument, error)

	// Delete removes one document. Deleting an absent key is a no-op.
	Delete(ctx context.Context, profileID, id uuid.UUID) error
}
