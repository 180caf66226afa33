package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinvault/clinvault/internal/domain/document"
	"github.com/clinvault/clinvault/internal/normalize"
	"github.com/clinvault/clinvault/internal/pipeline"
	"github.com/clinvault/clinvault/internal/storage"
)

type DocumentService struct {
	store    *storage.Store
	analyzer *pipeline.Analyzer
	auditSvc *AuditService
	log      *zap.Logger
}

func NewDocumentService(store *storage.Store, analyzer *pipeline.Analyzer, auditSvc *AuditService, log *zap.Logger) *DocumentService {
	return &DocumentService{
		store:    store,
		analyzer: analyzer,
		auditSvc: auditSvc,
		log:      log,
	}
}

// AnalyzeBatch runs the analysis pipeline over the uploaded files and
// persists the resulting records for the profile. Per-file and per-batch
// inference failures surface as degraded placeholder records, never as an
// error; a storage failure is propagated, no silent data loss.
func (s *DocumentService) AnalyzeBatch(ctx context.Context, profileID uuid.UUID, files []normalize.FileInput, onProgress pipeline.ProgressFunc) ([]*document.ProcessedDocument, error) {
	if _, err := s.store.Profiles.GetByID(ctx, profileID); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	results := s.analyzer.AnalyzeBatch(ctx, profileID, files, onProgress)
	docs := pipeline.Documents(results)

	if err := s.store.Documents.PutAll(ctx, docs); err != nil {
		s.log.Error("failed to persist analyzed documents",
			zap.String("profile_id", profileID.String()),
			zap.Int("count", len(docs)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("storing documents: %w", err)
	}

	degradedCount := 0
	for _, r := range results {
		if r.Degraded {
			degradedCount++
		}
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Action:       "create",
		ResourceType: "document_batch",
		ResourceID:   profileID.String(),
		Detail:       fmt.Sprintf("files=%d degraded=%d", len(docs), degradedCount),
	})

	s.log.Info("batch analyzed",
		zap.String("profile_id", profileID.String()),
		zap.Int("files", len(docs)),
		zap.Int("degraded", degradedCount),
	)

	return docs, nil
}

func (s *DocumentService) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*document.ProcessedDocument, error) {
	if _, err := s.store.Profiles.GetByID(ctx, profileID); err != nil {
		return nil, err
	}
	return s.store.Documents.ListByProfile(ctx, profileID)
}

// GetSource returns the document with its retained source bytes, from which
// the caller derives a transient preview. Preview references are never
// persisted; they are rebuilt from these bytes on every load.
func (s *DocumentService) GetSource(ctx context.Context, profileID, docID uuid.UUID) (*document.ProcessedDocument, error) {
	return s.store.Documents.Get(ctx, profileID, docID)
}

func (s *DocumentService) Delete(ctx context.Context, profileID, docID uuid.UUID, ip string) error {
	if err := s.store.Documents.Delete(ctx, profileID, docID); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Action:       "delete",
		ResourceType: "document",
		ResourceID:   docID.String(),
		IPAddress:    ip,
	})
	return nil
}

// ClearHistory wipes the profile's documents and report while keeping the
// identity record.
func (s *DocumentService) ClearHistory(ctx context.Context, profileID uuid.UUID, ip string) error {
	if _, err := s.store.Profiles.GetByID(ctx, profileID); err != nil {
		return err
	}
	if err := s.store.ClearPatientHistory(ctx, profileID); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Action:       "clear",
		ResourceType: "profile_history",
		ResourceID:   profileID.String(),
		IPAddress:    ip,
	})

	s.log.Info("patient history cleared", zap.String("profile_id", profileID.String()))
	return nil
}
