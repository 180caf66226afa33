package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinvault/clinvault/internal/domain/report"
	"github.com/clinvault/clinvault/internal/pipeline"
	"github.com/clinvault/clinvault/internal/storage"
)

type ReportService struct {
	store       *storage.Store
	synthesizer *pipeline.Synthesizer
	auditSvc    *AuditService
	log         *zap.Logger
}

func NewReportService(store *storage.Store, synthesizer *pipeline.Synthesizer, auditSvc *AuditService, log *zap.Logger) *ReportService {
	return &ReportService{
		store:       store,
		synthesizer: synthesizer,
		auditSvc:    auditSvc,
		log:         log,
	}
}

// Synthesize generates the narrative report from the profile's accumulated
// documents and persists it, overwriting any previous report. A synthesis
// failure propagates to the caller: a fabricated report would be worse than
// no report.
func (s *ReportService) Synthesize(ctx context.Context, profileID uuid.UUID, ip string) (*report.ReportData, error) {
	if _, err := s.store.Profiles.GetByID(ctx, profileID); err != nil {
		return nil, err
	}

	docs, err := s.store.Documents.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}

	rep, err := s.synthesizer.Synthesize(ctx, profileID, docs)
	if err != nil {
		s.log.Error("report synthesis failed",
			zap.String("profile_id", profileID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.store.Reports.Put(ctx, rep); err != nil {
		s.log.Error("failed to persist report", zap.Error(err))
		return nil, fmt.Errorf("storing report: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Action:       "create",
		ResourceType: "report",
		ResourceID:   profileID.String(),
		IPAddress:    ip,
	})

	s.log.Info("report synthesized", zap.String("profile_id", profileID.String()))
	return rep, nil
}

func (s *ReportService) Get(ctx context.Context, profileID uuid.UUID) (*report.ReportData, error) {
	return s.store.Reports.GetByProfile(ctx, profileID)
}
