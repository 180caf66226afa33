package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinvault/clinvault/internal/domain/profile"
	"github.com/clinvault/clinvault/internal/storage"
)

type ProfileService struct {
	store    *storage.Store
	auditSvc *AuditService
	log      *zap.Logger
}

func NewProfileService(store *storage.Store, auditSvc *AuditService, log *zap.Logger) *ProfileService {
	return &ProfileService{
		store:    store,
		auditSvc: auditSvc,
		log:      log,
	}
}

func (s *ProfileService) Register(ctx context.Context, cmd *profile.RegisterProfileCommand, ip string) (*profile.Profile, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	p := &profile.Profile{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(cmd.Name),
		DateOfBirth: cmd.DateOfBirth,
		Gender:      cmd.Gender,
	}

	if err := s.store.Profiles.Put(ctx, p); err != nil {
		s.log.Error("failed to create profile", zap.Error(err))
		return nil, fmt.Errorf("creating profile: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Action:       "create",
		ResourceType: "profile",
		ResourceID:   p.ID.String(),
		IPAddress:    ip,
	})

	s.log.Info("profile registered", zap.String("profile_id", p.ID.String()))
	return p, nil
}

func (s *ProfileService) Get(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	return s.store.Profiles.GetByID(ctx, id)
}

func (s *ProfileService) List(ctx context.Context) ([]*profile.Profile, error) {
	return s.store.Profiles.List(ctx)
}

// Delete removes the profile and everything it owns: documents, report,
// then the identity record. Idempotent.
func (s *ProfileService) Delete(ctx context.Context, id uuid.UUID, ip string) error {
	if err := s.store.DeleteProfileCompletely(ctx, id); err != nil {
		s.log.Error("failed to delete profile",
			zap.String("profile_id", id.String()),
			zap.Error(err),
		)
		return fmt.Errorf("deleting profile: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Action:       "delete",
		ResourceType: "profile",
		ResourceID:   id.String(),
		IPAddress:    ip,
	})

	s.log.Info("profile deleted with cascade", zap.String("profile_id", id.String()))
	return nil
}
