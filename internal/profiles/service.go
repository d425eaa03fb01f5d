package profiles

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/internal/entity"
	"github.com/joseph-ayodele/docintel/internal/repository"
)

// Service handles profile business logic.
type Service struct {
	profileRepo repository.ProfileRepository
	logger      *slog.Logger
}

// NewService creates a new profile service.
func NewService(profileRepo repository.ProfileRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		profileRepo: profileRepo,
		logger:      logger,
	}
}

type SeedResult struct {
	Created int
	Skipped int
}

// Seed inserts every catalogue entry that does not exist yet. Existing
// versions are left untouched; publish a new version to change a profile.
func (s *Service) Seed(ctx context.Context, c Catalog) (SeedResult, error) {
	var res SeedResult
	for _, d := range c.Profiles {
		p, err := d.Entity()
		if err != nil {
			return res, err
		}
		created, err := s.profileRepo.Create(ctx, p)
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
			s.logger.Debug("profile version exists, skipped", "tenant_id", p.TenantID, "profile", p.Label())
		}
	}
	s.logger.Info("profiles seeded", "created", res.Created, "skipped", res.Skipped)
	return res, nil
}

// ListProfiles returns a tenant's profiles, newest version first per key.
func (s *Service) ListProfiles(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]*entity.DocumentProfile, error) {
	plist, err := s.profileRepo.List(ctx, tenantID, activeOnly)
	if err != nil {
		// DB error already logged in repository layer
		return nil, err
	}
	s.logger.Debug("profiles listed", "tenant_id", tenantID, "count", len(plist))
	return plist, nil
}

// Deactivate retires a profile version. Completed jobs keep their results;
// pending jobs bound to it fail when processed.
func (s *Service) Deactivate(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.profileRepo.Deactivate(ctx, tenantID, id); err != nil {
		return err
	}
	s.logger.Info("profile deactivated", "tenant_id", tenantID, "profile_id", id)
	return nil
}
