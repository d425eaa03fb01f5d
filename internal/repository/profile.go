package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joseph-ayodele/docintel/internal/entity"
)

type ProfileRepository interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*entity.DocumentProfile, error)
	List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]*entity.DocumentProfile, error)
	// Create inserts p unless its (tenant, key, version) already exists; existing
	// versions are never overwritten. Reports whether a row was inserted.
	Create(ctx context.Context, p *entity.DocumentProfile) (bool, error)
	Deactivate(ctx context.Context, tenantID, id uuid.UUID) error
}

type profileRepository struct {
	scope  *TenantScope
	logger *slog.Logger
}

func NewProfileRepository(scope *TenantScope, logger *slog.Logger) ProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &profileRepository{scope: scope, logger: logger}
}

func (r *profileRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*entity.DocumentProfile, error) {
	b := builder()
	query, args := b.Select(profileColumns...).
		From(b.Table(tableProfiles)).
		Where(sql.And(sql.EQ("tenant_id", tenantID), sql.EQ("id", id))).
		Query()

	var p *entity.DocumentProfile
	err := r.scope.Run(ctx, tenantID, func(ctx context.Context, q Querier) error {
		var err error
		p, err = scanProfile(q.QueryRow(ctx, query, args...))
		return notFound("document profile", err)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *profileRepository) List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]*entity.DocumentProfile, error) {
	b := builder()
	pred := sql.EQ("tenant_id", tenantID)
	if activeOnly {
		pred = sql.And(pred, sql.EQ("is_active", true))
	}
	query, args := b.Select(profileColumns...).
		From(b.Table(tableProfiles)).
		Where(pred).
		OrderBy("profile_key", sql.Desc("profile_version")).
		Query()

	var out []*entity.DocumentProfile
	err := r.scope.Run(ctx, tenantID, func(ctx context.Context, q Querier) error {
		rows, err := q.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.DocumentProfile, error) {
			return scanProfile(row)
		})
		return err
	})
	if err != nil {
		r.logger.Error("failed to list profiles", "tenant_id", tenantID, "error", err)
		return nil, err
	}
	return out, nil
}

func (r *profileRepository) Create(ctx context.Context, p *entity.DocumentProfile) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	types, err := jsonArg(nonNil(p.ExpectedItemTypes))
	if err != nil {
		return false, err
	}
	flags, err := jsonArg(nonNil(p.FlagsEnabled))
	if err != nil {
		return false, err
	}
	thresholds, err := jsonArg(p.ConfidenceThresholds)
	if err != nil {
		return false, err
	}

	query, args := builder().Insert(tableProfiles).
		Columns(profileColumns...).
		Values(p.ID, p.TenantID, p.ProfileKey, p.ProfileVersion, types, flags, thresholds, p.IsActive, p.CreatedAt, p.UpdatedAt).
		OnConflict(
			sql.ConflictColumns("tenant_id", "profile_key", "profile_version"),
			sql.DoNothing(),
		).
		Query()

	var inserted bool
	err = r.scope.Run(ctx, p.TenantID, func(ctx context.Context, q Querier) error {
		tag, err := q.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		r.logger.Error("failed to create profile", "tenant_id", p.TenantID, "profile", p.Label(), "error", err)
		return false, err
	}
	if inserted {
		r.logger.Info("profile created", "tenant_id", p.TenantID, "profile", p.Label())
	}
	return inserted, nil
}

func (r *profileRepository) Deactivate(ctx context.Context, tenantID, id uuid.UUID) error {
	query, args := builder().Update(tableProfiles).
		Set("is_active", false).
		Set("updated_at", time.Now().UTC()).
		Where(sql.And(sql.EQ("tenant_id", tenantID), sql.EQ("id", id))).
		Query()

	return r.scope.Run(ctx, tenantID, func(ctx context.Context, q Querier) error {
		tag, err := q.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return notFound("document profile", pgx.ErrNoRows)
		}
		return nil
	})
}

func scanProfile(row pgx.Row) (*entity.DocumentProfile, error) {
	var (
		p                             entity.DocumentProfile
		types, flags, thresholdsBytes []byte
	)
	err := row.Scan(&p.ID, &p.TenantID, &p.ProfileKey, &p.ProfileVersion, &types,
		&flags, &thresholdsBytes, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(types, &p.ExpectedItemTypes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(flags, &p.FlagsEnabled); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(thresholdsBytes, &p.ConfidenceThresholds); err != nil {
		return nil, err
	}
	return &p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
