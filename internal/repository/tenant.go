package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joseph-ayodele/docintel/constants"
	"github.com/joseph-ayodele/docintel/internal/common"
)

// Querier is the part of a pgx transaction repositories use.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner opens transactions; *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

const setTenantSQL = "SELECT set_config($1, $2, true)"

// TenantScope runs work inside a transaction whose tenant setting is bound
// to one tenant. The setting is transaction-local so it is discarded with the
// transaction and never reaches the next user of the pooled connection.
type TenantScope struct {
	db  TxBeginner
	log *slog.Logger
}

func NewTenantScope(db TxBeginner, logger *slog.Logger) *TenantScope {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantScope{db: db, log: logger}
}

// Run begins a transaction, binds tenantID, calls fn and commits. Any error or
// panic rolls back. When the tenant cannot be bound fn is never called and
// the error carries TENANT_CONTEXT_NOT_SET.
func (s *TenantScope) Run(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, q Querier) error) (err error) {
	if tenantID == uuid.Nil {
		return common.NewAppError(common.CodeTenantContextNotSet, "tenant id is required", common.ErrTenantContext)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		s.log.Error("begin transaction failed", "tenant_id", tenantID, "error", err)
		return common.NewAppError(common.CodePersistenceFailed, "begin transaction", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Warn("rollback failed", "tenant_id", tenantID, "error", rbErr)
		}
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err := bindTenant(ctx, tx, tenantID); err != nil {
		s.log.Error("tenant context not set", "tenant_id", tenantID, "error", err)
		return common.NewAppError(common.CodeTenantContextNotSet, "bind tenant", errors.Join(common.ErrTenantContext, err))
	}

	if err := fn(ctx, tx); err != nil {
		return common.AsPersistence(err, "tenant transaction")
	}

	if err := tx.Commit(ctx); err != nil {
		s.log.Error("commit failed", "tenant_id", tenantID, "error", err)
		return common.NewAppError(common.CodePersistenceFailed, "commit", err)
	}
	committed = true
	return nil
}

func bindTenant(ctx context.Context, q Querier, tenantID uuid.UUID) error {
	want := tenantID.String()
	var got string
	if err := q.QueryRow(ctx, setTenantSQL, constants.TenantSettingKey, want).Scan(&got); err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("tenant setting is %q, want %q", got, want)
	}
	return nil
}
