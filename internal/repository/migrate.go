package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"

	"entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"
)

const (
	tableMigrations = "schema_migrations"

	createMigrationsSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    text PRIMARY KEY,
    applied_at timestamptz NOT NULL DEFAULT now()
)`

	// arbitrary key shared by every migrator
	migrateLockSQL = "SELECT pg_advisory_xact_lock(715033)"
)

// Migrate applies every *.sql file in migrations, in name order, that is not
// yet recorded in schema_migrations. Each file runs in its own transaction.
func Migrate(ctx context.Context, db TxBeginner, migrations fs.FS, logger *slog.Logger) (int, error) {
	names, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return 0, err
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		body, err := fs.ReadFile(migrations, name)
		if err != nil {
			return applied, err
		}
		ran, err := applyMigration(ctx, db, path.Base(name), string(body))
		if err != nil {
			logger.Error("migration failed", "version", name, "error", err)
			return applied, fmt.Errorf("migration %s: %w", name, err)
		}
		if ran {
			applied++
			logger.Info("migration applied", "version", name)
		}
	}
	logger.Info("migrations up to date", "applied", applied, "total", len(names))
	return applied, nil
}

func applyMigration(ctx context.Context, db TxBeginner, version, body string) (bool, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if _, err := tx.Exec(ctx, migrateLockSQL); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, createMigrationsSQL); err != nil {
		return false, err
	}

	b := builder()
	query, args := b.Select("version").
		From(b.Table(tableMigrations)).
		Where(sql.EQ("version", version)).
		Query()
	var existing string
	err = tx.QueryRow(ctx, query, args...).Scan(&existing)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return false, err
	}

	if _, err := tx.Exec(ctx, body); err != nil {
		return false, err
	}
	insert, insertArgs := builder().Insert(tableMigrations).
		Columns("version").
		Values(version).
		Query()
	if _, err := tx.Exec(ctx, insert, insertArgs...); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
