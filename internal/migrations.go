package internal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/dar/migrations"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies all pending migrations from the embedded FS.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.MigrationsFS)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("migration applied",
			"version", r.Source.Version,
			"path", r.Source.Path,
			"duration", r.Duration,
		)
	}

	return nil
}
