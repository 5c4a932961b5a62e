package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"safeguard-bot/internal/config"
	"safeguard-bot/internal/storage/migrations"
	pgstore "safeguard-bot/internal/storage/postgres"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the embedded PostgreSQL migrations, and the ClickHouse migrations
when CLICKHOUSE_DSN is set. Migrations are idempotent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.migrate(cmd.Context())
		},
	}
}

func (a *app) migrate(ctx context.Context) error {
	if a.cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}

	pool, err := pgstore.NewPool(ctx, a.cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		return err
	}
	a.logger.Info().Strs("files", applied).Msg("postgres migrations applied")

	if a.cfg.ClickHouseDSN != "" || a.cfg.AggregateBackend == config.AggregateClickHouse {
		conn, err := migrations.RunClickhouseMigrations(ctx, a.cfg.ClickHouseDSN)
		if err != nil {
			return err
		}
		conn.Close()
		a.logger.Info().Msg("clickhouse migrations applied")
	}
	return nil
}
