package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"mileage/config"
	"mileage/db/pg"
	"mileage/logger"
	_ "mileage/migration"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "migrate the database schema",
		Long:  `This command migrates the postgres schema with goose.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			up, _ := cmd.Flags().GetBool("up")
			down, _ := cmd.Flags().GetBool("down")
			if down {
				up = false
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
			if err := goose.SetDialect("postgres"); err != nil {
				return fmt.Errorf("failed to set goose dialect: %w", err)
			}

			db, err := sql.Open("postgres", pg.CreateDSN(cfg.DatabaseURL))
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			ctx := cmd.Context()
			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			defer pingCancel()
			if err := db.PingContext(pingCtx); err != nil {
				return fmt.Errorf("failed to ping database: %w", err)
			}
			if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+config.AppName); err != nil {
				return fmt.Errorf("failed to create schema %s: %w", config.AppName, err)
			}

			// migrations are registered in Go, the directory only names them
			migrationsDir := "migration"
			switch {
			case up:
				log.Info("running up migrations")
				if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
					return fmt.Errorf("goose up failed: %w", err)
				}
			case down:
				log.Info("rolling back the last migration")
				if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
					return fmt.Errorf("goose down failed: %w", err)
				}
			}
			return goose.StatusContext(ctx, db, migrationsDir)
		},
	}

	cmd.Flags().BoolP("up", "u", true, "migrate to the latest version")
	cmd.Flags().BoolP("down", "d", false, "roll back one version")

	return cmd
}
