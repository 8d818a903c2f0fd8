package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"negotiate/api/internal/app"
	"negotiate/api/internal/config"
	"negotiate/api/internal/logger"
	"negotiate/api/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "api",
	Short:         "submission registry API",
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: `api serve
api migrate
api seed topics`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "seed reference data",
	}
	seedCmd.AddCommand(seedTopicsCmd())

	rootCmd.AddCommand(serveCmd(), migrateCmd(), seedCmd)
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}

func migrateCmd() *cobra.Command {
	var status bool
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log, err := logger.New(cfg.LogMode)
			if err != nil {
				return err
			}
			defer log.Sync()

			if status {
				db, err := store.Open(cmd.Context(), cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("database connection failed: %w", err)
				}
				defer db.Close()
				pending, err := store.PendingMigrations(cmd.Context(), db, cfg.MigrationsDir)
				if err != nil {
					return err
				}
				for _, migration := range pending {
					fmt.Fprintln(cmd.OutOrStdout(), migration.Version)
				}
				log.Info("pending migrations", "count", len(pending))
				return nil
			}

			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			log.Info("migrations applied", "dir", cfg.MigrationsDir)
			return nil
		},
	}
	command.Flags().BoolVar(&status, "status", false, "list pending migrations without applying them")
	return command
}

func seedTopicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "Upsert the topic taxonomy into the topics table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log, err := logger.New(cfg.LogMode)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			service := app.New(cfg, store.NewPostgresStore(db), nil, app.Options{Logger: log})
			count, err := service.SeedTopics(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("topics seeded", "count", count)
			return nil
		},
	}
}

// openDatabase connects and brings the schema up to date.
func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return db, nil
}
