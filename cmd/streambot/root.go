package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/edgard/streambot/internal/config"
	"github.com/edgard/streambot/internal/database"
	"github.com/edgard/streambot/internal/logger"
)

const defaultConfigPath = "./config.yaml"

// errExit reports a failure that has already been logged.
var errExit = errors.New("streambot exited with an error")

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "streambot",
		Short:         "Telegram group bot for media requests and night mode",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if run(cmd.Context(), configPath) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to configuration file")

	cmd.AddCommand(newMigrateCmd(&configPath))
	return cmd
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				slog.Error("Failed to load configuration", "path", *configPath, "error", err)
				return errExit
			}
			log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)

			// NewDB applies pending migrations before returning.
			db, err := database.NewDB(cfg.Database.Path)
			if err != nil {
				log.Error("Failed to migrate database", "path", cfg.Database.Path, "error", err)
				return fmt.Errorf("%w: %v", errExit, err)
			}
			database.CloseDB(db)

			log.Info("Database is up to date", "path", cfg.Database.Path)
			return nil
		},
	}
}
