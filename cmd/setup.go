package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tuneblend/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultDatabasePath = "tuneblend.db"

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	r.writePlain("%s %s\n", r.palette.OK("✓ Wrote"), path)
	r.writePlain("Set credentials.spotify.client_id and client_secret, or export SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET.\n")
	return nil
}

// SetupDatabase initializes the job ledger and runs migrations.
//
// A missing config file is created from the template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if r.config == nil {
		if _, err := os.Stat(configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			}
		}
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if path := cmd.String("path"); path != "" {
		config.Database.Path = path
	}
	if config.Database.Path == "" {
		config.Database.Path = defaultDatabasePath
		r.logger.Warn("database.path is not set, using default; set it to enable the job ledger", "path", defaultDatabasePath)
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, _, err := openJobs(config)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("%s %s\n", r.palette.OK("✓ Database ready at"), config.Database.Path)
	return nil
}
