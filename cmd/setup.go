package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/vkm/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes the config file when missing, then initializes the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(cmd.String("log-level")))

	configPath := cmd.String("config")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("✓ Config written to %s\n", configPath)
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return err
	}
	r.config = config
	r.configPath = configPath

	r.logger.Info("initializing database", "path", config.Database.Path)
	if err := r.openStore(); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Database ready at %s\n", config.Database.Path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.login in %s (or export %s)\n", configPath, shared.EnvLogin)
	r.writePlain("2. Run 'vkm auth login' to cache an access token\n")
	return nil
}
