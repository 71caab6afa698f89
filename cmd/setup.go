package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/cloudnote/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes the config template when the file is missing, then opens the history database and applies
// pending migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.writePlain("✓ Created %s\n", configPath)
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	var version int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Info("database ready", "path", r.config.Database.Path, "schema_version", version)
	return r.writePlain("✓ Database ready at %s (schema version %d)\n", r.config.Database.Path, version)
}

// SetupNetease stores the NetEase login cookie from a browser "Copy as cURL" command in the config file.
//
// Listening history of accounts that hide it is only readable with the owner's cookie.
func (r *Runner) SetupNetease(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	r.logger.Info("parsing cURL command for the NetEase cookie")

	var capture *shared.CurlCapture
	var err error

	if curlFile != "" {
		capture, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		capture, err = shared.ParseCurlCommand([]byte(curlCmd))
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	if capture.Cookie == "" {
		return fmt.Errorf("%w: no cookie found in cURL command", shared.ErrInvalidInput)
	}

	r.logger.Debug("captured cookie", "length", len(capture.Cookie), "headers", len(capture.Headers))

	r.config.Netease.Cookie = capture.Cookie
	if err := r.saveConfig(); err != nil {
		return err
	}
	r.configure(r.config, r.notion, nil)

	r.writePlain("✓ NetEase cookie saved to %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Run 'cloudnote import --uid <uid> --dry-run' to check the history is readable\n")
	return r.writePlain("2. Run 'cloudnote import --uid <uid>' to import it into Notion\n")
}
