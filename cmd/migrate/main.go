// Command migrate manages the intent workflow database schema. It is run
// out of band from the server, typically as a release step before new
// instances roll out.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvernon0786/Infin8Content-sub005/internal/config"
	"github.com/dvernon0786/Infin8Content-sub005/internal/database"
	"github.com/dvernon0786/Infin8Content-sub005/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	up := flag.Bool("up", false, "Apply all pending migrations")
	down := flag.Bool("down", false, "Roll back every migration")
	steps := flag.Int("steps", 0, "Move N migrations forward, or backward when negative")
	version := flag.Bool("version", false, "Print the current schema version")
	force := flag.Int("force", -1, "Stamp the schema at version V to clear a dirty state")
	migrationsPath := flag.String("path", "", "Migrations directory, overriding the configured path")
	flag.Parse()

	// Exactly one action per invocation.
	actionCount := 0
	if *up {
		actionCount++
	}
	if *down {
		actionCount++
	}
	if *steps != 0 {
		actionCount++
	}
	if *version {
		actionCount++
	}
	if *force >= 0 {
		actionCount++
	}

	if actionCount == 0 {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nSpecify one of: -up, -down, -steps N, -version, -force V")
		return fmt.Errorf("no action specified")
	}

	if actionCount > 1 {
		return fmt.Errorf("specify only one action at a time")
	}

	// Database settings come from the same INTENTFLOW_* environment the
	// server reads.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "migrate").Logger()

	migrationDir := cfg.Database.MigrationPath
	if *migrationsPath != "" {
		migrationDir = *migrationsPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migrationDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	switch {
	case *up:
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case *down:
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	case *steps != 0:
		if err := migrator.Steps(*steps); err != nil {
			return fmt.Errorf("migrate steps: %w", err)
		}
	case *force >= 0:
		if err := migrator.Force(*force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
	}

	reportVersion(migrator, logger)
	return nil
}

func reportVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine schema version")
		return
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Msg("current schema version")
}
