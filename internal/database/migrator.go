package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Migrator applies the SQL migrations under migrations/ to the workflow
// database. It borrows connections from the pgx pool rather than opening
// its own, so Close must be called to return them.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB
	logger  zerolog.Logger
}

// NewMigrator builds a Migrator over an open pool and a directory of
// migration files.
func NewMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if db.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if migrationsPath == "" {
		return nil, fmt.Errorf("migrations path is required")
	}

	// Catch a bad path before touching the database.
	if _, err := os.Stat(migrationsPath); err != nil {
		return nil, fmt.Errorf("migrations path %q: %w", migrationsPath, err)
	}

	// golang-migrate speaks database/sql, so wrap the pool.
	sqlDB := stdlib.OpenDBFromPool(db.pool)

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		return nil, fmt.Errorf("build migrator: %w", err)
	}

	return &Migrator{
		migrate: m,
		sqlDB:   sqlDB,
		logger:  logger,
	}, nil
}

// Up applies every pending migration. An already-current schema is not an
// error.
func (m *Migrator) Up() error {
	m.logger.Info().Msg("applying schema migrations")

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("schema already current")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	m.logger.Info().Msg("schema migrations applied")
	return nil
}

// Down rolls the schema all the way back.
func (m *Migrator) Down() error {
	m.logger.Warn().Msg("rolling back all schema migrations")

	if err := m.migrate.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("nothing to roll back")
			return nil
		}
		return fmt.Errorf("roll back migrations: %w", err)
	}

	m.logger.Info().Msg("schema rolled back")
	return nil
}

// Steps moves the schema n migrations forward, or backward when n is
// negative.
func (m *Migrator) Steps(n int) error {
	m.logger.Info().Int("steps", n).Msg("stepping schema migrations")

	if err := m.migrate.Steps(n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("schema already current")
			return nil
		}
		// Stepping past the newest migration surfaces as a missing file.
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Info().Msg("no further migrations")
			return nil
		}
		return fmt.Errorf("step migrations: %w", err)
	}

	m.logger.Info().Int("steps", n).Msg("schema migration steps applied")
	return nil
}

// Version reports the current schema version and whether it is dirty.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Force stamps the schema at the given version without running anything,
// for recovering from a dirty state after a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing schema version")
	return m.migrate.Force(version)
}

// Close releases the migration source and returns the borrowed connections
// to the pool.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()

	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}

	if sourceErr != nil && dbErr != nil {
		return fmt.Errorf("close migrator: source error: %v, database error: %w", sourceErr, dbErr)
	}
	if sourceErr != nil {
		return fmt.Errorf("close migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migration database handle: %w", dbErr)
	}
	return nil
}

// DropAll destroys every object in the database. Test databases only.
func (m *Migrator) DropAll() error {
	m.logger.Warn().Msg("dropping all database objects")
	return m.migrate.Drop()
}
