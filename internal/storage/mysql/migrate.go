package mysql

import (
	"embed"
	"errors"
	"fmt"

	driver "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Schema applies the embedded table definitions.
type Schema struct{ url string }

func NewSchema(dsn string) (*Schema, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse MYSQL_DSN: %w", err)
	}
	cfg.MultiStatements = true
	return &Schema{url: "mysql://" + cfg.FormatDSN()}, nil
}

// Up creates any missing table. Calling it on an up-to-date schema is a no-op.
func (s *Schema) Up() error {
	return s.run(func(m *migrate.Migrate) error { return m.Up() })
}

// Reset drops every table, staging history included, and recreates them.
func (s *Schema) Reset() error {
	return s.run(func(m *migrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("drop tables: %w", err)
		}
		return m.Up()
	})
}

func (s *Schema) run(fn func(m *migrate.Migrate) error) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, s.url)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	log.Debug().Uint("version", version).Bool("dirty", dirty).Msg("schema ready")
	return nil
}
