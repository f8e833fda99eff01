package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema to a Postgres database.
type Migrator struct {
	dsn    string
	logger *zerolog.Logger
}

func NewMigrator(dsn string, logger *zerolog.Logger) (*Migrator, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Migrator{dsn: pgxURL(dsn), logger: logger}, nil
}

// Up runs all available migrations.
func (m *Migrator) Up() error {
	inst, closeFn, err := m.instance()
	defer closeFn()
	if err != nil {
		return err
	}

	err = inst.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	m.logger.Info().Msg("migrations applied")
	return nil
}

// Down reverts all migrations.
func (m *Migrator) Down() error {
	inst, closeFn, err := m.instance()
	defer closeFn()
	if err != nil {
		return err
	}

	err = inst.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not revert migrations: %w", err)
	}

	m.logger.Info().Msg("migrations reverted")
	return nil
}

func (m *Migrator) instance() (*migrate.Migrate, func(), error) {
	closeFn := func() {}

	src, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return nil, closeFn, fmt.Errorf("could not create fs: %w", err)
	}

	inst, err := migrate.NewWithSourceInstance("iofs", src, m.dsn)
	if err != nil {
		_ = src.Close()
		return nil, closeFn, fmt.Errorf("could not create migration instance: %w", err)
	}
	closeFn = func() {
		srcErr, dbErr := inst.Close()
		if srcErr != nil || dbErr != nil {
			m.logger.Error().AnErr("source", srcErr).AnErr("database", dbErr).Msg("could not close migrator")
		}
	}
	return inst, closeFn, nil
}

// pgxURL rewrites postgres:// DSNs to the scheme the pgx migrate driver registers.
func pgxURL(dsn string) string {
	for _, p := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, p) {
			return "pgx://" + strings.TrimPrefix(dsn, p)
		}
	}
	return dsn
}
