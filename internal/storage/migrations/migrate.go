// Package migrations applies the embedded schema migrations with
// golang-migrate.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	mpostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql
var files embed.FS

// Supported dialects, matching the sub-directories under sql/.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Migrator handles database migrations using golang-migrate
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
	// ownsConn is set when the driver checked out its own connection
	// from the pool, which Close hands back.
	ownsConn bool
}

// New builds a Migrator over an open pool. db stays owned by the caller.
// Call Close once done so a connection checked out for Postgres goes back
// to the pool.
func New(db *sql.DB, dialect string, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		driver   database.Driver
		conn     *sql.Conn
		ownsConn bool
		err      error
	)
	switch dialect {
	case SQLite:
		driver, err = msqlite.WithInstance(db, &msqlite.Config{})
	case Postgres:
		ctx := context.Background()
		conn, err = db.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire migration connection: %w", err)
		}
		ownsConn = true
		driver, err = mpostgres.WithConnection(ctx, conn, &mpostgres.Config{})
	default:
		return nil, fmt.Errorf("unsupported migration dialect %q", dialect)
	}
	if err != nil {
		closeConn(conn)
		return nil, fmt.Errorf("failed to create %s migration driver: %w", dialect, err)
	}

	src, err := iofs.New(files, "sql/"+dialect)
	if err != nil {
		closeConn(conn)
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect, driver)
	if err != nil {
		closeConn(conn)
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{migrate: m, logger: logger, ownsConn: ownsConn}, nil
}

func closeConn(conn *sql.Conn) {
	if conn != nil {
		_ = conn.Close()
	}
}

// Close returns the migration connection to the pool. For SQLite the
// driver works on the pool directly and closing it would close db, so
// nothing happens.
func (m *Migrator) Close() error {
	if !m.ownsConn {
		return nil
	}
	srcErr, dbErr := m.migrate.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		return fmt.Errorf("failed to close migrator: %w", err)
	}
	return nil
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	err := m.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Debug("No migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, dirty, err := m.migrate.Version()
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	m.logger.Info("Migrations completed",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Down rolls back all migrations
func (m *Migrator) Down() error {
	err := m.migrate.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Version returns the current schema version; zero when nothing is applied.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
