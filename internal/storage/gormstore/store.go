// Package gormstore persists tasks through GORM over SQLite or PostgreSQL.
package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tasks/internal/config"
	"tasks/internal/models"
	"tasks/internal/storage/migrations"
)

// Store wraps access to the database and exposes the task operations.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the configured database, runs the migrations and returns
// a ready Store.
func Open(cfg config.DatabaseConfig, logger *zap.Logger, gormLog gormlogger.Interface) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gormLog == nil {
		gormLog = gormlogger.Discard
	}

	var (
		conn      *sql.DB
		dialector gorm.Dialector
		err       error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		conn, err = openSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		dialector = sqlite.New(sqlite.Config{DriverName: "sqlite3", Conn: conn})
	case config.DriverPostgres:
		conn, err = openPostgres(cfg)
		if err != nil {
			return nil, err
		}
		dialector = postgres.New(postgres.Config{DriverName: "postgres", Conn: conn})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	migrator, err := migrations.New(conn, cfg.Driver, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	err = migrator.Up()
	if closeErr := migrator.Close(); closeErr != nil {
		logger.Warn("failed to release migration connection", zap.Error(closeErr))
	}
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLog,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	logger.Info("database ready", zap.String("driver", cfg.Driver))
	return New(db, logger), nil
}

// New wraps an existing GORM handle whose schema is already in place.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty database path")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite serializes writers; one connection also keeps :memory: alive.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)
	return conn, nil
}

func openPostgres(cfg config.DatabaseConfig) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Close releases the database resources.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// ListTasks returns every task in insertion order.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	tasks := []models.Task{}
	if err := s.db.WithContext(ctx).Order("id").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// CreateTask validates content and inserts a new, not yet done task.
func (s *Store) CreateTask(ctx context.Context, content string) (models.Task, error) {
	if err := models.ValidateContent(content); err != nil {
		return models.Task{}, err
	}

	task := models.Task{Content: content}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// UpdateTask sets the done flag of an existing task.
func (s *Store) UpdateTask(ctx context.Context, id int64, done bool) (models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&task).Update("done", done).Error; err != nil {
			return err
		}
		task.Done = done
		return nil
	})
	if err != nil {
		return models.Task{}, translate("update task", err)
	}
	return task, nil
}

// DeleteTask removes a task and returns the row as it was before deletion.
func (s *Store) DeleteTask(ctx context.Context, id int64) (models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, id).Error; err != nil {
			return err
		}
		return tx.Delete(&task).Error
	})
	if err != nil {
		return models.Task{}, translate("delete task", err)
	}
	return task, nil
}

func translate(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
