package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"api_pos/internal/config"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrConflict is returned when SQLite rejects a write because another writer
// holds the database. Callers may retry.
var ErrConflict = errors.New("database write conflict")

// Store owns the SQLite handle for the lifetime of the process. All writes go
// through WithTx, which serializes them behind a single writer lock.
type Store struct {
	conn   *gorm.DB
	writer sync.Mutex
	logger *zap.Logger
}

// Open connects to the SQLite database described by cfg.
func Open(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	// Idle connections are kept forever so in-memory databases survive.
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("database connection established", zap.String("path", cfg.Path))
	return &Store{conn: conn, logger: logger}, nil
}

func buildDSN(cfg config.DBConfig) (string, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", fmt.Errorf("database path is required")
	}

	params := url.Values{}
	params.Set("_foreign_keys", "1")
	params.Set("_txlock", "immediate")
	if cfg.BusyTimeout > 0 {
		params.Set("_busy_timeout", fmt.Sprint(cfg.BusyTimeout.Milliseconds()))
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + params.Encode(), nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating database directory: %w", err)
		}
	}
	params.Set("_journal_mode", "WAL")
	return "file:" + path + "?" + params.Encode(), nil
}

// DB returns a handle bound to ctx for read-only queries.
func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.conn.WithContext(ctx)
}

// Migrate creates or updates the tables for the given models.
func (s *Store) Migrate(models ...any) error {
	if err := s.conn.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// WithTx executes fn inside a transaction while holding the writer lock. The
// transaction is committed when fn returns nil and rolled back otherwise,
// including when fn panics.
func (s *Store) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	s.writer.Lock()
	defer s.writer.Unlock()

	tx := s.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return classify(tx.Error, "begin transaction")
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && !errors.Is(rbErr, gorm.ErrInvalidTransaction) {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if cErr := tx.Commit().Error; cErr != nil {
		return classify(cErr, "commit transaction")
	}
	committed = true
	return nil
}

// Ping verifies the datasource is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close shuts down the pooled connections.
func (s *Store) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func classify(err error, op string) error {
	if IsConflict(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
