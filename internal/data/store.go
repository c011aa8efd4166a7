package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// StoreConfig contains store configuration
type StoreConfig struct {
	Path string
	// LockRetries bounds retries of writes that hit "database is locked"
	LockRetries int
	// LockBackoff is multiplied by the attempt number between retries
	LockBackoff time.Duration
}

// DefaultStoreConfig returns default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Path:        "data/relay.db",
		LockRetries: 15,
		LockBackoff: 100 * time.Millisecond,
	}
}

// Store is the SQLite database shared by the listener, the dispatcher and
// the review API. Every process opens its own Store on the same file.
type Store struct {
	db     *sql.DB
	config StoreConfig
	logger *zap.Logger
}

// OpenStore opens the database in WAL mode and applies pending migrations
func OpenStore(ctx context.Context, config StoreConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.LockRetries <= 0 {
		config.LockRetries = 1
	}

	// Ensure directory exists
	if dir := filepath.Dir(config.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(config.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Connections are returned to the pool after each operation and
	// closed when idle
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(30 * time.Second)

	s := &Store{db: db, config: config, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func dsn(path string) string {
	return "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_txlock=immediate"
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests and tooling
func (s *Store) DB() *sql.DB {
	return s.db
}

// isLocked reports whether err is SQLite write contention
func isLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// withRetry runs fn, retrying with linear backoff while the database is
// locked. Any other error is returned at once.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.config.LockRetries; attempt++ {
		err = fn()
		if !isLocked(err) {
			return err
		}
		if attempt == s.config.LockRetries {
			break
		}
		s.logger.Debug("database locked, retrying", zap.Int("attempt", attempt))
		t := time.NewTimer(s.config.LockBackoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("database locked after %d attempts: %w", s.config.LockRetries, err)
}

// exec runs a single write statement with lock retry
func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var res sql.Result
	err := s.withRetry(ctx, func() error {
		var err error
		res, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// inTx runs fn in a transaction with lock retry. fn may run more than once.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
