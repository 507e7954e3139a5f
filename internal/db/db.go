package db

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/partnerdesk/partnerdesk/internal/apperr"
)

// Handle is the explicit readiness gate for the database: it starts out
// Initializing and becomes Ready once a connection is established and
// migrations have run. Callers get the pool or a typed initializing error,
// never a global flag.
type Handle struct {
	mu      sync.RWMutex
	db      *sqlx.DB
	lastErr error
}

// DB returns the ready pool, or an initializing error carrying the most
// recent connection failure.
func (h *Handle) DB() (*sqlx.DB, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, apperr.Initializing(h.lastErr)
	}
	return h.db, nil
}

func (h *Handle) setReady(db *sqlx.DB) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.db = db
	h.lastErr = nil
}

func (h *Handle) setError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastErr = err
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}

// Ready wraps an already-open pool in a ready handle. Used by tests and by
// anything that connects synchronously.
func Ready(db *sqlx.DB) *Handle {
	return &Handle{db: db}
}

// Connect returns a handle immediately and establishes the connection in the
// background, retrying on a fixed interval instead of crashing the process.
// Requests issued before the first success fail fast as initializing.
func Connect(driver, connection string, retry time.Duration) *Handle {
	h := &Handle{lastErr: fmt.Errorf("connecting")}
	go func() {
		for {
			database, err := Open(driver, connection)
			if err == nil {
				err = RunMigrations(database.DB, driver)
				if err != nil {
					database.Close()
				}
			}
			if err == nil {
				h.setReady(database)
				slog.Info("database ready", "driver", driver)
				return
			}
			h.setError(err)
			slog.Error("database initialization failed, retrying", "error", err, "retry", retry)
			time.Sleep(retry)
		}
	}()
	return h
}

// Open connects and configures the pool. The pool is bounded; when every
// connection is busy callers queue rather than fail.
func Open(driver, connection string) (*sqlx.DB, error) {
	// SQLite: create data directory if needed
	if driver == "sqlite" && !strings.HasPrefix(connection, ":memory:") {
		dir := filepath.Dir(strings.SplitN(connection, "?", 2)[0])
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// On sqlite every explicit transaction takes the write lock up front
	// (BEGIN IMMEDIATE). A deferred transaction that reads first and writes
	// later cannot upgrade its lock while another writer is queued, so
	// concurrent merge-upserts on one row would fail SQLITE_BUSY instead of
	// waiting out busy_timeout.
	if driver == "sqlite" && !strings.Contains(connection, "_txlock=") {
		sep := "?"
		if strings.Contains(connection, "?") {
			sep = "&"
		}
		connection += sep + "_txlock=immediate"
	}

	database, err := sqlx.Connect(driver, connection)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	database.SetMaxOpenConns(15)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(5 * time.Minute)

	err = database.Ping()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return database, nil
}
