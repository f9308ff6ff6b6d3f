package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store implements the persistence ports (products, price history, alerts)
// on an embedded SQLite database. The pipeline assumes a single ingestion
// writer; WAL mode keeps readers unblocked meanwhile.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the database and applies migrations.
// The special path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// A single connection sidesteps table-lock contention between the
	// ingestion writer and entry-point readers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applyMigrations(ctx context.Context) error {
	for i, statement := range migrations {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS products (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        identity_key TEXT NOT NULL UNIQUE,
        name TEXT NOT NULL,
        brand TEXT NOT NULL,
        category TEXT NOT NULL,
        normalized_name TEXT NOT NULL,
        normalized_brand TEXT NOT NULL,
        normalized_category TEXT NOT NULL,
        first_seen TEXT NOT NULL,
        last_seen TEXT NOT NULL,
        occurrence_count INTEGER NOT NULL DEFAULT 0,
        active INTEGER NOT NULL DEFAULT 1
    )`,
	`CREATE INDEX IF NOT EXISTS idx_products_brand_category
        ON products(normalized_brand, normalized_category)`,
	`CREATE TABLE IF NOT EXISTS price_observations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
        store TEXT NOT NULL,
        price REAL NOT NULL,
        original_price REAL NOT NULL DEFAULT 0,
        discounted INTEGER NOT NULL DEFAULT 0,
        in_stock INTEGER NOT NULL DEFAULT 0,
        observed_at TEXT NOT NULL,
        observed_day TEXT NOT NULL,
        run_id TEXT NOT NULL,
        UNIQUE(product_id, store, observed_day)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_observations_product_store
        ON price_observations(product_id, store, observed_at)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
        subscriber TEXT NOT NULL,
        target_price REAL NOT NULL,
        active INTEGER NOT NULL DEFAULT 1,
        notified INTEGER NOT NULL DEFAULT 0,
        last_notified_at TEXT,
        created_at TEXT NOT NULL,
        expires_at TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_product
        ON subscriptions(product_id, active)`,
	`CREATE TABLE IF NOT EXISTS reviews (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
        author TEXT NOT NULL,
        rating INTEGER NOT NULL,
        body TEXT,
        created_at TEXT NOT NULL
    )`,
}
