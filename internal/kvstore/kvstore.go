package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/claude/pushreps/internal/models"
	"github.com/claude/pushreps/internal/progress"
	_ "modernc.org/sqlite"
)

// progressKey is the key the aggregate is stored under.
const progressKey = "progress"

// Store is a small SQLite key-value table. It persists the progress
// aggregate as one JSON document and holds user settings.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at dir/pushreps.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "pushreps.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening kv db: %w", err)
	}
	// One writer keeps SQLite from reporting "database is locked".
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the handle for connection statistics.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Compile-time check: *Store is a progress backend.
var _ progress.Backend = (*Store)(nil)

// Load returns the stored aggregate, or nil if none was saved yet.
// Undecodable data is reported as progress.ErrCorrupt.
func (s *Store) Load(ctx context.Context) (*models.ProgressAggregate, error) {
	raw, ok, err := s.get(ctx, progressKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var agg models.ProgressAggregate
	if err := json.Unmarshal([]byte(raw), &agg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w: %v", progressKey, progress.ErrCorrupt, err)
	}
	return &agg, nil
}

// Save replaces the stored aggregate.
func (s *Store) Save(ctx context.Context, agg *models.ProgressAggregate) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	return s.put(ctx, progressKey, string(data))
}

// GetSetting returns a stored setting and whether it exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	return s.get(ctx, "setting:"+key)
}

// SetSetting stores a setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.put(ctx, "setting:"+key, value)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
