package persistence

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/haasonsaas/reactor/pkg/models"
)

// SQLiteStore is a single-file Store backed by modernc.org/sqlite, the
// reference on-disk persistence adapter for a single-process deployment
// that still wants durability across restarts.
type SQLiteStore struct {
	db          *sql.DB
	compression bool
}

// SQLiteConfig configures SQLiteStore.
type SQLiteConfig struct {
	// Path is the database file location.
	Path string

	// CreateIfMissing creates Path's parent directory and the database file
	// when it does not already exist. Defaults to false: missing databases
	// are a fatal open-time error, per §7's "failure to initialize
	// persistence" case.
	CreateIfMissing bool

	// Compression gzips the stored state blob.
	Compression bool
}

func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("persistence: sqlite path is required")
	}
	if cfg.CreateIfMissing {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("persistence: create sqlite directory: %w", err)
		}
	} else if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("persistence: sqlite database %q does not exist: %w", cfg.Path, err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers per connection

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS reactor_state (
			key TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: create sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, compression: cfg.Compression}, nil
}

func (s *SQLiteStore) Commit(ctx context.Context, key string, state models.AgentState) (VersionHandle, error) {
	hash, err := state.Hash()
	if err != nil {
		return "", err
	}
	raw, err := state.CanonicalJSON()
	if err != nil {
		return "", err
	}
	blob, err := maybeCompress(raw, s.compression)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reactor_state (key, version, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET version = excluded.version, value = excluded.value, updated_at = excluded.updated_at
	`, key, hash, blob, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("persistence: commit state: %w", err)
	}
	return VersionHandle(hash), nil
}

func (s *SQLiteStore) Head(ctx context.Context, key string) (models.AgentState, VersionHandle, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT version, value FROM reactor_state WHERE key = ?`, key)

	var version string
	var blob []byte
	if err := row.Scan(&version, &blob); err != nil {
		if err == sql.ErrNoRows {
			return models.AgentState{}, "", false, nil
		}
		return models.AgentState{}, "", false, fmt.Errorf("persistence: read head: %w", err)
	}

	raw, err := maybeDecompress(blob, s.compression)
	if err != nil {
		return models.AgentState{}, "", false, err
	}
	state, err := models.FromCanonicalJSON(raw)
	if err != nil {
		return models.AgentState{}, "", false, fmt.Errorf("persistence: decode head: %w", err)
	}
	return state, VersionHandle(version), true, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ Store = (*SQLiteStore)(nil)

func maybeCompress(raw []byte, enabled bool) ([]byte, error) {
	if !enabled {
		return raw, nil
	}
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("persistence: gzip state: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("persistence: gzip state: %w", err)
	}
	return buf.Bytes(), nil
}

func maybeDecompress(blob []byte, enabled bool) ([]byte, error) {
	if !enabled {
		return blob, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("persistence: gunzip state: %w", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("persistence: gunzip state: %w", err)
	}
	return raw, nil
}
