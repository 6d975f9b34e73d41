package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/haasonsaas/reactor/pkg/models"
)

// PostgresStore is a Store backed by Postgres/CockroachDB via lib/pq, the
// reference multi-process persistence adapter for deployments that run
// more than one reactor instance against shared state.
type PostgresStore struct {
	db          *sql.DB
	compression bool
}

// PostgresConfig configures PostgresStore.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	ConnectTimeout  time.Duration
	CreateIfMissing bool // creates the table if absent; never creates the database itself
	Compression     bool
}

func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("persistence: postgres dsn is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("persistence: open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: ping postgres: %w", err)
	}

	if cfg.CreateIfMissing {
		if _, err := db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS reactor_state (
				key TEXT PRIMARY KEY,
				version TEXT NOT NULL,
				value BYTEA NOT NULL,
				updated_at BIGINT NOT NULL
			)`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("persistence: create postgres schema: %w", err)
		}
	}

	return &PostgresStore{db: db, compression: cfg.Compression}, nil
}

func (s *PostgresStore) Commit(ctx context.Context, key string, state models.AgentState) (VersionHandle, error) {
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
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET version = excluded.version, value = excluded.value, updated_at = excluded.updated_at
	`, key, hash, blob, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("persistence: commit state: %w", err)
	}
	return VersionHandle(hash), nil
}

func (s *PostgresStore) Head(ctx context.Context, key string) (models.AgentState, VersionHandle, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT version, value FROM reactor_state WHERE key = $1`, key)

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

func (s *PostgresStore) Close() error { return s.db.Close() }

var _ Store = (*PostgresStore)(nil)
