// Package postgres provides a Postgres-backed kv.Storage, the "real mode" database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propertydex/propertydex-store/pkg/kv"
)

// Ensure Store satisfies the kv.Storage interface at compile time.
var _ kv.Storage = (*Store)(nil)

const defaultTimeout = 5 * time.Second

// Store keeps every key of one namespace in the kv_items table.
type Store struct {
	pool      *pgxpool.Pool
	namespace string
	timeout   time.Duration
}

// NewStore connects to databaseURL and runs migrations.
func NewStore(ctx context.Context, databaseURL, namespace string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool, namespace: namespace, timeout: defaultTimeout}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv_items (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		);`,
		`ALTER TABLE kv_items ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW();`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

func (s *Store) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// GetItem fetches a value by key.
func (s *Store) GetItem(key string) (string, error) {
	ctx, cancel := s.context()
	defer cancel()

	const query = `SELECT value FROM kv_items WHERE namespace = $1 AND key = $2;`
	var value string
	if err := s.pool.QueryRow(ctx, query, s.namespace, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", kv.ErrKeyNotFound
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// SetItem upserts a value.
func (s *Store) SetItem(key, value string) error {
	if !kv.ValidKey(key) {
		return kv.ErrInvalidKey
	}
	ctx, cancel := s.context()
	defer cancel()

	const query = `
		INSERT INTO kv_items (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW();`
	if _, err := s.pool.Exec(ctx, query, s.namespace, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes a key; absent keys are ignored.
func (s *Store) RemoveItem(key string) error {
	ctx, cancel := s.context()
	defer cancel()

	const query = `DELETE FROM kv_items WHERE namespace = $1 AND key = $2;`
	if _, err := s.pool.Exec(ctx, query, s.namespace, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Keys lists every key of the namespace in lexical order.
func (s *Store) Keys() ([]string, error) {
	ctx, cancel := s.context()
	defer cancel()

	const query = `SELECT key FROM kv_items WHERE namespace = $1 ORDER BY key;`
	rows, err := s.pool.Query(ctx, query, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}
