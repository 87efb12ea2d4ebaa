package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/xdr-console/internal/console/session"
	"github.com/xela07ax/xdr-console/internal/infra"
)

const sessionSchema = `
	CREATE TABLE IF NOT EXISTS session_kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// SessionRepo — долговременное хранилище клиента в PostgreSQL (таблица session_kv).
type SessionRepo struct {
	pool *pgxpool.Pool
}

// NewPool открывает пул соединений и проверяет доступность базы.
func NewPool(ctx context.Context, cfg infra.DatabaseConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// EnsureSchema создает таблицу при первом запуске
func (r *SessionRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, sessionSchema); err != nil {
		return fmt.Errorf("postgres: create session_kv: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM session_kv WHERE key = $1`, infra.RedisStorageKey(key)).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", session.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres: get %s: %w", key, err)
	}
	return value, nil
}

func (r *SessionRepo) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO session_kv (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	if _, err := r.pool.Exec(ctx, query, infra.RedisStorageKey(key), value); err != nil {
		return fmt.Errorf("postgres: set %s: %w", key, err)
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM session_kv WHERE key = $1`, infra.RedisStorageKey(key)); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", key, err)
	}
	return nil
}
