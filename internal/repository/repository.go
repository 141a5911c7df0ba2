package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is a JSON key/value store with per-read TTLs.
type Repository struct {
	db  Querier
	now func() time.Time
}

func NewRepository(db Querier) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Get decodes the value for key into dest. Rows older than ttl are misses.
func (r *Repository) Get(ctx context.Context, key string, ttl time.Duration, dest any) (bool, error) {
	var (
		raw []byte
		ts  time.Time
	)
	err := r.db.QueryRow(ctx,
		`SELECT v, ts FROM kv WHERE k = $1`,
		key,
	).Scan(&raw, &ts)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query kv %s: %w", key, err)
	}

	if r.now().Sub(ts) > ttl {
		return false, nil
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("unmarshal kv %s: %w", key, err)
	}
	return true, nil
}

// Set upserts value under key and stamps it with the current time.
func (r *Repository) Set(ctx context.Context, key string, value any) error {
	val, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal kv %s: %w", key, err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO kv (k, v, ts) VALUES ($1, $2, $3)
		ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, ts = EXCLUDED.ts`,
		key, val, r.now(),
	)
	if err != nil {
		return fmt.Errorf("upsert kv %s: %w", key, err)
	}
	return nil
}

// Delete removes key; a missing key is not an error.
func (r *Repository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM kv WHERE k = $1`, key); err != nil {
		return fmt.Errorf("delete kv %s: %w", key, err)
	}
	return nil
}
