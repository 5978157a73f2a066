package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/refhub/citation-service/internal/database"
	"github.com/refhub/citation-service/internal/domain"
)

// Postgres is a Cache backed by the resolution_cache table. It survives
// process restarts, which the batch verification flow relies on: the
// worker and the API server share results through it.
type Postgres struct {
	db database.DBTX
}

var _ Cache = (*Postgres)(nil)

// NewPostgres creates a Postgres-backed cache using the given connection.
func NewPostgres(db database.DBTX) *Postgres {
	return &Postgres{db: db}
}

const getEntrySQL = `
SELECT value, expires_at
FROM resolution_cache
WHERE key = $1`

const putEntrySQL = `
INSERT INTO resolution_cache (key, value, expires_at, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
    expires_at = EXCLUDED.expires_at,
    created_at = NOW()`

const deleteEntrySQL = `
DELETE FROM resolution_cache
WHERE key = $1`

const sweepSQL = `
DELETE FROM resolution_cache
WHERE expires_at < NOW()`

// Get returns the payload stored under key. Expired entries are deleted
// on read and reported as missing.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt time.Time

	err := p.db.QueryRow(ctx, getEntrySQL, key).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying cache entry: %w", err)
	}

	if time.Now().After(expiresAt) {
		if _, err := p.db.Exec(ctx, deleteEntrySQL, key); err != nil {
			return nil, fmt.Errorf("evicting expired cache entry: %w", err)
		}
		return nil, domain.ErrNotFound
	}

	return value, nil
}

// Put stores value under key for the given TTL.
func (p *Postgres) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl)
	if _, err := p.db.Exec(ctx, putEntrySQL, key, value, expiresAt); err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry under key.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, deleteEntrySQL, key); err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Sweep removes all expired entries and reports how many were evicted.
func (p *Postgres) Sweep(ctx context.Context) (int64, error) {
	tag, err := p.db.Exec(ctx, sweepSQL)
	if err != nil {
		return 0, fmt.Errorf("sweeping expired cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
