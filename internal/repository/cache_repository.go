package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"site-analytics/pkg/database"
)

// cacheRepository stores cache entries in SQLite with millisecond timestamps
type cacheRepository struct {
	db  *database.SQLiteDB
	now func() time.Time
}

// NewCacheRepository creates a new cache repository
func NewCacheRepository(db *database.SQLiteDB) CacheRepository {
	return &cacheRepository{
		db:  db,
		now: time.Now,
	}
}

// Set upserts a cache entry
func (r *cacheRepository) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	query := `
		INSERT INTO cache (key, value, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`

	now := r.now().UnixMilli()
	if _, err := r.db.DB.ExecContext(ctx, query, key, value, now, now+ttl.Milliseconds()); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	return nil
}

// Get retrieves a non-expired cache entry
func (r *cacheRepository) Get(ctx context.Context, key string) (string, bool, error) {
	query := `SELECT value FROM cache WHERE key = ? AND expires_at > ?`

	return r.lookup(ctx, query, key, r.now().UnixMilli())
}

// GetStale retrieves a cache entry ignoring its expiry
func (r *cacheRepository) GetStale(ctx context.Context, key string) (string, bool, error) {
	query := `SELECT value FROM cache WHERE key = ?`

	return r.lookup(ctx, query, key)
}

func (r *cacheRepository) lookup(ctx context.Context, query string, args ...interface{}) (string, bool, error) {
	var value string
	err := r.db.DB.QueryRowContext(ctx, query, args...).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	return value, true, nil
}

// Has reports whether a non-expired entry exists
func (r *cacheRepository) Has(ctx context.Context, key string) (bool, error) {
	query := `SELECT COUNT(1) FROM cache WHERE key = ? AND expires_at > ?`

	var count int
	if err := r.db.DB.QueryRowContext(ctx, query, key, r.now().UnixMilli()).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check cache entry: %w", err)
	}

	return count > 0, nil
}

// Delete removes a cache entry
func (r *cacheRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.DB.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// ClearExpired removes entries whose expiry is at or before now
func (r *cacheRepository) ClearExpired(ctx context.Context) (int64, error) {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM cache WHERE expires_at <= ?`, r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired cache entries: %w", err)
	}

	return result.RowsAffected()
}

// ClearAll removes every cache entry
func (r *cacheRepository) ClearAll(ctx context.Context) (int64, error) {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}

	return result.RowsAffected()
}
