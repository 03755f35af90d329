package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteDB owns the process-wide embedded database connection.
//
// SQLite allows many readers but a single writer, so the pool is pinned to
// one connection: writes are serialized in-process instead of failing with
// SQLITE_BUSY, and transactions never interleave.
type SQLiteDB struct {
	DB   *sql.DB
	path string
}

// NewSQLiteDB opens (creating if needed) the database file at path, pins the
// pool to a single connection and applies pending migrations.
func NewSQLiteDB(ctx context.Context, path string) (*SQLiteDB, error) {
	db, err := OpenSQLiteDB(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := ApplyMigrations(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// OpenSQLiteDB opens the database without touching the schema
func OpenSQLiteDB(ctx context.Context, path string) (*SQLiteDB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return &SQLiteDB{DB: sqlDB, path: cleanPath}, nil
}

// Path returns the database file location
func (db *SQLiteDB) Path() string {
	return db.path
}

// Close releases the connection. Safe to call on a nil receiver.
func (db *SQLiteDB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

// Health checks the database connection
func (db *SQLiteDB) Health(ctx context.Context) error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return db.DB.PingContext(ctx)
}
