package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// Migration describes one embedded schema file and whether it has been applied
type Migration struct {
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// ApplyMigrations runs every embedded migration that has not been recorded yet,
// each inside its own transaction.
func ApplyMigrations(ctx context.Context, sqlDB *sql.DB) error {
	if sqlDB == nil {
		return fmt.Errorf("sql db is required")
	}

	if err := ensureMigrationTable(ctx, sqlDB); err != nil {
		return err
	}

	files, err := migrationFiles()
	if err != nil {
		return err
	}

	for _, name := range files {
		applied, err := isApplied(ctx, sqlDB, name)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		content, err := fs.ReadFile(migrationFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		upSQL := extractSection(string(content), "-- +migrate Up", "-- +migrate Down")
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to exec migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT OR IGNORE INTO %s (name, applied_at) VALUES (?, ?)", migrationTable),
			name, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", name, err)
		}
	}

	return nil
}

// RevertMigrations runs the Down section of every applied migration in reverse order.
func RevertMigrations(ctx context.Context, sqlDB *sql.DB) error {
	if err := ensureMigrationTable(ctx, sqlDB); err != nil {
		return err
	}

	files, err := migrationFiles()
	if err != nil {
		return err
	}

	for i := len(files) - 1; i >= 0; i-- {
		name := files[i]
		content, err := fs.ReadFile(migrationFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		downSQL := extractSection(string(content), "-- +migrate Down", "")
		if strings.TrimSpace(downSQL) != "" {
			if _, err := sqlDB.ExecContext(ctx, downSQL); err != nil {
				return fmt.Errorf("failed to revert migration %s: %w", name, err)
			}
		}
		if _, err := sqlDB.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE name = ?", migrationTable), name,
		); err != nil {
			return fmt.Errorf("failed to unrecord migration %s: %w", name, err)
		}
	}

	return nil
}

// MigrationStatus lists embedded migrations with their applied state
func MigrationStatus(ctx context.Context, sqlDB *sql.DB) ([]Migration, error) {
	if err := ensureMigrationTable(ctx, sqlDB); err != nil {
		return nil, err
	}

	files, err := migrationFiles()
	if err != nil {
		return nil, err
	}

	status := make([]Migration, 0, len(files))
	for _, name := range files {
		m := Migration{Name: name}
		var appliedAt int64
		err := sqlDB.QueryRowContext(ctx,
			fmt.Sprintf("SELECT applied_at FROM %s WHERE name = ?", migrationTable), name,
		).Scan(&appliedAt)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return nil, fmt.Errorf("failed to read migration status %s: %w", name, err)
		default:
			m.Applied = true
			m.AppliedAt = time.UnixMilli(appliedAt).UTC()
		}
		status = append(status, m)
	}

	return status, nil
}

func ensureMigrationTable(ctx context.Context, sqlDB *sql.DB) error {
	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)`, migrationTable)
	if _, err := sqlDB.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to ensure migration table: %w", err)
	}
	return nil
}

func migrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func isApplied(ctx context.Context, sqlDB *sql.DB, name string) (bool, error) {
	var count int
	err := sqlDB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE name = ?", migrationTable), name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// extractSection returns the text between the start marker and the end marker
// (or the end of the content when end is empty or missing).
func extractSection(content, start, end string) string {
	startIdx := strings.Index(content, start)
	if startIdx == -1 {
		if start == "-- +migrate Up" {
			return content
		}
		return ""
	}
	body := content[startIdx+len(start):]
	if end == "" {
		return body
	}
	if endIdx := strings.Index(body, end); endIdx != -1 {
		return body[:endIdx]
	}
	return body
}
