package repository

import (
	"context"
	"fmt"
	"time"

	"site-analytics/internal/domain"
	"site-analytics/pkg/database"
)

// visitRepository writes page views to analytics_visits
type visitRepository struct {
	db *database.SQLiteDB
}

// NewVisitRepository creates a new visit repository
func NewVisitRepository(db *database.SQLiteDB) VisitRepository {
	return &visitRepository{
		db: db,
	}
}

// Create inserts one visit and fills in its ID and CreatedAt
func (r *visitRepository) Create(ctx context.Context, visit *domain.VisitRecord) error {
	query := `
		INSERT INTO analytics_visits (path, visitor_hash, referer, user_agent, country, created_at)
		VALUES (?, ?, ?, ?, ?, COALESCE(?, CAST(strftime('%s', 'now') AS INTEGER)))
		RETURNING id, created_at
	`

	var createdAt int64
	err := r.db.DB.QueryRowContext(ctx, query,
		visit.Path,
		visit.VisitorHash,
		nullString(visit.Referer),
		nullString(visit.UserAgent),
		nullString(visit.Country),
		unixOrNil(visit.CreatedAt),
	).Scan(&visit.ID, &createdAt)
	if err != nil {
		return fmt.Errorf("failed to create visit: %w", err)
	}

	visit.CreatedAt = time.Unix(createdAt, 0).UTC()
	return nil
}

// nullString maps "" to NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// unixOrNil maps the zero time to NULL so the column default applies
func unixOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}
