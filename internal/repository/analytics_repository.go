package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"site-analytics/internal/domain"
	"site-analytics/pkg/database"
)

// analyticsRepository runs read-side aggregations. Result sets are fully
// drained and closed before the next query because the pool holds a single
// connection.
type analyticsRepository struct {
	db *database.SQLiteDB
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *database.SQLiteDB) AnalyticsRepository {
	return &analyticsRepository{
		db: db,
	}
}

// DailyStats returns visits, unique visitors and events per UTC day, newest first.
// Only days with at least one visit are listed.
func (r *analyticsRepository) DailyStats(ctx context.Context, since time.Time) ([]domain.DailyStats, error) {
	visitQuery := `
		SELECT
			date(created_at, 'unixepoch') AS day,
			COUNT(*) AS visits,
			COUNT(DISTINCT visitor_hash) AS unique_visitors
		FROM analytics_visits
		WHERE created_at >= ?
		GROUP BY day
		ORDER BY day DESC
	`

	stats := make([]domain.DailyStats, 0)
	err := r.query(ctx, visitQuery, []interface{}{since.Unix()}, func(rows *sql.Rows) error {
		var s domain.DailyStats
		if err := rows.Scan(&s.Date, &s.Visits, &s.UniqueVisitors); err != nil {
			return err
		}
		stats = append(stats, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query daily visits: %w", err)
	}

	eventQuery := `
		SELECT date(created_at, 'unixepoch') AS day, COUNT(*) AS events
		FROM analytics_events
		WHERE created_at >= ?
		GROUP BY day
	`

	events := make(map[string]int64)
	err = r.query(ctx, eventQuery, []interface{}{since.Unix()}, func(rows *sql.Rows) error {
		var day string
		var count int64
		if err := rows.Scan(&day, &count); err != nil {
			return err
		}
		events[day] = count
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query daily events: %w", err)
	}

	for i := range stats {
		stats[i].Events = events[stats[i].Date]
	}

	return stats, nil
}

// TopPages returns the most visited paths
func (r *analyticsRepository) TopPages(ctx context.Context, since time.Time, limit int) ([]domain.TopPage, error) {
	query := `
		SELECT path, COUNT(*) AS visits, COUNT(DISTINCT visitor_hash) AS unique_visitors
		FROM analytics_visits
		WHERE created_at >= ?
		GROUP BY path
		ORDER BY visits DESC
		LIMIT ?
	`

	pages := make([]domain.TopPage, 0)
	err := r.query(ctx, query, []interface{}{since.Unix(), limit}, func(rows *sql.Rows) error {
		var p domain.TopPage
		if err := rows.Scan(&p.Path, &p.Visits, &p.UniqueVisitors); err != nil {
			return err
		}
		pages = append(pages, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query top pages: %w", err)
	}

	return pages, nil
}

// TopReferers returns the most frequent non-empty referers
func (r *analyticsRepository) TopReferers(ctx context.Context, since time.Time, limit int) ([]domain.TopReferer, error) {
	query := `
		SELECT referer, COUNT(*) AS visits
		FROM analytics_visits
		WHERE created_at >= ? AND referer IS NOT NULL AND referer != ''
		GROUP BY referer
		ORDER BY visits DESC
		LIMIT ?
	`

	referers := make([]domain.TopReferer, 0)
	err := r.query(ctx, query, []interface{}{since.Unix(), limit}, func(rows *sql.Rows) error {
		var ref domain.TopReferer
		if err := rows.Scan(&ref.Referer, &ref.Count); err != nil {
			return err
		}
		referers = append(referers, ref)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query top referers: %w", err)
	}

	return referers, nil
}

// AverageTimeOnPage returns mean time_on_page duration in seconds per path
func (r *analyticsRepository) AverageTimeOnPage(ctx context.Context, since time.Time, minSamples, limit int) ([]domain.PageTime, error) {
	query := `
		SELECT path, ROUND(AVG(duration) / 1000.0, 1) AS avg_seconds, COUNT(*) AS samples
		FROM analytics_events
		WHERE type = 'time_on_page' AND created_at >= ? AND duration IS NOT NULL
		GROUP BY path
		HAVING samples >= ?
		ORDER BY avg_seconds DESC
		LIMIT ?
	`

	times := make([]domain.PageTime, 0)
	err := r.query(ctx, query, []interface{}{since.Unix(), minSamples, limit}, func(rows *sql.Rows) error {
		var p domain.PageTime
		if err := rows.Scan(&p.Path, &p.AvgSeconds, &p.Samples); err != nil {
			return err
		}
		times = append(times, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query time on page: %w", err)
	}

	return times, nil
}

// VisitorsByCountry returns visits per country, skipping unknown countries
func (r *analyticsRepository) VisitorsByCountry(ctx context.Context, since time.Time) ([]domain.CountryStats, error) {
	query := `
		SELECT country, COUNT(*) AS visits, COUNT(DISTINCT visitor_hash) AS unique_visitors
		FROM analytics_visits
		WHERE created_at >= ? AND country IS NOT NULL AND country != ''
		GROUP BY country
		ORDER BY visits DESC, country ASC
	`

	countries := make([]domain.CountryStats, 0)
	err := r.query(ctx, query, []interface{}{since.Unix()}, func(rows *sql.Rows) error {
		var c domain.CountryStats
		if err := rows.Scan(&c.Country, &c.Visits, &c.UniqueVisitors); err != nil {
			return err
		}
		countries = append(countries, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query visitors by country: %w", err)
	}

	return countries, nil
}

// EventBreakdown counts page views from visits and other types from events.
// Zero counts are omitted.
func (r *analyticsRepository) EventBreakdown(ctx context.Context, since time.Time) ([]domain.EventTypeCount, error) {
	var pageViews int64
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analytics_visits WHERE created_at >= ?`, since.Unix(),
	).Scan(&pageViews)
	if err != nil {
		return nil, fmt.Errorf("failed to count page views: %w", err)
	}

	breakdown := make([]domain.EventTypeCount, 0, 3)
	if pageViews > 0 {
		breakdown = append(breakdown, domain.EventTypeCount{Type: domain.EventTypePageView, Count: pageViews})
	}

	query := `
		SELECT type, COUNT(*) AS count
		FROM analytics_events
		WHERE created_at >= ?
		GROUP BY type
		ORDER BY type ASC
	`

	err = r.query(ctx, query, []interface{}{since.Unix()}, func(rows *sql.Rows) error {
		var c domain.EventTypeCount
		if err := rows.Scan(&c.Type, &c.Count); err != nil {
			return err
		}
		if c.Count > 0 {
			breakdown = append(breakdown, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query event breakdown: %w", err)
	}

	return breakdown, nil
}

// Summary returns window totals
func (r *analyticsRepository) Summary(ctx context.Context, since time.Time) (*domain.Summary, error) {
	summary := &domain.Summary{}

	err := r.db.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT visitor_hash)
		FROM analytics_visits
		WHERE created_at >= ?
	`, since.Unix()).Scan(&summary.TotalVisits, &summary.UniqueVisitors)
	if err != nil {
		return nil, fmt.Errorf("failed to query visit summary: %w", err)
	}

	var avgTime sql.NullFloat64
	err = r.db.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			ROUND(AVG(CASE WHEN type = 'time_on_page' THEN duration END) / 1000.0, 1)
		FROM analytics_events
		WHERE created_at >= ?
	`, since.Unix()).Scan(&summary.TotalEvents, &avgTime)
	if err != nil {
		return nil, fmt.Errorf("failed to query event summary: %w", err)
	}

	if avgTime.Valid {
		summary.AvgTimeOnPage = avgTime.Float64
	}

	return summary, nil
}

// RecentEvents returns the newest events with element details
func (r *analyticsRepository) RecentEvents(ctx context.Context, limit int) ([]domain.EventRecord, error) {
	query := `
		SELECT id, type, path, element_tag, element_id, element_text, href, duration, created_at
		FROM analytics_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	events := make([]domain.EventRecord, 0)
	err := r.query(ctx, query, []interface{}{limit}, func(rows *sql.Rows) error {
		var (
			e                          domain.EventRecord
			tag, elementID, text, href sql.NullString
			duration                   sql.NullInt64
			createdAt                  int64
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.Path, &tag, &elementID, &text, &href, &duration, &createdAt); err != nil {
			return err
		}
		e.ElementTag = tag.String
		e.ElementID = elementID.String
		e.ElementText = text.String
		e.Href = href.String
		if duration.Valid {
			d := duration.Int64
			e.Duration = &d
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		events = append(events, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}

	return events, nil
}

// query runs a statement and hands every row to scan, closing the rows before returning
func (r *analyticsRepository) query(ctx context.Context, query string, args []interface{}, scan func(*sql.Rows) error) error {
	rows, err := r.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}

	return rows.Err()
}
