package repository

import (
	"context"
	"fmt"

	"site-analytics/internal/domain"
	"site-analytics/pkg/database"
)

// eventRepository writes interaction events to analytics_events
type eventRepository struct {
	db *database.SQLiteDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *database.SQLiteDB) EventRepository {
	return &eventRepository{
		db: db,
	}
}

// InsertBatch inserts every event in one transaction
func (r *eventRepository) InsertBatch(ctx context.Context, events []domain.EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin event batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO analytics_events
			(type, path, visitor_hash, element_tag, element_id, element_text, href, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CAST(strftime('%s', 'now') AS INTEGER)))
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		e := &events[i]

		var duration interface{}
		if e.Duration != nil {
			duration = *e.Duration
		}

		if _, err := stmt.ExecContext(ctx,
			string(e.Type),
			e.Path,
			nullString(e.VisitorHash),
			nullString(e.ElementTag),
			nullString(e.ElementID),
			nullString(e.ElementText),
			nullString(e.Href),
			duration,
			unixOrNil(e.CreatedAt),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert event %d of %d: %w", i+1, len(events), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event batch: %w", err)
	}

	return nil
}
