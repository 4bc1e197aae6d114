package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/stratswitch/internal/persistence"
)

const defaultListLimit = 100

// eventRepo implements persistence.EventRepo for PostgreSQL
type eventRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewEventRepo creates a new PostgreSQL event repository
func NewEventRepo(db *sqlx.DB, timeout time.Duration) persistence.EventRepo {
	return &eventRepo{
		db:      db,
		timeout: timeout,
	}
}

// RecordEvent appends a controller event
func (r *eventRepo) RecordEvent(ctx context.Context, e persistence.Event) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if e.Action == "" {
		return fmt.Errorf("event action is required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO controller_events (source_id, action, details, is_notification, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		e.SourceID, e.Action, e.Details, e.IsNotification, e.CreatedAt).
		Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	return nil
}

// ListEvents returns the most recent events, newest first
func (r *eventRepo) ListEvents(ctx context.Context, limit int) ([]persistence.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, source_id, action, details, is_notification, created_at
		FROM controller_events
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	var events []persistence.Event
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}
