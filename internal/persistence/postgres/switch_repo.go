package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/stratswitch/internal/persistence"
)

// switchRepo implements persistence.SwitchRepo for PostgreSQL
type switchRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSwitchRepo creates a new PostgreSQL switch history repository
func NewSwitchRepo(db *sqlx.DB, timeout time.Duration) persistence.SwitchRepo {
	return &switchRepo{
		db:      db,
		timeout: timeout,
	}
}

const switchColumns = `id, cycle_id, action, from_strategy, from_instrument, to_strategy, to_instrument,
		       score, improvement, confidence, reason, metrics, switched_at, created_at`

// InsertSwitch appends a committed switch
func (r *switchRepo) InsertSwitch(ctx context.Context, rec persistence.SwitchRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if rec.ToStrategy == "" || rec.ToInstrument == "" {
		return fmt.Errorf("switch target is required")
	}

	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `
		INSERT INTO strategy_switches
		(cycle_id, action, from_strategy, from_instrument, to_strategy, to_instrument,
		 score, improvement, confidence, reason, metrics, switched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	var id int64
	var createdAt time.Time
	err = r.db.QueryRowxContext(ctx, query,
		rec.CycleID, rec.Action, rec.FromStrategy, rec.FromInstrument,
		rec.ToStrategy, rec.ToInstrument, rec.Score, rec.Improvement,
		rec.Confidence, rec.Reason, metricsJSON, rec.SwitchedAt).
		Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert switch: %w", err)
	}

	return nil
}

// LatestSwitch returns the most recent switch
func (r *switchRepo) LatestSwitch(ctx context.Context) (*persistence.SwitchRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + switchColumns + `
		FROM strategy_switches
		ORDER BY switched_at DESC, id DESC
		LIMIT 1`

	rec, err := scanSwitch(r.db.QueryRowxContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest switch: %w", err)
	}

	return rec, nil
}

// ListSwitches returns switches inside tr, newest first
func (r *switchRepo) ListSwitches(ctx context.Context, tr persistence.TimeRange, limit int) ([]persistence.SwitchRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultListLimit
	}
	if tr.To.IsZero() {
		tr.To = time.Now().UTC()
	}

	query := `
		SELECT ` + switchColumns + `
		FROM strategy_switches
		WHERE switched_at >= $1 AND switched_at <= $2
		ORDER BY switched_at DESC, id DESC
		LIMIT $3`

	rows, err := r.db.QueryxContext(ctx, query, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query switches: %w", err)
	}
	defer rows.Close()

	var records []persistence.SwitchRecord
	for rows.Next() {
		rec, err := scanSwitch(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// rowScanner is satisfied by both *sqlx.Row and *sqlx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSwitch(row rowScanner) (*persistence.SwitchRecord, error) {
	var rec persistence.SwitchRecord
	var metricsJSON []byte

	err := row.Scan(
		&rec.ID, &rec.CycleID, &rec.Action, &rec.FromStrategy, &rec.FromInstrument,
		&rec.ToStrategy, &rec.ToInstrument, &rec.Score, &rec.Improvement,
		&rec.Confidence, &rec.Reason, &metricsJSON, &rec.SwitchedAt, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	rec.Metrics = make(map[string]float64)
	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &rec.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}

	return &rec, nil
}
