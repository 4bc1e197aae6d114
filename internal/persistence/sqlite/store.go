package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/sawpanic/stratswitch/internal/persistence"
)

const defaultListLimit = 100

// Store persists controller events and switch history to a local SQLite
// file. It implements persistence.EventRepo and persistence.SwitchRepo.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", path).Msg("SQLite store opened")
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS controller_events (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id       INTEGER NOT NULL DEFAULT 0,
			action          TEXT NOT NULL,
			details         TEXT NOT NULL DEFAULT '',
			is_notification INTEGER NOT NULL DEFAULT 1,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created ON controller_events(created_at)`,

		`CREATE TABLE IF NOT EXISTS strategy_switches (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id        TEXT NOT NULL,
			action          TEXT NOT NULL,
			from_strategy   TEXT NOT NULL DEFAULT '',
			from_instrument TEXT NOT NULL DEFAULT '',
			to_strategy     TEXT NOT NULL,
			to_instrument   TEXT NOT NULL,
			score           REAL,
			improvement     REAL,
			confidence      REAL,
			reason          TEXT,
			metrics         TEXT,
			switched_at     INTEGER NOT NULL,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_switches_at ON strategy_switches(switched_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// RecordEvent appends a controller event.
func (s *Store) RecordEvent(ctx context.Context, e persistence.Event) error {
	if e.Action == "" {
		return fmt.Errorf("event action is required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO controller_events
		(source_id, action, details, is_notification, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.SourceID, e.Action, e.Details, e.IsNotification, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]persistence.Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryxContext(ctx, `SELECT id, source_id, action, details, is_notification, created_at
		FROM controller_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		var e persistence.Event
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.SourceID, &e.Action, &e.Details, &e.IsNotification, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// InsertSwitch appends a committed switch.
func (s *Store) InsertSwitch(ctx context.Context, rec persistence.SwitchRecord) error {
	if rec.ToStrategy == "" || rec.ToInstrument == "" {
		return fmt.Errorf("switch target is required")
	}
	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `INSERT INTO strategy_switches
		(cycle_id, action, from_strategy, from_instrument, to_strategy, to_instrument,
		 score, improvement, confidence, reason, metrics, switched_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CycleID, rec.Action, rec.FromStrategy, rec.FromInstrument, rec.ToStrategy, rec.ToInstrument,
		rec.Score, rec.Improvement, rec.Confidence, rec.Reason, string(metricsJSON),
		rec.SwitchedAt.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert switch: %w", err)
	}
	return nil
}

// LatestSwitch returns the most recent switch or persistence.ErrNotFound.
func (s *Store) LatestSwitch(ctx context.Context) (*persistence.SwitchRecord, error) {
	row := s.db.QueryRowxContext(ctx, `SELECT `+switchColumns+`
		FROM strategy_switches
		ORDER BY switched_at DESC, id DESC
		LIMIT 1`)

	rec, err := scanSwitch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("latest switch: %w", err)
	}
	return rec, nil
}

// ListSwitches returns switches inside tr, newest first.
func (s *Store) ListSwitches(ctx context.Context, tr persistence.TimeRange, limit int) ([]persistence.SwitchRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	to := tr.To
	if to.IsZero() {
		to = time.Now()
	}

	rows, err := s.db.QueryxContext(ctx, `SELECT `+switchColumns+`
		FROM strategy_switches
		WHERE switched_at >= ? AND switched_at <= ?
		ORDER BY switched_at DESC, id DESC
		LIMIT ?`, tr.From.UnixMilli(), to.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("query switches: %w", err)
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
	return records, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const switchColumns = `id, cycle_id, action, from_strategy, from_instrument, to_strategy, to_instrument,
		score, improvement, confidence, reason, metrics, switched_at, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSwitch(row rowScanner) (*persistence.SwitchRecord, error) {
	var rec persistence.SwitchRecord
	var reason, metrics sql.NullString
	var switchedAt, createdAt int64

	if err := row.Scan(&rec.ID, &rec.CycleID, &rec.Action, &rec.FromStrategy, &rec.FromInstrument,
		&rec.ToStrategy, &rec.ToInstrument, &rec.Score, &rec.Improvement, &rec.Confidence,
		&reason, &metrics, &switchedAt, &createdAt); err != nil {
		return nil, err
	}

	rec.Reason = reason.String
	rec.SwitchedAt = time.UnixMilli(switchedAt).UTC()
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.Metrics = make(map[string]float64)
	if metrics.Valid && metrics.String != "" && metrics.String != "null" {
		if err := json.Unmarshal([]byte(metrics.String), &rec.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics: %w", err)
		}
	}
	return &rec, nil
}
