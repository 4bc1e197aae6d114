package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// TimeRange is a closed time window for history queries.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t lies inside the range. Zero bounds are open.
func (tr TimeRange) Contains(t time.Time) bool {
	if !tr.From.IsZero() && t.Before(tr.From) {
		return false
	}
	if !tr.To.IsZero() && t.After(tr.To) {
		return false
	}
	return true
}

// Event is a recorded notification. Controller events carry SourceID 0.
type Event struct {
	ID             int64     `json:"id" db:"id"`
	SourceID       int64     `json:"source_id" db:"source_id"`
	Action         string    `json:"action" db:"action"`
	Details        string    `json:"details" db:"details"`
	IsNotification bool      `json:"is_notification" db:"is_notification"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// SwitchRecord is the durable history entry for one committed switch.
type SwitchRecord struct {
	ID             int64              `json:"id" db:"id"`
	CycleID        string             `json:"cycle_id" db:"cycle_id"`
	Action         string             `json:"action" db:"action"`
	FromStrategy   string             `json:"from_strategy" db:"from_strategy"`
	FromInstrument string             `json:"from_instrument" db:"from_instrument"`
	ToStrategy     string             `json:"to_strategy" db:"to_strategy"`
	ToInstrument   string             `json:"to_instrument" db:"to_instrument"`
	Score          float64            `json:"score" db:"score"`
	Improvement    float64            `json:"improvement" db:"improvement"`
	Confidence     float64            `json:"confidence" db:"confidence"`
	Reason         string             `json:"reason" db:"reason"`
	Metrics        map[string]float64 `json:"metrics" db:"metrics"`
	SwitchedAt     time.Time          `json:"switched_at" db:"switched_at"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
}

// EventRepo stores controller events.
type EventRepo interface {
	// RecordEvent appends an event.
	RecordEvent(ctx context.Context, e Event) error

	// ListEvents returns the most recent events, newest first.
	ListEvents(ctx context.Context, limit int) ([]Event, error)
}

// SwitchRepo stores the switch history.
type SwitchRepo interface {
	// InsertSwitch appends a committed switch.
	InsertSwitch(ctx context.Context, rec SwitchRecord) error

	// LatestSwitch returns the most recent switch or ErrNotFound.
	LatestSwitch(ctx context.Context) (*SwitchRecord, error)

	// ListSwitches returns switches inside tr, newest first.
	ListSwitches(ctx context.Context, tr TimeRange, limit int) ([]SwitchRecord, error)
}

// Repository aggregates the persistence interfaces.
type Repository struct {
	Events   EventRepo
	Switches SwitchRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for the persistence layer
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
	Stats(ctx context.Context) map[string]interface{}
}
