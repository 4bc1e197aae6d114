package handlers

import (
	"time"

	"github.com/sawpanic/stratswitch/internal/persistence"
	"github.com/sawpanic/stratswitch/internal/scheduler"
	"github.com/sawpanic/stratswitch/internal/switching"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse reports liveness and dependency health.
type HealthResponse struct {
	Status    string                   `json:"status"` // ok, degraded
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Uptime    string                   `json:"uptime"`
	Database  *persistence.HealthCheck `json:"database,omitempty"`
	Scheduler *scheduler.Status        `json:"scheduler,omitempty"`
}

// SwitchesResponse lists recent in-memory decisions, most recent first.
type SwitchesResponse struct {
	Timestamp time.Time                  `json:"timestamp"`
	Count     int                        `json:"count"`
	Switches  []switching.SwitchDecision `json:"switches"`
}

// HistoryResponse lists persisted switch records, newest first.
type HistoryResponse struct {
	From    time.Time                  `json:"from"`
	To      time.Time                  `json:"to"`
	Count   int                        `json:"count"`
	Records []persistence.SwitchRecord `json:"records"`
}
