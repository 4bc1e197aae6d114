package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stratswitch/internal/config"
	"github.com/sawpanic/stratswitch/internal/persistence"
	"github.com/sawpanic/stratswitch/internal/scheduler"
	"github.com/sawpanic/stratswitch/internal/switching"
)

const (
	defaultSwitchLimit = 20
	maxSwitchLimit     = 100
	maxHistoryLimit    = 1000
	evaluateTimeout    = 2 * time.Minute
)

type ctxKey string

// RequestIDKey is the context key holding the request id.
const RequestIDKey ctxKey = "request_id"

// Controller is the switching surface exposed over HTTP.
type Controller interface {
	Status() switching.Status
	RecentSwitches(n int) []switching.SwitchDecision
	RunCycle(ctx context.Context) switching.CycleResult
	Config() config.SwitchingConfig
	UpdateConfig(o config.Override) (config.SwitchingConfig, error)
}

// HistorySource lists persisted switches.
type HistorySource interface {
	ListSwitches(ctx context.Context, tr persistence.TimeRange, limit int) ([]persistence.SwitchRecord, error)
}

// HealthSource reports persistence health.
type HealthSource interface {
	Health(ctx context.Context) persistence.HealthCheck
}

// SchedulerSource reports scheduler state.
type SchedulerSource interface {
	GetStatus() scheduler.Status
}

// Handlers manages all HTTP endpoint handlers
type Handlers struct {
	ctrl      Controller
	history   HistorySource
	health    HealthSource
	scheduler SchedulerSource
	version   string
	started   time.Time
}

// Option configures optional handler dependencies.
type Option func(*Handlers)

// WithHistory enables /history.
func WithHistory(h HistorySource) Option {
	return func(hs *Handlers) { hs.history = h }
}

// WithHealth adds database health to /health.
func WithHealth(h HealthSource) Option {
	return func(hs *Handlers) { hs.health = h }
}

// WithScheduler adds scheduler state to /health.
func WithScheduler(s SchedulerSource) Option {
	return func(hs *Handlers) { hs.scheduler = s }
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl Controller, version string, opts ...Option) *Handlers {
	h := &Handlers{ctrl: ctrl, version: version, started: time.Now()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// writeJSON writes JSON response with proper error handling
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := r.Context().Value(RequestIDKey).(string)
	if requestID == "" {
		requestID = "unknown"
	}

	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	})
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

// Health reports liveness plus optional dependency state.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   h.version,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
	}

	if h.health != nil {
		hc := h.health.Health(r.Context())
		resp.Database = &hc
		if !hc.Healthy {
			resp.Status = "degraded"
		}
	}
	if h.scheduler != nil {
		st := h.scheduler.GetStatus()
		resp.Scheduler = &st
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, resp)
}

// Status returns the controller status snapshot.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ctrl.Status())
}

// Switches returns recent decisions, most recent first.
func (h *Handlers) Switches(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultSwitchLimit, maxSwitchLimit)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	switches := h.ctrl.RecentSwitches(limit)
	h.writeJSON(w, http.StatusOK, SwitchesResponse{
		Timestamp: time.Now().UTC(),
		Count:     len(switches),
		Switches:  switches,
	})
}

// History returns persisted switches between from and to (RFC3339).
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, r, http.StatusNotFound, "history_unavailable", "No persistent switch history is configured")
		return
	}

	limit, err := parseLimit(r, defaultSwitchLimit, maxHistoryLimit)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	var tr persistence.TimeRange
	for name, dst := range map[string]*time.Time{"from": &tr.From, "to": &tr.To} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "invalid_time", name+" must be RFC3339")
			return
		}
		*dst = t
	}

	records, err := h.history.ListSwitches(r.Context(), tr, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list switch history")
		h.writeError(w, r, http.StatusInternalServerError, "history_failed", "Failed to load switch history")
		return
	}

	h.writeJSON(w, http.StatusOK, HistoryResponse{
		From:    tr.From,
		To:      tr.To,
		Count:   len(records),
		Records: records,
	})
}

// Evaluate runs one cycle on demand. The cycle is not tied to the client
// connection so a disconnect cannot interrupt a commit.
func (h *Handlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), evaluateTimeout)
	defer cancel()

	res := h.ctrl.RunCycle(ctx)
	h.writeJSON(w, http.StatusOK, res)
}

// GetConfig returns the active switching configuration.
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ctrl.Config())
}

// UpdateConfig merges a partial override into the active configuration.
func (h *Handlers) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var o config.Override
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	cfg, err := h.ctrl.UpdateConfig(o)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_config", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

func parseLimit(r *http.Request, def, ceiling int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > ceiling {
		n = ceiling
	}
	return n, nil
}
