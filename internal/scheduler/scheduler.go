package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stratswitch/internal/config"
	"github.com/sawpanic/stratswitch/internal/switching"
)

// CycleRunner runs one evaluation cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) switching.CycleResult
}

// Status represents scheduler status
type Status struct {
	Running bool          `json:"running"`
	Spec    string        `json:"spec"`
	NextRun time.Time     `json:"next_run"`
	LastRun *JobResult    `json:"last_run,omitempty"`
	Runs    int           `json:"runs"`
	Uptime  time.Duration `json:"uptime"`
}

// JobResult represents the result of one scheduled cycle
type JobResult struct {
	CycleID   string            `json:"cycle_id"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Duration  time.Duration     `json:"duration"`
	Outcome   switching.Outcome `json:"outcome"`
	Switched  bool              `json:"switched"`
}

// Scheduler drives the controller on a cron cadence. Overlapping runs are
// skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner CycleRunner
	cfg    config.SchedulerConfig
	ctx    context.Context
	entry  cron.EntryID

	mu        sync.Mutex
	running   bool
	startTime time.Time
	lastRun   *JobResult
	runs      int
}

// NewScheduler validates the cron spec and registers the cycle job.
func NewScheduler(ctx context.Context, runner CycleRunner, cfg config.SchedulerConfig) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("cycle runner is required")
	}

	logger := cronLogger{l: log.With().Str("component", "scheduler").Logger()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		runner: runner,
		cfg:    cfg,
		ctx:    ctx,
	}

	id, err := s.cron.AddFunc(cfg.Spec, func() { s.RunNow() })
	if err != nil {
		return nil, fmt.Errorf("register cycle job %q: %w", cfg.Spec, err)
	}
	s.entry = id
	return s, nil
}

// Start starts the cron loop, running one cycle first when configured.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.startTime = time.Now()
	s.mu.Unlock()

	if s.cfg.RunOnStart {
		go s.RunNow()
	}
	s.cron.Start()
	log.Info().Str("spec", s.cfg.Spec).Bool("run_on_start", s.cfg.RunOnStart).Msg("Scheduler started")
}

// Stop stops the cron loop and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

// RunNow executes one cycle immediately with the configured timeout.
func (s *Scheduler) RunNow() JobResult {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	res := s.runner.RunCycle(ctx)
	end := time.Now()

	jr := JobResult{
		CycleID:   res.ID,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Outcome:   res.Outcome,
		Switched:  res.Decision != nil,
	}

	s.mu.Lock()
	s.lastRun = &jr
	s.runs++
	s.mu.Unlock()

	log.Debug().
		Str("cycle_id", jr.CycleID).
		Str("outcome", string(jr.Outcome)).
		Dur("duration", jr.Duration).
		Msg("Scheduled cycle finished")
	return jr
}

// GetStatus returns current scheduler status
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running: s.running,
		Spec:    s.cfg.Spec,
		Runs:    s.runs,
		NextRun: s.cron.Entry(s.entry).Next,
	}
	if s.lastRun != nil {
		last := *s.lastRun
		st.LastRun = &last
	}
	if s.running {
		st.Uptime = time.Since(s.startTime)
	}
	return st
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
