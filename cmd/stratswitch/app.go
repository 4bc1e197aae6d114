package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stratswitch/internal/config"
	"github.com/sawpanic/stratswitch/internal/data"
	"github.com/sawpanic/stratswitch/internal/domain/condition"
	"github.com/sawpanic/stratswitch/internal/domain/scoring"
	"github.com/sawpanic/stratswitch/internal/infrastructure/db"
	"github.com/sawpanic/stratswitch/internal/interfaces/http/handlers"
	"github.com/sawpanic/stratswitch/internal/metrics"
	"github.com/sawpanic/stratswitch/internal/notify"
	"github.com/sawpanic/stratswitch/internal/persistence"
	"github.com/sawpanic/stratswitch/internal/persistence/sqlite"
	"github.com/sawpanic/stratswitch/internal/simulation"
	"github.com/sawpanic/stratswitch/internal/strategy"
	"github.com/sawpanic/stratswitch/internal/switching"
)

// app holds the wired service graph.
type app struct {
	cfg        *config.AppConfig
	registry   *strategy.Registry
	controller *switching.Controller
	metrics    *metrics.Registry
	hub        *notify.Hub
	history    persistence.SwitchRepo
	health     persistence.RepositoryHealth

	closers []func() error
}

// buildApp wires every collaborator from cfg. Optional backends that fail
// to connect are logged and left out.
func buildApp(cfg *config.AppConfig) (*app, error) {
	a := &app{
		cfg:     cfg,
		metrics: metrics.NewRegistry(),
		hub:     notify.NewHub(),
	}
	a.closers = append(a.closers, func() error { a.hub.Close(); return nil })

	a.registry = strategy.NewRegistry()
	if err := strategy.RegisterBuiltins(a.registry); err != nil {
		return nil, fmt.Errorf("failed to register strategies: %w", err)
	}

	sink := notify.NewFanout().Add("log", notify.LogSink{}).Add("websocket", a.hub)

	if err := a.openPersistence(sink); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Redis.Enabled() {
		pub, err := notify.NewRedisPublisher(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.Redis.StatusKey, cfg.Redis.EventsChannel)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis publisher unavailable, continuing without it")
		} else {
			sink.Add("redis", pub)
			a.closers = append(a.closers, pub.Close)
		}
	}

	deps := switching.Deps{
		Classifier: condition.NewClassifier(nil),
		Scorer:     scoring.NewScorer(a.registry, nil),
		Registry:   a.registry,
		Simulator:  simulation.NewEngine(a.registry, cfg.Simulation),
		Sink:       sink,
		Provider:   newProvider(cfg),
		Metrics:    a.metrics,
	}
	if a.history != nil {
		deps.History = a.history
	}
	if cfg.Switching.OverrideFile != "" {
		deps.Overrides = config.NewFileOverrideStore(cfg.Switching.OverrideFile)
	}

	ctrl, err := switching.New(cfg.Switching, deps)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}
	a.controller = ctrl

	log.Info().
		Int("sinks", sink.Len()).
		Strs("instruments", ctrl.Config().MonitoredInstruments).
		Strs("strategies", ctrl.Config().TestStrategies).
		Msg("Switching controller ready")
	return a, nil
}

// openPersistence attaches PostgreSQL and SQLite stores. PostgreSQL, when
// enabled, owns the switch history; SQLite records events either way.
func (a *app) openPersistence(sink *notify.Fanout) error {
	cfg := a.cfg

	if cfg.Database.Enabled {
		dbm, err := db.NewManager(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		a.closers = append(a.closers, dbm.Close)
		repos := dbm.Repository()
		sink.Add("postgres", repos.Events)
		a.history = repos.Switches
		a.health = dbm.Health()
	}

	if cfg.SQLite.Enabled {
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create sqlite dir: %w", err)
			}
		}
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		sink.Add("sqlite", store)
		if a.history == nil {
			a.history = store
		}
	}
	return nil
}

// newProvider builds cache -> guard -> csv. Cache hits skip the rate limit.
func newProvider(cfg *config.AppConfig) data.Provider {
	var p data.Provider = data.NewCSVProvider(cfg.Data.Dir)
	p = data.NewGuardedProvider("csv", p, cfg.Data)
	if cfg.Data.CacheTTL > 0 {
		cache := data.NewAutoCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		p = data.NewCachedProvider(p, cache, cfg.Data.CacheTTL)
	}
	return p
}

// restore re-adopts the last persisted switch so cooldown survives restarts.
func (a *app) restore(ctx context.Context) {
	if err := a.controller.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to restore switching state")
	}
}

// handlerOptions exposes the optional backends over HTTP.
func (a *app) handlerOptions() []handlers.Option {
	var opts []handlers.Option
	if a.history != nil {
		opts = append(opts, handlers.WithHistory(a.history))
	}
	if a.health != nil {
		opts = append(opts, handlers.WithHealth(a.health))
	}
	return opts
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	a.closers = nil
}
