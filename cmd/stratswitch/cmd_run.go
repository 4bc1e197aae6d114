package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/stratswitch/internal/config"
	httpapi "github.com/sawpanic/stratswitch/internal/interfaces/http"
	"github.com/sawpanic/stratswitch/internal/interfaces/http/handlers"
	"github.com/sawpanic/stratswitch/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the controller service",
		Long:  "Starts the scheduled evaluation loop and the HTTP API (/health, /status, /switches, /evaluate, /metrics, /ws/switches)",
		RunE:  runService,
	}
	cmd.Flags().Int("port", 0, "Override the HTTP port")
	cmd.Flags().Bool("no-scheduler", false, "Disable scheduled cycles (manual /evaluate only)")
	return cmd
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.HTTP.Port = port
	}
	if off, _ := cmd.Flags().GetBool("no-scheduler"); off {
		cfg.Scheduler.Enabled = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	a.restore(ctx)

	opts := a.handlerOptions()
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.NewScheduler(ctx, a.controller, cfg.Scheduler)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		opts = append(opts, handlers.WithScheduler(sched))
	}

	srvCfg := httpapi.DefaultServerConfig()
	srvCfg.Host = cfg.HTTP.Host
	srvCfg.Port = cfg.HTTP.Port
	if cfg.HTTP.ReadTimeout > 0 {
		srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	}
	if cfg.HTTP.WriteTimeout > 0 {
		srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	}

	server, err := httpapi.NewServer(srvCfg, handlers.NewHandlers(a.controller, version, opts...), httpapi.Streams{
		Metrics:  a.metrics.Handler(),
		Switches: a.hub,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	if sched != nil {
		sched.Start()
	}

	log.Info().
		Str("addr", server.GetAddress()).
		Bool("scheduler", sched != nil).
		Str("version", version).
		Msg("stratswitch running")

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			if sched != nil {
				sched.Stop()
			}
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}
	return nil
}
