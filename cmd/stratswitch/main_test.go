package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stratswitch/internal/config"
	"github.com/sawpanic/stratswitch/internal/domain/scoring"
	"github.com/sawpanic/stratswitch/internal/switching"
)

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, setupLogging(&buf, "DEBUG"))
	require.NoError(t, setupLogging(&buf, "warn"))
	assert.Error(t, setupLogging(&buf, "loud"))
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Data.Dir = filepath.Join(dir, "history")
	cfg.Data.CacheTTL = 0
	cfg.SQLite.Path = filepath.Join(dir, "db", "stratswitch.db")
	cfg.Switching.OverrideFile = filepath.Join(dir, "overrides.yaml")
	require.NoError(t, os.MkdirAll(cfg.Data.Dir, 0o755))
	return cfg
}

func TestBuildApp_EmptyDataDir(t *testing.T) {
	cfg := testConfig(t)

	a, err := buildApp(cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.controller)
	require.NotNil(t, a.history)
	assert.Len(t, a.handlerOptions(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.restore(ctx)

	res := a.controller.RunCycle(ctx)
	assert.Equal(t, switching.OutcomeNoCandidates, res.Outcome)
	assert.Len(t, res.Skipped, len(cfg.Switching.MonitoredInstruments))
	for _, sp := range res.Skipped {
		assert.Equal(t, switching.SkipNoData, sp.Reason)
	}
	assert.False(t, a.controller.Status().Active)
}

func TestBuildApp_OverrideFileApplied(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Switching.OverrideFile, []byte("switch_threshold: 0.3\n"), 0o644))

	a, err := buildApp(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 0.3, a.controller.Config().SwitchThreshold)
}

func TestPrintCycle(t *testing.T) {
	res := switching.CycleResult{
		ID:      "abc",
		Outcome: switching.OutcomeInitialSwitch,
		Ranking: []scoring.PerformanceScore{
			{StrategyID: "ma_crossover", Instrument: "EURUSD", Composite: 0.72},
			{StrategyID: "rsi_reversion", Instrument: "XAUUSD", Composite: 0.61},
		},
		Skipped: []switching.SkippedPair{{Instrument: "US30", Reason: switching.SkipNoData}},
		Decision: &switching.SwitchDecision{
			Action: switching.ActionInitialSwitch,
			To:     switching.Pairing{StrategyID: "ma_crossover", Instrument: "EURUSD"},
			Score:  0.72,
		},
	}

	var buf bytes.Buffer
	printCycle(&buf, res, 1)
	out := buf.String()

	assert.Contains(t, out, "outcome=initial_switch")
	assert.Contains(t, out, "ma_crossover")
	assert.NotContains(t, out, "rsi_reversion")
	assert.Contains(t, out, "US30: no_data")
	assert.Contains(t, out, "Initial strategy selected: ma_crossover@EURUSD (score 0.720)")
}

func TestStatusCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			_ = json.NewEncoder(w).Encode(switching.Status{
				Pairing:       switching.Pairing{StrategyID: "momentum_roc", Instrument: "BTCUSD"},
				Active:        true,
				InCooldown:    true,
				TotalSwitches: 2,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"The requested endpoint does not exist"}`))
		}
	}))
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"status", "--addr", addr, "--log-level", "error"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "momentum_roc@BTCUSD")
	assert.Contains(t, out.String(), "2 total")

	root = newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"switches", "--addr", addr, "--log-level", "error"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
