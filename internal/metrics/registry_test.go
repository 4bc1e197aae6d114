package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RecordsCycleTelemetry(t *testing.T) {
	m := NewRegistry()

	m.ObserveCycle("switched", 150*time.Millisecond)
	m.ObserveCycle("cooldown", time.Millisecond)
	m.ObserveCycle("cooldown", time.Millisecond)
	m.PairSkipped("no_data")
	m.PairScored("ma_crossover", "EURUSD", 0.71)
	m.Switched("INITIAL_SWITCH", 0.71)
	m.Switched("STRATEGY_SWITCH", 0.83)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CycleOutcomes.WithLabelValues("switched")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CycleOutcomes.WithLabelValues("cooldown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PairsSkipped.WithLabelValues("no_data")))
	assert.Equal(t, 0.71, testutil.ToFloat64(m.PairScore.WithLabelValues("ma_crossover", "EURUSD")))
	assert.Equal(t, 0.83, m.ActivePairingScore())
	assert.Equal(t, 2.0, m.SwitchCount("INITIAL_SWITCH", "STRATEGY_SWITCH"))
	assert.Equal(t, 2, testutil.CollectAndCount(m.CycleDuration))
}

func TestRegistry_Handler(t *testing.T) {
	m := NewRegistry()
	m.Switched("INITIAL_SWITCH", 0.7)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `stratswitch_switches_total{action="INITIAL_SWITCH"} 1`))
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRegistry_IndependentInstances(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.PairSkipped("unknown_strategy")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.PairsSkipped.WithLabelValues("unknown_strategy")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PairsSkipped.WithLabelValues("unknown_strategy")))
}
