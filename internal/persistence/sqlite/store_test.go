package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stratswitch/internal/persistence"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "stratswitch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Events(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 9, 7, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordEvent(ctx, persistence.Event{Action: "INITIAL_SWITCH", Details: "first", IsNotification: true, CreatedAt: base}))
	require.NoError(t, s.RecordEvent(ctx, persistence.Event{Action: "STRATEGY_SWITCH", Details: "second", IsNotification: true, CreatedAt: base.Add(time.Hour)}))
	assert.Error(t, s.RecordEvent(ctx, persistence.Event{}))

	events, err := s.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "STRATEGY_SWITCH", events[0].Action)
	assert.Equal(t, base.Add(time.Hour), events[0].CreatedAt)
	assert.True(t, events[1].IsNotification)
	assert.Equal(t, int64(0), events[1].SourceID)

	events, err = s.ListEvents(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestStore_Switches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LatestSwitch(ctx)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	base := time.Date(2025, 9, 7, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertSwitch(ctx, persistence.SwitchRecord{
		CycleID:      "c1",
		Action:       "INITIAL_SWITCH",
		ToStrategy:   "ma_crossover",
		ToInstrument: "EURUSD",
		Score:        0.72,
		Improvement:  0.72,
		Confidence:   0.8,
		Metrics:      map[string]float64{"total_trades": 40},
		SwitchedAt:   base,
	}))
	require.NoError(t, s.InsertSwitch(ctx, persistence.SwitchRecord{
		CycleID:        "c2",
		Action:         "STRATEGY_SWITCH",
		FromStrategy:   "ma_crossover",
		FromInstrument: "EURUSD",
		ToStrategy:     "rsi_reversion",
		ToInstrument:   "GBPUSD",
		Score:          0.85,
		Improvement:    0.13,
		SwitchedAt:     base.Add(48 * time.Hour),
	}))
	assert.Error(t, s.InsertSwitch(ctx, persistence.SwitchRecord{ToStrategy: "x"}))

	latest, err := s.LatestSwitch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rsi_reversion", latest.ToStrategy)
	assert.Equal(t, "ma_crossover", latest.FromStrategy)
	assert.Equal(t, base.Add(48*time.Hour), latest.SwitchedAt)
	assert.Empty(t, latest.Metrics)

	all, err := s.ListSwitches(ctx, persistence.TimeRange{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c2", all[0].CycleID)
	assert.Equal(t, 40.0, all[1].Metrics["total_trades"])

	early, err := s.ListSwitches(ctx, persistence.TimeRange{From: base, To: base.Add(time.Hour)}, 10)
	require.NoError(t, err)
	require.Len(t, early, 1)
	assert.Equal(t, "c1", early[0].CycleID)
}
