package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stratswitch/internal/persistence"
)

func sampleEvent() persistence.Event {
	return persistence.Event{
		SourceID:       0,
		Action:         "STRATEGY_SWITCH",
		Details:        "Strategy switch: ma_crossover@EURUSD -> donchian_breakout@XAUUSD (improvement 0.150, score 0.700)",
		IsNotification: true,
		CreatedAt:      time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC),
	}
}

type stubSink struct {
	got []persistence.Event
	err error
}

func (s *stubSink) RecordEvent(_ context.Context, e persistence.Event) error {
	s.got = append(s.got, e)
	return s.err
}

func TestFanout_DeliversToAllSinks(t *testing.T) {
	ok := &stubSink{}
	failing := &stubSink{err: errors.New("boom")}
	last := &stubSink{}

	f := NewFanout().Add("ok", ok).Add("failing", failing).Add("nil", nil).Add("last", last)
	assert.Equal(t, 3, f.Len())

	err := f.RecordEvent(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing: boom")
	assert.Len(t, ok.got, 1)
	assert.Len(t, failing.got, 1)
	assert.Len(t, last.got, 1)

	assert.NoError(t, NewFanout().Add("ok", ok).RecordEvent(context.Background(), sampleEvent()))
	assert.NoError(t, LogSink{}.RecordEvent(context.Background(), sampleEvent()))
}

func TestRedisPublisher_RecordEvent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := newRedisPublisher(db, "stratswitch:status", "stratswitch:switches")

	ev := sampleEvent()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	mock.ExpectSet("stratswitch:status", string(payload), 0).SetVal("OK")
	mock.ExpectPublish("stratswitch:switches", string(payload)).SetVal(2)

	require.NoError(t, p.RecordEvent(context.Background(), ev))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_Errors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := newRedisPublisher(db, "status", "events")

	ev := sampleEvent()
	payload, _ := json.Marshal(ev)

	mock.ExpectSet("status", string(payload), 0).SetErr(errors.New("READONLY"))
	err := p.RecordEvent(context.Background(), ev)
	assert.ErrorContains(t, err, "redis set")

	mock.ExpectSet("status", string(payload), 0).SetVal("OK")
	mock.ExpectPublish("events", string(payload)).SetErr(errors.New("connection reset"))
	err = p.RecordEvent(context.Background(), ev)
	assert.ErrorContains(t, err, "redis publish")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_LastEvent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := newRedisPublisher(db, "status", "events")

	mock.ExpectGet("status").RedisNil()
	_, err := p.LastEvent(context.Background())
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	payload, _ := json.Marshal(sampleEvent())
	mock.ExpectGet("status").SetVal(string(payload))
	got, err := p.LastEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "STRATEGY_SWITCH", got.Action)
	assert.True(t, got.CreatedAt.Equal(sampleEvent().CreatedAt))

	mock.ExpectGet("status").SetErr(redis.ErrClosed)
	_, err = p.LastEvent(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHub_BroadcastsToClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.RecordEvent(context.Background(), sampleEvent()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got persistence.Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, sampleEvent().Details, got.Details)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseRejectsClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	hub.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		defer conn.Close()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err = conn.ReadMessage()
		assert.Error(t, err)
	}
	assert.Equal(t, 0, hub.Clients())
}
