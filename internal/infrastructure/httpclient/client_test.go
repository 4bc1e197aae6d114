package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = 5 * time.Millisecond
	return cfg
}

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "stratswitch-cli", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"active":true}`))
	}))
	defer srv.Close()

	var out struct {
		Active bool `json:"active"`
	}
	require.NoError(t, New(srv.URL+"/", fastConfig()).GetJSON(context.Background(), "/status", &out))
	assert.True(t, out.Active)
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		failFirst int32
		wantCalls int32
		wantErr   bool
	}{
		{"recovers after 503", http.StatusServiceUnavailable, 2, 3, false},
		{"gives up after max retries", http.StatusBadGateway, 10, 3, true},
		{"no retry on 404", http.StatusNotFound, 10, 1, true},
		{"no retry on 400", http.StatusBadRequest, 10, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) <= tt.failFirst {
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(`{"code":"x","message":"nope"}`))
					return
				}
				_, _ = w.Write([]byte(`{}`))
			}))
			defer srv.Close()

			err := New(srv.URL, fastConfig()).GetJSON(context.Background(), "/status", &map[string]interface{}{})
			assert.Equal(t, tt.wantCalls, calls.Load())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, "nope", apiErr.Message)
		})
	}
}

func TestClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(srv.URL, fastConfig()).GetJSON(ctx, "/status", nil)
	assert.Error(t, err)
}
