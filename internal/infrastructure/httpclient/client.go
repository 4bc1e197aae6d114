package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config controls retries for calls against a stratswitch service.
type Config struct {
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	UserAgent      string
}

// DefaultConfig returns the CLI client settings.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 10 * time.Second,
		MaxRetries:     2,
		BackoffBase:    200 * time.Millisecond,
		BackoffMax:     2 * time.Second,
		UserAgent:      "stratswitch-cli",
	}
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("service returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("service returned %d", e.Status)
}

// Client performs JSON requests against a base URL with bounded retries on
// transient failures.
type Client struct {
	base   string
	config Config
	http   *http.Client
}

// New creates a client for base, e.g. "http://127.0.0.1:8090".
func New(base string, config Config) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		config: config,
		http:   &http.Client{Timeout: config.RequestTimeout},
	}
}

// GetJSON fetches path and decodes the body into dst.
func (c *Client) GetJSON(ctx context.Context, path string, dst interface{}) error {
	return c.do(ctx, http.MethodGet, path, dst)
}

// PostJSON posts an empty body to path and decodes the response into dst.
func (c *Client) PostJSON(ctx context.Context, path string, dst interface{}) error {
	return c.do(ctx, http.MethodPost, path, dst)
}

func (c *Client) do(ctx context.Context, method, path string, dst interface{}) error {
	url := c.base + path

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			log.Debug().
				Dur("backoff", backoff).
				Int("attempt", attempt).
				Str("url", url).
				Msg("Retrying API request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		if c.config.UserAgent != "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to reach service: %w", err)
			if isRetryableError(err) {
				continue
			}
			return lastErr
		}

		err = decode(resp, dst)
		var apiErr *APIError
		if errors.As(err, &apiErr) && isRetryableStatus(apiErr.Status) {
			lastErr = err
			continue
		}
		return err
	}
	return lastErr
}

func decode(resp *http.Response, dst interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); err == nil && json.Unmarshal(raw, &body) == nil {
			apiErr.Code = body.Code
			apiErr.Message = body.Message
		}
		return apiErr
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	backoff := c.config.BackoffBase * time.Duration(1<<uint(attempt))
	if c.config.BackoffMax > 0 && backoff > c.config.BackoffMax {
		backoff = c.config.BackoffMax
	}

	// up to 10% jitter
	jitter := time.Duration(rand.Float64() * 0.1 * float64(backoff))
	return backoff + jitter
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "temporary failure"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
