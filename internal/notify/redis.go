package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sawpanic/stratswitch/internal/persistence"
)

// RedisPublisher stores the latest event under a status key and publishes
// every event on a channel for downstream subscribers.
type RedisPublisher struct {
	client    *redis.Client
	statusKey string
	channel   string
	timeout   time.Duration
}

// NewRedisPublisher connects to addr and verifies the connection.
func NewRedisPublisher(addr, password string, db int, statusKey, channel string) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     4,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return newRedisPublisher(rdb, statusKey, channel), nil
}

func newRedisPublisher(client *redis.Client, statusKey, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:    client,
		statusKey: statusKey,
		channel:   channel,
		timeout:   3 * time.Second,
	}
}

// RecordEvent implements Sink.
func (p *RedisPublisher) RecordEvent(ctx context.Context, e persistence.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.Set(ctx, p.statusKey, string(payload), 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, string(payload)).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// LastEvent reads back the stored status event.
func (p *RedisPublisher) LastEvent(ctx context.Context) (*persistence.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	val, err := p.client.Get(ctx, p.statusKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var e persistence.Event
	if err := json.Unmarshal([]byte(val), &e); err != nil {
		return nil, fmt.Errorf("failed to decode status event: %w", err)
	}
	return &e, nil
}

// Close releases the client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
