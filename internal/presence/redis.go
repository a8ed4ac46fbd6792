package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "presence:"
	// lastSeenTTL bounds how long an offline record is kept around.
	lastSeenTTL = 30 * 24 * time.Hour
)

// RedisMirror stores presence snapshots as JSON under "presence:<id>".
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror wraps an existing client.
func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

// NewRedisClient parses redisURL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Publish writes the snapshot. Online records never expire; offline records
// keep lastSeen for lastSeenTTL.
func (m *RedisMirror) Publish(ctx context.Context, status Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}

	ttl := lastSeenTTL
	if status.Online {
		ttl = 0
	}
	if err := m.client.Set(ctx, presenceKey(status.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

// Lookup returns the stored snapshot, or nil when none exists.
func (m *RedisMirror) Lookup(ctx context.Context, userID string) (*Status, error) {
	data, err := m.client.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get presence: %w", err)
	}

	var status Status
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("unmarshal presence: %w", err)
	}
	return &status, nil
}

func presenceKey(userID string) string {
	return presenceKeyPrefix + userID
}
