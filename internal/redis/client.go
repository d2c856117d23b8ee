// Package redis mirrors delivered snapshots into Redis for external readers.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
)

const (
	DefaultPrefix = "securonis:panel"
	DefaultTTL    = 30 * time.Second
)

// ErrNotMirrored is returned by Fetch when no snapshot is stored for a group
var ErrNotMirrored = errors.New("no mirrored snapshot")

// Mirror writes the latest snapshot of each group under <prefix>:snapshot:<group>
type Mirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewMirror connects to redisURL and checks the connection
func NewMirror(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*Mirror, error) {
	m, err := NewMirrorLazy(redisURL, prefix, ttl)
	if err != nil {
		return nil, err
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		m.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return m, nil
}

// NewMirrorLazy creates a mirror without testing the connection
func NewMirrorLazy(redisURL, prefix string, ttl time.Duration) (*Mirror, error) {
	if redisURL == "" {
		return nil, errors.New("empty Redis URL")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl < 0 {
		ttl = DefaultTTL
	}
	return &Mirror{client: redis.NewClient(opts), prefix: prefix, ttl: ttl}, nil
}

// SnapshotKey returns the key holding a group's latest snapshot
func (m *Mirror) SnapshotKey(group string) string {
	return m.prefix + ":snapshot:" + group
}

// UpdatedKey returns the hash recording when each group was last mirrored
func (m *Mirror) UpdatedKey() string {
	return m.prefix + ":updated"
}

// Publish stores snap as JSON with the mirror TTL and records its completion time
func (m *Mirror) Publish(ctx context.Context, group string, snap *types.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, m.SnapshotKey(group), data, m.ttl)
		pipe.HSet(ctx, m.UpdatedKey(), group, snap.CompletedAt().UnixMilli())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mirror snapshot %s: %w", group, err)
	}
	return nil
}

// Fetch returns the raw JSON of a group's latest mirrored snapshot
func (m *Mirror) Fetch(ctx context.Context, group string) (json.RawMessage, error) {
	data, err := m.client.Get(ctx, m.SnapshotKey(group)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotMirrored
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// Ping checks the Redis connection
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (m *Mirror) Close() error {
	return m.client.Close()
}
