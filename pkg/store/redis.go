// Package store persists the last successfully pushed price snapshot per dex
// in Redis for operational inspection. The store is optional; the relayer
// works without it.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tc.com/oracle-relayer/pkg/config"
	"tc.com/oracle-relayer/pkg/logging"
)

// Snapshot is the full set of prices sent in one successful push.
type Snapshot struct {
	Dex      string              `json:"dex"`
	Oracle   map[string]string   `json:"oracle"`
	Mark     map[string][]string `json:"mark"`
	External map[string]string   `json:"external"`
	PushedAt time.Time           `json:"pushed_at"`
}

// Store writes push snapshots to Redis.
type Store struct {
	client *redis.Client
	prefix string
	logger *logging.Logger
}

// New connects to Redis and verifies the connection.
func New(cfg config.RedisConfig, logger *logging.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{
		client: client,
		prefix: cfg.Prefix,
		logger: logger.With("component", "store"),
	}, nil
}

func (s *Store) key(dex string) string {
	return fmt.Sprintf("%s:last_push:%s", s.prefix, dex)
}

// SaveSnapshot stores the latest pushed snapshot for a dex, replacing any
// previous one.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(snap.Dex), data, 0).Err()
}

// LastSnapshot returns the most recently stored snapshot for a dex, or nil if
// none has been written.
func (s *Store) LastSnapshot(ctx context.Context, dex string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(dex)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Close closes the underlying Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
