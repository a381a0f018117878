// Package cache stores vocabulary snapshots in Redis so several cardbot
// processes share one view of the board.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hpungsan/cardbot/internal/resolve"
	"github.com/hpungsan/cardbot/internal/ticket"
)

const keyPrefix = "cardbot:vocabulary:"

// Open parses a redis:// URL and checks the server answers.
func Open(ctx context.Context, redisURL string) (*redis.Client, error) {
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

// SnapshotStore implements resolve.SnapshotStore on Redis. Keys expire
// after ttl, so stale snapshots disappear even if nobody refreshes them.
type SnapshotStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSnapshotStore creates a store. A ttl <= 0 keeps keys until invalidated.
func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	if client == nil {
		panic("cache.NewSnapshotStore: redis client is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &SnapshotStore{redis: client, ttl: ttl}
}

// GetSnapshot implements resolve.SnapshotStore.
func (s *SnapshotStore) GetSnapshot(ctx context.Context, category string) (resolve.Snapshot, bool, error) {
	data, err := s.redis.Get(ctx, snapshotKey(category)).Bytes()
	if errors.Is(err, redis.Nil) {
		return resolve.Snapshot{}, false, nil
	}
	if err != nil {
		return resolve.Snapshot{}, false, err
	}

	var snap resolve.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		_ = s.redis.Del(ctx, snapshotKey(category)).Err()
		return resolve.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// PutSnapshot implements resolve.SnapshotStore.
func (s *SnapshotStore) PutSnapshot(ctx context.Context, category string, snap resolve.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, snapshotKey(category), data, s.ttl).Err()
}

// InvalidateSnapshots implements resolve.SnapshotStore.
func (s *SnapshotStore) InvalidateSnapshots(ctx context.Context) error {
	keys := make([]string, len(ticket.Categories))
	for i, c := range ticket.Categories {
		keys[i] = snapshotKey(c)
	}
	return s.redis.Del(ctx, keys...).Err()
}

func snapshotKey(category string) string {
	return keyPrefix + category
}
