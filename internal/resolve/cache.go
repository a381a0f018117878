package resolve

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Snapshot is a cached vocabulary map and when it was fetched.
type Snapshot struct {
	Map       Map       `json:"entries"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SnapshotStore persists vocabulary snapshots between requests.
// Implementations live in internal/db (SQLite) and internal/cache (Redis).
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, category string) (Snapshot, bool, error)
	PutSnapshot(ctx context.Context, category string, s Snapshot) error
	InvalidateSnapshots(ctx context.Context) error
}

// CachedProvider serves snapshots younger than ttl and refreshes older
// ones from the base provider. Store failures fall back to the base
// provider without failing the request.
type CachedProvider struct {
	base  Provider
	store SnapshotStore
	ttl   time.Duration
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewCachedProvider wraps base with a snapshot cache. A ttl <= 0 disables caching.
func NewCachedProvider(base Provider, store SnapshotStore, ttl time.Duration, log logrus.FieldLogger) *CachedProvider {
	if base == nil {
		panic("resolve.NewCachedProvider: base provider is nil")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CachedProvider{base: base, store: store, ttl: ttl, log: log, now: time.Now}
}

// Vocabulary implements Provider.
func (c *CachedProvider) Vocabulary(ctx context.Context, category string) (Map, error) {
	if c.store == nil || c.ttl <= 0 {
		return c.base.Vocabulary(ctx, category)
	}

	snap, ok, err := c.store.GetSnapshot(ctx, category)
	if err != nil {
		c.log.WithError(err).WithField("category", category).Warn("vocabulary cache read failed")
	} else if ok && c.now().Sub(snap.FetchedAt) < c.ttl {
		return snap.Map, nil
	}

	m, err := c.base.Vocabulary(ctx, category)
	if err != nil {
		return Map{}, err
	}

	if err := c.store.PutSnapshot(ctx, category, Snapshot{Map: m, FetchedAt: c.now()}); err != nil {
		c.log.WithError(err).WithField("category", category).Warn("vocabulary cache write failed")
	}
	return m, nil
}

// Invalidate drops every cached snapshot.
func (c *CachedProvider) Invalidate(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.InvalidateSnapshots(ctx)
}
