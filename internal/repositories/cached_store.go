package repositories

import (
	"context"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	gocache "github.com/patrickmn/go-cache"
	"sync"
	"time"
)

const snapshotCacheKey = "snapshot"

type snapshotStore interface {
	Load(ctx context.Context) (models.Snapshot, error)
	Save(ctx context.Context, snapshot models.Snapshot) error
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// CachedStore keeps the last loaded or saved snapshot in memory. Every caller
// gets its own copy, so mutations outside Save never reach the cache.
// A Load that overlapped a Save does not fill the cache.
type CachedStore struct {
	store   snapshotStore
	cache   *gocache.Cache
	mu      sync.Mutex
	version uint64
}

func NewCachedStore(store snapshotStore) *CachedStore {
	return &CachedStore{store: store, cache: gocache.New(10*time.Minute, 20*time.Minute)}
}

func (c *CachedStore) Load(ctx context.Context) (models.Snapshot, error) {
	if value, found := c.cache.Get(snapshotCacheKey); found {
		return value.(models.Snapshot).Clone(), nil
	}

	c.mu.Lock()
	version := c.version
	c.mu.Unlock()

	snapshot, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version == version {
		c.cache.Set(snapshotCacheKey, snapshot.Clone(), gocache.DefaultExpiration)
	}
	return snapshot, nil
}

func (c *CachedStore) Save(ctx context.Context, snapshot models.Snapshot) error {
	err := c.store.Save(ctx, snapshot)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	if err != nil {
		c.cache.Delete(snapshotCacheKey)
		return err
	}
	c.cache.Set(snapshotCacheKey, snapshot.Clone(), gocache.DefaultExpiration)
	return nil
}

func (c *CachedStore) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.store.WithLock(ctx, fn)
}
