package catalog

import (
	"context"
	"sync"

	"storefront/internal/models"
)

// SnapshotCache holds the last accepted feed snapshot. Load returns nil on a miss.
type SnapshotCache interface {
	Load(ctx context.Context) (*models.CatalogSnapshot, error)
	Save(ctx context.Context, snapshot models.CatalogSnapshot) error
	Invalidate(ctx context.Context) error
}

// MemoryCache is the process-local SnapshotCache.
type MemoryCache struct {
	mu       sync.RWMutex
	snapshot *models.CatalogSnapshot
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Load(_ context.Context) (*models.CatalogSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil {
		return nil, nil
	}
	snap := c.snapshot.Clone()
	return &snap, nil
}

func (c *MemoryCache) Save(_ context.Context, snapshot models.CatalogSnapshot) error {
	snap := snapshot.Clone()

	c.mu.Lock()
	c.snapshot = &snap
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
	return nil
}
