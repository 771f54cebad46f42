// Package cache holds the optional cache in front of the first pages of
// the global feed.
package cache

import (
	"context"
	"fmt"
	"sync"

	"murmur/app/models"
)

// FeedCache caches pages of the unfiltered feed. Entries are tagged with a
// version; Invalidate bumps the version so every older entry is ignored.
// Callers read the version with Get before querying the store and hand the
// same version to Put, so a page computed before an invalidation is never
// stored under the newer version.
type FeedCache interface {
	Get(ctx context.Context, page, size int) (*models.Page[*models.Post], int64)
	Put(ctx context.Context, version int64, page, size int, p *models.Page[*models.Post])
	Invalidate(ctx context.Context)
}

// PageKey names the entry for one page under one version.
func PageKey(version int64, page, size int) string {
	return fmt.Sprintf("murmur:feed:v%d:page:%d:%d", version, page, size)
}

// Noop never caches.
type Noop struct{}

func (Noop) Get(context.Context, int, int) (*models.Page[*models.Post], int64) { return nil, 0 }
func (Noop) Put(context.Context, int64, int, int, *models.Page[*models.Post])  {}
func (Noop) Invalidate(context.Context)                                        {}

// Memory is a process-local FeedCache.
type Memory struct {
	mu      sync.RWMutex
	version int64
	pages   map[string]*models.Page[*models.Post]
}

func NewMemory() *Memory {
	return &Memory{pages: make(map[string]*models.Page[*models.Post])}
}

func (m *Memory) Get(_ context.Context, page, size int) (*models.Page[*models.Post], int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pages[PageKey(m.version, page, size)], m.version
}

func (m *Memory) Put(_ context.Context, version int64, page, size int, p *models.Page[*models.Post]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if version != m.version {
		return
	}
	m.pages[PageKey(version, page, size)] = p
}

func (m *Memory) Invalidate(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version++
	m.pages = make(map[string]*models.Page[*models.Post])
}
