// Package cache keeps the most recent crawl result per folder for the lifetime of a page session.
package cache

import (
	"sync"

	"github.com/aluiziolira/go-asset-picker/models"
)

// AssetCache maps a folder path (e.g. "../public/weapon/") to its last crawled items.
// Entries are never evicted; the set of folders is bounded by the host page markup.
// Writes are last-completed-wins.
type AssetCache struct {
	mu      sync.RWMutex
	entries map[string][]models.ImageItem
}

// New creates an empty cache.
func New() *AssetCache {
	return &AssetCache{entries: make(map[string][]models.ImageItem)}
}

// Get returns a copy of the cached items for folderPath.
func (c *AssetCache) Get(folderPath string) ([]models.ImageItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	items, ok := c.entries[folderPath]
	if !ok {
		return nil, false
	}
	out := make([]models.ImageItem, len(items))
	copy(out, items)
	return out, true
}

// Set stores a copy of items for folderPath, replacing any existing entry.
func (c *AssetCache) Set(folderPath string, items []models.ImageItem) {
	stored := make([]models.ImageItem, len(items))
	copy(stored, items)

	c.mu.Lock()
	c.entries[folderPath] = stored
	c.mu.Unlock()
}

// Len reports the number of cached folders.
func (c *AssetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
