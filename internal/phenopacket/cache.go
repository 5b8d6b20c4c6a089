package phenopacket

import (
	"fmt"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a bounded LRU cache of loaded records keyed by absolute file
// path. Batch evaluation reads the same ground-truth documents against many
// predicted sets; the cache keeps the working set in memory without letting
// a large dataset scan grow unbounded. Records are immutable, so sharing a
// cached instance across callers is safe.
type Cache struct {
	records *lru.Cache[string, *Record]
}

// NewCache creates a record cache holding at most size entries.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New[string, *Record](size)
	if err != nil {
		return nil, fmt.Errorf("creating record cache: %w", err)
	}
	return &Cache{records: c}, nil
}

// Load returns the cached record for path, loading and caching it on a
// miss. Load failures are not cached; a fixed file is picked up on the
// next call.
func (c *Cache) Load(path string) (*Record, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving phenopacket path %s: %w", path, err)
	}

	if rec, ok := c.records.Get(abs); ok {
		return rec, nil
	}

	rec, err := LoadFromFile(abs)
	if err != nil {
		return nil, err
	}
	c.records.Add(abs, rec)
	return rec, nil
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	return c.records.Len()
}
