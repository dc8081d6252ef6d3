package s3fs

import (
	"sync"
	"time"

	"github.com/winprojfs/winprojfs/pkg/types"
)

// listCache holds recent directory listings. Enumerations hit the same
// directory repeatedly (query, then paged continuations), and the driver's
// placeholder queries often follow immediately, so even a short TTL saves
// most of the list traffic.
type listCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	listing []types.EntryDescriptor
	expires time.Time
}

func newListCache(ttl time.Duration) *listCache {
	return &listCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *listCache) get(path string) ([]types.EntryDescriptor, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, path)
		return nil, false
	}
	out := make([]types.EntryDescriptor, len(entry.listing))
	copy(out, entry.listing)
	return out, true
}

func (c *listCache) put(path string, listing []types.EntryDescriptor) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]types.EntryDescriptor, len(listing))
	copy(stored, listing)
	c.entries[path] = cacheEntry{
		listing: stored,
		expires: time.Now().Add(c.ttl),
	}
}
