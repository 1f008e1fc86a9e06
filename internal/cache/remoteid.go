package cache

import "sync"

// RemoteIDCache maps session marker keys to the remote document ids the
// backend assigned on their first insert.
type RemoteIDCache struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewRemoteIDCache creates a new RemoteIDCache
func NewRemoteIDCache() *RemoteIDCache {
	return &RemoteIDCache{
		ids: make(map[string]string),
	}
}

// Get retrieves a remote id by marker key
func (c *RemoteIDCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[key]
	return id, ok
}

// Set stores a remote id by marker key. An empty id is ignored.
func (c *RemoteIDCache) Set(key, id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[key] = id
}

// SetIfAbsent stores id only when key has no remote id yet and reports
// whether it did. Two racing first inserts keep the earlier id.
func (c *RemoteIDCache) SetIfAbsent(key, id string) bool {
	if id == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[key]; ok {
		return false
	}
	c.ids[key] = id
	return true
}

// Len returns the number of cached ids
func (c *RemoteIDCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// Reset clears all ids from the cache
func (c *RemoteIDCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = make(map[string]string)
}
