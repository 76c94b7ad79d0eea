package health

import (
	"sync"
	"time"
)

// DefaultFreshness is how long a cached result is served before a new log
// scan is performed.
const DefaultFreshness = 60 * time.Second

// cache holds recent results keyed by server name. Freshness is judged
// against each result's CheckedAt so repeated polling inside the window
// returns byte-identical results.
type cache struct {
	mu        sync.Mutex
	freshness time.Duration
	results   map[string]*Result
}

func newCache(freshness time.Duration) *cache {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &cache{
		freshness: freshness,
		results:   make(map[string]*Result),
	}
}

// get returns the cached result for name if it is still fresh.
func (c *cache) get(name string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, ok := c.results[name]
	if !ok {
		return nil, false
	}
	if time.Since(result.CheckedAt) > c.freshness {
		delete(c.results, name)
		return nil, false
	}
	return result, true
}

func (c *cache) put(result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[result.ServerName] = result
}

func (c *cache) invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.results, name)
}
