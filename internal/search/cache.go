package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// responseCache holds finished payloads keyed by the query window and graph
// version. Entries are immutable once inserted; a version bump changes the
// key, so stale payloads simply stop being addressed and age out by TTL.
type responseCache struct {
	lru *expirable.LRU[string, *Response]
}

func newResponseCache(capacity int, ttl time.Duration) *responseCache {
	return &responseCache{lru: expirable.NewLRU[string, *Response](capacity, nil, ttl)}
}

// key composes the cache key from the request and the graph version.
func (c *responseCache) key(query string, k, offset, version int, corpusID string) string {
	return fmt.Sprintf("%s|%d|%d|%d|%s", strings.TrimSpace(query), k, offset, version, corpusID)
}

func (c *responseCache) get(key string) (*Response, bool) {
	return c.lru.Get(key)
}

func (c *responseCache) put(key string, resp *Response) {
	c.lru.Add(key, resp)
}
