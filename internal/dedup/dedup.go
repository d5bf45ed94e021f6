// Package dedup remembers which URLs have been submitted successfully.
//
// The cache only grows: entries are added after a confirmed submission and
// never evicted. It is safe for concurrent use.
package dedup

import (
	"sync"

	"github.com/dshills/linkarchiver/pkg/types"
)

// Entry is a recorded fingerprint with the URL it was computed from.
// URL is empty when only the fingerprint is known.
type Entry struct {
	Fingerprint types.Fingerprint
	URL         string
}

// Cache is an unbounded set of submitted fingerprints
type Cache struct {
	mu      sync.RWMutex
	entries map[types.Fingerprint]string
}

// New returns an empty cache
func New() *Cache {
	return &Cache{entries: make(map[types.Fingerprint]string)}
}

// Contains reports whether fp has been recorded
func (c *Cache) Contains(fp types.Fingerprint) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[fp]
	return ok
}

// Record marks fp as submitted
func (c *Cache) Record(fp types.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[fp]; !ok {
		c.entries[fp] = ""
	}
}

// RecordURL marks the fingerprint of url as submitted and keeps the URL
func (c *Cache) RecordURL(url string) types.Fingerprint {
	fp := types.NewFingerprint(url)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fp] = url
	return fp
}

// Len returns the number of recorded fingerprints
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot copies the current entries in no particular order
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for fp, url := range c.entries {
		out = append(out, Entry{Fingerprint: fp, URL: url})
	}
	return out
}

// Restore adds entries to the cache and returns how many were new
func (c *Cache) Restore(entries []Entry) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, e := range entries {
		existing, ok := c.entries[e.Fingerprint]
		if !ok {
			added++
		}
		if !ok || existing == "" {
			c.entries[e.Fingerprint] = e.URL
		}
	}
	return added
}
