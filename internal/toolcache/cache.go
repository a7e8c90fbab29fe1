// Package toolcache maintains the process-wide mapping from tool-provider
// connection names to their advertised tool lists.
package toolcache

import (
	"encoding/json"
	"sync"
)

// ToolDescriptor describes a single capability exposed by a provider
// connection. Immutable once stored.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Cache is a concurrency-safe mapping from provider name to tool list.
// All sessions share one Cache instance; it is passed explicitly to its
// consumers rather than held in a package global.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]ToolDescriptor
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string][]ToolDescriptor)}
}

// Put inserts or replaces the tool list for name. A repeated connect with
// the same name overwrites rather than duplicates.
func (c *Cache) Put(name string, tools []ToolDescriptor) {
	copied := make([]ToolDescriptor, len(tools))
	copy(copied, tools)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = copied
}

// Remove deletes the entry for name. Removing an absent name is a no-op.
func (c *Cache) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

// Get returns the tool list for name.
func (c *Cache) Get(name string) ([]ToolDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tools, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	copied := make([]ToolDescriptor, len(tools))
	copy(copied, tools)
	return copied, true
}

// Snapshot returns a point-in-time copy of the whole cache. A snapshot taken
// concurrently with Put/Remove sees either the pre- or post-state for each
// entry, never a torn one.
func (c *Cache) Snapshot() map[string][]ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := make(map[string][]ToolDescriptor, len(c.entries))
	for name, tools := range c.entries {
		copied := make([]ToolDescriptor, len(tools))
		copy(copied, tools)
		snap[name] = copied
	}
	return snap
}

// Len returns the number of providers currently cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
