package procdef

import (
	"context"
	"sync"

	"github.com/procflow/retryd/internal/state"
)

// Cache is a read-through cache of compiled process definitions keyed by
// definition id. Misses load the YAML source from the state store and compile
// it; redeployment invalidates the entry.
type Cache struct {
	store state.Store

	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewCache creates a definition cache over the given store.
func NewCache(store state.Store) *Cache {
	return &Cache{
		store: store,
		defs:  make(map[string]*Definition),
	}
}

// Get returns the compiled definition, loading and compiling it on a miss.
func (c *Cache) Get(ctx context.Context, definitionID string) (*Definition, error) {
	c.mu.RLock()
	def, ok := c.defs[definitionID]
	c.mu.RUnlock()
	if ok {
		return def, nil
	}

	record, err := c.store.GetDefinition(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	def, err = Parse([]byte(record.Source))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.defs[definitionID] = def
	c.mu.Unlock()
	return def, nil
}

// FindActivity looks up an activity inside a definition. A missing activity
// is not an error: the job may reference a node without retry semantics.
func (c *Cache) FindActivity(ctx context.Context, definitionID, activityID string) (*Activity, error) {
	def, err := c.Get(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	return def.FindActivity(activityID), nil
}

// Invalidate drops one cached definition, forcing a reload on next use.
func (c *Cache) Invalidate(definitionID string) {
	c.mu.Lock()
	delete(c.defs, definitionID)
	c.mu.Unlock()
}

// InvalidateAll drops every cached definition.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.defs = make(map[string]*Definition)
	c.mu.Unlock()
}
