package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/crewmesh/capability"
	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/logging"
)

// Cache memoizes one Context per crew, keyed by crew identity and guarded by
// the crew's membership version.
//
// Get is read-through: a cached context whose stored version equals the
// crew's current version is returned as-is; anything else triggers a rebuild
// under a per-crew lock, so concurrent misses for the same crew produce a
// single rebuild and every caller receives the same instance. A missed
// Invalidate costs at most one extra rebuild, never a stale capability set,
// because the version comparison is authoritative.
type Cache struct {
	crews  core.CrewStore
	binder capability.Binder
	logger logging.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	mu  sync.Mutex
	ctx *Context
}

// NewCache constructs a cache over a crew store.
func NewCache(crews core.CrewStore, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Cache{
		crews:   crews,
		logger:  logger,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the current execution context for a crew, rebuilding it when
// the cached membership version is stale or no context exists yet.
func (c *Cache) Get(ctx context.Context, crewID string) (*Context, error) {
	entry := c.entry(crewID)

	// Serialize per crew, not globally: rebuilds for unrelated crews must not
	// block each other.
	entry.mu.Lock()
	defer entry.mu.Unlock()

	version, err := c.crews.CrewVersion(ctx, crewID)
	if err != nil {
		return nil, fmt.Errorf("read crew version: %w", err)
	}

	if entry.ctx != nil && entry.ctx.Version() == version {
		return entry.ctx, nil
	}

	crew, err := c.crews.GetCrew(ctx, crewID)
	if err != nil {
		return nil, fmt.Errorf("load crew: %w", err)
	}

	descriptors, err := c.binder.Bind(crew.Members)
	if err != nil {
		return nil, err
	}

	entry.ctx = NewContext(crew.ID, crew.Name, crew.Version, descriptors)
	c.logger.Debug("execution context rebuilt",
		"crew_id", crew.ID,
		"version", crew.Version,
		"capabilities", len(descriptors),
	)
	return entry.ctx, nil
}

// Invalidate evicts the cached context for a crew, if any. Used when a
// membership change is known ahead of the next read.
func (c *Cache) Invalidate(crewID string) {
	c.mu.Lock()
	entry, ok := c.entries[crewID]
	c.mu.Unlock()
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.ctx = nil
	entry.mu.Unlock()
}

func (c *Cache) entry(crewID string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[crewID]
	if !ok {
		entry = &cacheEntry{}
		c.entries[crewID] = entry
	}
	return entry
}
