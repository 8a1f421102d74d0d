package cache

import (
	"log/slog"
	"sync"

	"github.com/datakit/tablesync/internal/syncsdk"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSize = 1024

// ResourceCache holds the last known server view of each table.
// Entries are evicted as soon as their schema tag is seen to be stale.
type ResourceCache interface {
	Get(tableID string) (*syncsdk.TableResource, bool)
	Put(tableID string, res *syncsdk.TableResource)
	InvalidateIfStale(tableID string, observedSchemaETag *string) bool
	UpdateDataTag(tableID string, tag syncsdk.SyncTag) bool
	Remove(tableID string)
	Has(tableID string) bool
	Len() int
	Lock(tableID string) func()
}

// TableCache is a bounded ResourceCache. Callers get copies, never the cached value.
type TableCache struct {
	entries *lru.Cache[string, *syncsdk.TableResource]

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

var _ ResourceCache = (*TableCache)(nil)

func New(size int) *TableCache {
	if size <= 0 {
		size = DefaultSize
	}

	entries, err := lru.NewWithEvict(size, func(tableID string, _ *syncsdk.TableResource) {
		slog.Debug("table cache evict", "table", tableID)
	})
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}

	return &TableCache{
		entries: entries,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (c *TableCache) Get(tableID string) (*syncsdk.TableResource, bool) {
	res, ok := c.entries.Get(tableID)
	if !ok {
		return nil, false
	}
	return res.Clone(), true
}

func (c *TableCache) Put(tableID string, res *syncsdk.TableResource) {
	if res == nil {
		c.entries.Remove(tableID)
		return
	}
	c.entries.Add(tableID, res.Clone())
}

// InvalidateIfStale evicts the entry when its schema tag differs from the one
// just observed on the server. It reports whether an eviction happened.
func (c *TableCache) InvalidateIfStale(tableID string, observedSchemaETag *string) bool {
	res, ok := c.entries.Peek(tableID)
	if !ok {
		return false
	}
	if syncsdk.ETagEqual(res.SchemaETag, observedSchemaETag) {
		return false
	}

	slog.Info("table cache stale schema", "table", tableID,
		"cached", syncsdk.Deref(res.SchemaETag), "observed", syncsdk.Deref(observedSchemaETag))
	c.entries.Remove(tableID)
	return true
}

// UpdateDataTag records the data tag returned by a row mutation. A schema
// change evicts instead. Absent entries are left absent.
func (c *TableCache) UpdateDataTag(tableID string, tag syncsdk.SyncTag) bool {
	res, ok := c.entries.Peek(tableID)
	if !ok {
		return false
	}
	if c.InvalidateIfStale(tableID, tag.SchemaETag) {
		return false
	}

	updated := res.Clone()
	updated.DataETag = tag.Clone().DataETag
	c.entries.Add(tableID, updated)
	return true
}

func (c *TableCache) Remove(tableID string) {
	c.entries.Remove(tableID)
}

func (c *TableCache) Has(tableID string) bool {
	return c.entries.Contains(tableID)
}

func (c *TableCache) Len() int {
	return c.entries.Len()
}

// Lock serialises read-modify-write sequences on one table and returns the unlock func
func (c *TableCache) Lock(tableID string) func() {
	c.locksMu.Lock()
	mu, ok := c.locks[tableID]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[tableID] = mu
	}
	c.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
