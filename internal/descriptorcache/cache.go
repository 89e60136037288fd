package descriptorcache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	defaultSchemaMemoryTTL  = 24 * time.Hour
	defaultVersionMemoryTTL = 6 * time.Hour
	memoryCacheSize         = 256
)

// Cache is the two-tier (memory + disk) store for reflected gRPC schemas
// and app-version probes. A Cache is safe for concurrent use; concurrent
// refreshes for the same key are collapsed via singleflight so only one
// goroutine actually hits the network.
type Cache struct {
	schemas  *lru.LRU[string, SchemaEntry]
	versions *lru.LRU[string, VersionEntry]
	disk     *diskStore

	schemaTTL  time.Duration
	versionTTL time.Duration

	sfSchema  singleflight.Group
	sfVersion singleflight.Group
}

// NewCache builds a Cache rooted at dir (typically <cache.dir>/descriptors
// and <cache.dir>/versions.json, per the configuration table). schemaTTL
// governs the memory tier only; disk entries are treated as fresh until the
// caller re-derives freshness from CheckNeedsUpdate or by re-reflecting.
func NewCache(dir string, schemaTTL time.Duration) *Cache {
	if schemaTTL <= 0 {
		schemaTTL = defaultSchemaMemoryTTL
	}
	return &Cache{
		schemas:    lru.NewLRU[string, SchemaEntry](memoryCacheSize, nil, schemaTTL),
		versions:   lru.NewLRU[string, VersionEntry](memoryCacheSize, nil, defaultVersionMemoryTTL),
		disk:       newDiskStore(dir),
		schemaTTL:  schemaTTL,
		versionTTL: defaultVersionMemoryTTL,
	}
}

// Occupancy reports the memory tier's current entry counts, without
// touching the disk tier or triggering any singleflight refresh.
func (c *Cache) Occupancy() Occupancy {
	return Occupancy{
		SchemaEntries:   c.schemas.Len(),
		VersionEntries:  c.versions.Len(),
		SchemaCapacity:  memoryCacheSize,
		VersionCapacity: memoryCacheSize,
	}
}

// GetSchema returns a cached schema for endpoint if the memory tier has it;
// otherwise it falls through to disk and promotes a hit back into memory.
func (c *Cache) GetSchema(endpoint string) (SchemaEntry, bool) {
	if entry, ok := c.schemas.Get(endpoint); ok {
		return entry, true
	}
	if entry, ok := c.disk.LoadSchema(endpoint); ok {
		c.schemas.Add(endpoint, entry)
		return entry, true
	}
	return SchemaEntry{}, false
}

// PutSchema unconditionally stores a freshly reflected schema for endpoint,
// overwriting any existing entry in both tiers. Used when a caller has
// already decided (via CheckNeedsUpdate) that whatever was cached before
// can no longer be trusted, rather than going through FetchSchema's
// cache-or-fetch-once path.
func (c *Cache) PutSchema(entry SchemaEntry) {
	c.schemas.Add(entry.Endpoint, entry)
	_ = c.disk.SaveSchema(entry)
}

// FetchSchema returns a cached schema for endpoint, or calls fetch exactly
// once (even under concurrent callers for the same endpoint) and persists
// the result to both tiers.
func (c *Cache) FetchSchema(ctx context.Context, endpoint string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if entry, ok := c.GetSchema(endpoint); ok {
		return entry.Raw, nil
	}

	result, err, _ := c.sfSchema.Do(endpoint, func() (any, error) {
		raw, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		entry := SchemaEntry{Endpoint: endpoint, FetchedAt: time.Now(), Raw: raw}
		c.schemas.Add(endpoint, entry)
		_ = c.disk.SaveSchema(entry)
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
