package cache

import (
	"errors"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/adrg/xdg"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/metrics"
)

// DefaultPath returns the default cache directory.
func DefaultPath() string {
	return filepath.Join(xdg.CacheHome, "crxsrc", "normalize")
}

// Cache stores normalizer output so unchanged inputs are not reformatted
// twice. It satisfies normalize.Cache and is safe for concurrent use.
type Cache struct {
	store   *Store
	metrics *metrics.Recorder
	log     *logging.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics counts cache hits on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Cache) {
		c.metrics = rec
	}
}

// Open opens or creates a cache at the given path.
func Open(path string, opts ...Option) (*Cache, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		store: store,
		log:   logging.Get("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Get returns the stored output for src under normalizer. Unreadable or
// stale entries count as misses.
func (c *Cache) Get(normalizer string, src []byte) ([]byte, bool) {
	key := MakeKey(normalizer, src)
	entry, err := c.store.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.log.Warn("cache read failed", "normalizer", normalizer, "err", err)
		}
		c.misses.Add(1)
		return nil, false
	}

	if entry.Version != EntryVersion || entry.SourceSize != int64(len(src)) {
		c.evict(key)
		c.misses.Add(1)
		return nil, false
	}

	out, err := entry.Output()
	if err != nil {
		c.log.Warn("cache entry corrupt", "normalizer", normalizer, "err", err)
		c.evict(key)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	c.metrics.CacheHit()
	return out, true
}

// Put stores out as the normalized form of src.
func (c *Cache) Put(normalizer string, src, out []byte) error {
	entry, err := NewEntry(normalizer, src, out)
	if err != nil {
		return err
	}
	return c.store.Put(MakeKey(normalizer, src), entry)
}

func (c *Cache) evict(key []byte) {
	if err := c.store.Delete(key); err != nil {
		c.log.Debug("cache evict failed", "err", err)
	}
}

// Hits returns the number of hits served by this handle.
func (c *Cache) Hits() int64 { return c.hits.Load() }

// Misses returns the number of misses seen by this handle.
func (c *Cache) Misses() int64 { return c.misses.Load() }

// NormalizerStats summarizes the entries of one normalizer.
type NormalizerStats struct {
	Normalizer string `json:"normalizer" yaml:"normalizer"`
	Entries    int    `json:"entries" yaml:"entries"`
	Bytes      int64  `json:"bytes" yaml:"bytes"`
}

// Stats summarizes the whole cache.
type Stats struct {
	Path        string            `json:"path" yaml:"path"`
	Entries     int               `json:"entries" yaml:"entries"`
	Bytes       int64             `json:"bytes" yaml:"bytes"`
	Normalizers []NormalizerStats `json:"normalizers" yaml:"normalizers"`
}

// Stats counts entries and stored bytes per normalizer.
func (c *Cache) Stats() (*Stats, error) {
	per := make(map[string]*NormalizerStats)
	stats := &Stats{Path: c.store.Path()}

	err := c.store.Walk(nil, func(key []byte, size int64) {
		name, _ := ParseKey(key)
		ns, ok := per[name]
		if !ok {
			ns = &NormalizerStats{Normalizer: name}
			per[name] = ns
		}
		ns.Entries++
		ns.Bytes += size
		stats.Entries++
		stats.Bytes += size
	})
	if err != nil {
		return nil, err
	}

	for _, ns := range per {
		stats.Normalizers = append(stats.Normalizers, *ns)
	}
	sort.Slice(stats.Normalizers, func(i, j int) bool {
		return stats.Normalizers[i].Normalizer < stats.Normalizers[j].Normalizer
	})
	return stats, nil
}

// Clear removes all entries of one normalizer.
func (c *Cache) Clear(normalizer string) (int, error) {
	n, err := c.store.DeletePrefix(MakeKeyPrefix(normalizer))
	if err != nil {
		return 0, err
	}
	c.log.Info("cache cleared", "normalizer", normalizer, "entries", n)
	return n, nil
}

// ClearAll removes all cached entries.
func (c *Cache) ClearAll() error {
	if err := c.store.DropAll(); err != nil {
		return err
	}
	c.log.Info("cache cleared")
	return nil
}
