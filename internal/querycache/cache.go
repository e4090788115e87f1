// Package querycache is a bounded client-side cache of backend query
// results. Entries are never dropped on invalidation, only marked stale, so
// readers keep a value to show while the next Fetch reloads it.
package querycache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aussiebroadwan/pulsarconsole/internal/metrics"
)

const DefaultSize = 512

type entry struct {
	key       Key
	value     any
	fetchedAt time.Time
	stale     bool
}

// invalidation is one Invalidate call remembered while loads are running.
type invalidation struct {
	epoch  uint64
	prefix Key
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *entry]

	// epoch advances on every Invalidate and Purge. While loads are in
	// flight the invalidated prefixes are kept so a load can tell whether
	// its result was already outdated when it arrived.
	epoch    uint64
	purged   uint64 // epoch of the last Purge
	inflight int
	recent   []invalidation

	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a cache holding at most size entries (DefaultSize if <= 0).
func New(size int, log *slog.Logger, m *metrics.Metrics) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.Discard()
	}

	entries, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, err
	}

	return &Cache{
		entries: entries,
		log:     log.With("component", "querycache"),
		metrics: m,
		now:     time.Now,
	}, nil
}

// Get returns the cached value for key and whether it has been marked stale.
func (c *Cache) Get(key Key) (value any, ok, stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key.id())
	if !ok {
		return nil, false, false
	}
	return e.value, true, e.stale
}

// Set stores a fresh value for key.
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Add(key.id(), &entry{
		key:       append(Key(nil), key...),
		value:     value,
		fetchedAt: c.now(),
	})
}

// Invalidate marks every entry whose key starts with prefix as stale and
// returns how many were marked.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	if c.inflight > 0 {
		c.recent = append(c.recent, invalidation{epoch: c.epoch, prefix: append(Key(nil), prefix...)})
	}

	n := 0
	for _, id := range c.entries.Keys() {
		e, ok := c.entries.Peek(id)
		if !ok || !e.key.HasPrefix(prefix) {
			continue
		}
		e.stale = true
		n++
	}

	label := "all"
	if len(prefix) > 0 {
		label = prefix[0]
	}
	c.metrics.Invalidations.WithLabelValues(label).Inc()
	c.log.Debug("invalidated", "prefix", prefix.String(), "entries", n)

	return n
}

// Remove drops key outright.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	c.entries.Remove(key.id())
	c.mu.Unlock()
}

// Purge drops every entry, e.g. after logout. Loads already running when
// Purge is called do not write their results back.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.epoch++
	c.purged = c.epoch
	c.recent = nil
	c.entries.Purge()
	c.mu.Unlock()
}

// begin registers a load and returns the epoch it started in.
func (c *Cache) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight++
	return c.epoch
}

// end unregisters a load started at epoch.
func (c *Cache) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight == 0 {
		c.recent = nil
	}
}

// settle stores the result of a load started at epoch. The result is
// dropped when the cache was purged since, and stored stale when a
// matching invalidation happened since. It reports whether it was stored.
func (c *Cache) settle(key Key, value any, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.purged > epoch {
		c.log.Debug("dropping result loaded before purge", "key", key.String())
		return false
	}

	stale := false
	for _, inv := range c.recent {
		if inv.epoch > epoch && key.HasPrefix(inv.prefix) {
			stale = true
			break
		}
	}

	c.entries.Add(key.id(), &entry{
		key:       append(Key(nil), key...),
		value:     value,
		fetchedAt: c.now(),
		stale:     stale,
	})
	return true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// ErrType is returned by Fetch when the cached value has another type.
var ErrType = errors.New("querycache: cached value has unexpected type")

// Fetch returns the cached value for key when it is present and fresh.
// Otherwise it calls load, caches the result and returns it. A failed load
// leaves any stale value in place. A result whose key was invalidated while
// load ran is cached stale, and one that outlived a Purge is not cached.
func Fetch[T any](ctx context.Context, c *Cache, key Key, load func(context.Context) (T, error)) (T, error) {
	var zero T

	v, ok, stale := c.Get(key)
	switch {
	case ok && !stale:
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		t, ok := v.(T)
		if !ok {
			return zero, ErrType
		}
		return t, nil
	case ok:
		c.metrics.CacheLookups.WithLabelValues("stale").Inc()
	default:
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	epoch := c.begin()
	defer c.end()

	t, err := load(ctx)
	if err != nil {
		return zero, err
	}
	c.settle(key, t, epoch)
	return t, nil
}
