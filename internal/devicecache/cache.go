// Package devicecache keeps the set of currently known devices, keyed by
// device ID, with a fixed time-to-live per entry.
package devicecache

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rokutools/rokuscan/internal/discovery"
	"github.com/rokutools/rokuscan/internal/logging"
)

// Defaults used when Options fields are zero
const (
	DefaultTTL         = time.Hour
	DefaultCheckPeriod = 2 * time.Minute
)

// Options configures a Cache
type Options struct {
	// TTL is how long an entry lives after its last Set
	TTL time.Duration

	// CheckPeriod is the janitor interval used by Run
	CheckPeriod time.Duration

	// Now overrides the clock (tests)
	Now func() time.Time

	// OnExpire is called, without the cache lock held, for every entry removed
	// because its TTL elapsed. FlushAll does not report entries.
	OnExpire func(*discovery.Device)
}

// Stats is a diagnostic snapshot of cache usage
type Stats struct {
	Keys   int   `json:"keys"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

type entry struct {
	device    *discovery.Device
	expiresAt time.Time
	seq       uint64
}

// Cache is a TTL map from device ID to device. It is safe for concurrent use.
type Cache struct {
	ttl         time.Duration
	checkPeriod time.Duration
	nowFn       func() time.Time
	onExpire    func(*discovery.Device)

	mu         sync.Mutex
	entries    map[string]entry
	seq        uint64
	hits       int64
	misses     int64
	lastInsert time.Time
}

// New creates an empty cache
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CheckPeriod <= 0 {
		opts.CheckPeriod = DefaultCheckPeriod
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Cache{
		ttl:         opts.TTL,
		checkPeriod: opts.CheckPeriod,
		nowFn:       opts.Now,
		onExpire:    opts.OnExpire,
		entries:     make(map[string]entry),
	}
}

// TTL returns the configured entry lifetime
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Set inserts or replaces the device stored under id and restarts its TTL.
// It reports whether id was not present before.
func (c *Cache) Set(id string, device *discovery.Device) bool {
	if id == "" || device == nil {
		return false
	}

	c.mu.Lock()
	now := c.nowFn()

	var expired []*discovery.Device
	old, exists := c.entries[id]
	if exists && c.expired(old, now) {
		delete(c.entries, id)
		expired = append(expired, old.device)
		exists = false
	}

	seq := old.seq
	if !exists {
		c.seq++
		seq = c.seq
	}
	c.entries[id] = entry{
		device:    device,
		expiresAt: now.Add(c.ttl),
		seq:       seq,
	}
	c.lastInsert = now
	c.mu.Unlock()

	c.notifyExpired(expired)
	return !exists
}

// Get returns the live device stored under id
func (c *Cache) Get(id string) (*discovery.Device, bool) {
	c.mu.Lock()
	var expired []*discovery.Device
	e, ok := c.entries[id]
	if ok && c.expired(e, c.nowFn()) {
		delete(c.entries, id)
		expired = append(expired, e.device)
		ok = false
	}
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	c.notifyExpired(expired)
	if !ok {
		return nil, false
	}
	return e.device, true
}

// All returns every live device in first-insert order
func (c *Cache) All() []*discovery.Device {
	c.mu.Lock()
	expired := c.evictLocked(c.nowFn())
	live := make([]entry, 0, len(c.entries))
	for _, e := range c.entries {
		live = append(live, e)
	}
	c.mu.Unlock()

	c.notifyExpired(expired)

	sort.Slice(live, func(i, j int) bool { return live[i].seq < live[j].seq })
	devices := make([]*discovery.Device, len(live))
	for i, e := range live {
		devices[i] = e.device
	}
	return devices
}

// Len returns the number of live entries
func (c *Cache) Len() int {
	return len(c.All())
}

// FlushAll removes every entry without reporting expiry
func (c *Cache) FlushAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Stats returns key count and hit/miss counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	keys := 0
	for _, e := range c.entries {
		if !c.expired(e, now) {
			keys++
		}
	}
	return Stats{Keys: keys, Hits: c.hits, Misses: c.misses}
}

// TimeSinceLastInsert reports the time elapsed since the most recent Set.
// ok is false when nothing has been inserted yet.
func (c *Cache) TimeSinceLastInsert() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastInsert.IsZero() {
		return 0, false
	}
	return c.nowFn().Sub(c.lastInsert), true
}

// Sweep removes expired entries and returns how many were removed
func (c *Cache) Sweep() int {
	c.mu.Lock()
	expired := c.evictLocked(c.nowFn())
	c.mu.Unlock()

	c.notifyExpired(expired)
	return len(expired)
}

// Run sweeps every CheckPeriod until ctx is done
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.checkPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				logging.Debug("Cache sweep evicted devices", zap.Int("count", n))
			}
		}
	}
}

func (c *Cache) expired(e entry, now time.Time) bool {
	return !now.Before(e.expiresAt)
}

func (c *Cache) evictLocked(now time.Time) []*discovery.Device {
	var gone []entry
	for id, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, id)
			gone = append(gone, e)
		}
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i].seq < gone[j].seq })

	devices := make([]*discovery.Device, len(gone))
	for i, e := range gone {
		devices[i] = e.device
	}
	return devices
}

func (c *Cache) notifyExpired(devices []*discovery.Device) {
	if c.onExpire == nil {
		return
	}
	for _, d := range devices {
		c.onExpire(d)
	}
}
