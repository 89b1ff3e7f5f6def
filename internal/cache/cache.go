package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/your-org/storefront/internal/domain"
)

const (
	defaultShardCount      = 16
	defaultCleanupInterval = 1 * time.Minute
)

// entry is a cached value. A zero expiresAt never expires.
type entry struct {
	value     interface{}
	storedAt  time.Time
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type shard struct {
	mu    sync.RWMutex
	items map[string]*entry
}

// ShardedCache spreads keys over independently locked shards so readers of
// different keys never contend. With a zero TTL entries live until Delete or Clear.
type ShardedCache struct {
	shards          []*shard
	ttl             time.Duration
	cleanupInterval time.Duration

	workerMu      sync.Mutex
	workerRunning bool
	workerStop    chan struct{}
	workerWg      sync.WaitGroup
}

// NewShardedCache creates a cache with shardCount shards. ttl <= 0 disables expiry.
func NewShardedCache(shardCount int, ttl time.Duration) *ShardedCache {
	if shardCount < 1 {
		shardCount = defaultShardCount
	}
	if ttl < 0 {
		ttl = 0
	}

	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{items: make(map[string]*entry)}
	}

	return &ShardedCache{
		shards:          shards,
		ttl:             ttl,
		cleanupInterval: defaultCleanupInterval,
	}
}

func (c *ShardedCache) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Get retrieves a live value by key (implements domain.Cache)
func (c *ShardedCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if ctx.Err() != nil {
		return nil, false
	}

	s := c.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	if !ok || e.expired(time.Now()) {
		// expired entries are left for CleanExpired
		return nil, false
	}
	return e.value, true
}

// Set stores value under key (implements domain.Cache)
func (c *ShardedCache) Set(ctx context.Context, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now()
	e := &entry{value: value, storedAt: now}
	if c.ttl > 0 {
		e.expiresAt = now.Add(c.ttl)
	}

	s := c.shardFor(key)
	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
	return nil
}

// Delete removes key (implements domain.Cache)
func (c *ShardedCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := c.shardFor(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// CleanExpired drops expired entries shard by shard (implements domain.Cache)
func (c *ShardedCache) CleanExpired(ctx context.Context) error {
	if c.ttl == 0 {
		return nil
	}
	for _, s := range c.shards {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := time.Now()
		s.mu.Lock()
		for key, e := range s.items {
			if e.expired(now) {
				delete(s.items, key)
			}
		}
		s.mu.Unlock()
	}
	return nil
}

// Clear removes every entry (implements domain.Cache)
func (c *ShardedCache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.items = make(map[string]*entry)
		s.mu.Unlock()
	}
}

// StartCleanupWorker starts the background expiry sweep. It is a no-op when
// the cache never expires or the worker already runs.
func (c *ShardedCache) StartCleanupWorker() {
	c.workerMu.Lock()
	defer c.workerMu.Unlock()

	if c.workerRunning || c.ttl == 0 {
		return
	}

	c.workerRunning = true
	c.workerStop = make(chan struct{})
	c.workerWg.Add(1)
	go c.cleanupLoop(c.workerStop)
}

// StopCleanupWorker stops the sweep and waits for it to exit
func (c *ShardedCache) StopCleanupWorker() {
	c.workerMu.Lock()
	defer c.workerMu.Unlock()

	if !c.workerRunning {
		return
	}

	close(c.workerStop)
	c.workerWg.Wait()
	c.workerRunning = false
}

func (c *ShardedCache) cleanupLoop(stop <-chan struct{}) {
	defer c.workerWg.Done()

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_ = c.CleanExpired(ctx)
			cancel()
		}
	}
}

// Stats is a point-in-time view of the cache
type Stats struct {
	ShardCount int
	TotalItems int
	Expired    int
	PerShard   []int
}

// GetStats counts entries per shard
func (c *ShardedCache) GetStats() Stats {
	stats := Stats{
		ShardCount: len(c.shards),
		PerShard:   make([]int, len(c.shards)),
	}

	now := time.Now()
	for i, s := range c.shards {
		s.mu.RLock()
		stats.PerShard[i] = len(s.items)
		for _, e := range s.items {
			if e.expired(now) {
				stats.Expired++
			}
		}
		s.mu.RUnlock()
		stats.TotalItems += stats.PerShard[i]
	}
	return stats
}

var _ domain.Cache = (*ShardedCache)(nil)
