// Package memory — кэш выдач в памяти процесса для одиночного инстанса и тестов.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
)

// CacheRepo хранит выдачи в map под RWMutex и периодически вычищает просроченные.
type CacheRepo struct {
	mu      sync.RWMutex
	entries map[string]*domain.CacheEntry

	ttl  time.Duration
	now  func() time.Time
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewCacheRepo(cfg *cfg.CacheCfg) *CacheRepo {
	c := &CacheRepo{
		entries: make(map[string]*domain.CacheEntry),
		ttl:     cfg.TTL,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		c.wg.Add(1)
		go c.cleanupLoop(cfg.CleanupInterval)
	}

	return c
}

func (c *CacheRepo) GetRecommendations(_ context.Context, itemID string, k int) usecase.CacheLookup {
	key := cacheKey(itemID, k)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return usecase.CacheLookup{Status: usecase.CacheMiss}
	}
	if entry.Expired(c.now(), c.ttl) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return usecase.CacheLookup{Status: usecase.CacheMiss}
	}

	return usecase.CacheLookup{Status: usecase.CacheHit, Entry: copyEntry(entry)}
}

func (c *CacheRepo) SetRecommendations(_ context.Context, itemID string, k int, entry *domain.CacheEntry) error {
	stored := copyEntry(entry)

	c.mu.Lock()
	c.entries[cacheKey(itemID, k)] = stored
	c.mu.Unlock()

	return nil
}

func (c *CacheRepo) Ping(context.Context) error {
	return nil
}

// Len возвращает число записей, включая ещё не вычищенные просроченные.
func (c *CacheRepo) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close останавливает фоновую очистку.
func (c *CacheRepo) Close() error {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
	return nil
}

func (c *CacheRepo) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *CacheRepo) cleanup() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.Expired(now, c.ttl) {
			delete(c.entries, key)
		}
	}
}

func copyEntry(entry *domain.CacheEntry) *domain.CacheEntry {
	cp := *entry
	cp.Items = append([]domain.Recommendation(nil), entry.Items...)
	return &cp
}

func cacheKey(itemID string, k int) string {
	return fmt.Sprintf("%s:%d", itemID, k)
}
