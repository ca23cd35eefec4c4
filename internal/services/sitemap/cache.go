package sitemap

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/scriptor/internal/models"
)

// cacheEntry is one cached crawl result
type cacheEntry struct {
	key      string
	pages    *models.SitemapPageList
	cachedAt time.Time
}

// lruCache is an LRU cache with TTL for sitemap crawl results. Eviction is
// strictly least-recently-used: every hit reorders the entry to the front.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // Front = most recently used
	entries  map[string]*list.Element

	hits   int
	misses int
}

func newLRUCache(capacity int, ttl time.Duration) *lruCache {
	return &lruCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func cacheKey(companyURL string, maxURLs int) string {
	return fmt.Sprintf("%s|%d", companyURL, maxURLs)
}

// Get returns the cached list and marks the entry most-recently-used.
// Expired entries are removed and reported as misses.
func (c *lruCache) Get(companyURL string, maxURLs int) (*models.SitemapPageList, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[cacheKey(companyURL, maxURLs)]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if time.Since(entry.cachedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.entries, entry.key)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return entry.pages, true
}

// Put stores a crawl result, evicting the least-recently-used entry when full
func (c *lruCache) Put(companyURL string, maxURLs int, pages *models.SitemapPageList) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(companyURL, maxURLs)
	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheEntry).pages = pages
		elem.Value.(*cacheEntry).cachedAt = time.Now()
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}

	elem := c.order.PushFront(&cacheEntry{key: key, pages: pages, cachedAt: time.Now()})
	c.entries[key] = elem
}

// Stats returns hit/miss counters and the current size
func (c *lruCache) Stats() (hits, misses, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.order.Len()
}
