package notifier

import "sync"

// SentCache remembers the URLs already pushed to subscribers, so a URL that
// reappears across consecutive runs is not announced twice. It is a bounded
// FIFO: once capacity is reached the oldest entries are evicted.
type SentCache struct {
	mu       sync.Mutex
	capacity int
	urls     map[string]struct{}
	order    []string
}

func NewSentCache(capacity int) *SentCache {
	if capacity < 1 {
		capacity = 1
	}

	return &SentCache{
		capacity: capacity,
		urls:     make(map[string]struct{}, capacity),
	}
}

func (c *SentCache) Contains(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.urls[url]
	return ok
}

func (c *SentCache) Add(urls ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, url := range urls {
		if _, ok := c.urls[url]; ok {
			continue
		}

		c.urls[url] = struct{}{}
		c.order = append(c.order, url)

		for len(c.order) > c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.urls, oldest)
		}
	}
}

func (c *SentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.order)
}
