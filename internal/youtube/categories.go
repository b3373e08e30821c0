package youtube

import (
	"context"
	"sync"

	"tubewatch/pkg/logx"
)

// CategoryCache caches the category id -> title table. YouTube's category set
// changes rarely; the cache is seeded at startup and refreshed by a daily job,
// with a miss triggering one opportunistic re-fetch.
type CategoryCache struct {
	mu     sync.Mutex
	titles map[string]string
}

func NewCategoryCache() *CategoryCache {
	return &CategoryCache{titles: map[string]string{}}
}

func (c *CategoryCache) Replace(titles map[string]string) {
	c.mu.Lock()
	c.titles = titles
	c.mu.Unlock()
}

func (c *CategoryCache) Get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.titles[id]
	return t, ok
}

func (c *CategoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.titles)
}

// Title resolves a category id, refreshing the table once on a miss.
// Unknown ids resolve to "" rather than an error; notification formatting
// degrades gracefully without a category.
func (s *Service) Title(ctx context.Context, categoryID string) string {
	if categoryID == "" {
		return ""
	}
	if t, ok := s.cats.Get(categoryID); ok {
		return t
	}
	if err := s.RefreshCategories(ctx); err != nil {
		s.log.Warn("category refresh failed", logx.Err(err))
		return ""
	}
	t, _ := s.cats.Get(categoryID)
	return t
}
