package content

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ykvlv/legendalf-bot/internal/domain"
)

// CachedHolidays memoizes a HolidaySource per calendar date, keeping the most
// recent max dates. Concurrent misses for one date share a single fetch.
// Failures are not cached.
type CachedHolidays struct {
	src   HolidaySource
	max   int
	group singleflight.Group

	mu    sync.Mutex
	order []string
	items map[string]*HolidayDigest
}

// NewCachedHolidays wraps src; max below 1 means 3.
func NewCachedHolidays(src HolidaySource, max int) *CachedHolidays {
	if max < 1 {
		max = 3
	}
	return &CachedHolidays{src: src, max: max, items: make(map[string]*HolidayDigest)}
}

func (c *CachedHolidays) Daily(ctx context.Context, date time.Time) (*HolidayDigest, error) {
	key := date.Format(domain.DateLayout)
	if d, ok := c.get(key); ok {
		return d, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		d, err := c.src.Daily(ctx, date)
		if err != nil {
			return nil, err
		}
		c.put(key, d)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*HolidayDigest), nil
}

func (c *CachedHolidays) get(key string) (*HolidayDigest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.items[key]
	return d, ok
}

func (c *CachedHolidays) put(key string, d *HolidayDigest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		c.order = append(c.order, key)
	}
	c.items[key] = d
	for len(c.order) > c.max {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
	}
}
