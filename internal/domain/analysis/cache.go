package analysis

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 256

// resultCache keeps the most recent results by result id.
type resultCache struct {
	entries *lru.Cache[string, Result]
}

func newResultCache(size int) *resultCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[string, Result](size)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &resultCache{entries: c}
}

func (c *resultCache) put(r Result) {
	c.entries.Add(r.ResultID, r)
}

func (c *resultCache) get(id string) (Result, bool) {
	return c.entries.Get(id)
}

func (c *resultCache) len() int {
	return c.entries.Len()
}
