package client

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type responseCache struct {
	lru *expirable.LRU[string, []byte]
}

func newResponseCache(size int, ttl time.Duration) *responseCache {
	if size <= 0 {
		return nil
	}
	return &responseCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *responseCache) get(key string) ([]byte, bool) {
	return c.lru.Get(key)
}

func (c *responseCache) put(key string, body []byte) {
	c.lru.Add(key, body)
}

// invalidate evicts every cached read under prefix.
func (c *responseCache) invalidate(prefix string) {
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}
