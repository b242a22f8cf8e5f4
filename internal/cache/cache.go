// Package cache implements the exact-match response cache.
//
// Keys are normalized question strings; matching is literal, not semantic.
// Entries expire after a TTL and the cache holds at most a fixed number of
// entries, evicting the least recently used when full. All methods are safe
// for concurrent use.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
	"unicode"
)

// NormalizeKey canonicalizes a question for cache lookup: lower-case, strip
// punctuation, collapse runs of whitespace. "What is RAG?" and "what is rag"
// normalize to the same key.
func NormalizeKey(question string) string {
	var b strings.Builder
	b.Grow(len(question))
	for _, r := range strings.ToLower(question) {
		switch {
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a TTL + LRU bounded in-memory cache.
type Cache[V any] struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	items      map[string]*list.Element
	order      *list.List // front = most recently used

	now func() time.Time // injectable for tests
}

// New creates a cache with the given per-entry TTL and capacity.
// maxEntries must be positive.
func New[V any](ttl time.Duration, maxEntries int) *Cache[V] {
	return &Cache[V]{
		ttl:        ttl,
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

// Get returns the cached value for the raw question, if present and fresh.
// Expired entries are evicted on access.
func (c *Cache[V]) Get(question string) (V, bool) {
	key := NormalizeKey(question)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	en := el.Value.(*entry[V])
	if c.now().After(en.expiresAt) {
		c.removeLocked(el)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return en.value, true
}

// Put stores the value under the normalized question key. An existing entry
// for the same key is overwritten and its TTL reset (last write wins).
func (c *Cache[V]) Put(question string, value V) {
	key := NormalizeKey(question)
	if key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		en := el.Value.(*entry[V])
		en.value = value
		en.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el

	for len(c.items) > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}
}

// Len reports the number of entries currently held, including any that have
// expired but not yet been evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[V]) removeLocked(el *list.Element) {
	en := el.Value.(*entry[V])
	delete(c.items, en.key)
	c.order.Remove(el)
}
