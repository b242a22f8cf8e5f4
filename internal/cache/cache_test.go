package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "What Is The Admission Deadline", "what is the admission deadline"},
		{"strips punctuation", "What is RAG?!", "what is rag"},
		{"collapses whitespace", "  what \t is\n\nrag  ", "what is rag"},
		{"equivalent forms collide", "What is RAG?", NormalizeKey("what   is rag")},
		{"empty", "", ""},
		{"punctuation only", "?!...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.input))
		})
	}
}

func TestCache_GetPut(t *testing.T) {
	c := New[string](time.Hour, 10)

	_, ok := c.Get("what is rag")
	assert.False(t, ok, "empty cache should miss")

	c.Put("What is RAG?", "an answer")

	got, ok := c.Get("what   is rag")
	require.True(t, ok, "normalized variants should hit")
	assert.Equal(t, "an answer", got)
}

func TestCache_LastWriteWins(t *testing.T) {
	c := New[string](time.Hour, 10)
	c.Put("q", "first")
	c.Put("q", "second")

	got, ok := c.Get("q")
	require.True(t, ok)
	assert.Equal(t, "second", got)
	assert.Equal(t, 1, c.Len())
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New[string](time.Hour, 10)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Put("q", "answer")

	current = current.Add(59 * time.Minute)
	_, ok := c.Get("q")
	assert.True(t, ok, "entry should survive within the TTL")

	current = current.Add(2 * time.Minute)
	_, ok = c.Get("q")
	assert.False(t, ok, "entry should expire after the TTL")
	assert.Equal(t, 0, c.Len(), "expired entry should be evicted on access")
}

func TestCache_LRUEviction(t *testing.T) {
	c := New[int](time.Hour, 3)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	// Touch "a" so "b" becomes the least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("d", 4)

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "entry %q should survive", key)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCache_EmptyKeyNotStored(t *testing.T) {
	c := New[string](time.Hour, 10)
	c.Put("?!", "noise")
	assert.Equal(t, 0, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](time.Hour, 100)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 200 {
				key := fmt.Sprintf("question %d", j%50)
				c.Put(key, n*1000+j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 100)
}
