package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalCache_SetGet(t *testing.T) {
	c := NewLocalCache(8, time.Minute)
	defer c.Close()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", []byte("value"))
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestLocalCache_TTLExpiry(t *testing.T) {
	c := NewLocalCache(8, 20*time.Millisecond)
	defer c.Close()

	c.Set("k", []byte("v"))
	time.Sleep(50 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestLocalCache_OverwriteDoesNotInflateSize(t *testing.T) {
	c := NewLocalCache(2, time.Minute)
	defer c.Close()

	// Refreshing the same key must not count against capacity
	c.Set("a", []byte("1"))
	c.Set("a", []byte("2"))
	c.Set("b", []byte("3"))

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("2"), got)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestLocalCache_DeletePrefix(t *testing.T) {
	c := NewLocalCache(8, time.Minute)
	defer c.Close()

	c.Set("GET /rest/v1/expenses", []byte("all"))
	c.Set("GET /rest/v1/expenses?month=08", []byte("aug"))
	c.Set("GET /rest/v1/revenue", []byte("rev"))

	c.DeletePrefix("GET /rest/v1/expenses")

	_, ok := c.Get("GET /rest/v1/expenses")
	assert.False(t, ok)
	_, ok = c.Get("GET /rest/v1/expenses?month=08")
	assert.False(t, ok)

	got, ok := c.Get("GET /rest/v1/revenue")
	assert.True(t, ok)
	assert.Equal(t, []byte("rev"), got)

	// Freed slots are reusable without triggering a flush
	c.Set("x", []byte("1"))
	_, ok = c.Get("GET /rest/v1/revenue")
	assert.True(t, ok)
}

func TestLocalCache_EvictsWhenFull(t *testing.T) {
	c := NewLocalCache(2, time.Minute)
	defer c.Close()

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))

	// Capacity overflow flushes the cache; the newest entry survives
	_, okA := c.Get("a")
	_, okB := c.Get("b")
	got, okC := c.Get("c")
	assert.False(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
	assert.Equal(t, []byte("3"), got)
}
