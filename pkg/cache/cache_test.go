package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGet(t *testing.T) {
	c := New[string](time.Minute)
	defer c.Stop()

	c.Set("k", "v")

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestGetMissingKey(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Stop()

	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestExpiredEntryIsGone(t *testing.T) {
	c := New[string](time.Minute)
	defer c.Stop()

	c.SetWithTTL("k", "v", 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestDeleteAndClear(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestStopIsIdempotent(t *testing.T) {
	c := New[int](time.Minute)
	c.Stop()
	c.Stop()
}
