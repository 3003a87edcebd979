package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetEvict(t *testing.T) {
	c := New(Config{MaxItems: 2})
	c.Set("a", 1)
	c.Set("b", 2)

	v, ok := c.Get("a") // a becomes most recently used
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	assert.Equal(t, 2, c.Size())

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCache_Stats(t *testing.T) {
	c := New(DefaultConfig())
	c.Set("k", "v")
	c.Get("k")
	c.Get("missing")

	hits, misses, rate := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.InDelta(t, 50.0, rate, 0.001)
}

func TestCache_GetOrSetErrorNotCached(t *testing.T) {
	c := New(DefaultConfig())
	boom := errors.New("boom")

	_, err := c.GetOrSet("k", func() (interface{}, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	v, err := c.GetOrSet("k", func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCache_GetOrSetConcurrent(t *testing.T) {
	c := New(DefaultConfig())
	var computed atomic.Int32
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err := c.GetOrSet("shared", func() (interface{}, error) {
				computed.Add(1)
				time.Sleep(10 * time.Millisecond)
				return "value", nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "value", v)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), computed.Load())
	assert.Equal(t, 1, c.Size())
}

func TestCache_ManyKeys(t *testing.T) {
	c := New(Config{MaxItems: 10})
	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	assert.Equal(t, 10, c.Size())
	v, ok := c.Get("k99")
	require.True(t, ok)
	assert.Equal(t, 99, v)
}
