package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(layer string, i int) TileKey {
	return TileKey{Layer: layer, Zoom: 15, MinX: int64(i), MinY: 0, MaxX: int64(i + 1), MaxY: 1}
}

func TestGetMissThenHit(t *testing.T) {
	c := New(Config{})
	k := key("lots", 0)

	_, ok := c.Get(k)
	assert.False(t, ok)

	c.Put(k, []byte("payload"))
	got, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, 1, st.Items)
	assert.Equal(t, int64(len("payload")), st.SizeBytes)
}

func TestTTLExpiryCountsAsMiss(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New(Config{TTL: time.Minute})
	c.now = func() time.Time { return now }

	k := key("lots", 0)
	c.Put(k, []byte("x"))

	now = now.Add(59 * time.Second)
	_, ok := c.Get(k)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(k)
	assert.False(t, ok)

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(1), st.Evictions)
	assert.Equal(t, 0, st.Items)
	assert.Equal(t, int64(0), st.SizeBytes)
}

func TestItemCapEvictsLeastRecentlyAccessed(t *testing.T) {
	c := New(Config{MaxItems: 3})

	for i := 0; i < 3; i++ {
		c.Put(key("l", i), []byte{byte(i)})
	}
	// Touch key 0 so key 1 becomes the eviction candidate.
	_, ok := c.Get(key("l", 0))
	require.True(t, ok)

	c.Put(key("l", 3), []byte{3})

	_, ok = c.Get(key("l", 1))
	assert.False(t, ok, "least recently accessed entry should be gone")
	_, ok = c.Get(key("l", 0))
	assert.True(t, ok)
	_, ok = c.Get(key("l", 3))
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestByteCapEvicts(t *testing.T) {
	c := New(Config{MaxItems: 100, MaxBytes: 10})

	c.Put(key("l", 0), []byte("123456"))
	c.Put(key("l", 1), []byte("123456"))

	st := c.Stats()
	assert.LessOrEqual(t, st.SizeBytes, int64(10))
	assert.Equal(t, 1, st.Items)

	_, ok := c.Get(key("l", 0))
	assert.False(t, ok)
	_, ok = c.Get(key("l", 1))
	assert.True(t, ok)
}

func TestReplaceIsNotAnEviction(t *testing.T) {
	c := New(Config{})
	k := key("l", 0)

	c.Put(k, []byte("old"))
	c.Put(k, []byte("newer"))

	got, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, []byte("newer"), got)

	st := c.Stats()
	assert.Equal(t, uint64(0), st.Evictions)
	assert.Equal(t, 1, st.Items)
	assert.Equal(t, int64(len("newer")), st.SizeBytes)
}

func TestClearKeepsCounters(t *testing.T) {
	c := New(Config{})
	c.Put(key("l", 0), []byte("x"))
	c.Get(key("l", 0))
	c.Get(key("l", 99))

	c.Clear()

	st := c.Stats()
	assert.Equal(t, 0, st.Items)
	assert.Equal(t, int64(0), st.SizeBytes)
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
}

func TestTileKeyString(t *testing.T) {
	k := TileKey{Layer: "lots", Zoom: 16, Cap: 500, MinX: -3, MinY: 2, MaxX: -1, MaxY: 4}
	assert.Equal(t, "lots|z16|n500|-3:2:-1:4", k.String())
}

func TestTileKeyCapDistinguishesEntries(t *testing.T) {
	c := New(Config{})
	base := TileKey{Layer: "lots", Zoom: 16, MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}

	small := base
	small.Cap = 1
	large := base
	large.Cap = 5000

	c.Put(small, []byte("truncated"))
	_, ok := c.Get(large)
	assert.False(t, ok, "a different cap must not hit another cap's entry")
}

func TestConcurrentAccess(t *testing.T) {
	c := New(Config{MaxItems: 32})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := key(fmt.Sprintf("l%d", i%16), w)
				c.Put(k, []byte("p"))
				c.Get(k)
			}
		}(w)
	}
	wg.Wait()

	st := c.Stats()
	assert.LessOrEqual(t, st.Items, 32)
	assert.Equal(t, uint64(1600), st.Hits+st.Misses)
}
