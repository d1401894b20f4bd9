package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factgate/internal/model"
)

func TestCacheKey(t *testing.T) {
	a := CacheKey("workspace", "CLM-1", "")
	b := CacheKey("workspace", "CLM-1", "")
	c := CacheKey("workspace", "CLM-1", "run-2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "factgate:v1:")
	// Separator prevents ("ab","c") colliding with ("a","bc")
	assert.NotEqual(t, CacheKey("ab", "c"), CacheKey("a", "bc"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestDiskCache_Expiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set("k", []byte("payload"), 0))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	now = now.Add(2 * time.Hour)
	_, ok = c.Get("k")
	assert.False(t, ok)
	_, err := os.Stat(filepath.Join(dir, "k.cache"))
	assert.True(t, os.IsNotExist(err))
}

func TestDiskCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cache"), []byte("{not json"), 0o644))

	_, ok := c.Get("bad")
	assert.False(t, ok)
	assert.NoError(t, c.Delete("bad"))
	assert.NoError(t, c.Delete("never-existed"))
}

func TestLayeredCache_PromotesFromDisk(t *testing.T) {
	memory := NewMemoryCache(time.Minute, time.Minute)
	disk := NewDiskCache(t.TempDir(), time.Hour)
	c := Layered(memory, nil, disk)

	require.NoError(t, disk.Set("k", []byte("from-disk"), 0))
	_, inMemory := memory.Get("k")
	assert.False(t, inMemory)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("from-disk"), got)

	promoted, ok := memory.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("from-disk"), promoted)

	require.NoError(t, c.Delete("k"))
	_, ok = disk.Get("k")
	assert.False(t, ok)
}

func TestLayeredCache_DefaultTTLPerTier(t *testing.T) {
	memory := NewMemoryCache(time.Millisecond, time.Minute)
	disk := NewDiskCache(t.TempDir(), 24*time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	disk.now = func() time.Time { return now }
	c := Layered(memory, disk)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	time.Sleep(10 * time.Millisecond)
	_, ok := memory.Get("k")
	assert.False(t, ok)

	now = now.Add(12 * time.Hour)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(13 * time.Hour)
	_, ok = disk.Get("k")
	assert.False(t, ok)
}

func TestLayeredCache_MiddleTierHit(t *testing.T) {
	fast := NewMemoryCache(time.Minute, time.Minute)
	middle := NewMemoryCache(time.Minute, time.Minute)
	slow := NewMemoryCache(time.Minute, time.Minute)
	c := Layered(fast, middle, slow)

	require.NoError(t, middle.Set("k", []byte("v"), 0))
	_, ok := c.Get("k")
	require.True(t, ok)

	_, ok = fast.Get("k")
	assert.True(t, ok)
	_, ok = slow.Get("k")
	assert.False(t, ok, "slower tiers are not back-filled")
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	value := []byte("abc")
	require.NoError(t, c.Set("k", value, 0))
	value[0] = 'X'

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'Y'
	again, _ := c.Get("k")
	assert.Equal(t, []byte("abc"), again)
}

func TestNew(t *testing.T) {
	assert.Nil(t, New(model.CacheConfig{Enabled: false}))

	_, isMemory := New(model.CacheConfig{Enabled: true, MemoryTTL: time.Minute}).(*MemoryCache)
	assert.True(t, isMemory)

	_, isLayered := New(model.CacheConfig{Enabled: true, MemoryTTL: time.Minute, DiskDir: t.TempDir()}).(*LayeredCache)
	assert.True(t, isLayered)
}
