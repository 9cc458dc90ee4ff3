// Package cache holds short-lived rendered query responses.
package cache

import (
	"sync"
	"time"
	"unsafe"

	"github.com/coocood/freecache"
)

// Cache stores rendered responses. Callers read Generation before computing
// a value and pass it to Set, which drops the value if Clear ran meanwhile.
type Cache interface {
	Get(key string) ([]byte, bool)
	Generation() uint64
	Set(key string, value []byte, gen uint64) bool
	Clear()
}

type FreeCache struct {
	cache *freecache.Cache
	ttl   int

	mu  sync.RWMutex
	gen uint64
}

// New returns a freecache-backed cache, or a no-op cache when disabled or
// given a non-positive size.
func New(enabled bool, sizeMB int, ttl time.Duration) Cache {
	if !enabled || sizeMB <= 0 {
		return noopCache{}
	}
	seconds := int(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return &FreeCache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:   seconds,
	}
}

func (c *FreeCache) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get(unsafeStringToBytes(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *FreeCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// Set stores value unless the cache was cleared after gen was read. Values
// freecache refuses (larger than 1/1024 of the cache) are dropped too.
func (c *FreeCache) Set(key string, value []byte, gen uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if gen != c.gen {
		return false
	}
	return c.cache.Set([]byte(key), value, c.ttl) == nil
}

func (c *FreeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache.Clear()
}

// unsafeStringToBytes converts a string to []byte without allocation.
// The returned slice must not be modified.
func unsafeStringToBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

type noopCache struct{}

func (noopCache) Get(_ string) ([]byte, bool)            { return nil, false }
func (noopCache) Generation() uint64                     { return 0 }
func (noopCache) Set(_ string, _ []byte, _ uint64) bool { return false }
func (noopCache) Clear()                                 {}
