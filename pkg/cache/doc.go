// Package cache provides a generic, thread-safe LRU cache with entry
// expiry. It backs the routing decision cache: entries older than the TTL
// are never served, and capacity-based LRU eviction keeps memory bounded.
//
// The time source is injectable via WithClock so expiry behavior can be
// tested deterministically.
//
//	c := cache.NewTTLCache[string, []string](1000, 5*time.Minute)
//	c.Set("key", channels)
//	if v, ok := c.Get("key"); ok {
//		// fresh hit
//	}
package cache
