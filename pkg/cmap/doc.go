// Package cmap provides a sharded concurrent map keyed by string.
//
// Keys are spread over a power-of-two number of shards by murmur3 hash and
// each shard has its own RWMutex, so unrelated keys rarely contend. The
// server uses it for in-flight upload sessions and per-client rate
// limiters, both of which see many short, independent operations.
//
// Usage:
//
//	m := cmap.New[*rate.Limiter]()
//	lim, _ := m.GetOrSet(ip, rate.NewLimiter(r, b))
package cmap
