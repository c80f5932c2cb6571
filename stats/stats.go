// Package stats provides named operation counters. The registry is a bounded
// LRU map so an unbounded stream of counter names cannot grow memory without
// limit; owners of short-lived keys call Remove explicitly when the keyed
// object's lifecycle ends.
package stats

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultRegistrySize = 1024

type Counter struct {
	v atomic.Int64
}

func (c *Counter) Add(delta int64) {
	c.v.Add(delta)
}

func (c *Counter) Get() int64 {
	return c.v.Load()
}

type Registry struct {
	counters *lru.Cache[string, *Counter]
}

func NewRegistry(size int) *Registry {
	if size <= 0 {
		size = DefaultRegistrySize
	}
	cache, _ := lru.New[string, *Counter](size)
	return &Registry{counters: cache}
}

// Counter returns the named counter, creating it if needed. Every lookup
// refreshes the counter's recency, so the registry evicts the least recently
// used name when full, never a hot one.
func (r *Registry) Counter(name string) *Counter {
	for {
		if c, ok := r.counters.Get(name); ok {
			return c
		}
		r.counters.ContainsOrAdd(name, &Counter{})
	}
}

func (r *Registry) Add(name string, delta int64) {
	r.Counter(name).Add(delta)
}

func (r *Registry) Get(name string) int64 {
	if c, ok := r.counters.Get(name); ok {
		return c.Get()
	}
	return 0
}

// Remove drops a counter whose keyed object is gone.
func (r *Registry) Remove(name string) {
	r.counters.Remove(name)
}

func (r *Registry) Snapshot() map[string]int64 {
	out := make(map[string]int64, r.counters.Len())
	for _, name := range r.counters.Keys() {
		if c, ok := r.counters.Peek(name); ok {
			out[name] = c.Get()
		}
	}
	return out
}
