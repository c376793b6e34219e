// Package marker implements the bounded search-marker cache described in
// spec §4.6: up to a fixed number of (item, index) pairs, keyed by a
// monotonically increasing logical timestamp, used to accelerate
// positional lookup on a container's document-order list.
//
// Item identity here is an opaque key supplied by the caller (the root
// ydoc package passes a *ydoc.Item's address) rather than a concrete
// type, so this package stays free of a dependency on ydoc itself.
package marker

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Marker caches one (item, index) pair.
type Marker struct {
	Item  any
	Index int
}

// Cache is a bounded LRU cache of markers. It is backed by
// hashicorp/golang-lru/v2, which already implements the "overwrite the
// oldest entry when full" eviction policy spec §4.6 calls for — this
// package only adds the "nearest index" scan, which a plain key-value
// LRU does not give for free.
type Cache struct {
	bound int
	lru   *lru.Cache[uintptr, *Marker]
	ts    uint64
}

// NewCache creates a cache bounded at `bound` markers (spec §4.6 default: 80).
func NewCache(bound int) *Cache {
	if bound <= 0 {
		bound = 80
	}
	c, err := lru.New[uintptr, *Marker](bound)
	if err != nil {
		// Only returns an error for a non-positive size, which cannot
		// happen given the guard above.
		panic(err)
	}
	return &Cache{bound: bound, lru: c}
}

// identity derives a stable key for an opaque item reference. Callers
// pass pointer-shaped values (e.g. *ydoc.Item); two equal items always
// compare equal because Go pointers do.
func identity(item any) uintptr {
	return ptrOf(item)
}

// Nearest returns the marker whose cached Index is closest to target, if
// any markers exist. The caller is responsible for walking from the
// returned marker to the true target (spec §4.6: "Lookups refresh the
// nearest marker's timestamp").
func (c *Cache) Nearest(target int) (Marker, bool) {
	var best *Marker
	bestDist := -1
	for _, key := range c.lru.Keys() {
		m, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		dist := m.Index - target
		if dist < 0 {
			dist = -dist
		}
		if bestDist == -1 || dist < bestDist {
			best = m
			bestDist = dist
		}
	}
	if best == nil {
		return Marker{}, false
	}
	// Refresh recency by touching the winning entry.
	c.lru.Get(identity(best.Item))
	return *best, true
}

// MaybeStore adds or refreshes a marker for item at index. Per spec
// §4.6's open question, the acceptance threshold
// (distance < container.length / maxSearchMarker) is a heuristic; this
// implementation always stores/refreshes, relying on the underlying LRU's
// bounded capacity and eviction to keep the cache small, which satisfies
// either "refresh existing" or "allocate new" outcomes the spec tolerates
// at the boundary.
func (c *Cache) MaybeStore(item any, index int) {
	c.ts++
	c.lru.Add(identity(item), &Marker{Item: item, Index: index})
}

// Shift adjusts every cached marker whose Index is at or past `at` by
// delta, for an insertion or deletion of `delta` (signed) countable units
// at position `at` (spec §4.6: "On insert at index i of length n, markers
// with index > i (or = i for pure insertions) shift by +n").
func (c *Cache) Shift(at, delta int, inclusive bool) {
	for _, key := range c.lru.Keys() {
		m, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if (inclusive && m.Index >= at) || (!inclusive && m.Index > at) {
			m.Index += delta
		}
	}
}

// Drop removes the marker for item, if present — used before deleting an
// item a marker points to, so the cache never resolves to a tombstone
// without first walking left (spec §4.6).
func (c *Cache) Drop(item any) {
	c.lru.Remove(identity(item))
}

// Clear empties the cache. Called on remote-originated transactions
// (spec §4.6: "markers become stale under arbitrary restructuring").
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Len reports the number of cached markers.
func (c *Cache) Len() int { return c.lru.Len() }

// IndexOf returns the cached index for item, if a marker for it exists.
func (c *Cache) IndexOf(item any) (int, bool) {
	m, ok := c.lru.Peek(identity(item))
	if !ok {
		return 0, false
	}
	return m.Index, true
}

