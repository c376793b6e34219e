package ydoc

import "sort"

// DeleteRange is a half-open (Clock, Clock+Length) interval known to be
// deleted for some client.
type DeleteRange struct {
	Clock  uint32
	Length uint32
}

// DeleteSet is a per-client compact interval list, normalized to sorted,
// non-overlapping ranges (spec §3, §4.5 cleanup step 1).
type DeleteSet struct {
	clients map[uint32][]DeleteRange
}

func newDeleteSet() *DeleteSet {
	return &DeleteSet{clients: make(map[uint32][]DeleteRange)}
}

// Add records [clock, clock+length) as deleted for client. The set is
// left unnormalized; call Normalize before relying on ordering/overlap
// guarantees.
func (ds *DeleteSet) Add(client uint32, clock uint32, length uint32) {
	if length == 0 {
		return
	}
	ds.clients[client] = append(ds.clients[client], DeleteRange{Clock: clock, Length: length})
}

// Normalize sorts and merges each client's ranges in place (spec §4.5
// cleanup step 1).
func (ds *DeleteSet) Normalize() {
	for client, ranges := range ds.clients {
		if len(ranges) < 2 {
			continue
		}
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].Clock < ranges[j].Clock })
		out := ranges[:1]
		for _, r := range ranges[1:] {
			last := &out[len(out)-1]
			if r.Clock <= last.Clock+last.Length {
				end := last.Clock + last.Length
				if rEnd := r.Clock + r.Length; rEnd > end {
					end = rEnd
				}
				last.Length = end - last.Clock
				continue
			}
			out = append(out, r)
		}
		ds.clients[client] = out
	}
}

// IsDeleted reports whether id falls within a recorded deleted range.
func (ds *DeleteSet) IsDeleted(id ID) bool {
	for _, r := range ds.clients[id.Client] {
		if id.Clock >= r.Clock && id.Clock < r.Clock+r.Length {
			return true
		}
	}
	return false
}

// Merge folds other's ranges into ds (used to accumulate a transaction's
// deletions, and to combine two decoded delete sets).
func (ds *DeleteSet) Merge(other *DeleteSet) {
	for client, ranges := range other.clients {
		ds.clients[client] = append(ds.clients[client], ranges...)
	}
	ds.Normalize()
}

// ForEach invokes fn for every (client, range) pair, in ascending client
// order, each client's ranges ascending by clock (stable, reproducible
// iteration for encoding).
func (ds *DeleteSet) ForEach(fn func(client uint32, r DeleteRange)) {
	clients := make([]uint32, 0, len(ds.clients))
	for c := range ds.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })
	for _, c := range clients {
		for _, r := range ds.clients[c] {
			fn(c, r)
		}
	}
}

// Empty reports whether the delete set carries no ranges at all.
func (ds *DeleteSet) Empty() bool {
	for _, ranges := range ds.clients {
		if len(ranges) > 0 {
			return false
		}
	}
	return true
}
