package ydoc

import "fmt"

// ID names the first content unit of an item: a client's 32-bit random
// identifier paired with a monotonically increasing per-client clock.
//
// An item of length L occupies clocks [Clock, Clock+L) on Client; its
// logical identity remains the starting pair regardless of later splits
// or merges, matching the "origin never changes" invariant in spec §3.
type ID struct {
	Client uint32
	Clock  uint32
}

// NoID is the zero-value sentinel meaning "no neighbor" (spec §3's
// "may be none"). Client 0 is a legal client id in principle, but this
// engine never assigns it to a live document (see Document.newClientID),
// so the zero ID is safe to use as a sentinel throughout.
var NoID = ID{}

// Valid reports whether id names a real struct rather than the "none"
// sentinel.
func (id ID) Valid() bool {
	return id != NoID
}

// Less gives IDs a total order: by client first, then by clock. Used only
// for deterministic iteration (e.g. sorting a delete set's client keys);
// conflict resolution order is governed by the YATA rules in integrate.go,
// not by this ordering.
func (id ID) Less(other ID) bool {
	if id.Client != other.Client {
		return id.Client < other.Client
	}
	return id.Clock < other.Clock
}

// Last returns the ID of the last content unit covered by an item/struct
// spanning length units starting at id — i.e. id.origin after integrating
// a neighbor of that length, per spec §4.3's "x.origin == x.left?.lastId".
func (id ID) Last(length int) ID {
	if length <= 0 {
		return id
	}
	return ID{Client: id.Client, Clock: id.Clock + uint32(length) - 1}
}

func (id ID) String() string {
	return fmt.Sprintf("(%d,%d)", id.Client, id.Clock)
}
