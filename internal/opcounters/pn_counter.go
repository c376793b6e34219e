package opcounters

// PNCounter is a Positive-Negative Counter CRDT, used here to track one
// replica's net insert/delete balance.
//
// Unlike a GCounter, which is increment-only, a PNCounter allows for both
// increments and decrements. It achieves this by internally managing two
// independent GCounters:
//   - The "P" counter tracks the sum of all increments (inserts).
//   - The "N" counter tracks the sum of all decrements (deletes).
//
// Both underlying counters stay monotonic even though the PNCounter's
// derived value can fall, which is what keeps merging well-defined.
type PNCounter struct {
	pCounter *GCounter // inserts
	nCounter *GCounter // deletes
}

// NewPNCounter initializes a PNCounter for one replica, sharing replicaID
// across both underlying GCounters so each tracks that replica's
// contribution to the global insert/delete totals.
func NewPNCounter(replicaID string) *PNCounter {
	return &PNCounter{
		pCounter: NewGCounter(replicaID),
		nCounter: NewGCounter(replicaID),
	}
}

// Increment records one insert.
func (c *PNCounter) Increment() {
	c.pCounter.Increment()
}

// Decrement records one delete. Internally this increments the negative
// GCounter — the counter itself never decreases, only the derived Value.
func (c *PNCounter) Decrement() {
	c.nCounter.Increment()
}

// Value is the net balance: inserts this replica knows about minus
// deletes it knows about, across every replica that has been merged in.
func (c *PNCounter) Value() int {
	return c.pCounter.Value() - c.nCounter.Value()
}

// Merge combines the state of another PNCounter into this one by merging
// the underlying positive and negative GCounters independently. Since
// both satisfy the join-semilattice properties, so does the PNCounter.
func (c *PNCounter) Merge(other *PNCounter) {
	c.pCounter.Merge(other.pCounter)
	c.nCounter.Merge(other.nCounter)
}
