package opcounters

import "sync"

// GCounter is a state-based Grow-only Counter CRDT used to track a
// monotonic per-replica count (struct integrations) the same way the
// document it instruments is itself replicated: each replica only ever
// writes its own slot, and the total is the sum across every slot.
//
// The total value is derived by summing all slots in the map.
type GCounter struct {
	mu   sync.RWMutex
	self string
	// slots maps replica id -> current count contributed by that replica.
	slots map[string]int
}

// NewGCounter initializes a GCounter for one replica. replicaID should be
// stable for the life of that replica (ydoc derives it from the
// document's client id) so increments from different replicas never
// collide in the slot map.
func NewGCounter(replicaID string) *GCounter {
	return &GCounter{
		self:  replicaID,
		slots: make(map[string]int),
	}
}

// Increment adds 1 to this replica's slot.
func (c *GCounter) Increment() {
	c.IncrementBy(1)
}

// IncrementBy adds n to this replica's slot in one locked pass, for
// callers that already know a batch size (e.g. a remote update
// integrating several structs inside one transaction) rather than
// calling Increment in a loop.
func (c *GCounter) IncrementBy(n int) {
	if n == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[c.self] += n
}

// Value returns the sum of all slots, representing the global total count
// known to this replica. Even if the network is partitioned, this returns
// the most complete count currently known locally.
func (c *GCounter) Value() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sum := 0
	for _, value := range c.slots {
		sum += value
	}
	return sum
}

// Merge folds another replica's GCounter state into this one.
//
// It implements the join-semilattice "join" operation by taking the
// maximum value for each replica id found in either counter. This
// ensures that the merge is commutative, associative, and idempotent —
// the same convergence properties the document's own structs have.
func (c *GCounter) Merge(other *GCounter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	for id, value := range other.slots {
		if value > c.slots[id] {
			c.slots[id] = value
		}
	}
}
