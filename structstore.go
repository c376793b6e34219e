package ydoc

// StructStore holds, per client, an ordered array of structs (Item | GC |
// Skip) with the invariant that the array is contiguous in clock space:
// a[i].ID().Clock + a[i].Length() == a[i+1].ID().Clock (spec §4.1).
type StructStore struct {
	clients map[uint32][]Struct
}

func newStructStore() *StructStore {
	return &StructStore{clients: make(map[uint32][]Struct)}
}

// Append validates contiguity for struct.ID().Client and appends it,
// returning ErrBrokenInvariant if the clock does not equal the tail clock
// of that client's segment (spec §4.1). Adjacent mergeable structs
// (two GC markers, two Skips) are coalesced in place rather than
// appended as separate entries; Items are always appended as their own
// entry.
func (s *StructStore) Append(st Struct) error {
	client := st.ID().Client
	arr := s.clients[client]
	expected := uint32(0)
	if len(arr) > 0 {
		last := arr[len(arr)-1]
		expected = last.ID().Clock + uint32(last.Length())
	}
	if st.ID().Clock != expected {
		return brokenInvariant("StructStore.Append: clock gap or overlap")
	}
	if _, isItem := st.(*Item); !isItem && len(arr) > 0 && arr[len(arr)-1].mergeableWith(st) {
		arr[len(arr)-1].mergeInto(st)
		return nil
	}
	s.clients[client] = append(arr, st)
	return nil
}

// GetState returns the tail clock of client's segment (0 if absent).
func (s *StructStore) GetState(client uint32) uint32 {
	arr := s.clients[client]
	if len(arr) == 0 {
		return 0
	}
	last := arr[len(arr)-1]
	return last.ID().Clock + uint32(last.Length())
}

// StateVector snapshots the tail clock of every known client.
func (s *StructStore) StateVector() map[uint32]uint32 {
	out := make(map[uint32]uint32, len(s.clients))
	for c := range s.clients {
		out[c] = s.GetState(c)
	}
	return out
}

// findIndex locates the struct covering (client, clock) using an
// interpolated binary search (spec §4.1, §9): the initial pivot is
// floor(clock / (lastClock + lastLen - 1) * (n-1)), falling back to
// standard bisection. Returns (-1, false) if out of range, guarding the
// division against an empty client array.
func (s *StructStore) findIndex(client uint32, clock uint32) (int, bool) {
	arr := s.clients[client]
	n := len(arr)
	if n == 0 {
		return -1, false
	}
	last := arr[n-1]
	lastEnd := last.ID().Clock + uint32(last.Length()) - 1

	lo, hi := 0, n-1
	if lastEnd > 0 && n > 1 {
		pivot := int(uint64(clock) * uint64(n-1) / uint64(lastEnd))
		if pivot < 0 {
			pivot = 0
		}
		if pivot > n-1 {
			pivot = n - 1
		}
		g := arr[pivot]
		switch {
		case clock < g.ID().Clock:
			hi = pivot
		case clock >= g.ID().Clock+uint32(g.Length()):
			lo = pivot
		default:
			return pivot, true
		}
	}

	for lo <= hi {
		mid := (lo + hi) / 2
		g := arr[mid]
		switch {
		case clock < g.ID().Clock:
			hi = mid - 1
		case clock >= g.ID().Clock+uint32(g.Length()):
			lo = mid + 1
		default:
			return mid, true
		}
	}
	return -1, false
}

// GetStruct returns the struct covering id, if present.
func (s *StructStore) GetStruct(id ID) (Struct, bool) {
	idx, ok := s.findIndex(id.Client, id.Clock)
	if !ok {
		return nil, false
	}
	return s.clients[id.Client][idx], true
}

// GetItem returns the Item covering id. Returns ErrBrokenInvariant if the
// struct at that position is not an Item (e.g. it has been GC'd).
func (s *StructStore) GetItem(id ID) (*Item, error) {
	st, ok := s.GetStruct(id)
	if !ok {
		return nil, brokenInvariant("GetItem: id not present in StructStore")
	}
	it, ok := st.(*Item)
	if !ok {
		return nil, brokenInvariant("GetItem: struct at id is not an Item")
	}
	return it, nil
}

// insertAt inserts st into client's array at position idx, shifting
// later entries right by one slot.
func (s *StructStore) insertAt(client uint32, idx int, st Struct) {
	arr := s.clients[client]
	arr = append(arr, nil)
	copy(arr[idx+1:], arr[idx:])
	arr[idx] = st
	s.clients[client] = arr
}

// splitRecord splits the struct at array index idx so its right half
// starts at clock, inserting the new right-hand struct immediately after
// it in the client array and returning that right half.
func (s *StructStore) splitRecord(client uint32, idx int, clock uint32) Struct {
	st := s.clients[client][idx]
	offset := int(clock - st.ID().Clock)
	right := st.splitStruct(offset)
	s.insertAt(client, idx+1, right)
	return right
}

// GetItemCleanStart locates the struct covering id and, if id.Clock is
// past the struct's own start clock, splits it there, returning the item
// whose id.Clock equals the requested id (spec §4.1). Any struct produced
// by a split is recorded on tx as a merge candidate so transaction
// cleanup can try to recombine it later.
func (s *StructStore) GetItemCleanStart(tx *Transaction, id ID) (*Item, error) {
	idx, ok := s.findIndex(id.Client, id.Clock)
	if !ok {
		return nil, brokenInvariant("GetItemCleanStart: id not present")
	}
	st := s.clients[id.Client][idx]
	if st.ID().Clock == id.Clock {
		it, ok := st.(*Item)
		if !ok {
			return nil, brokenInvariant("GetItemCleanStart: struct is not an Item")
		}
		return it, nil
	}
	right := s.splitRecord(id.Client, idx, id.Clock)
	it, ok := right.(*Item)
	if !ok {
		return nil, brokenInvariant("GetItemCleanStart: split struct is not an Item")
	}
	if tx != nil {
		tx.recordMergeCandidate(it)
	}
	return it, nil
}

// GetItemCleanEnd locates the struct covering id and, if id.Clock is not
// the last unit of the struct, splits it just past id, returning the left
// half (spec §4.1).
func (s *StructStore) GetItemCleanEnd(tx *Transaction, id ID) (*Item, error) {
	idx, ok := s.findIndex(id.Client, id.Clock)
	if !ok {
		return nil, brokenInvariant("GetItemCleanEnd: id not present")
	}
	st := s.clients[id.Client][idx]
	end := st.ID().Clock + uint32(st.Length()) - 1
	if end == id.Clock {
		it, ok := st.(*Item)
		if !ok {
			return nil, brokenInvariant("GetItemCleanEnd: struct is not an Item")
		}
		return it, nil
	}
	right := s.splitRecord(id.Client, idx, id.Clock+1)
	it, ok := st.(*Item)
	if !ok {
		return nil, brokenInvariant("GetItemCleanEnd: struct is not an Item")
	}
	if tx != nil {
		if r, ok := right.(*Item); ok {
			tx.recordMergeCandidate(r)
		}
	}
	return it, nil
}

// Replace substitutes old with new at the same array position,
// preserving ordering. Used by GC to swap a tombstoned Item for a
// GCStruct (spec §4.5 cleanup step 6).
func (s *StructStore) Replace(old, new Struct) {
	arr := s.clients[old.ID().Client]
	for i, st := range arr {
		if st == old {
			arr[i] = new
			return
		}
	}
}

// indexOf returns the array position of st within its client's segment.
func (s *StructStore) indexOf(st Struct) int {
	arr := s.clients[st.ID().Client]
	for i, e := range arr {
		if e == st {
			return i
		}
	}
	return -1
}

// IterateRange cleanly splits at both ends of [clock, clock+length) for
// client, then invokes fn on each covered struct in order (spec §4.1).
func (s *StructStore) IterateRange(tx *Transaction, client uint32, clock uint32, length int, fn func(Struct) error) error {
	if length <= 0 {
		return nil
	}
	endClock := clock + uint32(length) - 1

	startIdx, ok := s.findIndex(client, clock)
	if !ok {
		return brokenInvariant("IterateRange: start clock not present")
	}
	if st := s.clients[client][startIdx]; st.ID().Clock != clock {
		right := s.splitRecord(client, startIdx, clock)
		if tx != nil {
			if it, ok := right.(*Item); ok {
				tx.recordMergeCandidate(it)
			}
		}
		startIdx++
	}

	endIdx, ok := s.findIndex(client, endClock)
	if !ok {
		return brokenInvariant("IterateRange: end clock not present")
	}
	if st := s.clients[client][endIdx]; st.ID().Clock+uint32(st.Length())-1 != endClock {
		right := s.splitRecord(client, endIdx, endClock+1)
		if tx != nil {
			if it, ok := right.(*Item); ok {
				tx.recordMergeCandidate(it)
			}
		}
	}

	for idx := startIdx; idx <= endIdx; idx++ {
		if err := fn(s.clients[client][idx]); err != nil {
			return err
		}
	}
	return nil
}

// removeAt deletes the struct at array index idx from client's segment,
// shifting later entries left by one slot. Used when two adjacent
// structs merge into one (spec §4.5 cleanup step 7).
func (s *StructStore) removeAt(client uint32, idx int) {
	arr := s.clients[client]
	copy(arr[idx:], arr[idx+1:])
	s.clients[client] = arr[:len(arr)-1]
}

// tryMergeLeft attempts to fold st into its immediate predecessor in the
// same client's array, provided they are list-adjacent (left.right == st
// for Items) as well as clock-contiguous and content-mergeable. Reports
// whether a merge happened.
func (s *StructStore) tryMergeLeft(st Struct) bool {
	idx := s.indexOf(st)
	if idx <= 0 {
		return false
	}
	client := st.ID().Client
	left := s.clients[client][idx-1]
	if !left.mergeableWith(st) {
		return false
	}
	if li, ok := left.(*Item); ok {
		if ri, ok := st.(*Item); !ok || li.right != ri {
			return false
		}
	}
	left.mergeInto(st)
	s.removeAt(client, idx)
	return true
}

// splitItemForOffset splits item at `offset` units from its start,
// inserting the produced right half into the StructStore immediately
// after it and registering it as a merge candidate on tx. Returns the
// (mutated in place) left half, matching the item identity the caller
// already holds.
func (s *StructStore) splitItemForOffsetTx(tx *Transaction, item *Item, offset int) *Item {
	if offset <= 0 || offset >= item.length {
		return item
	}
	idx := s.indexOf(item)
	if idx < 0 {
		return item
	}
	right := s.splitRecord(item.id.Client, idx, item.id.Clock+uint32(offset))
	if tx != nil {
		if it, ok := right.(*Item); ok {
			tx.recordMergeCandidate(it)
		}
	}
	return item
}
