package ydoc

// integrate implements the YATA-style integration algorithm of spec
// §4.3. On entry, it.parent must already be resolved to a live
// *Container and it.left/it.right hold the caller's provisional guess at
// where the item belongs (its true origin/rightOrigin neighbors for a
// freshly-created local item, or the structurally-resolved neighbors for
// a remote item being integrated via integrateStructs).
func integrate(tx *Transaction, it *Item) error {
	parent := it.parent.Container
	if parent == nil {
		return brokenInvariant("integrate: item parent not resolved")
	}

	// A freshly-created local item carries no ID yet: it takes this
	// replica's next clock and the length of its content.
	if !it.id.Valid() {
		it.id = ID{Client: tx.doc.clientID, Clock: tx.doc.store.GetState(tx.doc.clientID)}
		it.length = it.content.Len()
	}

	left := it.left
	right := it.right

	noConflict := (left == nil && right == sequenceHead(parent, it.parentSub)) ||
		(left != nil && left.right == right)

	if !noConflict {
		var err error
		left, right, err = resolveConflict(parent, it, left, right)
		if err != nil {
			return err
		}
	}

	// Link x between left and its right.
	it.left = left
	it.right = right
	if left != nil {
		left.right = it
	}
	if right != nil {
		right.left = it
	}

	if it.parentSub == nil {
		if left == nil {
			parent.start = it
		}
	} else {
		if it.right == nil {
			prior := parent.mapTail[*it.parentSub]
			parent.mapTail[*it.parentSub] = it
			if prior != nil && prior != it {
				deleteItem(tx, prior)
			}
		}
	}

	if it.parentSub == nil && it.content.Countable() && !it.Deleted() {
		parent.length += it.length
	}

	if err := tx.doc.store.Append(it); err != nil {
		return err
	}

	if tc, ok := it.content.(*TypeContent); ok {
		tc.Container.item = it
		tc.Container.doc = tx.doc
		if err := tc.Container.flushPrelim(); err != nil {
			return err
		}
	}
	if dc, ok := it.content.(*DocContent); ok {
		tx.doc.addSubdoc(dc.Doc, tx)
	}

	tx.markChanged(parent, it.parentSub)
	tx.doc.telemetry.recordInsert()

	// Deletion-on-integrate: parent deleted, or a map item that didn't
	// become the new tail (spec §4.3 "Deletion-on-integrate").
	if parentDeleted(parent) {
		deleteItem(tx, it)
	} else if it.parentSub != nil && parent.mapTail[*it.parentSub] != it {
		deleteItem(tx, it)
	}

	return nil
}

// sequenceHead returns the leftmost entry an item with no left neighbor
// is placed against: parent.start for sequence items, and for map items
// the first entry of parentSub's per-key chain (found by walking .left
// from parent.mapTail[*parentSub]), nil when the key has no entries yet.
func sequenceHead(parent *Container, parentSub *string) *Item {
	if parentSub != nil {
		head := parent.mapTail[*parentSub]
		for head != nil && head.left != nil {
			head = head.left
		}
		return head
	}
	return parent.start
}

// parentDeleted reports whether the container itself is dead: nested
// containers only, identified by their owning Item being deleted.
func parentDeleted(c *Container) bool {
	return c.item != nil && c.item.Deleted()
}

// resolveConflict implements spec §4.3 step 2: scan o = left.right (or
// parent.start/leftmost map-chain entry when left is nil) rightward until
// o == right, applying cases A and B to decide the real left neighbor.
func resolveConflict(parent *Container, x *Item, left, right *Item) (*Item, *Item, error) {
	var o *Item
	if left != nil {
		o = left.right
	} else {
		o = sequenceHead(parent, x.parentSub)
	}

	itemsBeforeOrigin := make(map[*Item]struct{})
	conflicting := make(map[*Item]struct{})

	store := x.parent.Container.doc.store

	xOrigin, err := resolveMaybe(store, x.origin)
	if err != nil {
		return nil, nil, err
	}

scan:
	for o != nil && o != right {
		// Insert into itemsBeforeOrigin *before* the case tests (spec §9:
		// preserve inclusivity of items yet to be classified as
		// conflicting).
		itemsBeforeOrigin[o] = struct{}{}
		conflicting[o] = struct{}{}

		oOrigin, err := resolveMaybe(store, o.origin)
		if err != nil {
			return nil, nil, err
		}

		switch {
		case oOrigin == xOrigin:
			// Case A: same original left neighbor.
			switch {
			case o.id.Client < x.id.Client:
				left = o
				conflicting = make(map[*Item]struct{})
			case o.rightOrigin == x.rightOrigin:
				break scan
			}
		case oOrigin != nil:
			if _, before := itemsBeforeOrigin[oOrigin]; before {
				// Case B: o is chained after an item in conflict with x.
				if _, stillConflicting := conflicting[oOrigin]; !stillConflicting {
					left = o
					conflicting = make(map[*Item]struct{})
				}
			} else {
				break scan
			}
		default:
			break scan
		}
		o = o.right
	}

	var trueRight *Item
	if left != nil {
		trueRight = left.right
	} else {
		trueRight = sequenceHead(parent, x.parentSub)
	}
	return left, trueRight, nil
}

// resolveMaybe resolves an ID to its Item, returning nil for NoID.
func resolveMaybe(store *StructStore, id ID) (*Item, error) {
	if !id.Valid() {
		return nil, nil
	}
	return store.GetItem(id)
}

// deleteItem marks it deleted, unlinking nothing (tombstones stay in the
// list until GC per spec §3 "Lifecycle"), adjusting the owning
// container's length and search markers, and recording the deletion in
// the transaction's delete set and changed-set.
func deleteItem(tx *Transaction, it *Item) {
	if it.Deleted() {
		return
	}
	if parent := it.parent.Container; parent != nil && it.parentSub == nil && it.content.Countable() {
		parent.length -= it.length
	}
	if parent := it.parent.Container; parent != nil {
		adjustMarkersBeforeDelete(parent, it)
	}
	it.markDeleted()
	tx.deleteSet.Add(it.id.Client, it.id.Clock, uint32(it.length))
	if parent := it.parent.Container; parent != nil {
		tx.markChanged(parent, it.parentSub)
	}
	tx.doc.telemetry.recordDelete()
	if tc, ok := it.content.(*TypeContent); ok {
		deleteContainerTree(tx, tc.Container)
	}
}

// deleteContainerTree cascades deletion through a nested container's
// sequence and map entries, matching the "parent deleted" propagation
// Deletion-on-integrate relies on for items integrated after their
// parent was already torn down.
func deleteContainerTree(tx *Transaction, c *Container) {
	for it := c.start; it != nil; it = it.right {
		if !it.Deleted() {
			deleteItem(tx, it)
		}
	}
	for _, it := range c.mapTail {
		if !it.Deleted() {
			deleteItem(tx, it)
		}
	}
}

// adjustMarkersBeforeDelete implements spec §4.6: a marker pointing to
// the soon-to-be-deleted item is walked left to the last countable
// undeleted item, re-indexed at that item's start position, or dropped
// if none exists.
func adjustMarkersBeforeDelete(c *Container, it *Item) {
	if _, ok := c.markers.IndexOf(it); !ok {
		return
	}
	cur := it.left
	for cur != nil && (cur.Deleted() || !cur.content.Countable()) {
		cur = cur.left
	}
	c.markers.Drop(it)
	if cur != nil {
		idx := 0
		for p := c.start; p != nil && p != cur; p = p.right {
			if !p.Deleted() && p.content.Countable() {
				idx += p.length
			}
		}
		c.markers.MaybeStore(cur, idx)
	}
}
