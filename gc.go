package ydoc

// garbageCollect implements spec §4.5 cleanup step 6: every item this
// transaction deleted is collapsed to a GCStruct unless it is marked
// Keep or the document's GCFilter vetoes it. Collapsing drops the
// item's content (and, transitively, detaches any nested container it
// held) but leaves its clock range occupied in the StructStore so
// contiguity is preserved.
func (d *Document) garbageCollect(tx *Transaction) {
	filter := d.opts.GCFilter
	tx.deleteSet.ForEach(func(client uint32, r DeleteRange) {
		_ = d.store.IterateRange(nil, client, r.Clock, int(r.Length), func(st Struct) error {
			it, ok := st.(*Item)
			if !ok || !it.Deleted() || it.Keep() {
				return nil
			}
			if filter != nil && !filter(it) {
				return nil
			}
			d.store.Replace(it, &GCStruct{id: it.id, length: it.length})
			return nil
		})
	})
}

// mergeCandidatesPass retries merging every struct the transaction split
// or otherwise flagged as a merge candidate back into its left neighbor
// (spec §4.5 cleanup step 6's "merge neighboring structs").
func (d *Document) mergeCandidatesPass(tx *Transaction) {
	for _, it := range tx.mergeCandidates {
		d.store.tryMergeLeft(it)
	}
}

// mergeNewStructs sweeps every struct created since this transaction
// opened and attempts a left-merge, catching local writes whose adjacent
// items were appended to the StructStore as separate entries (e.g. two
// InsertAt calls in the same transaction that happen to land next to
// each other) but never went through the split-driven merge-candidate
// path (spec §4.5 cleanup step 7).
func (d *Document) mergeNewStructs(tx *Transaction) {
	for client, before := range tx.beforeState {
		arr := d.store.clients[client]
		for i := len(arr) - 1; i >= 0; i-- {
			if arr[i].ID().Clock < before {
				break
			}
			d.store.tryMergeLeft(arr[i])
			arr = d.store.clients[client]
		}
	}
	for client, arr := range d.store.clients {
		if _, seen := tx.beforeState[client]; seen {
			continue
		}
		for i := len(arr) - 1; i > 0; i-- {
			d.store.tryMergeLeft(arr[i])
			arr = d.store.clients[client]
		}
	}
}
