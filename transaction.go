package ydoc

import "sort"

// changeSet tracks which parentSub keys were touched in one container
// during one transaction. A nil-keyed touch (Seq == true) means the
// container's own sequence was modified (spec §4.5 "changed — container
// → set of parentSub keys (null element = sequence modified)").
type changeSet struct {
	seq  bool
	keys map[string]struct{}
}

// Transaction aggregates one or more mutations and owns everything spec
// §4.5 lists: before/after state vectors, the accumulated delete set, the
// changed-container map, the deep-observer event accumulator, the
// merge-candidate list, the caller-supplied origin tag, and the
// local/remote flag.
type Transaction struct {
	doc *Document

	beforeState map[uint32]uint32
	afterState  map[uint32]uint32

	deleteSet *DeleteSet

	changed            map[*Container]*changeSet
	changedParentTypes map[*Container][]Event

	mergeCandidates []*Item

	origin any
	local  bool

	subdocsAdded   map[*Document]struct{}
	subdocsRemoved map[*Document]struct{}
	subdocsLoaded  map[*Document]struct{}

	needFormattingCleanup bool
}

func newTransaction(doc *Document, origin any, local bool) *Transaction {
	return &Transaction{
		doc:                doc,
		beforeState:        doc.store.StateVector(),
		deleteSet:          newDeleteSet(),
		changed:            make(map[*Container]*changeSet),
		changedParentTypes: make(map[*Container][]Event),
		origin:             origin,
		local:              local,
		subdocsAdded:       make(map[*Document]struct{}),
		subdocsRemoved:     make(map[*Document]struct{}),
		subdocsLoaded:      make(map[*Document]struct{}),
	}
}

func (tx *Transaction) recordMergeCandidate(it *Item) {
	tx.mergeCandidates = append(tx.mergeCandidates, it)
}

// markChanged records that container's sequence (key == nil) or a
// specific parentSub key was touched in this transaction, skipping the
// record if parent itself was created in the same transaction (spec
// §4.3 step 4: "unless parent was created in the same transaction,
// detected via pre-transaction state vector").
func (tx *Transaction) markChanged(container *Container, key *string) {
	if tx.createdInThisTx(container) {
		return
	}
	cs := tx.changed[container]
	if cs == nil {
		cs = &changeSet{keys: make(map[string]struct{})}
		tx.changed[container] = cs
	}
	if key == nil {
		cs.seq = true
		return
	}
	cs.keys[*key] = struct{}{}
}

// createdInThisTx reports whether container's owning item (if nested)
// has a clock at or past this transaction's beforeState snapshot for its
// client — i.e. the container itself didn't exist before this
// transaction opened.
func (tx *Transaction) createdInThisTx(container *Container) bool {
	if container.item == nil {
		return false
	}
	before, ok := tx.beforeState[container.item.id.Client]
	if !ok {
		before = 0
	}
	return container.item.id.Clock >= before
}

// transact implements spec §4.5's open/close rules: if no active
// transaction exists for doc, create one, run fn, and — only for the
// outermost call — drain the cleanup queue one transaction at a time.
// Nested calls while a transaction is already active reuse it.
func (d *Document) transact(fn func(*Transaction) error, origin any, local bool) error {
	outermost := d.activeTx == nil
	if outermost {
		if len(d.cleanupQueue) == 0 {
			d.emit(EventBeforeAllTransactions, DocEvent{})
		}
		tx := newTransaction(d, origin, local)
		d.activeTx = tx
		d.cleanupQueue = append(d.cleanupQueue, tx)
		d.emit(EventBeforeTransaction, DocEvent{Tx: tx, Origin: origin})
	}
	tx := d.activeTx

	err := fn(tx)

	if outermost {
		d.activeTx = nil
		d.drainCleanupQueue()
	}
	return err
}

// drainCleanupQueue processes each accumulated transaction in order,
// iteratively rather than recursively: a deep-observer callback that
// opens a new transaction mid-cleanup appends to the queue instead of
// re-entering this function (spec §9 "Observer graph cycles").
func (d *Document) drainCleanupQueue() {
	for len(d.cleanupQueue) > 0 {
		tx := d.cleanupQueue[0]
		d.cleanupQueue = d.cleanupQueue[1:]
		d.cleanupOne(tx)
	}
	d.emit(EventAfterAllTransactions, DocEvent{})
}

// cleanupOne runs the full cleanup sequence for one transaction (spec
// §4.5 "Cleanup of one transaction").
func (d *Document) cleanupOne(tx *Transaction) {
	// 1. Normalize the delete set.
	tx.deleteSet.Normalize()

	// 2. Capture afterState.
	tx.afterState = d.store.StateVector()

	// 3. Fire shallow observers for each changed container.
	d.emit(EventBeforeObserverCalls, DocEvent{Tx: tx})
	for container, cs := range tx.changed {
		var keys []*string
		if cs.seq {
			keys = append(keys, nil)
		}
		for k := range cs.keys {
			k := k
			keys = append(keys, &k)
		}
		container.fireShallow(Event{Container: container, Tx: tx, Keys: keys})
	}

	// 4. Fire deep observers: walk each modified container to the root,
	// accumulating events per ancestor; sort by path-length ascending.
	d.fireDeepObservers(tx)

	// 5. Format cleanup, if flagged.
	if tx.needFormattingCleanup {
		d.cleanupFormatting(tx)
	}

	// 6. GC, then merge neighboring structs.
	if d.opts.gcEnabled() {
		d.garbageCollect(tx)
	}
	d.mergeCandidatesPass(tx)

	// 7. Try to merge newly-created structs from the pre-state boundary
	// forward (covers local-write merging that GC's pass — restricted to
	// already-deleted items — does not reach).
	d.mergeNewStructs(tx)

	// 8. Client-id collision check.
	if !tx.local && d.overlapsLocalClient(tx) {
		d.clientID = newClientID()
	}

	// 8b. Remote-originated transactions restructure the sequence list in
	// ways search markers don't track (origin/rightOrigin-relative
	// integration instead of an indexed insert), so every container they
	// touched has its marker cache cleared (spec §4.6).
	if !tx.local {
		for container := range tx.changed {
			container.markers.Clear()
		}
	}

	// 9. Emit afterTransactionCleanup, and update/updateV2 if subscribed.
	d.emit(EventAfterTransaction, DocEvent{Tx: tx})
	d.emit(EventAfterTransactionCleanup, DocEvent{Tx: tx})
	if hasAny(d.handlers[EventUpdate]) {
		d.emit(EventUpdate, DocEvent{Tx: tx, Update: d.encodeTransactionUpdate(tx)})
	}
	if hasAny(d.handlers[EventUpdateV2]) {
		d.emit(EventUpdateV2, DocEvent{Tx: tx, Update: d.encodeTransactionUpdateV2(tx)})
	}

	// 10. Sub-document set diffs.
	if len(tx.subdocsAdded) > 0 || len(tx.subdocsRemoved) > 0 || len(tx.subdocsLoaded) > 0 {
		d.emit(EventSubdocs, DocEvent{Tx: tx, Subdocs: &SubdocsEvent{
			Added:   docSetSlice(tx.subdocsAdded),
			Removed: docSetSlice(tx.subdocsRemoved),
			Loaded:  docSetSlice(tx.subdocsLoaded),
		}})
	}
}

func hasAny(fns []func(DocEvent)) bool {
	for _, f := range fns {
		if f != nil {
			return true
		}
	}
	return false
}

func docSetSlice(m map[*Document]struct{}) []*Document {
	out := make([]*Document, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	return out
}

// fireDeepObservers implements spec §4.5 step 4: every changed container
// contributes an event to each of its ancestors up to (and including
// possibly) a root; those ancestor event lists are then delivered to each
// ancestor's deep observers sorted by path length ascending (shallow
// changes notified before deep ones).
func (d *Document) fireDeepObservers(tx *Transaction) {
	type ancestorEvents struct {
		container *Container
		depth     int
		events    []Event
	}
	acc := make(map[*Container]*ancestorEvents)

	for container, cs := range tx.changed {
		var keys []*string
		if cs.seq {
			keys = append(keys, nil)
		}
		for k := range cs.keys {
			k := k
			keys = append(keys, &k)
		}
		ev := Event{Container: container, Tx: tx, Keys: keys}

		depth := 0
		cur := container
		for cur != nil {
			a := acc[cur]
			if a == nil {
				a = &ancestorEvents{container: cur, depth: depth}
				acc[cur] = a
			}
			a.events = append(a.events, ev)
			if cur.item != nil && cur.item.parent.resolved() {
				cur = cur.item.parent.Container
				depth++
			} else {
				cur = nil
			}
		}
	}

	ordered := make([]*ancestorEvents, 0, len(acc))
	for _, a := range acc {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].depth < ordered[j].depth })

	for _, a := range ordered {
		a.container.fireDeep(a.events)
	}
}

// cleanupFormatting is a hook for rich-text containers that observed
// remote formatting changes mid-transaction (spec §4.5 step 5). The core
// engine's Text container keeps Format markers as ordinary, already-
// integrated items, so no structural cleanup is required here; this
// exists so a caller-supplied formatting collapsor (SPEC_FULL.md §6's
// "consume the APIs named in §6") has a well-defined place to hook in.
func (d *Document) cleanupFormatting(tx *Transaction) {}

// overlapsLocalClient reports whether this cleanup processed a remote
// struct sharing the document's own client id, which must trigger a
// client-id rotation per spec §9 "Client-id collision".
func (d *Document) overlapsLocalClient(tx *Transaction) bool {
	before, hadBefore := tx.beforeState[d.clientID]
	after, hadAfter := tx.afterState[d.clientID]
	if !hadAfter {
		return false
	}
	if !hadBefore {
		before = 0
	}
	return after > before
}
