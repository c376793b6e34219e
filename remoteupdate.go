package ydoc

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/btree"

	"github.com/cshekharsharma/ydoc/internal/codec"
)

// ApplyUpdate decodes data and integrates it into doc inside its own
// transaction (spec §6 "applyUpdate(doc, update, origin)"). Structs whose
// causal dependencies are not yet present are buffered in
// doc.pendingStructs and retried automatically whenever a later update
// narrows the gap (spec §4.4 step 3).
func ApplyUpdate(doc *Document, data []byte, origin any) error {
	decoded, err := codec.DecodeUpdate(data)
	if err != nil {
		return err
	}
	return doc.transact(func(tx *Transaction) error {
		if err := integrateDecoded(tx, decoded); err != nil {
			return err
		}
		return retryPending(tx)
	}, origin, false)
}

// retryPending re-attempts every buffered update after a successful
// integration narrows the missing-causality gap, looping to a fixed
// point: each pass that makes no progress (state vector unchanged) ends
// the retry instead of spinning forever.
func retryPending(tx *Transaction) error {
	for {
		pending := tx.doc.pendingStructs.updates
		if len(pending) == 0 {
			return nil
		}
		before := tx.doc.store.StateVector()
		tx.doc.pendingStructs.updates = nil
		tx.doc.pendingStructs.missing = make(map[uint32]uint32)
		for _, u := range pending {
			if err := integrateDecoded(tx, u); err != nil {
				return err
			}
		}
		after := tx.doc.store.StateVector()
		if sameStateVector(before, after) {
			return nil
		}
	}
}

func sameStateVector(a, b map[uint32]uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// integrateDecoded implements spec §4.4: walk each client's struct run in
// clock order, skipping the prefix this store already knows, integrating
// what it can, and bailing into doc.pendingStructs the moment a struct's
// origin/rightOrigin/parent dependency is not yet satisfied. Conservative
// by design: the first gap anywhere in the update stops all further
// processing of that update, relying on retryPending to finish the job
// once the missing struct (likely arriving in a later update) lands.
func integrateDecoded(tx *Transaction, u *codec.Update) error {
	doc := tx.doc

	// Client worklist ordered highest-id-first (spec §4.4 step 1: "a
	// heuristic that reduces conflict work" — a higher-id client's structs
	// tend to already be the ones resolveConflict would walk past anyway).
	// visited tracks which clients this pass has already fully drained, so
	// a struct whose dependency names an already-visited client can skip
	// straight to integration without re-deriving its state.
	byClient := make(map[uint32]codec.ClientBlock, len(u.Clients))
	worklist := btree.NewG(32, func(a, b uint32) bool { return a > b })
	for _, block := range u.Clients {
		byClient[block.Client] = block
		worklist.ReplaceOrInsert(block.Client)
	}
	visited := roaring.New()

	var firstErr error
	worklist.Ascend(func(client uint32) bool {
		block := byClient[client]
		clock := block.FirstClock
		for _, rec := range block.Structs {
			length := uint32(codec.RecordLength(rec))
			rid := ID{Client: client, Clock: clock}
			localState := doc.store.GetState(client)

			if rid.Clock+length <= localState {
				clock += length
				continue
			}
			if rid.Clock < localState {
				rec = trimRecordPrefix(rec, int(localState-rid.Clock))
				rid = ID{Client: client, Clock: localState}
				length = uint32(codec.RecordLength(rec))
			}
			if rid.Clock > localState {
				bufferPending(doc, u, client, localState)
				return false
			}
			if dep, ok := missingDependency(doc, rec); ok && !visited.Contains(dep.Client) {
				bufferPending(doc, u, dep.Client, doc.store.GetState(dep.Client))
				return false
			}

			if err := integrateRecord(tx, rid, rec); err != nil {
				firstErr = err
				return false
			}
			clock += length
		}
		visited.Add(client)
		return true
	})
	if firstErr != nil {
		return firstErr
	}

	for _, block := range u.DeleteSet {
		for _, rng := range block.Ranges {
			if err := doc.store.IterateRange(tx, block.Client, rng.Clock, int(rng.Length), func(st Struct) error {
				if it, ok := st.(*Item); ok && !it.Deleted() {
					deleteItem(tx, it)
				}
				return nil
			}); err != nil {
				// A delete range over clocks this replica hasn't received yet
				// is itself a missing-causality gap.
				bufferPending(doc, u, block.Client, doc.store.GetState(block.Client))
				return nil
			}
		}
	}
	return nil
}

func bufferPending(doc *Document, u *codec.Update, client uint32, haveClock uint32) {
	if existing, ok := doc.pendingStructs.missing[client]; !ok || haveClock < existing {
		doc.pendingStructs.missing[client] = haveClock
	}
	doc.pendingStructs.updates = append(doc.pendingStructs.updates, u)
}

// missingDependency reports the first (client, clock) this record depends
// on that the local store hasn't reached yet.
func missingDependency(doc *Document, r codec.StructRecord) (ID, bool) {
	if r.HasOrigin && r.Origin.Clock >= doc.store.GetState(r.Origin.Client) {
		return ID{Client: r.Origin.Client, Clock: r.Origin.Clock}, true
	}
	if r.HasRightOrigin && r.RightOrigin.Clock >= doc.store.GetState(r.RightOrigin.Client) {
		return ID{Client: r.RightOrigin.Client, Clock: r.RightOrigin.Clock}, true
	}
	if r.HasParent && !r.Parent.IsRootName && r.Parent.ItemID.Clock >= doc.store.GetState(r.Parent.ItemID.Client) {
		return ID{Client: r.Parent.ItemID.Client, Clock: r.Parent.ItemID.Clock}, true
	}
	return ID{}, false
}

// trimRecordPrefix drops the first `skip` clock units a record covers,
// used when an incoming update partially overlaps what this replica
// already has. Fixed-length content kinds (Binary, Embed, Format, Type,
// Doc) are always length 1 and never require a partial trim.
func trimRecordPrefix(r codec.StructRecord, skip int) codec.StructRecord {
	if skip <= 0 {
		return r
	}
	switch r.Ref {
	case codec.RefGC, codec.RefSkip:
		r.Length -= skip
	case codec.RefDeleted:
		r.DeletedLen -= skip
	case codec.RefAny, codec.RefJSON:
		r.AnyValues = r.AnyValues[skip:]
	case codec.RefString:
		r.StringUnits = r.StringUnits[skip:]
	}
	if r.HasOrigin {
		r.Origin = codec.ID{Client: r.Origin.Client, Clock: r.Origin.Clock + uint32(skip)}
	} else {
		r.Origin = codec.ID{Client: r.ID.Client, Clock: r.ID.Clock + uint32(skip) - 1}
		r.HasOrigin = true
	}
	return r
}

func integrateRecord(tx *Transaction, id ID, r codec.StructRecord) error {
	switch r.Ref {
	case codec.RefGC:
		return tx.doc.store.Append(&GCStruct{id: id, length: r.Length})
	case codec.RefSkip:
		return tx.doc.store.Append(&SkipStruct{id: id, length: r.Length})
	default:
		it, err := buildRemoteItem(tx, id, r)
		if err != nil {
			return err
		}
		return integrate(tx, it)
	}
}

func contentFromRecord(r codec.StructRecord) (Content, error) {
	switch r.Ref {
	case codec.RefAny, codec.RefJSON:
		return &AnyContent{Values: r.AnyValues}, nil
	case codec.RefString:
		return &StringContent{Units: r.StringUnits}, nil
	case codec.RefBinary:
		return &BinaryContent{Bytes: r.BinaryBytes}, nil
	case codec.RefEmbed:
		return &EmbedContent{Value: r.EmbedValue}, nil
	case codec.RefFormat:
		return &FormatContent{Key: r.FormatKey, Value: r.FormatValue}, nil
	case codec.RefType:
		c := newContainer(ContainerKind(r.TypeKind))
		return &TypeContent{Container: c}, nil
	case codec.RefDoc:
		sub := NewDocument(DocOptions{GUID: r.FormatKey})
		return &DocContent{Doc: sub}, nil
	case codec.RefDeleted:
		return &DeletedContent{Length: r.DeletedLen}, nil
	}
	return nil, brokenInvariant("contentFromRecord: unknown content ref")
}

func resolveParent(doc *Document, r codec.StructRecord) (*Container, error) {
	if !r.HasParent {
		return nil, brokenInvariant("resolveParent: record carries no parent")
	}
	if r.Parent.IsRootName {
		c, ok := doc.roots[r.Parent.RootName]
		if !ok {
			// A root referenced before any local Get() call is created as an
			// Array; a later Get of the same name with another kind returns
			// ErrTypeMismatch.
			c = newContainer(KindArray)
			c.doc = doc
			doc.roots[r.Parent.RootName] = c
		}
		return c, nil
	}
	parentItem, err := doc.store.GetItem(ID{Client: r.Parent.ItemID.Client, Clock: r.Parent.ItemID.Clock})
	if err != nil {
		return nil, err
	}
	tc, ok := parentItem.content.(*TypeContent)
	if !ok {
		return nil, brokenInvariant("resolveParent: referenced item is not a container")
	}
	return tc.Container, nil
}

// buildRemoteItem constructs an Item from a decoded record, resolving its
// parent and left/right neighbors from origin/rightOrigin the way a
// remote-arriving struct must (spec §4.3: a local insert's left/right
// come from the caller's live position; a remote item's come from
// re-resolving its immutable origin ids against the current document).
func buildRemoteItem(tx *Transaction, id ID, r codec.StructRecord) (*Item, error) {
	content, err := contentFromRecord(r)
	if err != nil {
		return nil, err
	}
	parent, err := resolveParent(tx.doc, r)
	if err != nil {
		return nil, err
	}
	it := &Item{
		id:      id,
		length:  content.Len(),
		content: content,
		info:    initialFlags(content),
		parent:  ParentRef{Container: parent},
	}
	if r.Ref == codec.RefDeleted {
		it.info |= FlagDeleted
	}
	if r.HasParentSub {
		sub := r.ParentSub
		it.parentSub = &sub
	}

	if r.HasOrigin {
		it.origin = ID{Client: r.Origin.Client, Clock: r.Origin.Clock}
		left, err := tx.doc.store.GetItemCleanEnd(tx, it.origin)
		if err != nil {
			return nil, err
		}
		it.left = left
	} else {
		it.origin = NoID
	}

	if r.HasRightOrigin {
		it.rightOrigin = ID{Client: r.RightOrigin.Client, Clock: r.RightOrigin.Clock}
		right, err := tx.doc.store.GetItemCleanStart(tx, it.rightOrigin)
		if err != nil {
			return nil, err
		}
		it.right = right
	} else {
		it.rightOrigin = NoID
	}

	return it, nil
}

// recordFromStruct is the encode-direction mirror of integrateRecord,
// producing the wire record for one already-integrated struct.
func recordFromStruct(st Struct) codec.StructRecord {
	switch s := st.(type) {
	case *GCStruct:
		return codec.StructRecord{ID: codec.ID{Client: s.id.Client, Clock: s.id.Clock}, Length: s.length, Ref: codec.RefGC}
	case *SkipStruct:
		return codec.StructRecord{ID: codec.ID{Client: s.id.Client, Clock: s.id.Clock}, Length: s.length, Ref: codec.RefSkip}
	case *Item:
		return recordFromItem(s)
	}
	return codec.StructRecord{}
}

func recordFromItem(it *Item) codec.StructRecord {
	r := codec.StructRecord{ID: codec.ID{Client: it.id.Client, Clock: it.id.Clock}, HasParent: true}

	if it.origin.Valid() {
		r.HasOrigin = true
		r.Origin = codec.ID{Client: it.origin.Client, Clock: it.origin.Clock}
	}
	if it.rightOrigin.Valid() {
		r.HasRightOrigin = true
		r.RightOrigin = codec.ID{Client: it.rightOrigin.Client, Clock: it.rightOrigin.Clock}
	}
	if it.parentSub != nil {
		r.HasParentSub = true
		r.ParentSub = *it.parentSub
	}
	if it.parent.resolved() {
		if name, ok := rootNameOf(it.parent.Container); ok {
			r.Parent = codec.ParentInfo{IsRootName: true, RootName: name}
		} else if it.parent.Container.item != nil {
			oi := it.parent.Container.item.id
			r.Parent = codec.ParentInfo{ItemID: codec.ID{Client: oi.Client, Clock: oi.Clock}}
		}
	}

	switch c := it.content.(type) {
	case *AnyContent:
		r.Ref = codec.RefAny
		r.AnyValues = c.Values
	case *StringContent:
		r.Ref = codec.RefString
		r.StringUnits = c.Units
	case *BinaryContent:
		r.Ref = codec.RefBinary
		r.BinaryBytes = c.Bytes
	case *EmbedContent:
		r.Ref = codec.RefEmbed
		r.EmbedValue = c.Value
	case *FormatContent:
		r.Ref = codec.RefFormat
		r.FormatKey = c.Key
		r.FormatValue = c.Value
	case *TypeContent:
		r.Ref = codec.RefType
		r.TypeKind = byte(c.Container.kind)
	case *DocContent:
		r.Ref = codec.RefDoc
		r.FormatKey = c.Doc.GUID()
	case *DeletedContent:
		r.Ref = codec.RefDeleted
		r.DeletedLen = c.Length
	}
	return r
}

func rootNameOf(c *Container) (string, bool) {
	if c.doc == nil {
		return "", false
	}
	for name, rc := range c.doc.roots {
		if rc == c {
			return name, true
		}
	}
	return "", false
}

// snapshotDeleteSet rebuilds the document's cumulative delete set by
// scanning every struct for tombstones, since GC'd ranges (GCStruct) and
// not-yet-collected tombstoned Items both count as "deleted" (spec §3,
// §4.5 cleanup step 6).
func snapshotDeleteSet(doc *Document) *DeleteSet {
	ds := newDeleteSet()
	for client, arr := range doc.store.clients {
		for _, st := range arr {
			switch s := st.(type) {
			case *GCStruct:
				ds.Add(client, s.id.Clock, uint32(s.length))
			case *Item:
				if s.Deleted() {
					ds.Add(client, s.id.Clock, uint32(s.length))
				}
			}
		}
	}
	ds.Normalize()
	return ds
}

func deleteSetToCodec(ds *DeleteSet) []codec.DeleteClientBlock {
	var out []codec.DeleteClientBlock
	byClient := make(map[uint32]*codec.DeleteClientBlock)
	ds.ForEach(func(client uint32, r DeleteRange) {
		b, ok := byClient[client]
		if !ok {
			out = append(out, codec.DeleteClientBlock{Client: client})
			b = &out[len(out)-1]
			byClient[client] = b
		}
		b.Ranges = append(b.Ranges, codec.DeleteRange{Clock: r.Clock, Length: r.Length})
	})
	return out
}

// encodeClientsSince builds the struct section of an update covering
// every struct at or after sv[client] for every known client. Structs
// that straddle the sv boundary are included whole rather than split,
// a deliberate simplification for the no-transaction encode path (a
// true byte-exact diff would require splitting through a Transaction).
func encodeClientsSince(doc *Document, sv map[uint32]uint32) []codec.ClientBlock {
	var out []codec.ClientBlock
	for client, arr := range doc.store.clients {
		have := sv[client]
		var recs []codec.StructRecord
		firstClock := have
		started := false
		for _, st := range arr {
			end := st.ID().Clock + uint32(st.Length())
			if end <= have {
				continue
			}
			if !started {
				firstClock = st.ID().Clock
				started = true
			}
			recs = append(recs, recordFromStruct(st))
		}
		if len(recs) > 0 {
			out = append(out, codec.ClientBlock{Client: client, FirstClock: firstClock, Structs: recs})
		}
	}
	return out
}

// EncodeStateVector snapshots doc's current state vector onto the wire
// (spec §6 "encodeStateVector(doc)").
func EncodeStateVector(doc *Document) []byte {
	return codec.EncodeStateVector(doc.store.StateVector())
}

// EncodeStateAsUpdate produces an update covering every struct doc knows
// that sv (decoded from a peer's EncodeStateVector) does not (spec §6
// "encodeStateAsUpdate(doc, encodedTargetStateVector)"). A nil/empty sv
// yields the full document history.
func EncodeStateAsUpdate(doc *Document, sv map[uint32]uint32) []byte {
	if sv == nil {
		sv = map[uint32]uint32{}
	}
	u := &codec.Update{
		Clients:   encodeClientsSince(doc, sv),
		DeleteSet: deleteSetToCodec(snapshotDeleteSet(doc)),
	}
	return codec.EncodeUpdate(u)
}

// encodeTransactionUpdate builds the update payload fired to update/
// updateV2 subscribers after a transaction closes: every struct created
// since the transaction's beforeState, plus exactly the deletions this
// transaction recorded (spec §4.5 cleanup step 9).
func (d *Document) encodeTransactionUpdate(tx *Transaction) []byte {
	return codec.EncodeUpdate(d.transactionUpdate(tx))
}

// encodeTransactionUpdateV2 is encodeTransactionUpdate's V2 counterpart,
// fired to EventUpdateV2 subscribers with the same logical content but
// the column-major wire layout (spec §4.7/§6).
func (d *Document) encodeTransactionUpdateV2(tx *Transaction) []byte {
	return codec.EncodeUpdateV2(d.transactionUpdate(tx))
}

func (d *Document) transactionUpdate(tx *Transaction) *codec.Update {
	return &codec.Update{
		Clients:   encodeClientsSince(d, tx.beforeState),
		DeleteSet: deleteSetToCodec(tx.deleteSet),
	}
}

// MergeUpdates concatenates the struct and delete-set sections of
// multiple encoded updates into one (spec §6 "mergeUpdates(updates)").
// Per-client struct runs are pooled and sorted by clock but not
// re-split/re-merged across run boundaries; applying the merged result
// through ApplyUpdate still converges correctly since integration
// tolerates and skips any overlap.
func MergeUpdates(updates [][]byte) ([]byte, error) {
	byClient := make(map[uint32][]codec.StructRecord)
	var dsBlocks []codec.DeleteClientBlock
	for _, raw := range updates {
		u, err := codec.DecodeUpdate(raw)
		if err != nil {
			return nil, err
		}
		for _, block := range u.Clients {
			byClient[block.Client] = append(byClient[block.Client], block.Structs...)
		}
		dsBlocks = append(dsBlocks, u.DeleteSet...)
	}

	var clients []codec.ClientBlock
	for client, recs := range byClient {
		sortRecordsByClock(recs)
		clients = append(clients, codec.ClientBlock{Client: client, FirstClock: recs[0].ID.Clock, Structs: recs})
	}
	merged := &codec.Update{Clients: clients, DeleteSet: dsBlocks}
	return codec.EncodeUpdate(merged), nil
}

func sortRecordsByClock(recs []codec.StructRecord) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j-1].ID.Clock > recs[j].ID.Clock; j-- {
			recs[j-1], recs[j] = recs[j], recs[j-1]
		}
	}
}

// DiffUpdate strips from an encoded update everything sv already covers
// (spec §6 "diffUpdate(update, stateVector)"), trimming any struct that
// only partially overlaps sv rather than dropping it outright.
func DiffUpdate(data []byte, sv map[uint32]uint32) ([]byte, error) {
	u, err := codec.DecodeUpdate(data)
	if err != nil {
		return nil, err
	}
	var clients []codec.ClientBlock
	for _, block := range u.Clients {
		have := sv[block.Client]
		clock := block.FirstClock
		var recs []codec.StructRecord
		firstClock := clock
		started := false
		for _, r := range block.Structs {
			length := uint32(codec.RecordLength(r))
			if clock+length <= have {
				clock += length
				continue
			}
			if clock < have {
				r = trimRecordPrefix(r, int(have-clock))
				clock = have
			}
			if !started {
				firstClock = clock
				started = true
			}
			recs = append(recs, r)
			clock += uint32(codec.RecordLength(r))
		}
		if len(recs) > 0 {
			clients = append(clients, codec.ClientBlock{Client: block.Client, FirstClock: firstClock, Structs: recs})
		}
	}
	out := &codec.Update{Clients: clients, DeleteSet: u.DeleteSet}
	return codec.EncodeUpdate(out), nil
}
