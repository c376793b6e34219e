package ydoc

// ItemFlags is the Item.info bitfield (spec §3).
type ItemFlags uint8

const (
	// FlagKeep marks an item that must not be garbage collected even once
	// deleted (e.g. still referenced by a snapshot or the undo stack).
	// Propagates upward through parents per spec §5 "Memory".
	FlagKeep ItemFlags = 1 << iota
	// FlagCountable marks content that contributes to container length
	// and index arithmetic. Mirrors Content.Countable() but is cached on
	// the Item so deleted items can still answer "was I ever countable"
	// after their content has been replaced by a tombstone.
	FlagCountable
	// FlagDeleted marks a tombstoned item. The item remains linked in the
	// document-order list until GC.
	FlagDeleted
	// FlagMarker marks an item cached by a search marker (spec §4.6); used
	// only as a hint, never load-bearing for correctness.
	FlagMarker
)

func (f ItemFlags) has(bit ItemFlags) bool { return f&bit != 0 }

// Struct is the common interface satisfied by every entry the StructStore
// holds in a client's per-client ordered array: a live Item, a collapsed
// GC marker, or a Skip placeholder (spec §3 "Two pseudo-structs sit
// alongside items in the StructStore").
type Struct interface {
	ID() ID
	Length() int
	// splitStruct divides the struct at `offset` units from its start,
	// returning the right half; the receiver is mutated in place to become
	// the left half. offset must be in (0, Length()).
	splitStruct(offset int) Struct
	// mergeableWith reports whether `other`, immediately following this
	// struct in clock space, can be merged into it.
	mergeableWith(other Struct) bool
	// mergeInto absorbs `other` (which must satisfy mergeableWith) into
	// the receiver, extending its length.
	mergeInto(other Struct)
}

// GCStruct is a collapsed tombstone occupying a clock range (spec §3).
type GCStruct struct {
	id     ID
	length int
}

func (g *GCStruct) ID() ID       { return g.id }
func (g *GCStruct) Length() int  { return g.length }
func (g *GCStruct) splitStruct(offset int) Struct {
	right := &GCStruct{id: ID{Client: g.id.Client, Clock: g.id.Clock + uint32(offset)}, length: g.length - offset}
	g.length = offset
	return right
}
func (g *GCStruct) mergeableWith(other Struct) bool {
	o, ok := other.(*GCStruct)
	return ok && o.id.Clock == g.id.Clock+uint32(g.length)
}
func (g *GCStruct) mergeInto(other Struct) {
	g.length += other.(*GCStruct).length
}

// SkipStruct is a placeholder for clock ranges known to be intentionally
// absent while an update is being processed (spec §3, §4.4).
type SkipStruct struct {
	id     ID
	length int
}

func (s *SkipStruct) ID() ID      { return s.id }
func (s *SkipStruct) Length() int { return s.length }
func (s *SkipStruct) splitStruct(offset int) Struct {
	right := &SkipStruct{id: ID{Client: s.id.Client, Clock: s.id.Clock + uint32(offset)}, length: s.length - offset}
	s.length = offset
	return right
}
func (s *SkipStruct) mergeableWith(other Struct) bool {
	o, ok := other.(*SkipStruct)
	return ok && o.id.Clock == s.id.Clock+uint32(s.length)
}
func (s *SkipStruct) mergeInto(other Struct) {
	s.length += other.(*SkipStruct).length
}

// ParentRef resolves either to a live Container or, before integration
// completes, to a pending identifier: an owning Item's ID (a nested
// container) or a root name string.
type ParentRef struct {
	Container *Container
	// ItemID names the owning item when the parent is a nested container
	// not yet resolved to *Container. Valid() is false once Container is set.
	ItemID ID
	// RootName names a root container by its registered string when the
	// parent arrived over the wire as a root-name reference (spec §4.7
	// "Root-name resolution").
	RootName string
}

func (p ParentRef) resolved() bool { return p.Container != nil }

// Item is the single operation record: the smallest unit of replication
// (spec §3).
type Item struct {
	id     ID
	length int

	// origin/rightOrigin are immutable after creation: the IDs of the
	// items immediately left/right of this item at creation time on the
	// originating client (spec §3's "Origin persistence" invariant).
	origin      ID
	rightOrigin ID

	// left/right are the current neighbors in the container's document-
	// order list. Mutable; established at integration, updated on merges
	// and splits.
	left  *Item
	right *Item

	parent    ParentRef
	parentSub *string // nil means "lives in the container's sequence"

	content Content
	redone  ID
	info    ItemFlags
}

func (it *Item) ID() ID      { return it.id }
func (it *Item) Length() int { return it.length }

// LastID returns the ID of this item's last content unit, used to set a
// newly-created neighbor's origin/rightOrigin (spec §4.3).
func (it *Item) LastID() ID { return it.id.Last(it.length) }

func (it *Item) Deleted() bool   { return it.info.has(FlagDeleted) }
func (it *Item) Keep() bool      { return it.info.has(FlagKeep) }
func (it *Item) Countable() bool { return it.info.has(FlagCountable) }

func (it *Item) markDeleted() {
	if it.info.has(FlagDeleted) {
		return
	}
	it.info |= FlagDeleted
}

func (it *Item) setKeep(keep bool) {
	if keep {
		it.info |= FlagKeep
	} else {
		it.info &^= FlagKeep
	}
}

// sameClientContiguous reports whether `other` immediately follows this
// item in clock space on the same client — the precondition for item
// merging everywhere in this engine (splitting, GC recombination, and
// the transaction's post-integration merge pass all share this check).
func (it *Item) sameClientContiguous(other *Item) bool {
	return it.id.Client == other.id.Client &&
		it.id.Clock+uint32(it.length) == other.id.Clock
}

// mergeableWith implements Struct.mergeableWith for Item, adding the
// content-kind-specific rules spec §3 lists per variant (Any/String/
// Deleted mergeable by concatenation, Binary/Embed/Format/Type/Doc never).
func (it *Item) mergeableWith(other Struct) bool {
	o, ok := other.(*Item)
	if !ok {
		return false
	}
	if !it.sameClientContiguous(o) {
		return false
	}
	if it.Deleted() != o.Deleted() {
		return false
	}
	if it.redone.Valid() || o.redone.Valid() {
		return false
	}
	if it.parentSub != o.parentSub && (it.parentSub == nil || o.parentSub == nil || *it.parentSub != *o.parentSub) {
		return false
	}
	if it.content.Kind() != o.content.Kind() || !it.content.Mergeable() {
		return false
	}
	// Only a merge-boundary-adjacent pair (it.right == o) is a legal merge;
	// the caller (StructStore.tryMergeLeft, used by transaction cleanup)
	// checks list adjacency before calling mergeInto.
	return true
}

func (it *Item) mergeInto(other Struct) {
	o := other.(*Item)
	switch c := it.content.(type) {
	case *AnyContent:
		c.Values = append(c.Values, o.content.(*AnyContent).Values...)
	case *StringContent:
		c.Units = append(c.Units, o.content.(*StringContent).Units...)
	case *DeletedContent:
		c.Length += o.content.(*DeletedContent).Length
	default:
		panic("mergeInto called on non-mergeable content")
	}
	it.length += o.length
	it.right = o.right
	if it.right != nil {
		it.right.left = it
	}
	if it.parent.resolved() && it.parentSub != nil && it.right == nil {
		it.parent.Container.mapTail[*it.parentSub] = it
	}
}

// splitStruct implements Struct.splitStruct for Item: splits at offset
// content units, producing a right-item that inherits deleted/keep flags
// and carries the remainder of the content, origin, and neighbor pointers
// (spec §4.1). The right item is NOT automatically registered with the
// StructStore or linked into the document-order list — callers
// (StructStore.getItemCleanStart/End) do that.
func (it *Item) splitStruct(offset int) Struct {
	if offset <= 0 || offset >= it.length {
		panic(brokenInvariant("splitStruct offset out of bounds"))
	}
	leftContent, rightContent := it.content.splitAt(offset)
	right := &Item{
		id:          ID{Client: it.id.Client, Clock: it.id.Clock + uint32(offset)},
		length:      it.length - offset,
		origin:      it.id.Last(offset),
		rightOrigin: it.rightOrigin,
		left:        it,
		right:       it.right,
		parent:      it.parent,
		parentSub:   it.parentSub,
		content:     rightContent,
		info:        it.info,
	}
	if it.right != nil {
		it.right.left = right
	}
	it.content = leftContent
	it.length = offset
	it.right = right

	if right.parent.resolved() && right.parentSub != nil && right.right == nil {
		right.parent.Container.mapTail[*right.parentSub] = right
	}
	return right
}
