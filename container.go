package ydoc

import (
	"github.com/cshekharsharma/ydoc/internal/marker"
)

// ContainerKind tags the closed set of container variants (spec §9
// design note: "model both as closed tagged variants"). Dispatch is by
// tag; xml-hook/xml-text share the xml-element list engine (SPEC_FULL.md
// §6) and are distinguished only by this tag and their wrapper type.
type ContainerKind byte

const (
	KindArray ContainerKind = iota
	KindMap
	KindText
	KindXmlFragment
	KindXmlElement
	KindXmlHook
	KindXmlText
)

// Container is the abstract per-instance state shared by every concrete
// collection variant: a document-order list head plus a per-key tail
// map (spec §3).
type Container struct {
	kind ContainerKind
	doc  *Document

	start  *Item          // head of the document-order list, nil if empty
	mapTail map[string]*Item // map-key -> most-recently-integrated item for that key

	length int // sum of countable lengths of undeleted sequence items

	item *Item // the Item embedding this container when nested; nil for roots

	markers *marker.Cache

	eventHandlers     []func(Event)
	deepEventHandlers []func([]Event)

	// prelim buffers operations made before this container is integrated
	// (attached to a document), flushed via insert(0, ...) on integration
	// (spec §4.2).
	prelim []any
}

func newContainer(kind ContainerKind) *Container {
	return &Container{
		kind:    kind,
		mapTail: make(map[string]*Item),
		markers: marker.NewCache(80),
	}
}

// Length returns the sequence length: the sum of countable lengths of
// undeleted, sequence (parentSub == nil) items (spec §3 invariant).
func (c *Container) Length() int { return c.length }

// integrated reports whether this container is attached to a document,
// either as a root or nested under an integrated Item.
func (c *Container) integrated() bool { return c.doc != nil }

func (c *Container) transact(fn func(*Transaction) error) error {
	if !c.integrated() {
		return brokenInvariant("container not attached to a document")
	}
	return c.doc.transact(fn, nil, true)
}

// ---- sequence (document-order list) operations ----

// findPosition implements spec §4.2's index -> item translation.
// Returns the countable item that holds the unit just before the target
// index together with the number of that item's units lying before the
// target (an offset in (0, left.length]); (nil, 0) when the target index
// is 0. The item found is cached as a search marker at its start index.
func (c *Container) findPosition(index int) (left *Item, offsetInLeft int) {
	cur := c.start
	remaining := index

	if m, ok := c.markers.Nearest(index); ok {
		cur = m.Item.(*Item)
		remaining = index - m.Index
	}

	// Walk right counting countable && !deleted lengths until reaching
	// the target; walk left if overshot.
	for remaining > 0 && cur != nil {
		if !cur.Deleted() && cur.content.Countable() {
			if remaining <= cur.length {
				break
			}
			remaining -= cur.length
		}
		if cur.right == nil {
			break
		}
		cur = cur.right
	}
	for remaining <= 0 && cur != nil {
		cur = cur.left
		if cur != nil && !cur.Deleted() && cur.content.Countable() {
			remaining += cur.length
		}
	}

	if cur != nil {
		c.markers.MaybeStore(cur, index-remaining)
	}
	return cur, remaining
}

// insertGenerics transforms a heterogeneous input slice into a chain of
// Items per spec §4.2: contiguous JSON primitives coalesce into one Any
// item; []byte becomes Binary; *Document becomes Doc; *Container becomes
// Type; anything else is ErrUnexpectedContent.
func insertGenerics(values []any) ([]Content, error) {
	var out []Content
	i := 0
	for i < len(values) {
		v := values[i]
		switch val := v.(type) {
		case []byte:
			out = append(out, &BinaryContent{Bytes: val})
			i++
		case *Document:
			out = append(out, &DocContent{Doc: val})
			i++
		case *Container:
			out = append(out, &TypeContent{Container: val})
			i++
		default:
			if !isPrimitive(val) {
				return nil, ErrUnexpectedContent
			}
			run := []any{val}
			i++
			for i < len(values) && isPrimitive(values[i]) {
				run = append(run, values[i])
				i++
			}
			out = append(out, &AnyContent{Values: run})
		}
	}
	return out, nil
}

// buildInsertContents routes string arguments to StringContent (rune-
// addressable, per spec §3's String variant) for Text/XmlText containers
// — where each character must occupy its own position slot — and to
// insertGenerics' coalesced-Any handling everywhere else, where a string
// is just one more opaque JSON-primitive value occupying a single slot.
func buildInsertContents(kind ContainerKind, values []any) ([]Content, error) {
	if kind != KindText && kind != KindXmlText {
		return insertGenerics(values)
	}
	var out []Content
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			generic, err := insertGenerics([]any{v})
			if err != nil {
				return nil, err
			}
			out = append(out, generic...)
			continue
		}
		if s == "" {
			continue
		}
		out = append(out, &StringContent{Units: []rune(s)})
	}
	return out, nil
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, bool, int, int32, int64, float32, float64, string, map[string]any, []any:
		return true
	default:
		return false
	}
}

// InsertAt inserts values at document-position index into the sequence
// part of the container (spec §4.2 Sequence API). If the container is not
// yet integrated, the operation is buffered in prelim.
func (c *Container) InsertAt(index int, values ...any) error {
	if !c.integrated() {
		if index != len(c.prelim) && index != 0 {
			return ErrLengthExceeded
		}
		c.prelim = append(c.prelim[:index:index], append(append([]any{}, values...), c.prelim[index:]...)...)
		return nil
	}
	if index < 0 || index > c.length {
		return ErrLengthExceeded
	}
	contents, err := buildInsertContents(c.kind, values)
	if err != nil {
		return err
	}
	return c.transact(func(tx *Transaction) error {
		left, offset := c.findPosition(index)
		if offset != 0 && left != nil {
			left = c.doc.store.splitItemForOffsetTx(tx, left, offset)
		}
		curIndex := index
		for _, content := range contents {
			it := &Item{
				content: content,
				parent:  ParentRef{Container: c},
				info:    initialFlags(content),
			}
			if left != nil {
				it.origin = left.LastID()
				it.left = left
			} else {
				it.origin = NoID
			}
			if left != nil {
				it.right = left.right
			} else {
				it.right = c.start
			}
			if it.right != nil {
				it.rightOrigin = it.right.id
			} else {
				it.rightOrigin = NoID
			}
			if err := integrate(tx, it); err != nil {
				return err
			}
			if it.content.Countable() {
				c.markers.Shift(curIndex, it.length, true)
				curIndex += it.length
			}
			left = it
		}
		return nil
	})
}

func initialFlags(content Content) ItemFlags {
	var f ItemFlags
	if content.Countable() {
		f |= FlagCountable
	}
	return f
}

// DeleteAt deletes count sequence units starting at index (spec §4.2).
func (c *Container) DeleteAt(index, count int) error {
	if count == 0 {
		return nil
	}
	if !c.integrated() {
		if index < 0 || index+count > len(c.prelim) {
			return ErrLengthExceeded
		}
		c.prelim = append(c.prelim[:index:index], c.prelim[index+count:]...)
		return nil
	}
	if index < 0 || index+count > c.length {
		return ErrLengthExceeded
	}
	return c.transact(func(tx *Transaction) error {
		cur, offset := c.findPosition(index)
		remaining := count
		if cur != nil {
			c.doc.store.splitItemForOffsetTx(tx, cur, offset)
			cur = cur.right
		} else {
			cur = c.start
		}
		for remaining > 0 && cur != nil {
			if cur.Deleted() || !cur.content.Countable() {
				cur = cur.right
				continue
			}
			if cur.length > remaining {
				c.doc.store.splitItemForOffsetTx(tx, cur, remaining)
			}
			next := cur.right
			deleteItem(tx, cur)
			remaining -= cur.length
			cur = next
		}
		c.markers.Shift(index, -(count - remaining), false)
		return nil
	})
}

// Get returns the logical value at index, or nil if out of range.
func (c *Container) Get(index int) any {
	cur := c.start
	remaining := index
	for cur != nil {
		if !cur.Deleted() && cur.content.Countable() {
			if remaining < cur.length {
				return cur.content.values()[remaining]
			}
			remaining -= cur.length
		}
		cur = cur.right
	}
	return nil
}

// Slice materializes the container's sequence values between [start, end).
func (c *Container) Slice(start, end int) []any {
	var out []any
	i := 0
	for cur := c.start; cur != nil && i < end; cur = cur.right {
		if cur.Deleted() || !cur.content.Countable() {
			continue
		}
		for _, v := range cur.content.values() {
			if i >= start && i < end {
				out = append(out, v)
			}
			i++
		}
	}
	return out
}

// ---- map operations ----

// SetKey implements spec §4.2's Map API: constructs an item with
// parentSub = key, integrates it, and on integration it replaces
// container.mapTail[key]; the prior tail is marked deleted.
func (c *Container) SetKey(key string, value any) error {
	contents, err := insertGenerics([]any{value})
	if err != nil {
		return err
	}
	content := contents[0]
	if !c.integrated() {
		// Prelim map writes use a side-table keyed by a reserved prefix so
		// they can be replayed through SetKey on integration (flushPrelim).
		c.prelim = append(c.prelim, prelimMapOp{key: key, value: value})
		return nil
	}
	return c.transact(func(tx *Transaction) error {
		left := c.mapTail[key]
		it := &Item{
			content:   content,
			parent:    ParentRef{Container: c},
			parentSub: &key,
			info:      initialFlags(content),
		}
		if left != nil {
			it.origin = left.LastID()
			it.left = left
		} else {
			it.origin = NoID
		}
		it.right = nil
		it.rightOrigin = NoID
		integrate(tx, it)
		return nil
	})
}

type prelimMapOp struct {
	key   string
	value any
}

// GetKey returns the current value for key, or (nil, false) if absent or
// the current tail is deleted.
func (c *Container) GetKey(key string) (any, bool) {
	it, ok := c.mapTail[key]
	if !ok || it.Deleted() {
		return nil, false
	}
	vals := it.content.values()
	if len(vals) == 0 {
		return nil, false
	}
	return vals[len(vals)-1], true
}

// DeleteKey marks the current tail for key as deleted, if present.
func (c *Container) DeleteKey(key string) error {
	it, ok := c.mapTail[key]
	if !ok || it.Deleted() {
		return nil
	}
	return c.transact(func(tx *Transaction) error {
		deleteItem(tx, it)
		return nil
	})
}

// Keys returns the set of keys with a live (undeleted) tail value.
func (c *Container) Keys() []string {
	var out []string
	for k, it := range c.mapTail {
		if !it.Deleted() {
			out = append(out, k)
		}
	}
	return out
}

// flushPrelim replays buffered pre-integration operations once the
// container is attached to a document (spec §4.2: "on integration the
// buffer is flushed via insert(0, …) and discarded").
func (c *Container) flushPrelim() error {
	buf := c.prelim
	c.prelim = nil
	if c.kind == KindMap {
		for _, op := range buf {
			mo := op.(prelimMapOp)
			if err := c.SetKey(mo.key, mo.value); err != nil {
				return err
			}
		}
		return nil
	}
	if len(buf) == 0 {
		return nil
	}
	return c.InsertAt(0, buf...)
}
