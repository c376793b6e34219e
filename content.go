package ydoc

// ContentKind tags the closed set of content variants an Item can carry
// (spec §3, §9's "model both as closed tagged variants" design note).
// The numeric values match the codec's content-ref table (spec §4.7) and
// must never be renumbered without also updating internal/codec.
type ContentKind byte

const (
	ContentGC      ContentKind = 0
	ContentDeleted ContentKind = 1
	ContentJSON    ContentKind = 2 // legacy alias of ContentAny, decode-only
	ContentBinary  ContentKind = 3
	ContentString  ContentKind = 4
	ContentEmbed   ContentKind = 5
	ContentFormat  ContentKind = 6
	ContentType    ContentKind = 7
	ContentAny     ContentKind = 8
	ContentDoc     ContentKind = 9
	ContentSkip    ContentKind = 10
)

// Content is the sum type of everything an Item can carry. Implementations
// are value-ish wrappers; Item owns its Content exclusively (see DESIGN.md
// "cyclic references" note for the one exception, TypeContent's embedded
// Container).
type Content interface {
	Kind() ContentKind
	// Len reports how many content units this value occupies. Matters for
	// mergeable content (Any, String, Deleted), which can represent more
	// than one logical unit per Item.
	Len() int
	// Countable reports whether this content contributes to a container's
	// sequence length and to positional indices.
	Countable() bool
	// Mergeable reports whether two adjacent items of this kind, from the
	// same client, with contiguous clocks, may be coalesced into one.
	Mergeable() bool
	// splitAt divides the content at offset units into (left, right) without
	// mutating the receiver.
	splitAt(offset int) (left, right Content)
	// values returns the individual logical values carried (used by
	// Container.Get/Slice); length matches Len().
	values() []any
}

// AnyContent holds a run of JSON-primitive values (numbers, bools,
// strings, objects, null) that were inserted contiguously and therefore
// coalesce into a single item, per spec §4.2 "Insert-generics".
type AnyContent struct{ Values []any }

func (c *AnyContent) Kind() ContentKind { return ContentAny }
func (c *AnyContent) Len() int          { return len(c.Values) }
func (c *AnyContent) Countable() bool   { return true }
func (c *AnyContent) Mergeable() bool   { return true }
func (c *AnyContent) values() []any     { return c.Values }
func (c *AnyContent) splitAt(offset int) (Content, Content) {
	return &AnyContent{Values: append([]any{}, c.Values[:offset]...)},
		&AnyContent{Values: append([]any{}, c.Values[offset:]...)}
}

// StringContent holds a run of UTF-16-style code units (modeled here as
// runes; see DESIGN.md for the rune-vs-uint16 tradeoff) inserted
// contiguously by one client.
type StringContent struct{ Units []rune }

func (c *StringContent) Kind() ContentKind { return ContentString }
func (c *StringContent) Len() int          { return len(c.Units) }
func (c *StringContent) Countable() bool   { return true }
func (c *StringContent) Mergeable() bool   { return true }
func (c *StringContent) String() string    { return string(c.Units) }
func (c *StringContent) values() []any {
	out := make([]any, len(c.Units))
	for i, r := range c.Units {
		out[i] = r
	}
	return out
}
func (c *StringContent) splitAt(offset int) (Content, Content) {
	left := append([]rune{}, c.Units[:offset]...)
	right := append([]rune{}, c.Units[offset:]...)
	return &StringContent{Units: left}, &StringContent{Units: right}
}

// BinaryContent is an immutable byte blob. Never mergeable: two adjacent
// binary items stay distinct items even when contiguous and same-client,
// matching spec §3's content-variant table.
type BinaryContent struct{ Bytes []byte }

func (c *BinaryContent) Kind() ContentKind               { return ContentBinary }
func (c *BinaryContent) Len() int                        { return 1 }
func (c *BinaryContent) Countable() bool                 { return true }
func (c *BinaryContent) Mergeable() bool                 { return false }
func (c *BinaryContent) values() []any                   { return []any{c.Bytes} }
func (c *BinaryContent) splitAt(int) (Content, Content) { panic("BinaryContent is not splittable") }

// EmbedContent carries an opaque JSON value (e.g. an embedded image
// descriptor in rich text). Countable but never mergeable.
type EmbedContent struct{ Value any }

func (c *EmbedContent) Kind() ContentKind             { return ContentEmbed }
func (c *EmbedContent) Len() int                      { return 1 }
func (c *EmbedContent) Countable() bool               { return true }
func (c *EmbedContent) Mergeable() bool               { return false }
func (c *EmbedContent) values() []any                 { return []any{c.Value} }
func (c *EmbedContent) splitAt(int) (Content, Content) { panic("EmbedContent is not splittable") }

// FormatContent is a rich-text attribute delta (e.g. "bold: true" applied
// from this point forward). Not countable — it never advances a position
// index — and not mergeable.
type FormatContent struct {
	Key   string
	Value any
}

func (c *FormatContent) Kind() ContentKind             { return ContentFormat }
func (c *FormatContent) Len() int                      { return 1 }
func (c *FormatContent) Countable() bool               { return false }
func (c *FormatContent) Mergeable() bool               { return false }
func (c *FormatContent) values() []any                 { return []any{c} }
func (c *FormatContent) splitAt(int) (Content, Content) { panic("FormatContent is not splittable") }

// DeletedContent is the tombstone placeholder content swapped in for a
// deleted item's payload during GC (spec §4.5 cleanup step 6), when the
// whole Item cannot be collapsed to a GC struct (e.g. because it still
// holds a nested container referenced elsewhere).
type DeletedContent struct{ Length int }

func (c *DeletedContent) Kind() ContentKind { return ContentDeleted }
func (c *DeletedContent) Len() int          { return c.Length }
func (c *DeletedContent) Countable() bool   { return false }
func (c *DeletedContent) Mergeable() bool   { return true }
func (c *DeletedContent) values() []any     { return make([]any, c.Length) }
func (c *DeletedContent) splitAt(offset int) (Content, Content) {
	return &DeletedContent{Length: offset}, &DeletedContent{Length: c.Length - offset}
}

// TypeContent embeds a nested Container (spec §3's "Type" content
// variant). The Container's own `item` field is the non-owning back
// reference to the Item holding this content (DESIGN.md "cyclic
// references" note).
type TypeContent struct{ Container *Container }

func (c *TypeContent) Kind() ContentKind             { return ContentType }
func (c *TypeContent) Len() int                      { return 1 }
func (c *TypeContent) Countable() bool               { return true }
func (c *TypeContent) Mergeable() bool               { return false }
func (c *TypeContent) values() []any                 { return []any{c.Container} }
func (c *TypeContent) splitAt(int) (Content, Content) { panic("TypeContent is not splittable") }

// DocContent embeds a reference to an independent sub-Document (spec §5
// "Sub-documents are independent engines with their own client id
// assignment; their containment item owns their lifecycle").
type DocContent struct{ Doc *Document }

func (c *DocContent) Kind() ContentKind             { return ContentDoc }
func (c *DocContent) Len() int                      { return 1 }
func (c *DocContent) Countable() bool               { return true }
func (c *DocContent) Mergeable() bool               { return false }
func (c *DocContent) values() []any                 { return []any{c.Doc} }
func (c *DocContent) splitAt(int) (Content, Content) { panic("DocContent is not splittable") }

// gcContent is the pseudo-content for a collapsed GC struct (spec §3
// "GC(id, length) — a collapsed tombstone occupying a clock range").
// It is never attached to a live Item; GC occupies its own struct slot
// in the StructStore (see structstore.go).
type gcContent struct{ Length int }

func (c *gcContent) Kind() ContentKind { return ContentGC }
func (c *gcContent) Len() int          { return c.Length }
func (c *gcContent) Countable() bool   { return false }
func (c *gcContent) Mergeable() bool   { return true }
func (c *gcContent) values() []any     { return make([]any, c.Length) }
func (c *gcContent) splitAt(offset int) (Content, Content) {
	return &gcContent{Length: offset}, &gcContent{Length: c.Length - offset}
}

// skipContent is the pseudo-content for a Skip struct: a placeholder for
// clock ranges known to be intentionally absent while an update is being
// processed (spec §3).
type skipContent struct{ Length int }

func (c *skipContent) Kind() ContentKind { return ContentSkip }
func (c *skipContent) Len() int          { return c.Length }
func (c *skipContent) Countable() bool   { return false }
func (c *skipContent) Mergeable() bool   { return true }
func (c *skipContent) values() []any     { return make([]any, c.Length) }
func (c *skipContent) splitAt(offset int) (Content, Content) {
	return &skipContent{Length: offset}, &skipContent{Length: c.Length - offset}
}
