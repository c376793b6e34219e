package ydoc

// GetArray resolves (creating if absent) the root array named name and
// wraps it for typed access. A type parameter belongs on a free function
// rather than a Document method since Go methods cannot carry their own
// type parameters.
func GetArray[T any](d *Document, name string) (*Array[T], error) {
	c, err := d.GetArray(name)
	if err != nil {
		return nil, err
	}
	return NewArray[T](c), nil
}

// GetMap resolves (creating if absent) the root map named name and wraps
// it for typed access.
func GetMap[T any](d *Document, name string) (*Map[T], error) {
	c, err := d.GetMap(name)
	if err != nil {
		return nil, err
	}
	return NewMap[T](c), nil
}

// GetText resolves (creating if absent) the root text named name.
func GetText(d *Document, name string) (*Text, error) {
	c, err := d.GetText(name)
	if err != nil {
		return nil, err
	}
	return NewText(c), nil
}

// Array is a thin, generically-typed view over a sequence container
// (spec §6 "Array[T]"). It never holds state of its own beyond the
// wrapped *Container; every operation delegates straight through.
type Array[T any] struct {
	c *Container
}

// NewArray wraps an already-typed sequence container. Callers normally
// obtain one via Document.GetArray rather than constructing this
// directly.
func NewArray[T any](c *Container) *Array[T] { return &Array[T]{c: c} }

func (a *Array[T]) Len() int { return a.c.Length() }

func (a *Array[T]) Insert(index int, values ...T) error {
	generic := make([]any, len(values))
	for i, v := range values {
		generic[i] = v
	}
	return a.c.InsertAt(index, generic...)
}

func (a *Array[T]) Delete(index, count int) error { return a.c.DeleteAt(index, count) }

// Get returns the element at index and whether one exists there; the
// zero value of T is returned on a miss.
func (a *Array[T]) Get(index int) (T, bool) {
	v := a.c.Get(index)
	if v == nil {
		var zero T
		return zero, false
	}
	tv, ok := v.(T)
	return tv, ok
}

func (a *Array[T]) Slice(start, end int) []T {
	raw := a.c.Slice(start, end)
	out := make([]T, 0, len(raw))
	for _, v := range raw {
		if tv, ok := v.(T); ok {
			out = append(out, tv)
		}
	}
	return out
}

func (a *Array[T]) Observe(fn func(Event)) func()       { return a.c.Observe(fn) }
func (a *Array[T]) ObserveDeep(fn func([]Event)) func() { return a.c.ObserveDeep(fn) }

// Map is a thin, generically-typed view over a map container (spec §6
// "Map[T]"), layered directly on Container's key API.
type Map[T any] struct {
	c *Container
}

func NewMap[T any](c *Container) *Map[T] { return &Map[T]{c: c} }

func (m *Map[T]) Set(key string, value T) error { return m.c.SetKey(key, value) }

func (m *Map[T]) Get(key string) (T, bool) {
	v, ok := m.c.GetKey(key)
	if !ok {
		var zero T
		return zero, false
	}
	tv, ok := v.(T)
	return tv, ok
}

func (m *Map[T]) Delete(key string) error { return m.c.DeleteKey(key) }
func (m *Map[T]) Keys() []string          { return m.c.Keys() }

func (m *Map[T]) Observe(fn func(Event)) func()       { return m.c.Observe(fn) }
func (m *Map[T]) ObserveDeep(fn func([]Event)) func() { return m.c.ObserveDeep(fn) }

// Text specializes a sequence container for UTF-16-style string content
// plus Format markers (spec §6 "Text"). Rich multi-span formatting
// resolution is out of scope; Format merely records the attribute delta
// as an ordinary, already-integrated item the way any other content
// variant is recorded.
type Text struct {
	c *Container
}

func NewText(c *Container) *Text { return &Text{c: c} }

func (t *Text) Len() int { return t.c.Length() }

func (t *Text) Insert(index int, s string) error {
	if s == "" {
		return nil
	}
	return t.c.InsertAt(index, string(s))
}

func (t *Text) Delete(index, count int) error { return t.c.DeleteAt(index, count) }

// Format attaches a Format content item at index carrying an attribute
// delta (spec §3's Format content variant). It is inserted as a
// zero-width, non-countable marker, so it never shifts surrounding text
// positions.
func (t *Text) Format(index int, key string, value any) error {
	return t.c.transact(func(tx *Transaction) error {
		left, offset := t.c.findPosition(index)
		if offset != 0 && left != nil {
			left = t.c.doc.store.splitItemForOffsetTx(tx, left, offset)
		}
		it := &Item{
			content: &FormatContent{Key: key, Value: value},
			parent:  ParentRef{Container: t.c},
		}
		if left != nil {
			it.origin = left.LastID()
			it.left = left
			it.right = left.right
		} else {
			it.origin = NoID
			it.right = t.c.start
		}
		if it.right != nil {
			it.rightOrigin = it.right.id
		} else {
			it.rightOrigin = NoID
		}
		return integrate(tx, it)
	})
}

// String materializes the text's current value, skipping deleted and
// non-countable (Format) items.
func (t *Text) String() string {
	var out []rune
	for cur := t.c.start; cur != nil; cur = cur.right {
		if cur.Deleted() || !cur.content.Countable() {
			continue
		}
		if sc, ok := cur.content.(*StringContent); ok {
			out = append(out, sc.Units...)
		}
	}
	return string(out)
}

func (t *Text) Observe(fn func(Event)) func()       { return t.c.Observe(fn) }
func (t *Text) ObserveDeep(fn func([]Event)) func() { return t.c.ObserveDeep(fn) }

// XmlFragment is a root or nested XML-flavored container using the same
// document-order list engine as Array (spec §6, §3's xml-fragment
// variant) — a thin tag/attribute-bearing wrapper, not a distinct list
// engine.
type XmlFragment struct {
	c *Container
}

func NewXmlFragment(c *Container) *XmlFragment { return &XmlFragment{c: c} }

func (f *XmlFragment) Len() int                          { return f.c.Length() }
func (f *XmlFragment) InsertAt(index int, v ...any) error { return f.c.InsertAt(index, v...) }
func (f *XmlFragment) DeleteAt(index, count int) error    { return f.c.DeleteAt(index, count) }
func (f *XmlFragment) Slice(start, end int) []any         { return f.c.Slice(start, end) }

// XmlElement is a tagged, attribute-bearing XML node: a nested
// XmlFragment-kind container (its children) plus a map of attributes
// layered on the same container's per-key map API (spec §6).
type XmlElement struct {
	c    *Container
	Tag  string
	attr *Map[any]
}

func NewXmlElement(c *Container, tag string) *XmlElement {
	return &XmlElement{c: c, Tag: tag, attr: NewMap[any](c)}
}

func (e *XmlElement) SetAttr(key string, value any) error { return e.attr.Set(key, value) }
func (e *XmlElement) GetAttr(key string) (any, bool)      { return e.attr.Get(key) }
func (e *XmlElement) Attrs() []string                     { return e.attr.Keys() }

func (e *XmlElement) Len() int                          { return e.c.Length() }
func (e *XmlElement) InsertAt(index int, v ...any) error { return e.c.InsertAt(index, v...) }
func (e *XmlElement) DeleteAt(index, count int) error    { return e.c.DeleteAt(index, count) }
