package ydoc

import (
	"math/rand/v2"

	"github.com/cshekharsharma/ydoc/internal/codec"
)

// Document is the root of one replica's state: its assigned client id,
// the root-name -> container registry, the StructStore, the currently
// active Transaction (if any), pending-structs/pending-deletes buffers,
// the sub-document set, and the gc flag/filter (spec §3 "Document").
type Document struct {
	opts     DocOptions
	clientID uint32

	roots map[string]*Container
	store *StructStore

	activeTx     *Transaction
	cleanupQueue []*Transaction

	pendingStructs *pendingStructs
	pendingDeletes *DeleteSet

	subdocs map[*Document]struct{}
	parent  *Document // non-nil for a sub-document

	handlers [EventSync + 1][]func(DocEvent)

	telemetry *telemetry

	destroyed bool
}

// pendingStructs buffers remote structs that could not yet be integrated
// because a causal dependency (some client's earlier clock) is missing
// (spec §4.4 step 3, §7 "MissingCausality").
type pendingStructs struct {
	// missing maps a client id to the highest clock still required before
	// retry is worth attempting.
	missing map[uint32]uint32
	// updates holds already-decoded updates that could not be integrated
	// on first pass; retryPending replays them directly, it never
	// re-decodes.
	updates []*codec.Update
}

func newPendingStructs() *pendingStructs {
	return &pendingStructs{missing: make(map[uint32]uint32)}
}

func (p *pendingStructs) Empty() bool {
	return len(p.missing) == 0 && len(p.updates) == 0
}

// NewDocument constructs a Document per spec §6 "Doc(opts)".
func NewDocument(opts DocOptions) *Document {
	opts = opts.withDefaults()
	d := &Document{
		opts:           opts,
		clientID:       newClientID(),
		roots:          make(map[string]*Container),
		store:          newStructStore(),
		pendingStructs: newPendingStructs(),
		pendingDeletes: newDeleteSet(),
		subdocs:        make(map[*Document]struct{}),
	}
	d.telemetry = newTelemetry(d.clientID)
	return d
}

func newClientID() uint32 {
	id := rand.Uint32()
	for id == 0 {
		id = rand.Uint32()
	}
	return id
}

// ClientID returns this replica's current 32-bit client identifier. May
// change across transactions if a client-id collision with an applied
// remote update is detected (spec §4.5 cleanup step 8, §9 "Client-id
// collision").
func (d *Document) ClientID() uint32 { return d.clientID }

func (d *Document) GUID() string { return d.opts.GUID }

// Get returns the root container registered under name, constructing it
// with kind if absent. Repeated calls with the same (name, kind) return
// the same instance; any kind mismatch fails with ErrTypeMismatch. That
// includes a root that ApplyUpdate created as an Array before any local
// Get of its name: existing roots are never re-typed.
func (d *Document) Get(name string, kind ContainerKind) (*Container, error) {
	if c, ok := d.roots[name]; ok {
		if c.kind != kind {
			return nil, ErrTypeMismatch
		}
		return c, nil
	}
	c := newContainer(kind)
	c.doc = d
	d.roots[name] = c
	if err := c.flushPrelim(); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *Document) GetArray(name string) (*Container, error) { return d.Get(name, KindArray) }
func (d *Document) GetMap(name string) (*Container, error)   { return d.Get(name, KindMap) }
func (d *Document) GetText(name string) (*Container, error)  { return d.Get(name, KindText) }
func (d *Document) GetXmlFragment(name string) (*Container, error) {
	return d.Get(name, KindXmlFragment)
}
func (d *Document) GetXmlElement(name string) (*Container, error) {
	return d.Get(name, KindXmlElement)
}

// AddSubdoc registers a sub-document so its lifecycle is tracked by this
// document's transaction engine (spec §5 "Sub-documents are independent
// engines... their containment item owns their lifecycle").
func (d *Document) addSubdoc(sub *Document, tx *Transaction) {
	sub.parent = d
	d.subdocs[sub] = struct{}{}
	if tx != nil {
		tx.subdocsAdded[sub] = struct{}{}
	}
}

func (d *Document) removeSubdoc(sub *Document, tx *Transaction) {
	delete(d.subdocs, sub)
	if tx != nil {
		tx.subdocsRemoved[sub] = struct{}{}
	}
}

// Destroy tears down the document, detaching every sub-document and
// emitting EventDestroy.
func (d *Document) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.emit(EventDestroy, DocEvent{})
}
