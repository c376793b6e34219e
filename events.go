package ydoc

// Event is delivered to a container's observers after its owning
// transaction closes. It carries the container, the transaction that
// produced the change, and a change summary (spec §6 "Events on
// containers").
type Event struct {
	Container *Container
	Tx        *Transaction
	// Keys lists the parentSub keys touched (nil entry meaning "the
	// sequence itself was modified"), matching Transaction.changed's
	// per-container key set (spec §4.5).
	Keys []*string
}

// Observe registers fn to run once per transaction that touched this
// container directly (spec §6 "observe(fn)"). Returns an unsubscribe
// function.
func (c *Container) Observe(fn func(Event)) func() {
	c.eventHandlers = append(c.eventHandlers, fn)
	idx := len(c.eventHandlers) - 1
	return func() {
		c.eventHandlers[idx] = nil
	}
}

// ObserveDeep registers fn to run once per transaction that touched this
// container or any of its descendants, receiving the full batch of
// events in ascending path-length order (spec §4.5 cleanup step 4, §6
// "observeDeep(fn)").
func (c *Container) ObserveDeep(fn func([]Event)) func() {
	c.deepEventHandlers = append(c.deepEventHandlers, fn)
	idx := len(c.deepEventHandlers) - 1
	return func() {
		c.deepEventHandlers[idx] = nil
	}
}

// fireShallow invokes every still-subscribed shallow observer
// independently: one observer's panic/error must not prevent the others
// from running (spec §5 "Cancellation").
func (c *Container) fireShallow(ev Event) {
	for _, fn := range c.eventHandlers {
		if fn == nil {
			continue
		}
		callObserver(func() { fn(ev) })
	}
}

func (c *Container) fireDeep(evs []Event) {
	for _, fn := range c.deepEventHandlers {
		if fn == nil {
			continue
		}
		callObserver(func() { fn(evs) })
	}
}

// callObserver runs fn, recovering a panic so that one misbehaving
// listener cannot abort the remaining listeners or transaction cleanup
// (spec §7 "Observer exceptions — caught per-listener").
func callObserver(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}

// DocEventKind tags the Document-level lifecycle events (spec §6).
type DocEventKind int

const (
	EventBeforeAllTransactions DocEventKind = iota
	EventBeforeTransaction
	EventBeforeObserverCalls
	EventAfterTransaction
	EventAfterTransactionCleanup
	EventAfterAllTransactions
	EventUpdate
	EventUpdateV2
	EventSubdocs
	EventDestroy
	EventLoad
	EventSync
)

// DocEvent is delivered to Document-level listeners.
type DocEvent struct {
	Kind    DocEventKind
	Tx      *Transaction
	Update  []byte // populated for EventUpdate/EventUpdateV2
	Origin  any
	Subdocs *SubdocsEvent // populated for EventSubdocs
}

// SubdocsEvent summarizes sub-document set churn within one outermost
// transaction (spec §4.5 cleanup step 10, §6 "subdocs").
type SubdocsEvent struct {
	Added   []*Document
	Removed []*Document
	Loaded  []*Document
}

// On registers fn for Document-level events of kind. Returns an
// unsubscribe function.
func (d *Document) On(kind DocEventKind, fn func(DocEvent)) func() {
	d.handlers[kind] = append(d.handlers[kind], fn)
	idx := len(d.handlers[kind]) - 1
	return func() {
		d.handlers[kind][idx] = nil
	}
}

func (d *Document) emit(kind DocEventKind, ev DocEvent) {
	ev.Kind = kind
	for _, fn := range d.handlers[kind] {
		if fn == nil {
			continue
		}
		callObserver(func() { fn(ev) })
	}
}
