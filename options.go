package ydoc

import "github.com/google/uuid"

// DocOptions configures a new Document (spec §6 "Doc(opts)"). Fields
// default sensibly when left zero, following the teacher's plain-struct-
// literal configuration style rather than a functional-options builder.
type DocOptions struct {
	// GC enables garbage collection of tombstones at transaction close
	// (spec §4.5 cleanup step 6). Defaults to true.
	GC *bool
	// GCFilter can veto collection of a specific deleted item (e.g. one
	// still referenced by a snapshot or undo stack). A nil filter allows
	// every eligible item to be collected.
	GCFilter func(*Item) bool
	// GUID uniquely identifies this document. Defaults to a freshly
	// minted UUIDv4 (SPEC_FULL.md §3 "Configuration").
	GUID string
	// CollectionID optionally groups related documents (e.g. all
	// sub-documents of one root document).
	CollectionID string
	// Meta is an arbitrary, opaque payload the host may attach.
	Meta any
	// AutoLoad marks a sub-document for automatic loading by the host
	// once referenced.
	AutoLoad bool
	// ShouldLoad gates whether a referenced sub-document is eligible to
	// load at all.
	ShouldLoad bool
}

func (o DocOptions) withDefaults() DocOptions {
	if o.GC == nil {
		t := true
		o.GC = &t
	}
	if o.GUID == "" {
		o.GUID = uuid.NewString()
	}
	return o
}

func (o DocOptions) gcEnabled() bool {
	return o.GC == nil || *o.GC
}
