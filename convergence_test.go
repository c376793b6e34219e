package ydoc

import (
	"testing"

	"github.com/cshekharsharma/ydoc/internal/refmodel"
)

// TestConvergence_ConcurrentSiblingInsert exercises the same concurrent-
// insert shape (two replicas both inserting immediately after a shared
// position) against this engine's Text container and, independently,
// against refmodel's RGA. Each model must converge internally; the two
// models are not expected to agree on tie-break order with each other,
// since they use different conflict-resolution rules (client-id based
// here, NodeID-string based in refmodel) — this test's job is confirming
// OUR engine's convergence property, with refmodel run alongside as a
// second, independently-coded example of the same property holding.
func TestConvergence_ConcurrentSiblingInsert(t *testing.T) {
	alice := NewDocument(DocOptions{})
	bob := NewDocument(DocOptions{})

	aliceText, err := GetText(alice, "doc")
	if err != nil {
		t.Fatal(err)
	}
	bobText, err := GetText(bob, "doc")
	if err != nil {
		t.Fatal(err)
	}

	if err := aliceText.Insert(0, "HE"); err != nil {
		t.Fatal(err)
	}
	syncInto(t, bob, alice)
	if got := bobText.String(); got != "HE" {
		t.Fatalf("bob sync failed, got %q", got)
	}

	if err := aliceText.Insert(2, "L"); err != nil {
		t.Fatal(err)
	}
	if err := bobText.Insert(2, "Y"); err != nil {
		t.Fatal(err)
	}

	syncInto(t, alice, bob)
	syncInto(t, bob, alice)

	if aliceText.String() != bobText.String() {
		t.Fatalf("divergence: alice=%q bob=%q", aliceText.String(), bobText.String())
	}

	refAlice := refmodel.NewRGA("alice")
	refBob := refmodel.NewRGA("bob")
	root := refmodel.ID{Timestamp: 0, NodeID: "root"}
	idH := refAlice.Insert('H', root)
	idE := refAlice.Insert('E', idH)
	refSync(refBob, refAlice)
	refAlice.Insert('L', idE)
	refBob.Insert('Y', idE)
	refSync(refAlice, refBob)
	refSync(refBob, refAlice)

	if refAlice.Value() != refBob.Value() {
		t.Fatalf("refmodel divergence: alice=%v bob=%v", refAlice.Value(), refBob.Value())
	}
}

func syncInto(t *testing.T, dst, src *Document) {
	t.Helper()
	update := EncodeStateAsUpdate(src, dst.store.StateVector())
	if err := ApplyUpdate(dst, update, nil); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
}

func refSync(dst, src *refmodel.RGA) {
	dst.Merge(src.Nodes())
}
