package ydoc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// checkLinkSymmetry walks a container's sequence list and asserts the
// doubly-linked invariant holds at every position.
func checkLinkSymmetry(t *testing.T, c *Container) {
	t.Helper()
	if c.start != nil && c.start.left != nil {
		t.Fatalf("container.start has a non-nil left neighbor")
	}
	for cur := c.start; cur != nil; cur = cur.right {
		if cur.right != nil && cur.right.left != cur {
			t.Fatalf("link asymmetry: %v.right.left != %v", cur.id, cur.id)
		}
		if cur.left != nil && cur.left.right != cur {
			t.Fatalf("link asymmetry: %v.left.right != %v", cur.id, cur.id)
		}
	}
}

// checkLengthSum recomputes container.length from scratch and compares it
// against the maintained running total (spec §8 "Length sum").
func checkLengthSum(t *testing.T, c *Container) {
	t.Helper()
	sum := 0
	for cur := c.start; cur != nil; cur = cur.right {
		if !cur.Deleted() && cur.content.Countable() {
			sum += cur.length
		}
	}
	if sum != c.length {
		t.Fatalf("length sum mismatch: walked %d, container.length %d", sum, c.length)
	}
}

func TestProperty_LinkSymmetryAndLengthSum(t *testing.T) {
	doc := NewDocument(DocOptions{})
	arr, err := GetArray[int](doc, "nums")
	if err != nil {
		t.Fatal(err)
	}
	if err := arr.Insert(0, 1, 2, 3); err != nil {
		t.Fatal(err)
	}
	if err := arr.Insert(1, 9); err != nil {
		t.Fatal(err)
	}
	if err := arr.Delete(0, 1); err != nil {
		t.Fatal(err)
	}

	checkLinkSymmetry(t, arr.c)
	checkLengthSum(t, arr.c)

	if got := arr.Slice(0, arr.Len()); len(got) != 3 {
		t.Fatalf("expected 3 remaining elements, got %v", got)
	}
}

// TestProperty_MapTailChain exercises spec §8's "Map tail" invariant: the
// current tail has no right neighbor, and walking .left from it yields a
// strictly decreasing chain of the same key's prior values.
func TestProperty_MapTailChain(t *testing.T) {
	doc := NewDocument(DocOptions{})
	m, err := GetMap[string](doc, "cfg")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Set("k", "1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Set("k", "2"); err != nil {
		t.Fatal(err)
	}
	if err := m.Set("k", "3"); err != nil {
		t.Fatal(err)
	}

	tail := m.c.mapTail["k"]
	if tail == nil {
		t.Fatal("expected a map tail entry for \"k\"")
	}
	if tail.right != nil {
		t.Fatalf("map tail must have no right neighbor, got %v", tail.right.id)
	}
	seen := map[string]bool{}
	for cur := tail; cur != nil; cur = cur.left {
		vals := cur.content.values()
		if len(vals) != 1 {
			t.Fatalf("expected a single value per map write, got %v", vals)
		}
		s := vals[0].(string)
		if seen[s] {
			t.Fatalf("value %q repeated walking the map tail chain", s)
		}
		seen[s] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct historical values, saw %d", len(seen))
	}
	got, ok := m.Get("k")
	if !ok || got != "3" {
		t.Fatalf("expected current value \"3\", got %q ok=%v", got, ok)
	}
}

// TestScenario_S1_SequenceConvergence mirrors spec scenario S1: two empty
// peers each insert at index 0 concurrently, then exchange updates both
// ways; both must converge to the same order.
func TestScenario_S1_SequenceConvergence(t *testing.T) {
	a := NewDocument(DocOptions{})
	b := NewDocument(DocOptions{})

	aArr, err := GetArray[int](a, "list")
	if err != nil {
		t.Fatal(err)
	}
	bArr, err := GetArray[int](b, "list")
	if err != nil {
		t.Fatal(err)
	}

	if err := aArr.Insert(0, 1); err != nil {
		t.Fatal(err)
	}
	if err := bArr.Insert(0, 2); err != nil {
		t.Fatal(err)
	}

	syncInto(t, a, b)
	syncInto(t, b, a)

	aSlice := aArr.Slice(0, aArr.Len())
	bSlice := bArr.Slice(0, bArr.Len())
	if len(aSlice) != 2 || len(bSlice) != 2 {
		t.Fatalf("expected 2 elements on each peer, got a=%v b=%v", aSlice, bSlice)
	}
	if aSlice[0] != bSlice[0] || aSlice[1] != bSlice[1] {
		t.Fatalf("peers diverged: a=%v b=%v", aSlice, bSlice)
	}
}

// TestScenario_S2_InterleavingResolution mirrors spec scenario S2: both
// peers start with "abc"; A deletes index 1 and inserts "X" there, B
// inserts "Y" at index 2. After sync both must observe the same
// length-4 string.
func TestScenario_S2_InterleavingResolution(t *testing.T) {
	a := NewDocument(DocOptions{})
	b := NewDocument(DocOptions{})

	aText, err := GetText(a, "doc")
	if err != nil {
		t.Fatal(err)
	}
	bText, err := GetText(b, "doc")
	if err != nil {
		t.Fatal(err)
	}
	if err := aText.Insert(0, "abc"); err != nil {
		t.Fatal(err)
	}
	syncInto(t, b, a)
	if bText.String() != "abc" {
		t.Fatalf("setup failed: bob has %q", bText.String())
	}

	if err := aText.Delete(1, 1); err != nil {
		t.Fatal(err)
	}
	if err := aText.Insert(1, "X"); err != nil {
		t.Fatal(err)
	}
	if err := bText.Insert(2, "Y"); err != nil {
		t.Fatal(err)
	}

	syncInto(t, a, b)
	syncInto(t, b, a)

	if aText.String() != bText.String() {
		t.Fatalf("divergence: a=%q b=%q", aText.String(), bText.String())
	}
	if len(aText.String()) != 4 {
		t.Fatalf("expected length-4 result, got %q", aText.String())
	}
	for _, want := range []rune{'a', 'X', 'Y', 'c'} {
		found := false
		for _, r := range aText.String() {
			if r == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected rune %q present in %q", want, aText.String())
		}
	}
}

// TestScenario_S3_MapLastWriterChain mirrors spec scenario S3: two peers
// concurrently set the same key; after sync both converge on one of the
// two values, with the other reachable but marked deleted.
func TestScenario_S3_MapLastWriterChain(t *testing.T) {
	a := NewDocument(DocOptions{})
	b := NewDocument(DocOptions{})

	aMap, err := GetMap[string](a, "cfg")
	if err != nil {
		t.Fatal(err)
	}
	bMap, err := GetMap[string](b, "cfg")
	if err != nil {
		t.Fatal(err)
	}

	if err := aMap.Set("k", "1"); err != nil {
		t.Fatal(err)
	}
	if err := bMap.Set("k", "2"); err != nil {
		t.Fatal(err)
	}

	syncInto(t, a, b)
	syncInto(t, b, a)

	aVal, aok := aMap.Get("k")
	bVal, bok := bMap.Get("k")
	if !aok || !bok {
		t.Fatal("expected a live value for \"k\" on both peers")
	}
	if aVal != bVal {
		t.Fatalf("peers diverged on map value: a=%q b=%q", aVal, bVal)
	}
	if aVal != "1" && aVal != "2" {
		t.Fatalf("unexpected converged value %q", aVal)
	}

	tail := aMap.c.mapTail["k"]
	if tail == nil || tail.left == nil {
		t.Fatal("expected the losing write to remain reachable via .left")
	}
	if !tail.left.Deleted() {
		t.Fatal("expected the superseded write to be marked deleted")
	}
}

// TestScenario_S5_GCCorrectness mirrors spec scenario S5: deleted items
// collapse into GC structs at transaction close when GC is enabled, and
// contiguous GC runs merge.
func TestScenario_S5_GCCorrectness(t *testing.T) {
	doc := NewDocument(DocOptions{})
	arr, err := GetArray[int](doc, "nums")
	if err != nil {
		t.Fatal(err)
	}
	vals := make([]int, 100)
	for i := range vals {
		vals[i] = i
	}
	anyVals := make([]any, len(vals))
	for i, v := range vals {
		anyVals[i] = v
	}
	if err := arr.c.InsertAt(0, anyVals...); err != nil {
		t.Fatal(err)
	}
	if err := arr.Delete(10, 41); err != nil {
		t.Fatal(err)
	}

	if arr.Len() != 59 {
		t.Fatalf("expected container.length == 59 after delete, got %d", arr.Len())
	}

	gcCount := 0
	for _, st := range doc.store.clients[doc.clientID] {
		if _, ok := st.(*GCStruct); ok {
			gcCount++
		}
	}
	require.Greater(t, gcCount, 0, "expected at least one GC struct after a GC-enabled transaction closed")

	before := EncodeStateAsUpdate(doc, map[uint32]uint32{})
	require.NotEmpty(t, before)
}

// TestScenario_S6_FormatInsertionSplit mirrors spec scenario S6: inserting
// in the middle of an existing run splits it; the text reads with the new
// unit at the split point, and link symmetry and the length sum still hold.
func TestScenario_S6_FormatInsertionSplit(t *testing.T) {
	doc := NewDocument(DocOptions{})
	text, err := GetText(doc, "doc")
	if err != nil {
		t.Fatal(err)
	}
	if err := text.Insert(0, "0123456789"); err != nil {
		t.Fatal(err)
	}
	if err := text.Insert(4, "X"); err != nil {
		t.Fatal(err)
	}
	if text.String() != "0123X456789" {
		t.Fatalf("unexpected result %q", text.String())
	}

	checkLinkSymmetry(t, text.c)
	checkLengthSum(t, text.c)
}

func TestProperty_Idempotence(t *testing.T) {
	a := NewDocument(DocOptions{})
	b := NewDocument(DocOptions{})

	aArr, err := GetArray[int](a, "list")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := GetArray[int](b, "list"); err != nil {
		t.Fatal(err)
	}
	if err := aArr.Insert(0, 1, 2, 3); err != nil {
		t.Fatal(err)
	}

	update := EncodeStateAsUpdate(a, map[uint32]uint32{})
	if err := ApplyUpdate(b, update, nil); err != nil {
		t.Fatal(err)
	}
	if err := ApplyUpdate(b, update, nil); err != nil {
		t.Fatal(err)
	}

	bArr, err := GetArray[int](b, "list")
	if err != nil {
		t.Fatal(err)
	}
	if got := bArr.Slice(0, bArr.Len()); len(got) != 3 {
		t.Fatalf("re-applying the same update must be a no-op, got %v", got)
	}
}
