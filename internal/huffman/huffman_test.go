package huffman

import (
	"math"
	"testing"
)

func kraftSum(t Table) float64 {
	var sum float64
	for _, c := range t {
		if c.Length > 0 {
			sum += math.Pow(2, -float64(c.Length))
		}
	}
	return sum
}

func TestFromLengthsCanonicalOrdering(t *testing.T) {
	lengths := []byte{3, 3, 3, 3, 3, 2, 4, 4}
	table, err := FromLengths(lengths)
	if err != nil {
		t.Fatalf("FromLengths: %v", err)
	}

	if sum := kraftSum(table); sum > 1.0+1e-9 {
		t.Fatalf("Kraft sum %f exceeds 1", sum)
	}

	seen := map[uint32]bool{}
	for _, c := range table {
		if c.Length == 0 {
			continue
		}
		key := uint32(c.Length)<<16 | c.Code
		if seen[key] {
			t.Fatalf("duplicate code %d at length %d", c.Code, c.Length)
		}
		seen[key] = true
	}

	// Canonical order by (length, symbol): symbol 5 gets 00, symbols 0-4
	// get 010..110, symbols 6-7 get 1110 and 1111; stored bit-reversed.
	want := []uint32{2, 6, 1, 5, 3, 0, 7, 15}
	for i, c := range table {
		if c.Code != want[i] {
			t.Fatalf("symbol %d: got code %d, want %d", i, c.Code, want[i])
		}
	}
}

func TestFromLengthsRejectsOverSubscribedLengths(t *testing.T) {
	// 19 symbols all claiming length 1 can address at most 2 codes: an
	// attacker-crafted code-length table the 19-symbol alphabet could
	// produce, which must be rejected rather than silently collide.
	lengths := make([]byte, 19)
	for i := range lengths {
		lengths[i] = 1
	}
	if _, err := FromLengths(lengths); err != ErrBadKraft {
		t.Fatalf("got %v, want ErrBadKraft", err)
	}
}

func TestFromLengthsAcceptsUnderSubscribedLengths(t *testing.T) {
	// An incomplete code (Kraft sum < 1) is still a valid prefix code; only
	// over-subscription is an error.
	lengths := []byte{1, 0, 0, 0}
	if _, err := FromLengths(lengths); err != nil {
		t.Fatalf("FromLengths: %v", err)
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	lengths := []byte{0, 1, 2, 3, 3, 0, 0}
	table, err := FromLengths(lengths)
	if err != nil {
		t.Fatalf("FromLengths: %v", err)
	}
	before := append(Table(nil), table...)
	if err := table.Canonicalize(); err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	for i := range table {
		if table[i] != before[i] {
			t.Fatalf("symbol %d changed: %+v -> %+v", i, before[i], table[i])
		}
	}
}

func TestSingleNonZeroSymbolGetsLengthOne(t *testing.T) {
	freqs := []uint32{0, 0, 0, 9, 0}
	tree := Build(freqs)
	w := tree.NewWalker()
	if tree.IsLeaf(w) {
		t.Fatal("root should not be a leaf for a non-trivial call pattern")
	}
	w, err := tree.Walk(w, false)
	if err != nil {
		t.Fatal(err)
	}
	if !tree.IsLeaf(w) || w.Symbol() != 3 {
		t.Fatalf("expected leaf 3 after one left step, got leaf=%v symbol=%d", tree.IsLeaf(w), w.Symbol())
	}
}

func TestTreeFromTableRoundTrip(t *testing.T) {
	lengths := make([]byte, 286)
	lengths[0] = 8
	lengths[1] = 8
	lengths[2] = 7
	lengths[256] = 7 // EOB-like symbol
	for i := 3; i < 20; i++ {
		lengths[i] = 9
	}

	table, err := FromLengths(lengths)
	if err != nil {
		t.Fatalf("FromLengths: %v", err)
	}
	tree := From(table)

	for symbol, code := range table {
		if code.Length == 0 {
			continue
		}
		w := tree.NewWalker()
		for depth := 0; depth < int(code.Length); depth++ {
			bit := (code.Code>>uint(depth))&1 != 0
			var err error
			w, err = tree.Walk(w, bit)
			if err != nil {
				t.Fatalf("symbol %d: walk failed at depth %d: %v", symbol, depth, err)
			}
		}
		if !tree.IsLeaf(w) {
			t.Fatalf("symbol %d: did not terminate at a leaf", symbol)
		}
		if w.Symbol() != symbol {
			t.Fatalf("symbol %d: terminated at leaf %d instead", symbol, w.Symbol())
		}
	}
}

func TestWalkPastLeafPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic walking past a leaf")
		}
	}()

	freqs := []uint32{1, 1}
	tree := Build(freqs)
	w := tree.NewWalker()
	w, _ = tree.Walk(w, false)
	tree.Walk(w, false) // w is now a leaf; walking further must panic
}

func TestWalkBadChildErrors(t *testing.T) {
	lengths := make([]byte, 4)
	lengths[0] = 1 // the only occupied symbol; its code is the single bit 0
	table, err := FromLengths(lengths)
	if err != nil {
		t.Fatalf("FromLengths: %v", err)
	}
	tree := From(table)

	w := tree.NewWalker()
	leaf, err := tree.Walk(w, false)
	if err != nil {
		t.Fatal(err)
	}
	if !tree.IsLeaf(leaf) || leaf.Symbol() != 0 {
		t.Fatalf("expected leaf 0, got leaf=%v symbol=%d", tree.IsLeaf(leaf), leaf.Symbol())
	}

	if _, err := tree.Walk(w, true); err != ErrBadChild {
		t.Fatalf("got %v, want ErrBadChild", err)
	}
}
