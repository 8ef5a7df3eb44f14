package bdelta

import "testing"

// TestInstanceReorderedBlocksAreAllFound exercises the classic "reorder"
// scenario (spec §8): the same set of blocks appears in both sequences
// but in a different order, so the match list ends up non-monotonic in
// P1 even though it stays sorted by P2.
func TestInstanceReorderedBlocksAreAllFound(t *testing.T) {
	a := []Token{1, 1, 1, 1, 1, 1, 1, 1}
	b := []Token{2, 2, 2, 2, 2, 2, 2, 2}
	c := []Token{3, 3, 3, 3, 3, 3, 3, 3}

	src := append(append(append([]Token{}, a...), b...), c...)
	tgt := append(append(append([]Token{}, c...), a...), b...)

	inst := newDirectInstance(t, src, tgt)
	defer inst.Done()

	inst.Pass(4, 4, 0, FlagGlobal|FlagSidesOrdered)
	inst.CleanMatches(0)

	var covered uint32
	for k := 0; k < inst.NumMatches(); k++ {
		p1, p2, n, err := inst.GetMatch(k)
		if err != nil {
			t.Fatalf("GetMatch(%d): %v", k, err)
		}
		contentEqualInstance(t, src, tgt, p1, p2, n)
		covered += n
	}
	if covered != uint32(len(src)) {
		t.Fatalf("covered = %d, want %d (every reordered block should still be found)", covered, len(src))
	}
}

func contentEqualInstance(t *testing.T, src, tgt []Token, p1, p2, n uint32) {
	t.Helper()
	for i := uint32(0); i < n; i++ {
		if src[p1+i] != tgt[p2+i] {
			t.Fatalf("claimed match (p1=%d,p2=%d,n=%d) mismatches at offset %d", p1, p2, n, i)
		}
	}
}

// TestInstanceNoMatchAboveThreshold checks that a minMatchSize above the
// length of any common span leaves the match list empty (spec §8
// "no match above threshold").
func TestInstanceNoMatchAboveThreshold(t *testing.T) {
	src := []Token{1, 2, 3, 4, 5, 6, 7, 8}
	tgt := []Token{9, 2, 3, 4, 9, 9, 9, 9} // only a 3-token common run

	inst := newDirectInstance(t, src, tgt)
	defer inst.Done()

	inst.Pass(2, 50, 0, FlagGlobal|FlagSidesOrdered)
	inst.CleanMatches(0)

	if got := inst.NumMatches(); got != 0 {
		t.Fatalf("NumMatches = %d, want 0 (no span reaches minMatchSize=50)", got)
	}
}

// TestInstanceHierarchicalPassSchedule mirrors how cmd/bdelta drives
// multiple decreasing-blocksize passes (spec §4.6 "Pass schedule"): a
// coarse global pass first, then a finer local pass mining the holes it
// left behind.
func TestInstanceHierarchicalPassSchedule(t *testing.T) {
	big := make([]Token, 64)
	for i := range big {
		big[i] = Token(i % 200)
	}
	small := []Token{250, 251, 252, 253} // 4-token span with no source counterpart

	src := big
	tgt := append(append(append([]Token{}, big[:32]...), small...), big[32:]...)

	inst := newDirectInstance(t, src, tgt)
	defer inst.Done()

	inst.Pass(16, 16, 0, FlagGlobal|FlagSidesOrdered)
	inst.Pass(4, 4, 0, FlagSidesOrdered)
	inst.CleanMatches(0)

	var covered uint32
	for k := 0; k < inst.NumMatches(); k++ {
		p1, p2, n, err := inst.GetMatch(k)
		if err != nil {
			t.Fatalf("GetMatch(%d): %v", k, err)
		}
		contentEqualInstance(t, src, tgt, p1, p2, n)
		covered += n
	}
	// every byte of tgt except the 4 inserted tokens should be covered.
	if want := uint32(len(tgt) - len(small)); covered != want {
		t.Fatalf("covered = %d, want %d (everything but the inserted span)", covered, want)
	}
}
