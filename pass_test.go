package bdelta

import "testing"

func TestGetUnusedBlocksTransformsGapsCorrectly(t *testing.T) {
	l := newMatchList()
	r0 := l.pushBack(Match{P1: 0, P2: 0, N: 0})
	r1 := l.pushBack(Match{P1: 10, P2: 10, N: 5})
	r2 := l.pushBack(Match{P1: 20, P2: 20, N: 3})

	unused := []UnusedRange{
		{P: 0, N: 0, ML: r0, MR: r0},
		{P: 10, N: 5, ML: r1, MR: r1},
		{P: 20, N: 3, ML: r2, MR: r2},
	}
	getUnusedBlocks(unused)

	if unused[0] != (UnusedRange{P: 0, N: 0, ML: r0, MR: r0}) {
		t.Fatalf("unused[0] should be untouched, got %+v", unused[0])
	}
	if want := (UnusedRange{P: 0, N: 10, ML: r0, MR: r1}); unused[1] != want {
		t.Fatalf("unused[1] = %+v, want %+v", unused[1], want)
	}
	if want := (UnusedRange{P: 15, N: 5, ML: r1, MR: r2}); unused[2] != want {
		t.Fatalf("unused[2] = %+v, want %+v", unused[2], want)
	}
}

func TestGetUnusedBlocksHandlesOverlappingCoverage(t *testing.T) {
	l := newMatchList()
	r0 := l.pushBack(Match{P1: 0, P2: 0, N: 0})
	r1 := l.pushBack(Match{P1: 0, P2: 0, N: 20}) // covers past the next entry's start
	r2 := l.pushBack(Match{P1: 10, P2: 10, N: 3})

	unused := []UnusedRange{
		{P: 0, N: 0, ML: r0, MR: r0},
		{P: 0, N: 20, ML: r1, MR: r1},
		{P: 10, N: 3, ML: r2, MR: r2},
	}
	getUnusedBlocks(unused)

	// the second entry's coverage extends to 20, past the third entry's
	// own start at 10, so its gap must clamp to zero length rather than
	// go negative.
	if want := (UnusedRange{P: 20, N: 0, ML: r1, MR: r2}); unused[2] != want {
		t.Fatalf("unused[2] = %+v, want %+v", unused[2], want)
	}
}

func contentEqual(t *testing.T, src, tgt []Token, p1, p2, n uint32) {
	t.Helper()
	for i := uint32(0); i < n; i++ {
		if src[p1+i] != tgt[p2+i] {
			t.Fatalf("claimed match (p1=%d,p2=%d,n=%d) mismatches at offset %d: src=%d tgt=%d", p1, p2, n, i, src[p1+i], tgt[p2+i])
		}
	}
}

func TestInstancePassGlobalFindsFullMatch(t *testing.T) {
	src := make([]Token, 32)
	for i := range src {
		src[i] = Token(i + 1)
	}
	tgt := append([]Token(nil), src...)

	inst := newDirectInstance(t, src, tgt)
	defer inst.Done()

	inst.Pass(4, 4, 0, FlagGlobal|FlagSidesOrdered)
	inst.CleanMatches(0)

	if got := inst.NumMatches(); got < 1 {
		t.Fatalf("NumMatches = %d, want at least 1", got)
	}
	var covered uint32
	for k := 0; k < inst.NumMatches(); k++ {
		p1, p2, n, err := inst.GetMatch(k)
		if err != nil {
			t.Fatalf("GetMatch(%d): %v", k, err)
		}
		contentEqual(t, src, tgt, p1, p2, n)
		covered += n
	}
	if covered != uint32(len(src)) {
		t.Fatalf("total matched length = %d, want %d (identical sequences should be fully covered)", covered, len(src))
	}
}

func TestInstancePassLocalFillsHoleBesideExistingMatch(t *testing.T) {
	src := make([]Token, 24)
	for i := range src {
		src[i] = Token(i + 1)
	}
	tgt := append([]Token(nil), src...)

	inst := newDirectInstance(t, src, tgt)
	defer inst.Done()

	// simulate a coarser earlier pass already having found the first
	// 8 tokens; only the trailing 16-token hole remains to be filled.
	inst.matches.pushBack(Match{P1: 0, P2: 0, N: 8})

	inst.Pass(4, 4, 0, FlagSidesOrdered)
	inst.CleanMatches(0)

	if got := inst.NumMatches(); got < 2 {
		t.Fatalf("NumMatches = %d, want at least 2 (anchor plus at least one hole match)", got)
	}

	var covered uint32
	haveAnchor := false
	for k := 0; k < inst.NumMatches(); k++ {
		p1, p2, n, err := inst.GetMatch(k)
		if err != nil {
			t.Fatalf("GetMatch(%d): %v", k, err)
		}
		contentEqual(t, src, tgt, p1, p2, n)
		if p1 == 0 && p2 == 0 && n == 8 {
			haveAnchor = true
		}
		covered += n
	}
	if !haveAnchor {
		t.Fatalf("the pre-existing anchor match (0,0,8) should survive the local pass")
	}
	// the hole match extends backward by one blocksize (4 tokens) into the
	// anchor's span, and CleanMatches(0) leaves that partial overlap in place.
	if want := uint32(len(src) + 4); covered != want {
		t.Fatalf("total matched length = %d, want %d (the trailing hole fully filled, plus the 4-token overlap with the anchor)", covered, want)
	}
}

func TestInstancePassMaxHoleSizeSkipsOversizedHole(t *testing.T) {
	src := make([]Token, 24)
	for i := range src {
		src[i] = Token(i + 1)
	}
	tgt := append([]Token(nil), src...)

	inst := newDirectInstance(t, src, tgt)
	defer inst.Done()

	inst.matches.pushBack(Match{P1: 0, P2: 0, N: 8})

	// the remaining hole is 16 tokens; a maxHoleSize of 8 should skip it.
	inst.Pass(4, 4, 8, FlagSidesOrdered)
	inst.CleanMatches(0)

	if got := inst.NumMatches(); got != 1 {
		t.Fatalf("NumMatches = %d, want 1 (the oversized hole should be left unfilled)", got)
	}
	_, _, n, err := inst.GetMatch(0)
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	if n != 8 {
		t.Fatalf("surviving match N = %d, want 8 (only the pre-existing anchor)", n)
	}
}
