package bdelta

import "testing"

func TestAbsDiff(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{5, 3, 2},
		{3, 5, 2},
		{4, 4, 0},
		{0, 9, 9},
	}
	for _, c := range cases {
		if got := absDiff(c.a, c.b); got != c.want {
			t.Errorf("absDiff(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestFindMatchesAcceptsIdenticalWindow(t *testing.T) {
	const blocksize = 4
	src := []Token{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	tgt := append([]Token(nil), src...)

	inst := newDirectInstance(t, src, tgt)
	defer inst.Done()

	unused := []UnusedRange{{P: 0, N: uint32(len(src))}}
	idx := buildChecksumIndex(inst, blocksize, unused, 2)

	findMatches(inst, idx, blocksize, 0, len(tgt), 0, inst.matches.end())

	if got := inst.NumMatches(); got != 1 {
		t.Fatalf("NumMatches = %d, want 1 (identical sequences should collapse to one match)", got)
	}
	p1, p2, n, err := inst.GetMatch(0)
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	if p1 != 0 || p2 != 0 || n != uint32(len(src)) {
		t.Fatalf("match = (p1=%d, p2=%d, n=%d), want (0, 0, %d)", p1, p2, n, len(src))
	}
}

func TestFindMatchesRejectsBelowMinMatchSize(t *testing.T) {
	const blocksize = 4
	// a 4-token common block surrounded by differing content on both sides,
	// so the full extension never reaches a generous minMatchSize.
	src := []Token{1, 1, 1, 1, 2, 3, 4, 5, 9, 9, 9, 9}
	tgt := []Token{8, 8, 8, 8, 2, 3, 4, 5, 7, 7, 7, 7}

	inst := newDirectInstance(t, src, tgt)
	defer inst.Done()

	unused := []UnusedRange{{P: 0, N: uint32(len(src))}}
	idx := buildChecksumIndex(inst, blocksize, unused, 2)

	findMatches(inst, idx, 100, 0, len(tgt), 0, inst.matches.end())

	if got := inst.NumMatches(); got != 0 {
		t.Fatalf("NumMatches = %d, want 0 (no extension reaches minMatchSize=100)", got)
	}
}

func TestFindMatchesFindsInteriorMatch(t *testing.T) {
	const blocksize = 4
	// shared 8-token block at src[4:12] appears at tgt[0:8]; everything
	// else differs, so the scan should find at least that shared span
	// and every accepted match should be a genuine, self-consistent copy.
	shared := []Token{21, 22, 23, 24, 25, 26, 27, 28}
	src := append(append([]Token{1, 2, 3, 4}, shared...), []Token{91, 92, 93, 94}...)
	tgt := append(append([]Token{}, shared...), []Token{81, 82, 83, 84}...)

	inst := newDirectInstance(t, src, tgt)
	defer inst.Done()

	unused := []UnusedRange{{P: 0, N: uint32(len(src))}}
	idx := buildChecksumIndex(inst, blocksize, unused, 2)

	findMatches(inst, idx, blocksize, 0, len(tgt), 0, inst.matches.end())

	if got := inst.NumMatches(); got < 1 {
		t.Fatalf("NumMatches = %d, want at least 1", got)
	}

	var totalCovered uint32
	for k := 0; k < inst.NumMatches(); k++ {
		p1, p2, n, err := inst.GetMatch(k)
		if err != nil {
			t.Fatalf("GetMatch(%d): %v", k, err)
		}
		for i := uint32(0); i < n; i++ {
			if src[p1+i] != tgt[p2+i] {
				t.Fatalf("match %d claims src[%d]==tgt[%d] but src=%d tgt=%d", k, p1+i, p2+i, src[p1+i], tgt[p2+i])
			}
		}
		totalCovered += n
	}
	if totalCovered < uint32(len(shared)) {
		t.Fatalf("total matched length = %d, want at least %d (the shared span)", totalCovered, len(shared))
	}
}
