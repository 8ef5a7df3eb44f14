package bdelta

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// UnusedRange is a maximal span of one axis not covered by an existing
// match, plus the matches immediately to its left (ML) and right (MR)
// in the ordered match list -- handles used to preserve list position
// when inserting children and, for the local (per-hole) pass, to pair
// up corresponding source/target holes (spec §3, §4.6).
type UnusedRange struct {
	P, N   uint32
	ML, MR ref
}

// getUnusedBlocks turns unused[i]'s own (p, n) -- the i-th match's own
// span -- into the gap immediately preceding it: the span between the
// previous entry's end and this entry's start. unused[0] is left
// untouched; it is the dummy range belonging to the sentinel match
// placed at the front of the list by Pass, standing in for "there is
// always a match to the left of every hole" (spec §4.6 step 2-3).
func getUnusedBlocks(unused []UnusedRange) {
	var nextStartPos uint32
	for i := 1; i < len(unused); i++ {
		startPos := nextStartPos
		if end := unused[i].P + unused[i].N; end > startPos {
			nextStartPos = end
		} else {
			nextStartPos = startPos
		}
		var n uint32
		if unused[i].P >= startPos {
			n = unused[i].P - startPos
		}
		unused[i] = UnusedRange{P: startPos, N: n, ML: unused[i-1].MR, MR: unused[i].MR}
	}
}

// passTwo builds a checksum index over the source blocks in unused and
// scans the target holes in unused2 for matches (spec §4.3 + §4.4,
// "bdelta_pass_2"). unused[i].P is the locality baseline for the scan of
// unused2[i]. In the local pass the two describe the same hole (same
// bounding matches); in the global pass unused is ordered by P1 and
// unused2 by list position, so the pairing is positional only.
func passTwo(b *Instance, blocksize, minMatchSize int, unused, unused2 []UnusedRange) {
	idx := buildChecksumIndex(b, blocksize, unused, b.cfg.MaxIdenticalChecksums)

	for i := range unused2 {
		if int(unused2[i].N) >= blocksize {
			start := int(unused2[i].P)
			end := start + int(unused2[i].N)
			place := int(unused[i].P)
			findMatches(b, idx, minMatchSize, start, end, place, unused2[i].MR)
		}
	}
}

// Pass runs one index-build-and-scan pass at the given blocksize,
// mining matches of at least minMatchSize tokens out of the holes left
// by prior passes (spec §4.6). maxHoleSize == 0 means unbounded.
//
// With FlagGlobal, one index is built over all unused source space and
// the whole unused target space is scanned against it. Without it,
// each aligned (source hole, target hole) pair at least blocksize long
// (and, with FlagSidesOrdered, flanked by the same two matches on both
// axes) gets its own index and scan -- cheaper when holes are numerous
// and small, since a global index would otherwise dilute the locality
// score across unrelated holes.
func (b *Instance) Pass(blocksize, minMatchSize, maxHoleSize int, flags Flags) {
	start := time.Now()

	// Sentinels so every hole has a well-defined bounding match.
	b.matches.pushFront(Match{P1: 0, P2: 0, N: 0})
	b.matches.pushBack(Match{P1: uint32(b.srcSize), P2: uint32(b.tgtSize), N: 0})

	n := b.matches.Len()
	if cap(b.scratch.unused) < n {
		b.scratch.unused = make([]UnusedRange, 0, n)
	}
	if cap(b.scratch.unused2) < n {
		b.scratch.unused2 = make([]UnusedRange, 0, n)
	}
	unused := b.scratch.unused[:0]
	unused2 := b.scratch.unused2[:0]
	for r := b.matches.begin(); r != b.matches.end(); r = b.matches.next(r) {
		m := b.matches.at(r)
		unused = append(unused, UnusedRange{P: m.P1, N: m.N, ML: r, MR: r})
		unused2 = append(unused2, UnusedRange{P: m.P2, N: m.N, ML: r, MR: r})
	}
	b.scratch.unused, b.scratch.unused2 = unused, unused2

	sort.SliceStable(unused[1:], func(i, j int) bool {
		a, bb := unused[1:][i], unused[1:][j]
		if a.P != bb.P {
			return a.P < bb.P
		}
		return a.N > bb.N
	})

	getUnusedBlocks(unused)
	getUnusedBlocks(unused2)

	if flags&FlagGlobal != 0 {
		passTwo(b, blocksize, minMatchSize, unused, unused2)
	} else {
		sort.SliceStable(unused[1:], func(i, j int) bool {
			mi, mj := b.matches.at(unused[1:][i].MR), b.matches.at(unused[1:][j].MR)
			if mi.P2 != mj.P2 {
				return mi.P2 < mj.P2
			}
			return mi.N > mj.N
		})
		for i := 1; i < len(unused); i++ {
			u1, u2 := unused[i], unused2[i]
			if int(u1.N) < blocksize || int(u2.N) < blocksize {
				continue
			}
			if maxHoleSize != 0 && (int(u1.N) > maxHoleSize || int(u2.N) > maxHoleSize) {
				continue
			}
			if flags&FlagSidesOrdered != 0 {
				if b.matches.next(u1.ML) != u1.MR || b.matches.next(u2.ML) != u2.MR {
					continue
				}
			}
			passTwo(b, blocksize, minMatchSize, unused[i:i+1], unused2[i:i+1])
		}
	}

	// Remove the dummy sentinels placed above.
	for r := b.matches.begin(); r != b.matches.end(); r = b.matches.next(r) {
		if b.matches.at(r).N == 0 {
			b.matches.remove(r)
			break
		}
	}
	b.matches.popBack()

	if b.metrics != nil {
		b.metrics.passesTotal.Inc()
		b.metrics.passDuration.Observe(time.Since(start).Seconds())
	}
	if b.logger != nil {
		b.logger.Debug("pass complete",
			zap.Int("blocksize", blocksize),
			zap.Int("min_match_size", minMatchSize),
			zap.Int("matches", b.matches.Len()),
		)
	}
}
