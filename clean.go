package bdelta

import "go.uber.org/zap"

// CleanMatches walks the match list once, resolving target-side overlaps
// left behind by independent passes (spec §4.7). For each adjacent pair
// (l, next), overlap is how far l's span runs past next's start on the
// target axis. A next wholly covered by l is dropped outright; a
// partial overlap is left alone unless FlagRemoveOverlap is set, in
// which case l is shortened to end where next begins.
func (b *Instance) CleanMatches(flags Flags) {
	nextL := b.matches.begin()
	if nextL == b.matches.end() {
		return
	}
	for {
		l := nextL
		nextL = b.matches.next(nextL)
		if nextL == b.matches.end() {
			break
		}

		lm := b.matches.at(l)
		nm := b.matches.at(nextL)
		overlap := int(lm.P2) + int(lm.N) - int(nm.P2)
		if overlap >= 0 {
			if uint32(overlap) >= nm.N {
				toRemove := nextL
				nextL = l
				b.matches.remove(toRemove)
				continue
			}
			if flags&FlagRemoveOverlap != 0 {
				lm.N -= uint32(overlap)
			}
		}
	}
}

// SwapInputs exchanges the roles of source and target: every match's
// (P1, P2) is swapped, the two readers and sizes trade places, and the
// list is re-sorted since it must stay ordered by the (new) P2 (spec
// §4.7). Any outstanding GetMatch cursor is invalidated by the resulting
// generation bump.
func (b *Instance) SwapInputs() {
	for r := b.matches.begin(); r != b.matches.end(); r = b.matches.next(r) {
		m := b.matches.at(r)
		m.P1, m.P2 = m.P2, m.P1
	}
	b.src, b.tgt = b.tgt, b.src
	b.srcSize, b.tgtSize = b.tgtSize, b.srcSize
	b.matches.sortByP2()
}

// GetMatch returns the k-th match in P2 order (spec §4.7). Access is
// amortized O(1) for sequential k, since the cursor only walks the
// delta from the previous call. If the list has been mutated by Pass,
// CleanMatches, or SwapInputs since the last call, the cursor is stale;
// GetMatch reports ErrCursorInvalidated and resets so the next call
// starts a fresh walk.
func (b *Instance) GetMatch(k int) (p1, p2, n uint32, err error) {
	if k < 0 || k >= b.matches.Len() {
		b.errorCode = errCodeIndexOutOfRange
		return 0, 0, 0, ErrIndexOutOfRange
	}
	if b.accessInt != -1 && b.accessGeneration != b.matches.generation {
		b.accessInt = -1
		b.errorCode = errCodeCursorInvalidated
		return 0, 0, 0, ErrCursorInvalidated
	}
	if b.accessInt == -1 {
		b.accessInt = 0
		b.accessRef = b.matches.begin()
		b.accessGeneration = b.matches.generation
	}
	for b.accessInt < k {
		b.accessRef = b.matches.next(b.accessRef)
		b.accessInt++
	}
	for b.accessInt > k {
		b.accessRef = b.matches.prev(b.accessRef)
		b.accessInt--
	}
	m := b.matches.at(b.accessRef)
	b.errorCode = 0
	return m.P1, m.P2, m.N, nil
}

// ShowMatches logs every match in the list at debug level -- the
// logger-backed equivalent of the original's stdout dump, used the same
// way: as an ad hoc diagnostic, not part of the steady-state API.
func (b *Instance) ShowMatches() {
	for r := b.matches.begin(); r != b.matches.end(); r = b.matches.next(r) {
		m := b.matches.at(r)
		b.logger.Debug("match", zap.Uint32("p1", m.P1), zap.Uint32("p2", m.P2), zap.Uint32("n", m.N))
	}
}
