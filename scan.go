package bdelta

// candidateVerifies re-hashes the blocksize window at target offset p2
// with the stronger xxh3 digest and compares it against the entry's
// stored verify value, so a 32-bit rolling-hash collision is rejected
// in one read instead of paying for a full matchForward/matchBackward
// extension (SPEC_FULL.md "Verification checksum").
func candidateVerifies(b *Instance, c checksumEntry, p2, blocksize int) bool {
	if cap(b.scratch.scanVerifyBuf) < blocksize {
		b.scratch.scanVerifyBuf = make([]Token, blocksize)
	}
	buf := b.scratch.scanVerifyBuf[:blocksize]
	window := b.read2(buf, p2, blocksize)
	digest, grown := verifyDigest(window, b.scratch.verifyBuf)
	b.scratch.verifyBuf = grown
	return digest == c.verify
}

// absDiff returns |a - b| for non-negative ints.
func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// findMatches slides a blocksize window across target[start:end],
// probing idx for candidates, verifying them by extension, and
// appending accepted matches into b's match list starting the search
// for each insertion point at iterPlace (spec §4.4).
//
// place is the locality baseline: the score
// n / (|place - p1| + 2*blocksize) prefers long matches close to the
// source cursor. It is only updated when a match is committed, so
// candidates within one target window are deliberately scored against
// a stale baseline -- this matches the original and is called out in
// spec §9's open question; ports should preserve it to keep output
// parity.
func findMatches(b *Instance, idx *checksumIndex, minMatchSize, start, end, place int, iterPlace ref) {
	blocksize := idx.blocksize

	if cap(b.scratch.scanBuf) < blocksize*2 {
		b.scratch.scanBuf = make([]Token, blocksize*2)
	}
	scanBuf := b.scratch.scanBuf[:blocksize*2]
	buf1, buf2 := scanBuf[:blocksize], scanBuf[blocksize:]

	best1, best2, bestNum := 0, 0, 0
	processMatchesPos := 0

	inbuf := b.read2(buf1, start, blocksize)
	var outbuf []Token
	inbufIsBuf1 := true
	hash := NewHash(inbuf)
	bufLoc := blocksize

	for j := start + blocksize; ; j++ {
		thisBucket := idx.tableIndex(hash.Value())
		ci := idx.htable[thisBucket]
		if ci >= 0 {
			for {
				c := idx.entries[ci]
				if c.cksum == hash.Value() && candidateVerifies(b, c, j-blocksize, blocksize) {
					p1, p2 := int(c.loc), j-blocksize
					fnum := b.matchForward(p1, p2)
					if fnum >= blocksize {
						bnum := b.matchBackward(p1, p2, blocksize)
						num := fnum + bnum
						if num >= minMatchSize {
							p1 -= bnum
							p2 -= bnum
							var foundBetter bool
							if bestNum != 0 {
								oldValue := float64(bestNum) / float64(absDiff(place, best1)+2*blocksize)
								newValue := float64(num) / float64(absDiff(place, p1)+2*blocksize)
								foundBetter = newValue > oldValue
							} else {
								foundBetter = true
								processMatchesPos = min(j+blocksize-1, end)
							}
							if foundBetter {
								best1, best2, bestNum = p1, p2, num
							}
						} else if b.metrics != nil {
							b.metrics.matchesRejected.Inc()
						}
					}
				}
				ci++
				if idx.tableIndex(idx.entries[ci].cksum) != thisBucket {
					break
				}
			}
		}

		if bestNum != 0 && j >= processMatchesPos {
			// iterPlace is intentionally not updated from addMatch's
			// return: the original passes the same starting iterator to
			// every addMatch call within one scan, relying on addMatch's
			// own left/right walk to find the right spot each time.
			b.matches.addMatch(uint32(best1), uint32(best2), uint32(bestNum), iterPlace)
			if b.metrics != nil {
				b.metrics.matchesAccepted.Inc()
			}
			place = best1 + bestNum
			matchEnd := best2 + bestNum
			if matchEnd > j {
				if matchEnd >= end {
					j = end
				} else {
					j = matchEnd - blocksize
					inbuf = b.read2(buf1, j, blocksize)
					inbufIsBuf1 = true
					hash = NewHash(inbuf)
					bufLoc = blocksize
					j += blocksize
				}
			}
			bestNum = 0
		}

		if bufLoc == blocksize {
			bufLoc = 0
			wasBuf1 := inbufIsBuf1
			inbuf, outbuf = outbuf, inbuf
			nextBuf := buf1
			if wasBuf1 {
				nextBuf = buf2
			}
			inbuf = b.read2(nextBuf, j, min(end-j, blocksize))
			inbufIsBuf1 = !wasBuf1
		}

		if j >= end {
			break
		}

		hash.Advance(outbuf[bufLoc], inbuf[bufLoc])
		bufLoc++
	}
}
