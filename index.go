package bdelta

import "sort"

// checksumEntry is a (cksum, loc) pair plus the xxh3 verification
// digest described in SPEC_FULL.md ("Verification checksum"). Entries
// are sorted first by bucket, then by cksum, then by loc, so every
// bucket's entries are contiguous (spec §3 "ChecksumEntry").
type checksumEntry struct {
	cksum  uint32
	loc    uint32
	verify uint64
}

// checksumIndex is the open-addressed checksum table built over the
// non-overlapping blocks of a source unused-range set (spec §4.3).
// htable holds, per bucket, the index of that bucket's first entry in
// entries (or -1 if empty) -- the idiomatic stand-in for the original's
// bucket-head pointer, since entries is reused scratch and taking
// pointers into it across calls would be unsafe once it is overwritten.
type checksumIndex struct {
	blocksize int
	htable    []int32
	entries   []checksumEntry
	numReal   int // entries[:numReal] are real; the rest are the two sentinels
}

func (idx *checksumIndex) tableIndex(h uint32) uint32 {
	return Modulo(h, uint32(len(idx.htable)))
}

// nextPow2 rounds v up to the next power of two, per the bit-twiddling
// trick the original cites from graphics.stanford.edu/~seander.
func nextPow2(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return v + 1
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// buildChecksumIndex implements spec §4.3 steps 1-5: walk each unused
// range taking non-overlapping blocksize blocks, hash each, sort by
// (bucket, cksum, loc), purge checksums that repeat more than
// maxIdentical times, append the two sentinels, and backfill each
// bucket's head pointer.
func buildChecksumIndex(b *Instance, blocksize int, unused []UnusedRange, maxIdentical int) *checksumIndex {
	numBlocks := 0
	for _, u := range unused {
		numBlocks += int(u.N) / blocksize
	}

	bucketCount := maxU32(2, nextPow2(uint32(numBlocks)))
	if cap(b.scratch.idxTable) < int(bucketCount) {
		b.scratch.idxTable = make([]int32, bucketCount)
	}
	table := b.scratch.idxTable[:bucketCount]
	for i := range table {
		table[i] = -1
	}

	need := numBlocks + 2
	if cap(b.scratch.idxEntries) < need {
		b.scratch.idxEntries = make([]checksumEntry, 0, need)
	}
	entries := b.scratch.idxEntries[:0]

	if cap(b.scratch.idxReadBuf) < blocksize {
		b.scratch.idxReadBuf = make([]Token, blocksize)
	}
	readBuf := b.scratch.idxReadBuf[:blocksize]

	for _, u := range unused {
		first, last := int(u.P), int(u.P)+int(u.N)
		for loc := first; loc+blocksize <= last; loc += blocksize {
			block := b.read1(readBuf, loc, blocksize)
			h := NewHash(block).Value()
			vdigest, grown := verifyDigest(block, b.scratch.verifyBuf)
			b.scratch.verifyBuf = grown
			entries = append(entries, checksumEntry{cksum: h, loc: uint32(loc), verify: vdigest})
			if b.metrics != nil {
				b.metrics.blocksIndexed.Inc()
			}
		}
	}

	idx := &checksumIndex{blocksize: blocksize, htable: table}

	sort.Slice(entries, func(i, j int) bool {
		ti, tj := idx.tableIndex(entries[i].cksum), idx.tableIndex(entries[j].cksum)
		if ti != tj {
			return ti < tj
		}
		if entries[i].cksum != entries[j].cksum {
			return entries[i].cksum < entries[j].cksum
		}
		return entries[i].loc < entries[j].loc
	})

	writeLoc := 0
	for readLoc := 0; readLoc < len(entries); {
		testAhead := readLoc
		for testAhead < len(entries) && entries[testAhead].cksum == entries[readLoc].cksum {
			testAhead++
		}
		if testAhead-readLoc <= maxIdentical {
			for i := readLoc; i < testAhead; i++ {
				entries[writeLoc] = entries[i]
				writeLoc++
			}
		}
		readLoc = testAhead
	}
	entries = entries[:writeLoc+2]
	// Sentinels: cksum=max so a tail walker terminates cleanly; cksum=0
	// so reading one entry past numReal is always safe.
	entries[writeLoc] = checksumEntry{cksum: ^uint32(0), loc: 0}
	entries[writeLoc+1] = checksumEntry{cksum: 0, loc: 0}

	idx.entries = entries
	idx.numReal = writeLoc
	b.scratch.idxEntries = entries

	for i := writeLoc - 1; i >= 0; i-- {
		table[idx.tableIndex(entries[i].cksum)] = int32(i)
	}

	return idx
}
