package bdelta

// matchBufForward returns the length of the common prefix of a and b,
// both of length n.
func matchBufForward(a, b []Token, n int) int {
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// matchBufBackward returns the length of the common suffix of a and b,
// both of length n.
func matchBufBackward(a, b []Token, n int) int {
	i := n
	for {
		i--
		if i < 0 || a[i] != b[i] {
			break
		}
	}
	return n - i - 1
}

// matchForward returns the largest n such that source[p1:p1+n] equals
// target[p2:p2+n], bounded by both sequence lengths (spec §4.2).
// Compares in tokenBufferSize chunks so arbitrarily long matches never
// need a single oversized read.
func (b *Instance) matchForward(p1, p2 int) int {
	num := 0
	buf1, buf2 := b.scratch.forwardBuf1, b.scratch.forwardBuf2
	for {
		numToRead := min(min(b.srcSize-p1, b.tgtSize-p2), tokenBufferSize)
		if numToRead <= 0 {
			break
		}
		read1 := b.read1(buf1, p1, numToRead)
		read2 := b.read2(buf2, p2, numToRead)
		p1 += numToRead
		p2 += numToRead
		m := matchBufForward(read1, read2, numToRead)
		num += m
		if m == 0 || m != numToRead {
			break
		}
	}
	return num
}

// matchBackward returns the largest n <= blocksize such that
// source[p1-n:p1] equals target[p2-n:p2]. blocksize caps the extent so
// it never crosses into territory a later block checksum should verify
// on its own (spec §4.2).
func (b *Instance) matchBackward(p1, p2, blocksize int) int {
	num := 0
	buf1, buf2 := b.scratch.backwardBuf1, b.scratch.backwardBuf2
	for {
		numToRead := min(min(min(p1, p2), blocksize-num), tokenBufferSize)
		if numToRead <= 0 {
			break
		}
		p1 -= numToRead
		p2 -= numToRead
		read1 := b.read1(buf1, p1, numToRead)
		read2 := b.read2(buf2, p2, numToRead)
		m := matchBufBackward(read1, read2, numToRead)
		num += m
		if m == 0 || m != numToRead {
			break
		}
	}
	return num
}
