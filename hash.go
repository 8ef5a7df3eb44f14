package bdelta

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// adlerMod is the largest prime smaller than 65536, same constant used
// by the Adler-32 family of rolling checksums.
const adlerMod = 65521

// Hash is the rolling checksum primitive required by spec §4.1: given a
// window of tokens it produces a value that can be advanced one token
// at a time without rescanning the window, with equal windows always
// hashing equal and unequal windows colliding rarely. Correctness of
// the engine never depends on which rolling function is used here;
// only throughput does. Grounded on the two-accumulator Adler-family
// digest in other_examples/josvazg-slicesync__rollingadler32.go and the
// bup/librsync rolling sum in other_examples/containers-tar-diff__rollsum.go.
type Hash struct {
	a, b   uint32
	window uint32
}

// NewHash initializes a rolling hash over the given window.
func NewHash(window []Token) *Hash {
	h := &Hash{window: uint32(len(window))}
	h.a, h.b = 1, 0
	for _, t := range window {
		h.a += uint32(t)
		h.b += h.a
		if h.b > (^uint32(0)-255)/2 {
			h.a %= adlerMod
			h.b %= adlerMod
		}
	}
	return h
}

// Value returns the hash of the current window.
func (h *Hash) Value() uint32 {
	a, b := h.a, h.b
	if b >= adlerMod {
		a %= adlerMod
		b %= adlerMod
	}
	return b<<16 | a
}

// Advance slides the window one token to the right: out leaves, in
// enters. Derivation as in rollingadler32.go's roll(): subtract out's
// contribution to both accumulators while adding in's.
func (h *Hash) Advance(out, in Token) {
	h.a += uint32(in) - uint32(out)
	h.b += h.a - h.window*uint32(out) - 1
	if h.b > (^uint32(0)-255)/2 {
		h.a %= adlerMod
		h.b %= adlerMod
	}
}

// Modulo selects a bucket for v in a table of m buckets, m a power of
// two. It must be applied identically by the index builder and the
// scanner (design note "Rolling hash coupling").
func Modulo(v, m uint32) uint32 {
	return v & (m - 1)
}

// verifyDigest computes a 64-bit verification digest of a token window
// using xxh3, independent from the rolling checksum. The index stores
// one per block (index.go); the scanner computes one for a candidate
// window before paying for matchForward, to reject rolling-hash
// collisions cheaply (SPEC_FULL.md "Verification checksum"). dst is a
// reusable scratch buffer to avoid allocating on every candidate.
func verifyDigest(window []Token, dst []byte) (uint64, []byte) {
	need := len(window) * tokenSize
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]
	if tokenSize == 1 {
		for i, t := range window {
			dst[i] = byte(t)
		}
	} else {
		for i, t := range window {
			switch tokenSize {
			case 2:
				binary.LittleEndian.PutUint16(dst[i*2:], uint16(t))
			case 4:
				binary.LittleEndian.PutUint32(dst[i*4:], uint32(t))
			}
		}
	}
	return xxh3.Hash(dst), dst
}
