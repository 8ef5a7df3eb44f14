package bdelta

// ReadFunc copies n tokens from handle at offset into scratch and
// returns a slice of exactly n tokens valid for the duration of the
// call. It may return scratch itself (after filling it) or any other
// buffer it owns. This mirrors the C library's
// reader(handle, scratch, offset, n) callback contract (spec §6).
type ReadFunc func(handle any, scratch []Token, offset, n int) []Token

// reader is the sealed direct/callback variant described in the design
// notes ("Reader indirection"): a small closed sum type so the hot
// extension and scan loops dispatch once per call, never per token,
// instead of switching on a case for every comparison.
//
// When cb is nil, handle must be a []Token holding the entire sequence
// and offsets index directly into it -- the Go equivalent of the C
// library's "handles are base pointers, offsets are token offsets"
// direct mode.
type reader struct {
	cb     ReadFunc
	handle any
}

func newDirectReader(data []Token) reader {
	return reader{cb: nil, handle: data}
}

func newCallbackReader(cb ReadFunc, handle any) reader {
	return reader{cb: cb, handle: handle}
}

func (r reader) read(scratch []Token, offset, n int) []Token {
	if r.cb == nil {
		base := r.handle.([]Token)
		return base[offset : offset+n]
	}
	return r.cb(r.handle, scratch, offset, n)
}
