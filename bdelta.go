// Package bdelta implements the match-discovery core of a binary
// differencing engine: given a source and a target token sequence, it
// finds a minimal, p2-sorted set of matches (p1, p2, n) asserting that
// n tokens at offset p1 in the source equal n tokens at offset p2 in
// the target.
//
// The engine runs one or more passes (Instance.Pass) at decreasing
// blocksizes, each mining the holes left by the previous pass for
// progressively finer matches. It performs no patch-file serialization,
// no compression, and no token reordering; those are downstream
// concerns (see the patch subpackage and cmd/bdelta for one way to
// build them on top of this package).
package bdelta

// TokenSize returns the width in bytes of this build's Token type,
// selected at compile time by the token16/token32 build tags (1 if
// neither is set). Callers pass it to Init as requestedTokenSize so a
// mismatched build is caught immediately instead of silently misreading
// the underlying sequence.
func TokenSize() int { return tokenSize }
