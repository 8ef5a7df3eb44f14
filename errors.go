package bdelta

import "errors"

// Sentinel errors for the CORE's small, closed error taxonomy (spec §7).
// Callers should compare with errors.Is; the patch package wraps them
// with github.com/pkg/errors.Wrap to add context.
var (
	// ErrTokenSizeMismatch is returned by Init when the caller's requested
	// token width does not match the width this build was compiled for.
	ErrTokenSizeMismatch = errors.New("bdelta: token size does not match compiled token width")

	// ErrCursorInvalidated is returned by GetMatch when the match list has
	// been mutated (by Pass, CleanMatches, or SwapInputs) since the access
	// cursor was last positioned. The original C library leaves this
	// undefined behavior; this port detects it via a list generation
	// counter and reports it instead of reading stale state.
	ErrCursorInvalidated = errors.New("bdelta: match list mutated since last GetMatch call")

	// ErrIndexOutOfRange is returned by GetMatch for k >= NumMatches.
	ErrIndexOutOfRange = errors.New("bdelta: match index out of range")

	// ErrScratchExhausted names an allocation failure while growing a
	// scratch pool (spec §7 "Allocation"). No code path in this package
	// sets it: scratch pools grow with make and append, which panic on
	// out-of-memory instead of returning an error, and the Instance's
	// error code is not set in that case.
	ErrScratchExhausted = errors.New("bdelta: failed to grow scratch pool")
)
