//go:build !token16 && !token32

package bdelta

// Token is the unit of comparison the engine operates on. The original
// C library selects this at compile time via a TOKEN_SIZE macro; Go has
// no object-like macros, so the three widths live in build-tag-selected
// files and only one is ever compiled in. This file gives the default,
// byte-granularity build.
type Token = uint8

// tokenSize is the width of Token in bytes, checked against the caller's
// requested width in Init.
const tokenSize = 1
