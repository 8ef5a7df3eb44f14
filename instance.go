package bdelta

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Flags is the bitfield shared by Pass and CleanMatches (spec §6).
type Flags uint32

const (
	// FlagGlobal selects a single global pass-2 index build over all
	// unused source space, instead of one local index per aligned hole
	// (spec §4.6).
	FlagGlobal Flags = 1 << iota
	// FlagSidesOrdered restricts the local-pass hole pairing to holes
	// flanked by the same two adjacent matches on both axes (spec §4.6).
	FlagSidesOrdered
	// FlagRemoveOverlap makes CleanMatches shrink an earlier match's N
	// instead of only dropping matches wholly contained in it (spec §4.7).
	FlagRemoveOverlap
)

// Config carries the ambient dependencies and tunables that spec §9's
// open question leaves configurable. The zero Config is valid: every
// field defaults per withDefaults.
type Config struct {
	// MaxIdenticalChecksums bounds the "hot checksum" purge in the
	// checksum index (spec §4.3 step 3). Zero means the default of 2,
	// the original's hard-coded constant.
	MaxIdenticalChecksums int

	// Logger receives per-pass diagnostics. Nil means no logging.
	Logger *zap.Logger

	// Registry, if non-nil, has the engine's prometheus collectors
	// registered into it. Nil means the collectors are still updated
	// but never exposed.
	Registry *prometheus.Registry
}

func (c Config) withDefaults() Config {
	if c.MaxIdenticalChecksums <= 0 {
		c.MaxIdenticalChecksums = 2
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Instance owns both sequence handles, the match list, and the
// per-instance scratch pools (spec §3 "Instance"). It is created by
// Init, mutated by Pass/CleanMatches/SwapInputs, and released by Done.
// An Instance must not be used from more than one goroutine at a time.
type Instance struct {
	src, tgt         reader
	srcSize, tgtSize int

	matches *matchList

	// access cursor for GetMatch (spec §4.7 "bdelta_getMatch").
	accessRef        ref
	accessInt        int
	accessGeneration uint64

	errorCode int

	cfg     Config
	scratch *scratch
	logger  *zap.Logger
	metrics *metricsCollector
}

// Init creates an Instance over two token sequences of size1 and size2
// tokens. If reader is nil, handle1 and handle2 must each be a []Token
// holding the full sequence and offsets are interpreted directly
// against them; otherwise reader(handle, scratch, offset, n) is called
// to fetch n tokens at offset (spec §6).
//
// Init returns ErrTokenSizeMismatch if requestedTokenSize does not
// match the width this build was compiled for (spec §7
// "Configuration").
func Init(size1, size2 int, readFn ReadFunc, handle1, handle2 any, requestedTokenSize int, cfg Config) (*Instance, error) {
	if requestedTokenSize != tokenSize {
		return nil, ErrTokenSizeMismatch
	}
	cfg = cfg.withDefaults()

	var src, tgt reader
	if readFn == nil {
		src = newDirectReader(handle1.([]Token))
		tgt = newDirectReader(handle2.([]Token))
	} else {
		src = newCallbackReader(readFn, handle1)
		tgt = newCallbackReader(readFn, handle2)
	}

	return &Instance{
		src:       src,
		tgt:       tgt,
		srcSize:   size1,
		tgtSize:   size2,
		matches:   newMatchList(),
		accessInt: -1,
		cfg:       cfg,
		scratch:   newScratch(),
		logger:    cfg.Logger,
		metrics:   newMetrics(cfg.Registry),
	}, nil
}

// Done releases the Instance's scratch pools. The Instance must not be
// used afterward.
func (b *Instance) Done() {
	b.matches = nil
	b.scratch = nil
}

// Err reports the Instance's error code, or nil if none is set (spec
// §7). GetMatch sets it when it fails and clears it when it succeeds;
// Pass, CleanMatches and SwapInputs leave it unchanged.
func (b *Instance) Err() error {
	switch b.errorCode {
	case 0:
		return nil
	case errCodeScratchExhausted:
		return ErrScratchExhausted
	case errCodeCursorInvalidated:
		return ErrCursorInvalidated
	default:
		return ErrIndexOutOfRange
	}
}

const (
	errCodeScratchExhausted  = 1
	errCodeCursorInvalidated = 2
	errCodeIndexOutOfRange   = 3
)

func (b *Instance) read1(buf []Token, p, n int) []Token { return b.src.read(buf, p, n) }
func (b *Instance) read2(buf []Token, p, n int) []Token { return b.tgt.read(buf, p, n) }

// NumMatches returns the number of matches currently in the list.
func (b *Instance) NumMatches() int { return b.matches.Len() }
