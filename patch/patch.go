// Package patch serializes a bdelta match list into a compact op
// stream and replays it against the source to reconstruct the target.
// It is downstream of the matching engine: bdelta itself never touches
// a wire format, serialization, or compression (see the package doc in
// bdelta.go's Non-goals).
package patch

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/jjwhitney/bdelta"
)

const (
	magicNumber   uint32 = 0xB0E17A3D
	formatVersion uint16 = 1
)

type opKind uint8

const (
	opCopy opKind = iota + 1
	opInsert
)

// header is written verbatim with binary.Write/Read; it carries just
// enough to validate the stream and preallocate on apply.
type header struct {
	Magic   uint32
	Version uint16
	SrcSize uint64
	TgtSize uint64
	OpCount uint64
}

// Write serializes inst's match list plus the literal spans it leaves
// uncovered into w. target provides the bytes for those literal spans;
// src/tgt sizes are recorded in the header. Apply checks the
// reconstructed length against the recorded target size; it does not
// check the source size. Matches must already be in P2 order, which every
// bdelta.Instance maintains as an invariant.
func Write(w io.Writer, inst *bdelta.Instance, target io.ReaderAt, srcSize, tgtSize int64) error {
	var ops writeBuf
	lit := &writeBuf{}
	zw, err := zstd.NewWriter(lit, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return errors.Wrap(err, "patch: create zstd writer")
	}

	var opCount uint64
	pos := int64(0)

	emitInsert := func(start, end int64) error {
		if end <= start {
			return nil
		}
		buf := make([]byte, end-start)
		if _, err := target.ReadAt(buf, start); err != nil && err != io.EOF {
			return errors.Wrapf(err, "patch: read literal span [%d,%d)", start, end)
		}
		ops.WriteByte(byte(opInsert))
		ops.WriteUvarint(uint64(end - start))
		if _, err := zw.Write(buf); err != nil {
			return errors.Wrap(err, "patch: compress literal span")
		}
		opCount++
		return nil
	}

	n := inst.NumMatches()
	for i := 0; i < n; i++ {
		p1, p2, num, err := inst.GetMatch(i)
		if err != nil {
			return errors.Wrap(err, "patch: walk match list")
		}
		if int64(p2) > pos {
			if err := emitInsert(pos, int64(p2)); err != nil {
				return err
			}
		}
		ops.WriteByte(byte(opCopy))
		ops.WriteUvarint(uint64(p1))
		ops.WriteUvarint(uint64(num))
		opCount++
		pos = int64(p2) + int64(num)
	}
	if err := emitInsert(pos, tgtSize); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "patch: finalize zstd stream")
	}

	hdr := header{
		Magic:   magicNumber,
		Version: formatVersion,
		SrcSize: uint64(srcSize),
		TgtSize: uint64(tgtSize),
		OpCount: opCount,
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return errors.Wrap(err, "patch: write header")
	}
	if err := writeFramed(w, ops.Bytes()); err != nil {
		return errors.Wrap(err, "patch: write op table")
	}
	if err := writeFramed(w, lit.Bytes()); err != nil {
		return errors.Wrap(err, "patch: write literal stream")
	}
	return nil
}

// Apply reads a stream written by Write and reconstructs the target
// into w, copying matched spans out of src and replaying literal spans
// from the embedded, zstd-compressed insert stream.
func Apply(r io.Reader, src io.ReaderAt, w io.Writer) error {
	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(err, "patch: read header")
	}
	if hdr.Magic != magicNumber {
		return errors.Errorf("patch: bad magic number %#x", hdr.Magic)
	}
	if hdr.Version != formatVersion {
		return errors.Errorf("patch: unsupported format version %d", hdr.Version)
	}

	opBytes, err := readFramed(r)
	if err != nil {
		return errors.Wrap(err, "patch: read op table")
	}
	litBytes, err := readFramed(r)
	if err != nil {
		return errors.Wrap(err, "patch: read literal stream")
	}

	zr, err := zstd.NewReader(nil)
	if err != nil {
		return errors.Wrap(err, "patch: create zstd reader")
	}
	defer zr.Close()
	lit, err := zr.DecodeAll(litBytes, make([]byte, 0, hdr.TgtSize))
	if err != nil {
		return errors.Wrap(err, "patch: decompress literal stream")
	}

	ops := bufio.NewReader(newByteReader(opBytes))
	litPos := 0
	var produced uint64

	for i := uint64(0); i < hdr.OpCount; i++ {
		kind, err := ops.ReadByte()
		if err != nil {
			return errors.Wrap(err, "patch: truncated op table")
		}
		switch opKind(kind) {
		case opCopy:
			offset, err := binary.ReadUvarint(ops)
			if err != nil {
				return errors.Wrap(err, "patch: read copy offset")
			}
			length, err := binary.ReadUvarint(ops)
			if err != nil {
				return errors.Wrap(err, "patch: read copy length")
			}
			buf := make([]byte, length)
			if _, err := src.ReadAt(buf, int64(offset)); err != nil && err != io.EOF {
				return errors.Wrapf(err, "patch: copy %d bytes from source offset %d", length, offset)
			}
			if _, err := w.Write(buf); err != nil {
				return errors.Wrap(err, "patch: write copied span")
			}
			produced += length
		case opInsert:
			length, err := binary.ReadUvarint(ops)
			if err != nil {
				return errors.Wrap(err, "patch: read insert length")
			}
			if litPos+int(length) > len(lit) {
				return errors.New("patch: literal stream shorter than op table declares")
			}
			if _, err := w.Write(lit[litPos : litPos+int(length)]); err != nil {
				return errors.Wrap(err, "patch: write literal span")
			}
			litPos += int(length)
			produced += length
		default:
			return errors.Errorf("patch: unknown op kind %d", kind)
		}
	}

	if produced != hdr.TgtSize {
		return errors.Errorf("patch: reconstructed %d bytes, header declares %d", produced, hdr.TgtSize)
	}
	return nil
}
