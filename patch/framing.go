package patch

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// writeBuf is a thin bytes.Buffer wrapper with a uvarint helper; kept
// separate from bytes.Buffer directly so the op-encoding call sites in
// Write read as WriteUvarint/WriteByte rather than ad hoc binary.Write
// calls at every op.
type writeBuf struct {
	bytes.Buffer
}

func (b *writeBuf) WriteUvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	b.Write(tmp[:n])
}

// writeFramed writes a uvarint length prefix followed by data.
func writeFramed(w io.Writer, data []byte) error {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(data)))
	if _, err := w.Write(tmp[:n]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// readFramed reads a uvarint length prefix followed by that many bytes.
func readFramed(r io.Reader) ([]byte, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio_byteReader(r)
	}
	n, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, errors.Wrap(err, "read length prefix")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "read framed body")
	}
	return buf, nil
}

type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader { return &byteReader{data: data} }

func (r *byteReader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	c := r.data[r.pos]
	r.pos++
	return c, nil
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func bufio_byteReader(r io.Reader) io.ByteReader {
	return bufioReader{r}
}

type bufioReader struct{ io.Reader }

func (b bufioReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.Reader, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
