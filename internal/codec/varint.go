// Package codec implements the V1/V2 varint-based binary layout for
// updates, state vectors, and delete sets described in spec §4.7.
//
// Every encoded update starts with a one-byte version tag. V1
// (EncodeUpdate/versionV1) lays out each struct's fields row-major, one
// struct at a time. V2 (EncodeUpdateV2/versionV2) carries the identical
// logical fields but groups them by column across a client block —
// every struct's info byte, then every origin, then every rightOrigin,
// then parent, then parentSub, then content, each as one contiguous run
// (spec: "V2 groups fields by column and packs runs"). DecodeUpdate
// reads the tag and dispatches to whichever body decoder matches, so
// callers never need to know which version produced a given update.
package codec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Leading wire-format version tags (spec §4.7).
const (
	versionV1 byte = 1
	versionV2 byte = 2
)

// Writer accumulates a varint-encoded byte stream.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) WriteVarUint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf.Write(tmp[:n])
}

func (w *Writer) WriteVarInt(v int64) {
	w.WriteVarUint(zigzagEncode(v))
}

func (w *Writer) WriteByte(b byte) error {
	return w.buf.WriteByte(b)
}

func (w *Writer) WriteBytes(b []byte) {
	w.WriteVarUint(uint64(len(b)))
	w.buf.Write(b)
}

func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// Reader consumes a varint-encoded byte stream.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

var ErrShortBuffer = errors.New("codec: unexpected end of buffer")

func (r *Reader) ReadVarUint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, ErrShortBuffer
	}
	r.pos += n
	return v, nil
}

func (r *Reader) ReadVarInt() (int64, error) {
	v, err := r.ReadVarUint()
	if err != nil {
		return 0, err
	}
	return zigzagDecode(v), nil
}

func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.EOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) Remaining() int { return len(r.buf) - r.pos }
