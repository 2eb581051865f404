package util

import (
	"encoding/binary"
	"errors"
)

var ErrBytesExhausted = errors.New("bytes: read past end of buffer")

// ByteReader reads big-endian primitives sequentially. A read that would cross
// the end of the buffer consumes nothing.
type ByteReader struct {
	buf []byte
	pos int
}

func NewByteReader(buf []byte) *ByteReader {
	return &ByteReader{buf: buf}
}

func (r *ByteReader) Available() int {
	return len(r.buf) - r.pos
}

// ReadCount is the number of bytes consumed so far.
func (r *ByteReader) ReadCount() int {
	return r.pos
}

func (r *ByteReader) next(n int) (b []byte, err error) {
	if n < 0 || r.Available() < n {
		return nil, ErrBytesExhausted
	}
	b = r.buf[r.pos : r.pos+n]
	r.pos += n
	return
}

func (r *ByteReader) Skip(n int) error {
	_, err := r.next(n)
	return err
}

func (r *ByteReader) ReadByte() (byte, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *ByteReader) ReadU16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *ByteReader) ReadU24() (uint32, error) {
	b, err := r.next(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

func (r *ByteReader) ReadU32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *ByteReader) ReadU64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *ByteReader) ReadFourCC() (fourcc [4]byte, err error) {
	var b []byte
	if b, err = r.next(4); err == nil {
		copy(fourcc[:], b)
	}
	return
}

// ReadBytes returns a view into the underlying buffer.
func (r *ByteReader) ReadBytes(n int) ([]byte, error) {
	return r.next(n)
}
