package util

import (
	"errors"
	"math/bits"
)

var (
	ErrBitsExhausted = errors.New("bits: read past end of buffer")
	ErrBitsOverflow  = errors.New("bits: write past end of buffer")
	ErrGolombTooLong = errors.New("bits: exp-golomb prefix too long")
)

// BitReader reads MSB-first over a caller-owned buffer.
type BitReader struct {
	buf     []byte
	bytePos int
	bitPos  uint8
	count   int
}

func NewBitReader(buf []byte) *BitReader {
	return &BitReader{buf: buf}
}

// BitsRead is the running count of consumed bits, including bits skipped by ReadByte.
func (r *BitReader) BitsRead() int {
	return r.count
}

func (r *BitReader) BytePos() int {
	return r.bytePos
}

func (r *BitReader) BitPos() uint8 {
	return r.bitPos
}

// Remaining is the number of unread bits.
func (r *BitReader) Remaining() int {
	if r.bytePos >= len(r.buf) {
		return 0
	}
	return (len(r.buf)-r.bytePos)*8 - int(r.bitPos)
}

func (r *BitReader) ReadBit() (res uint8, err error) {
	if r.bytePos >= len(r.buf) {
		return 0, ErrBitsExhausted
	}
	res = (r.buf[r.bytePos] >> (7 - r.bitPos)) & 1
	r.bitPos++
	if r.bitPos == 8 {
		r.bitPos = 0
		r.bytePos++
	}
	r.count++
	return
}

func (r *BitReader) ReadFlag() (bool, error) {
	b, err := r.ReadBit()
	return b == 1, err
}

// ReadBits composes n single-bit reads, n in [0,64].
func (r *BitReader) ReadBits(n int) (res uint64, err error) {
	if n < 0 || n > 64 {
		return 0, ErrBitsExhausted
	}
	if r.Remaining() < n {
		return 0, ErrBitsExhausted
	}
	for i := 0; i < n; i++ {
		var bit uint8
		if bit, err = r.ReadBit(); err != nil {
			return
		}
		res = res<<1 | uint64(bit)
	}
	return
}

func (r *BitReader) ReadUint8(n int) (uint8, error) {
	v, err := r.ReadBits(n)
	return uint8(v), err
}

func (r *BitReader) ReadUint16(n int) (uint16, error) {
	v, err := r.ReadBits(n)
	return uint16(v), err
}

func (r *BitReader) ReadUint32(n int) (uint32, error) {
	v, err := r.ReadBits(n)
	return uint32(v), err
}

// ReadByte drops the unread bits of the current byte, then reads the next whole byte.
// A failed read consumes nothing.
func (r *BitReader) ReadByte() (byte, error) {
	pos := r.bytePos
	if r.bitPos != 0 {
		pos++
	}
	if pos >= len(r.buf) {
		return 0, ErrBitsExhausted
	}
	if r.bitPos != 0 {
		r.count += int(8 - r.bitPos)
		r.bitPos = 0
		r.bytePos++
	}
	b := r.buf[r.bytePos]
	r.bytePos++
	r.count += 8
	return b, nil
}

// ReadRemainingByte reads the 8-bitPos bits left in the current byte.
func (r *BitReader) ReadRemainingByte() (byte, error) {
	v, err := r.ReadBits(int(8 - r.bitPos))
	return byte(v), err
}

func (r *BitReader) ReadUE() (res uint64, err error) {
	k := 0
	for {
		var bit uint8
		if bit, err = r.ReadBit(); err != nil {
			return
		}
		if bit == 1 {
			break
		}
		if k++; k > 63 {
			return 0, ErrGolombTooLong
		}
	}
	if k == 0 {
		return 0, nil
	}
	var v uint64
	if v, err = r.ReadBits(k); err != nil {
		return
	}
	return (uint64(1)<<k - 1) + v, nil
}

func (r *BitReader) ReadSE() (int64, error) {
	k, err := r.ReadUE()
	if err != nil {
		return 0, err
	}
	if k&1 == 1 {
		return int64((k + 1) / 2), nil
	}
	return -int64(k / 2), nil
}

// ReadTE reads a truncated Exp-Golomb value with range [0,max].
func (r *BitReader) ReadTE(max uint64) (uint64, error) {
	if max > 1 {
		return r.ReadUE()
	}
	b, err := r.ReadBit()
	if err != nil {
		return 0, err
	}
	return uint64(1 - b), nil
}

// MoreRBSPData reports false only when the rest of the buffer is the
// rbsp_stop_one_bit followed by alignment zeros inside the final byte.
func (r *BitReader) MoreRBSPData() bool {
	last := len(r.buf) - 1
	switch {
	case r.bytePos > last:
		return false
	case r.bytePos < last:
		return true
	}
	rest := r.buf[last] & (0xFF >> r.bitPos)
	return rest != 1<<(7-r.bitPos)
}

// BitWriter writes MSB-first into a fixed-capacity buffer.
type BitWriter struct {
	buf     []byte
	bytePos int
	bitPos  uint8
	count   int
}

func NewBitWriter(buf []byte) *BitWriter {
	return &BitWriter{buf: buf}
}

func (w *BitWriter) BitsWritten() int {
	return w.count
}

// Bytes returns the touched prefix of the buffer, including a partial last byte.
func (w *BitWriter) Bytes() []byte {
	n := w.bytePos
	if w.bitPos != 0 {
		n++
	}
	return w.buf[:n]
}

func (w *BitWriter) ByteAligned() bool {
	return w.bitPos == 0
}

func (w *BitWriter) WriteBit(b uint8) error {
	if w.bytePos >= len(w.buf) {
		return ErrBitsOverflow
	}
	mask := byte(1) << (7 - w.bitPos)
	if b&1 == 1 {
		w.buf[w.bytePos] |= mask
	} else {
		w.buf[w.bytePos] &^= mask
	}
	w.bitPos++
	if w.bitPos == 8 {
		w.bitPos = 0
		w.bytePos++
	}
	w.count++
	return nil
}

func (w *BitWriter) WriteFlag(f bool) error {
	if f {
		return w.WriteBit(1)
	}
	return w.WriteBit(0)
}

func (w *BitWriter) room() int {
	if w.bytePos >= len(w.buf) {
		return 0
	}
	return (len(w.buf)-w.bytePos)*8 - int(w.bitPos)
}

// WriteBits writes the low n bits of v, n in [0,64].
func (w *BitWriter) WriteBits(v uint64, n int) error {
	if n < 0 || n > 64 || w.room() < n {
		return ErrBitsOverflow
	}
	for i := n - 1; i >= 0; i-- {
		if err := w.WriteBit(uint8(v >> uint(i))); err != nil {
			return err
		}
	}
	return nil
}

// WriteByte skips to the next byte boundary, then writes b.
func (w *BitWriter) WriteByte(b byte) error {
	if w.bitPos != 0 {
		w.count += int(8 - w.bitPos)
		w.bitPos = 0
		w.bytePos++
	}
	if w.bytePos >= len(w.buf) {
		return ErrBitsOverflow
	}
	w.buf[w.bytePos] = b
	w.bytePos++
	w.count += 8
	return nil
}

func (w *BitWriter) WriteUE(v uint64) error {
	if v == ^uint64(0) {
		return ErrGolombTooLong
	}
	v++
	k := bits.Len64(v) - 1
	if err := w.WriteBits(0, k); err != nil {
		return err
	}
	return w.WriteBits(v, k+1)
}

func (w *BitWriter) WriteSE(v int64) error {
	if v > 0 {
		return w.WriteUE(uint64(v)*2 - 1)
	}
	return w.WriteUE(uint64(-v) * 2)
}

func (w *BitWriter) WriteTE(v, max uint64) error {
	if max > 1 {
		return w.WriteUE(v)
	}
	return w.WriteBit(uint8(1 - v&1))
}

// WriteTrailingBits emits rbsp_stop_one_bit and zero alignment bits.
func (w *BitWriter) WriteTrailingBits() error {
	if err := w.WriteBit(1); err != nil {
		return err
	}
	for w.bitPos != 0 {
		if err := w.WriteBit(0); err != nil {
			return err
		}
	}
	return nil
}
