// Package binary provides little-endian field readers for container headers.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrShort is returned when a field lies beyond the end of its buffer.
var ErrShort = errors.New("short buffer")

// ReadAt reads exactly len(buf) bytes from r at offset. A short read is an
// error even when r reports io.EOF with it.
func ReadAt(r io.ReaderAt, offset int64, buf []byte) error {
	n, err := r.ReadAt(buf, offset)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("read %d bytes at %d: %w", len(buf), offset, io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("read %d bytes at %d: %w", len(buf), offset, err)
}

// ReadBytesAt reads n bytes from r at offset.
func ReadBytesAt(r io.ReaderAt, offset int64, n int) ([]byte, error) {
	if n < 0 || offset < 0 {
		return nil, fmt.Errorf("read %d bytes at %d: %w", n, offset, ErrShort)
	}
	buf := make([]byte, n)
	if err := ReadAt(r, offset, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadUint32LEAt reads a little-endian uint32 from r at offset.
func ReadUint32LEAt(r io.ReaderAt, offset int64) (uint32, error) {
	buf := make([]byte, 4)
	if err := ReadAt(r, offset, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadUint64LEAt reads a little-endian uint64 from r at offset.
func ReadUint64LEAt(r io.ReaderAt, offset int64) (uint64, error) {
	buf := make([]byte, 8)
	if err := ReadAt(r, offset, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// Uint32LE returns the little-endian uint32 at b[off:].
func Uint32LE(b []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(b) {
		return 0, fmt.Errorf("uint32 at %d of %d: %w", off, len(b), ErrShort)
	}
	return binary.LittleEndian.Uint32(b[off:]), nil
}

// Int32LE returns the little-endian int32 at b[off:].
func Int32LE(b []byte, off int) (int32, error) {
	v, err := Uint32LE(b, off)
	//nolint:gosec // Two's complement reinterpretation is the point
	return int32(v), err
}

// Uint64LE returns the little-endian uint64 at b[off:].
func Uint64LE(b []byte, off int) (uint64, error) {
	if off < 0 || off+8 > len(b) {
		return 0, fmt.Errorf("uint64 at %d of %d: %w", off, len(b), ErrShort)
	}
	return binary.LittleEndian.Uint64(b[off:]), nil
}

// HasMagic reports whether b starts with magic.
func HasMagic(b []byte, magic string) bool {
	return len(b) >= len(magic) && string(b[:len(magic)]) == magic
}
