// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of go-chm.
//
// go-chm is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-chm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-chm.  If not, see <https://www.gnu.org/licenses/>.

package lzx

// bitReader reads an LZX bitstream: 16-bit little-endian words whose bits
// are consumed most significant first. Reads past the end yield zeros.
type bitReader struct {
	data  []byte
	pos   int    // next byte to load
	value uint64 // low avail bits are unread
	avail int
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

// ensure refills in 16-bit steps until at least n bits are buffered.
func (br *bitReader) ensure(n int) {
	for br.avail < n {
		var word uint64
		if br.pos < len(br.data) {
			word = uint64(br.data[br.pos])
		}
		if br.pos+1 < len(br.data) {
			word |= uint64(br.data[br.pos+1]) << 8
		}
		br.pos += 2
		br.value = br.value<<16 | word
		br.avail += 16
	}
}

// Peek returns the next n bits without consuming them.
func (br *bitReader) Peek(n int) uint32 {
	if n == 0 {
		return 0
	}
	br.ensure(n)
	//nolint:gosec // Safe: n is at most 32
	return uint32((br.value >> (br.avail - n)) & (1<<n - 1))
}

// PeekBit returns the i-th bit ahead (1-based) without consuming anything.
func (br *bitReader) PeekBit(i int) int {
	br.ensure(i)
	return int((br.value >> (br.avail - i)) & 1)
}

// Remove discards n bits that were previously peeked.
func (br *bitReader) Remove(n int) {
	br.ensure(n)
	br.avail -= n
	br.value &= 1<<br.avail - 1
}

// ReadBits returns and consumes the next n bits (n <= 32).
func (br *bitReader) ReadBits(n int) uint32 {
	v := br.Peek(n)
	br.Remove(n)
	return v
}
