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

// Stream layout constants.
const (
	// NumChars is the number of literal symbols at the start of the main tree.
	NumChars = 256

	// BlockTypeVerbatim is the only block type this decoder handles.
	BlockTypeVerbatim = 1

	// NumPrimaryLengths is the largest length header stored in a main symbol.
	// A header equal to it means a length tree footer follows.
	NumPrimaryLengths = 7

	// MinMatch is added to every decoded match length.
	MinMatch = 2

	// NumSecondaryLengths is the length tree alphabet size.
	NumSecondaryLengths = 249

	// MaxMatch is the longest match a single symbol can describe.
	MaxMatch = NumPrimaryLengths + NumSecondaryLengths - 1 + MinMatch

	pretreeSymbols   = 20
	pretreeLenBits   = 4
	pretreeTableBits = 6
	mainTableBits    = 12
	lengthTableBits  = 12
	maxCodeLength    = 16

	minWindowBits     = 15
	maxWindowBits     = 21
	defaultWindowBits = 16
)

// extraBits holds the number of raw bits that follow each position slot.
var extraBits = [51]uint8{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7, 8, 8,
	9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
	14, 14, 15, 15, 16, 16, 17, 17, 17, 17,
	17, 17, 17, 17, 17, 17, 17, 17, 17, 17,
	17,
}

// positionBase holds the smallest formatted offset of each position slot.
var positionBase = [51]uint32{
	0, 1, 2, 3, 4, 6, 8, 12, 16, 24,
	32, 48, 64, 96, 128, 192, 256, 384, 512, 768,
	1024, 1536, 2048, 3072, 4096, 6144, 8192, 12288, 16384, 24576,
	32768, 49152, 65536, 98304, 131072, 196608, 262144, 393216, 524288, 655360,
	786432, 917504, 1048576, 1179648, 1310720, 1441792, 1572864, 1703936, 1835008, 1966080,
	2097152,
}

// WindowBits returns the log2 of windowSize, falling back to 16 when the
// result lies outside the range LZX defines.
func WindowBits(windowSize int) int {
	bits := 0
	for windowSize > 1 {
		windowSize >>= 1
		bits++
	}
	if bits < minWindowBits || bits > maxWindowBits {
		return defaultWindowBits
	}
	return bits
}

// PositionSlots returns the number of position slots for a window of
// 2^windowBits bytes.
func PositionSlots(windowBits int) int {
	switch windowBits {
	case 21:
		return 50
	case 20:
		return 42
	default:
		return windowBits << 1
	}
}

// PositionSlot returns the slot and extra-bit value that encode a formatted
// offset (match distance plus 2). It is the inverse of the decoder's
// positionBase lookup and is used by encoders.
func PositionSlot(formatted uint32) (slot int, extra uint32) {
	for s := len(positionBase) - 1; s >= 0; s-- {
		if positionBase[s] <= formatted {
			return s, formatted - positionBase[s]
		}
	}
	return 0, 0
}

// ExtraBits returns the number of raw bits that follow position slot s.
func ExtraBits(s int) int {
	return int(extraBits[s])
}
