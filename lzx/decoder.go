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

// Package lzx decodes the LZX variant used by CHM content streams.
//
// A stream is a run of fixed-size windows. Each window is decoded from its
// own compressed segment, but shares Huffman tables, repeated-offset
// registers and match history with the windows before it until the caller
// calls Reset at a reset-interval boundary. Only verbatim blocks are
// supported; E8 call translation is detected but not applied.
package lzx

import "fmt"

// Decoder holds the state carried from one window to the next.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	mainTree      *huffmanTable
	lengthTree    *huffmanTable
	mainLengths   []uint8
	lengthLengths []uint8
	history       []byte
	carry         []byte

	windowSize   int
	mainElements int

	blockType      int
	blockLength    int
	blockRemaining int

	r0, r1, r2 uint32

	translationSize uint32
	headerRead      bool
	translation     bool
}

// NewDecoder returns a decoder for a stream compressed with the given
// window size in bytes. Sizes LZX does not define fall back to 64 KiB.
func NewDecoder(windowSize int) (*Decoder, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindowSize, windowSize)
	}
	bits := WindowBits(windowSize)
	elements := NumChars + PositionSlots(bits)*8
	d := &Decoder{
		windowSize:    1 << bits,
		mainElements:  elements,
		mainLengths:   make([]uint8, elements),
		lengthLengths: make([]uint8, NumSecondaryLengths),
	}
	d.Reset()
	return d, nil
}

// Reset returns the decoder to the state at the start of a reset interval.
func (d *Decoder) Reset() {
	d.r0, d.r1, d.r2 = 1, 1, 1
	clear(d.mainLengths)
	clear(d.lengthLengths)
	d.mainTree = nil
	d.lengthTree = nil
	d.blockType = 0
	d.blockLength = 0
	d.blockRemaining = 0
	d.headerRead = false
	d.translationSize = 0
	d.translation = false
	d.history = d.history[:0]
	d.carry = nil
}

// WindowSize returns the effective LZX window size in bytes.
func (d *Decoder) WindowSize() int { return d.windowSize }

// MainElements returns the main tree alphabet size.
func (d *Decoder) MainElements() int { return d.mainElements }

// TranslationSize returns the value of the optional translation header read
// at the start of the current reset interval, or 0 if it was absent.
func (d *Decoder) TranslationSize() uint32 { return d.translationSize }

// TranslationDetected reports whether a block in the current reset interval
// assigned a code to the 0xE8 literal.
func (d *Decoder) TranslationDetected() bool { return d.translation }

// Registers returns the repeated-offset registers R0, R1 and R2.
func (d *Decoder) Registers() [3]uint32 { return [3]uint32{d.r0, d.r1, d.r2} }

// DecodeWindow decodes outLen bytes from the compressed segment src.
//
// Blocks may span window boundaries; an unfinished block continues in the
// next call with the same tables. A match that runs past outLen is carried
// into the next window.
func (d *Decoder) DecodeWindow(src []byte, outLen int) ([]byte, error) {
	if outLen <= 0 {
		return nil, fmt.Errorf("%w: output length %d", ErrInvalidWindowSize, outLen)
	}

	br := newBitReader(src)
	out := make([]byte, 0, outLen+MaxMatch)
	out = append(out, d.carry...)
	d.carry = nil

	if !d.headerRead {
		d.headerRead = true
		if br.ReadBits(1) == 1 {
			hi := br.ReadBits(16)
			lo := br.ReadBits(16)
			d.translationSize = hi<<16 | lo
		}
	}

	for len(out) < outLen {
		if d.blockRemaining == 0 {
			if err := d.readBlockHeader(br); err != nil {
				return nil, err
			}
		}

		budget := min(outLen-len(out), d.blockRemaining)
		start := len(out)
		var err error
		out, err = d.decodeRun(br, out, start+budget, budget == d.blockRemaining)
		if err != nil {
			return nil, err
		}
		produced := len(out) - start
		if produced > d.blockRemaining {
			return nil, fmt.Errorf("%w: match overruns block end", ErrCorrupt)
		}
		d.blockRemaining -= produced
	}

	if len(out) > outLen {
		d.carry = append([]byte(nil), out[outLen:]...)
		out = out[:outLen]
	}
	d.remember(out)
	return out, nil
}

// readBlockHeader reads a block header and rebuilds both trees.
func (d *Decoder) readBlockHeader(br *bitReader) error {
	d.blockType = int(br.ReadBits(3))
	if d.blockType != BlockTypeVerbatim {
		return fmt.Errorf("%w: %d", ErrUnsupportedBlockType, d.blockType)
	}
	hi := br.ReadBits(16)
	lo := br.ReadBits(8)
	d.blockLength = int(hi<<8 | lo)
	if d.blockLength == 0 {
		return fmt.Errorf("%w: empty block", ErrCorrupt)
	}

	if err := d.readLengths(br, d.mainLengths, 0, NumChars); err != nil {
		return fmt.Errorf("main tree: %w", err)
	}
	if err := d.readLengths(br, d.mainLengths, NumChars, d.mainElements); err != nil {
		return fmt.Errorf("main tree: %w", err)
	}
	mainTree, err := buildTable(d.mainLengths, mainTableBits, d.mainElements)
	if err != nil {
		return fmt.Errorf("main tree: %w", err)
	}

	if err := d.readLengths(br, d.lengthLengths, 0, NumSecondaryLengths); err != nil {
		return fmt.Errorf("length tree: %w", err)
	}
	lengthTree, err := buildTable(d.lengthLengths, lengthTableBits, NumSecondaryLengths)
	if err != nil {
		return fmt.Errorf("length tree: %w", err)
	}

	d.mainTree = mainTree
	d.lengthTree = lengthTree
	if d.mainLengths[0xE8] != 0 {
		d.translation = true
	}
	d.blockRemaining = d.blockLength
	return nil
}

// readLengths updates lengths[first:last] from a pretree-coded delta list.
// Runs may continue past last but never past the end of lengths.
func (d *Decoder) readLengths(br *bitReader, lengths []uint8, first, last int) error {
	var pre [pretreeSymbols]uint8
	for i := range pre {
		//nolint:gosec // Safe: 4-bit value
		pre[i] = uint8(br.ReadBits(pretreeLenBits))
	}
	pretree, err := buildTable(pre[:], pretreeTableBits, pretreeSymbols)
	if err != nil {
		return fmt.Errorf("pretree: %w", err)
	}

	for i := first; i < last; {
		z, err := pretree.decode(br)
		if err != nil {
			return err
		}
		switch {
		case z < 17:
			lengths[i] = lengthDelta(lengths[i], z)
			i++
		case z == 17, z == 18:
			n := 4 + int(br.ReadBits(4))
			if z == 18 {
				n = 20 + int(br.ReadBits(5))
			}
			if i+n > len(lengths) {
				return fmt.Errorf("%w: zero run of %d at %d", ErrCorrupt, n, i)
			}
			clear(lengths[i : i+n])
			i += n
		default:
			n := 4 + int(br.ReadBits(1))
			if i+n > len(lengths) {
				return fmt.Errorf("%w: repeat run of %d at %d", ErrCorrupt, n, i)
			}
			v, err := pretree.decode(br)
			if err != nil {
				return err
			}
			if v > 16 {
				return fmt.Errorf("%w: repeat of run symbol %d", ErrCorrupt, v)
			}
			nv := lengthDelta(lengths[i], v)
			for j := i; j < i+n; j++ {
				lengths[j] = nv
			}
			i += n
		}
	}
	return nil
}

// lengthDelta applies a pretree delta to a previous code length.
func lengthDelta(prev uint8, z int) uint8 {
	//nolint:gosec // Safe: result is in [0, 16]
	return uint8((int(prev) - z + 17) % 17)
}

// decodeRun emits symbols until out reaches end. When strict is set, end is
// also the end of the current block and no match may cross it.
func (d *Decoder) decodeRun(br *bitReader, out []byte, end int, strict bool) ([]byte, error) {
	r0, r1, r2 := d.r0, d.r1, d.r2
	defer func() { d.r0, d.r1, d.r2 = r0, r1, r2 }()

	for len(out) < end {
		sym, err := d.mainTree.decode(br)
		if err != nil {
			return nil, err
		}
		if sym < NumChars {
			out = append(out, byte(sym))
			continue
		}

		sym -= NumChars
		length := sym & NumPrimaryLengths
		if length == NumPrimaryLengths {
			footer, err := d.lengthTree.decode(br)
			if err != nil {
				return nil, err
			}
			length += footer
		}
		length += MinMatch

		var offset uint32
		switch slot := sym >> 3; slot {
		case 0:
			offset = r0
		case 1:
			offset = r1
			r1 = r0
			r0 = offset
		case 2:
			offset = r2
			r2 = r0
			r0 = offset
		case 3:
			offset = 1
			r2, r1, r0 = r1, r0, offset
		default:
			offset = positionBase[slot] - 2 + br.ReadBits(int(extraBits[slot]))
			r2, r1, r0 = r1, r0, offset
		}

		if strict && len(out)+length > end {
			return nil, fmt.Errorf("%w: match of %d crosses block end", ErrCorrupt, length)
		}
		if offset == 0 || int(offset) > len(out)+len(d.history) {
			return nil, fmt.Errorf("%w: offset %d beyond %d bytes of history",
				ErrCorrupt, offset, len(out)+len(d.history))
		}
		out = d.copyMatch(out, int(offset), length)
	}
	return out, nil
}

// copyMatch appends length bytes copied from offset bytes back. Sources
// before the start of out come from the history of earlier windows. The
// copy is bytewise so overlapping runs repeat their pattern.
func (d *Decoder) copyMatch(out []byte, offset, length int) []byte {
	for range length {
		src := len(out) - offset
		if src < 0 {
			out = append(out, d.history[len(d.history)+src])
		} else {
			out = append(out, out[src])
		}
	}
	return out
}

// remember appends a finished window to the history, keeping at most one
// LZX window of trailing bytes.
func (d *Decoder) remember(p []byte) {
	d.history = append(d.history, p...)
	if excess := len(d.history) - d.windowSize; excess > 0 {
		n := copy(d.history, d.history[excess:])
		d.history = d.history[:n]
	}
}
