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

import "fmt"

// huffmanTable decodes one canonical Huffman code.
//
// The first 2^tableBits entries are indexed directly by the next tableBits
// bits of input. An entry below maxSymbols is a symbol; anything else is the
// id of an overflow trie node whose children live at entries 2*id and
// 2*id+1, selected by the following input bit.
type huffmanTable struct {
	table      []uint16
	lengths    []uint8
	tableBits  int
	maxSymbols int
}

// buildTable builds a decode table for lengths[:maxSymbols]. Codes are
// assigned length-first in symbol order. Incomplete codes are accepted and
// their unused slots decode to symbol 0.
func buildTable(lengths []uint8, tableBits, maxSymbols int) (*huffmanTable, error) {
	if len(lengths) < maxSymbols {
		return nil, fmt.Errorf("%w: %d lengths for %d symbols", ErrTableOverflow, len(lengths), maxSymbols)
	}

	table := make([]uint16, (1<<tableBits)+2*maxSymbols)
	tableMask := 1 << tableBits
	bitMask := tableMask >> 1
	nextNode := max(bitMask, maxSymbols)
	pos := 0
	bitNum := 1

	for ; bitNum <= tableBits; bitNum++ {
		for sym := range maxSymbols {
			if int(lengths[sym]) != bitNum {
				continue
			}
			leaf := pos
			pos += bitMask
			if pos > tableMask {
				return nil, fmt.Errorf("%w: length %d", ErrTableOverflow, bitNum)
			}
			for i := leaf; i < pos; i++ {
				//nolint:gosec // Safe: sym < maxSymbols <= 656
				table[i] = uint16(sym)
			}
		}
		bitMask >>= 1
	}

	if pos == tableMask {
		return &huffmanTable{table: table, lengths: lengths, tableBits: tableBits, maxSymbols: maxSymbols}, nil
	}

	// Direct slots in [pos, tableMask) stay zero. Longer codes hang off them
	// in the overflow trie; pos now carries 16 extra fraction bits.
	pos <<= 16
	tableMask <<= 16
	bitMask = 1 << 15

	for ; bitNum <= maxCodeLength; bitNum++ {
		for sym := range maxSymbols {
			if int(lengths[sym]) != bitNum {
				continue
			}
			leaf := pos >> 16
			for j := range bitNum - tableBits {
				if table[leaf] == 0 {
					if nextNode<<1+1 >= len(table) {
						return nil, fmt.Errorf("%w: node arena exhausted", ErrTableOverflow)
					}
					table[nextNode<<1] = 0
					table[nextNode<<1+1] = 0
					//nolint:gosec // Safe: bounded by len(table) above
					table[leaf] = uint16(nextNode)
					nextNode++
				}
				leaf = int(table[leaf]) << 1
				if (pos>>(15-j))&1 != 0 {
					leaf++
				}
				if leaf >= len(table) {
					return nil, fmt.Errorf("%w: node out of range", ErrTableOverflow)
				}
			}
			//nolint:gosec // Safe: sym < maxSymbols
			table[leaf] = uint16(sym)
			pos += bitMask
			if pos > tableMask {
				return nil, fmt.Errorf("%w: length %d", ErrTableOverflow, bitNum)
			}
		}
		bitMask >>= 1
	}

	return &huffmanTable{table: table, lengths: lengths, tableBits: tableBits, maxSymbols: maxSymbols}, nil
}

// decode reads one symbol. The direct window is peeked first and only the
// symbol's real code length is consumed afterwards.
func (h *huffmanTable) decode(br *bitReader) (int, error) {
	br.ensure(maxCodeLength)
	sym := int(h.table[br.Peek(h.tableBits)])
	depth := h.tableBits
	for sym >= h.maxSymbols {
		depth++
		if depth > maxCodeLength {
			return 0, fmt.Errorf("%w: code longer than %d bits", ErrCorrupt, maxCodeLength)
		}
		idx := sym<<1 | br.PeekBit(depth)
		if idx >= len(h.table) {
			return 0, fmt.Errorf("%w: trie index %d out of range", ErrCorrupt, idx)
		}
		sym = int(h.table[idx])
	}
	n := int(h.lengths[sym])
	if n == 0 {
		return 0, fmt.Errorf("%w: symbol %d has no code", ErrCorrupt, sym)
	}
	br.Remove(n)
	return sym, nil
}
