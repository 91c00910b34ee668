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

import "errors"

// Common errors returned by the LZX decoder. All of them describe a
// malformed or unsupported stream; none are recoverable by retrying.
var (
	// ErrUnsupportedBlockType indicates a block that is not a verbatim block.
	ErrUnsupportedBlockType = errors.New("unsupported LZX block type")

	// ErrTableOverflow indicates an over-subscribed Huffman code length list.
	ErrTableOverflow = errors.New("huffman table overflow")

	// ErrCorrupt indicates a stream that decodes to an impossible state.
	ErrCorrupt = errors.New("corrupt LZX stream")

	// ErrInvalidWindowSize indicates a non-positive window or output size.
	ErrInvalidWindowSize = errors.New("invalid LZX window size")
)
