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

package itss

import (
	"fmt"
	"io"

	"github.com/ZaparooProject/go-chm/internal/binary"
)

// Header sizes.
const (
	itsfHeaderSizeV2 = 0x58
	itsfHeaderSizeV3 = 0x60
	itspHeaderSize   = 0x54
)

// Header is the ITSF container header.
type Header struct {
	Version      uint32 // 2 or 3
	HeaderLength uint32
	Timestamp    uint32
	LangID       uint32 // Windows locale identifier
	DirOffset    int64  // Offset of the ITSP directory header
	DirLength    int64  // Length of the directory, header included
	DataOffset   int64  // Base of section 0 content data
}

// DirHeader is the ITSP directory header.
type DirHeader struct {
	Version   uint32
	Length    uint32 // Header length; pages start right after it
	PageSize  uint32
	Density   uint32
	Depth     uint32 // 1 = leaves only, 2 = one PMGI index level
	IndexRoot int32  // PMGI root page, -1 when Depth is 1
	FirstLeaf int32
	LastLeaf  int32
	NumPages  uint32
	LangID    uint32
}

// parseHeader reads the ITSF header at offset 0.
// Layout (little-endian):
//
//	Offset 0x00: "ITSF"
//	Offset 0x04: Version (4 bytes)
//	Offset 0x08: Header length (4 bytes)
//	Offset 0x0C: Unknown, usually 1 (4 bytes)
//	Offset 0x10: Timestamp (4 bytes)
//	Offset 0x14: Language ID (4 bytes)
//	Offset 0x18: Two GUIDs (32 bytes)
//	Offset 0x38: Header section 0 offset and length (16 bytes)
//	Offset 0x48: Directory offset (8 bytes)
//	Offset 0x50: Directory length (8 bytes)
//	Offset 0x58: Content data offset (8 bytes, version 3 only)
func parseHeader(r io.ReaderAt) (*Header, error) {
	buf, err := binary.ReadBytesAt(r, 0, itsfHeaderSizeV2)
	if err != nil {
		return nil, structural("ITSF header", err)
	}
	if !binary.HasMagic(buf, "ITSF") {
		return nil, structural("ITSF signature", fmt.Errorf("%w: %q", ErrInvalidMagic, buf[:4]))
	}

	h := &Header{}
	h.Version, _ = binary.Uint32LE(buf, 0x04)
	h.HeaderLength, _ = binary.Uint32LE(buf, 0x08)
	h.Timestamp, _ = binary.Uint32LE(buf, 0x10)
	h.LangID, _ = binary.Uint32LE(buf, 0x14)
	dirOffset, _ := binary.Uint64LE(buf, 0x48)
	dirLength, _ := binary.Uint64LE(buf, 0x50)
	if dirOffset > 1<<62 || dirLength > 1<<62 {
		return nil, structural("ITSF directory", fmt.Errorf("%w: offset %d length %d", ErrCorrupt, dirOffset, dirLength))
	}
	h.DirOffset = int64(dirOffset)
	h.DirLength = int64(dirLength)

	switch h.Version {
	case 3:
		dataOffset, err := binary.ReadUint64LEAt(r, 0x58)
		if err != nil {
			return nil, structural("ITSF data offset", err)
		}
		if dataOffset > 1<<62 {
			return nil, structural("ITSF data offset", fmt.Errorf("%w: %d", ErrCorrupt, dataOffset))
		}
		h.DataOffset = int64(dataOffset)
	case 2:
		h.DataOffset = h.DirOffset + h.DirLength
	default:
		return nil, structural("ITSF version", fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version))
	}

	if h.DataOffset < h.DirOffset+h.DirLength {
		return nil, structural("ITSF data offset", fmt.Errorf("%w: content at %d overlaps directory ending at %d",
			ErrCorrupt, h.DataOffset, h.DirOffset+h.DirLength))
	}
	return h, nil
}

// parseDirHeader reads the ITSP header at offset.
// Layout (little-endian):
//
//	Offset 0x00: "ITSP"
//	Offset 0x04: Version, 1 (4 bytes)
//	Offset 0x08: Header length, 0x54 (4 bytes)
//	Offset 0x0C: Unknown, 0x0a (4 bytes)
//	Offset 0x10: Directory page size (4 bytes)
//	Offset 0x14: Quickref density (4 bytes)
//	Offset 0x18: Index depth (4 bytes)
//	Offset 0x1C: Root index page, -1 if none (4 bytes)
//	Offset 0x20: First leaf page (4 bytes)
//	Offset 0x24: Last leaf page (4 bytes)
//	Offset 0x28: Unknown, -1 (4 bytes)
//	Offset 0x2C: Number of directory pages (4 bytes)
//	Offset 0x30: Language ID (4 bytes)
//	Offset 0x34: GUID (16 bytes)
func parseDirHeader(r io.ReaderAt, offset int64) (*DirHeader, error) {
	buf, err := binary.ReadBytesAt(r, offset, itspHeaderSize)
	if err != nil {
		return nil, structural("ITSP header", err)
	}
	if !binary.HasMagic(buf, "ITSP") {
		return nil, structural("ITSP signature", fmt.Errorf("%w: %q", ErrInvalidMagic, buf[:4]))
	}

	d := &DirHeader{}
	d.Version, _ = binary.Uint32LE(buf, 0x04)
	d.Length, _ = binary.Uint32LE(buf, 0x08)
	d.PageSize, _ = binary.Uint32LE(buf, 0x10)
	d.Density, _ = binary.Uint32LE(buf, 0x14)
	d.Depth, _ = binary.Uint32LE(buf, 0x18)
	d.IndexRoot, _ = binary.Int32LE(buf, 0x1C)
	d.FirstLeaf, _ = binary.Int32LE(buf, 0x20)
	d.LastLeaf, _ = binary.Int32LE(buf, 0x24)
	d.NumPages, _ = binary.Uint32LE(buf, 0x2C)
	d.LangID, _ = binary.Uint32LE(buf, 0x30)

	if d.Version != 1 {
		return nil, structural("ITSP version", fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.Version))
	}
	if d.Depth != 1 && d.Depth != 2 {
		return nil, structural("ITSP depth", fmt.Errorf("%w: %d", ErrUnsupportedDepth, d.Depth))
	}
	if d.Length < itspHeaderSize || d.Length > MaxPageSize {
		return nil, structural("ITSP length", fmt.Errorf("%w: %d", ErrCorrupt, d.Length))
	}
	if d.PageSize < leafHeaderSize || d.PageSize > MaxPageSize {
		return nil, structural("ITSP page size", fmt.Errorf("%w: %d", ErrCorrupt, d.PageSize))
	}
	if d.FirstLeaf < 0 || d.LastLeaf < d.FirstLeaf {
		return nil, structural("ITSP leaf range", fmt.Errorf("%w: first %d last %d", ErrCorrupt, d.FirstLeaf, d.LastLeaf))
	}
	if d.Depth == 2 && d.IndexRoot < 0 {
		return nil, structural("ITSP index root", fmt.Errorf("%w: %d", ErrCorrupt, d.IndexRoot))
	}
	return d, nil
}
