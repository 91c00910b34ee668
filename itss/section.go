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
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-chm/internal/binary"
)

// Names of the MSCompressed section's metadata streams.
const (
	ContentName     = "::DataSpace/Storage/MSCompressed/Content"
	ControlDataName = "::DataSpace/Storage/MSCompressed/ControlData"
	ResetTableName  = "::DataSpace/Storage/MSCompressed/Transform/" +
		"{7FC28940-9D31-11D0-9B27-00A0C91E9C7C}/InstanceData/ResetTable"
)

const (
	controlDataSize   = 24
	resetHeaderSize   = 0x28
	maxFrameSize      = 1 << 24
	windowSizeUnit    = 0x8000
	controlDataMarker = "LZXC"
)

// ResetTable maps decoded windows to their compressed segments.
// Layout (little-endian):
//
//	Offset 0x00: Version, 2 (4 bytes)
//	Offset 0x04: Number of entries (4 bytes)
//	Offset 0x08: Entry size, 8 (4 bytes)
//	Offset 0x0C: Table offset, 0x28 (4 bytes)
//	Offset 0x10: Uncompressed length (8 bytes)
//	Offset 0x18: Compressed length (8 bytes)
//	Offset 0x20: Block length, bytes per window (8 bytes)
//	Offset 0x28: Compressed offset of each window (8 bytes each)
type ResetTable struct {
	Offsets            []uint64
	Version            uint32
	UncompressedLength uint64
	CompressedLength   uint64
	BlockLength        uint64
}

// ControlData is the LZXC control block.
// Layout (little-endian):
//
//	Offset 0x00: Size in dwords, 6 (4 bytes)
//	Offset 0x04: "LZXC"
//	Offset 0x08: Version (4 bytes)
//	Offset 0x0C: Reset interval in windows (4 bytes)
//	Offset 0x10: Window size, in 0x8000 units for version 2 (4 bytes)
//	Offset 0x14: Windows per reset (4 bytes)
type ControlData struct {
	Version         uint32
	ResetInterval   uint32
	WindowSize      uint32 // bytes
	WindowsPerReset uint32
}

func parseResetTable(b []byte, contentLength uint64) (*ResetTable, error) {
	if len(b) < resetHeaderSize {
		return nil, fmt.Errorf("%w: reset table of %d bytes", ErrCorrupt, len(b))
	}
	t := &ResetTable{}
	t.Version, _ = binary.Uint32LE(b, 0x00)
	count, _ := binary.Uint32LE(b, 0x04)
	entrySize, _ := binary.Uint32LE(b, 0x08)
	tableOffset, _ := binary.Uint32LE(b, 0x0C)
	t.UncompressedLength, _ = binary.Uint64LE(b, 0x10)
	t.CompressedLength, _ = binary.Uint64LE(b, 0x18)
	t.BlockLength, _ = binary.Uint64LE(b, 0x20)

	if entrySize != 8 {
		return nil, fmt.Errorf("%w: reset table entry size %d", ErrCorrupt, entrySize)
	}
	if count > MaxResetEntries {
		return nil, fmt.Errorf("%w: %d reset table entries (max %d)", ErrCorrupt, count, MaxResetEntries)
	}
	if t.BlockLength == 0 || t.BlockLength > maxFrameSize {
		return nil, fmt.Errorf("%w: block length %d", ErrCorrupt, t.BlockLength)
	}
	if count == 0 || uint64(tableOffset)+8*uint64(count) > uint64(len(b)) {
		return nil, fmt.Errorf("%w: %d entries at %d overrun table of %d bytes", ErrCorrupt, count, tableOffset, len(b))
	}

	t.Offsets = make([]uint64, count)
	for i := range t.Offsets {
		t.Offsets[i], _ = binary.Uint64LE(b, int(tableOffset)+8*i)
		if i > 0 && t.Offsets[i] <= t.Offsets[i-1] {
			return nil, fmt.Errorf("%w: reset table offset %d not increasing", ErrCorrupt, i)
		}
	}
	if last := t.Offsets[count-1]; last > contentLength {
		return nil, fmt.Errorf("%w: window offset %d beyond content length %d", ErrCorrupt, last, contentLength)
	}
	return t, nil
}

// windowLength returns the decoded size of window k.
func (t *ResetTable) windowLength(k int64) (int, error) {
	if t.UncompressedLength == 0 {
		return int(t.BlockLength), nil
	}
	remaining := int64(t.UncompressedLength) - k*int64(t.BlockLength) //nolint:gosec // bounded by MaxResetEntries*maxFrameSize
	if remaining <= 0 {
		return 0, fmt.Errorf("%w: window %d past uncompressed length %d", ErrCorrupt, k, t.UncompressedLength)
	}
	return int(min(remaining, int64(t.BlockLength))), nil //nolint:gosec // bounded by maxFrameSize
}

func parseControlData(b []byte) (*ControlData, error) {
	if len(b) < controlDataSize {
		return nil, fmt.Errorf("%w: control data of %d bytes", ErrCorrupt, len(b))
	}
	if !binary.HasMagic(b[4:], controlDataMarker) {
		return nil, fmt.Errorf("%w: control data marker %q", ErrInvalidMagic, b[4:8])
	}
	cd := &ControlData{}
	cd.Version, _ = binary.Uint32LE(b, 0x08)
	cd.ResetInterval, _ = binary.Uint32LE(b, 0x0C)
	cd.WindowSize, _ = binary.Uint32LE(b, 0x10)
	cd.WindowsPerReset, _ = binary.Uint32LE(b, 0x14)

	switch cd.Version {
	case 1:
	case 2:
		cd.WindowSize *= windowSizeUnit
	default:
		return nil, fmt.Errorf("%w: LZXC version %d", ErrUnsupportedVersion, cd.Version)
	}
	if cd.ResetInterval == 0 {
		return nil, fmt.Errorf("%w: zero reset interval", ErrCorrupt)
	}
	if cd.WindowSize == 0 {
		return nil, fmt.Errorf("%w: zero window size", ErrCorrupt)
	}
	return cd, nil
}

// compressedSection is the resolved MSCompressed section.
type compressedSection struct {
	reset         *ResetTable
	control       *ControlData
	contentOffset int64 // absolute offset of the LZX stream
	contentLength int64
}

// loadSection resolves the compressed section's metadata. A container with
// no MSCompressed content yields a nil section and no error.
func (c *Container) loadSection() (*compressedSection, error) {
	content, err := c.Resolve(ContentName)
	if errors.Is(err, ErrNotFound) {
		c.log.Debug("container has no compressed section")
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, err
	}
	if content.Compressed() {
		return nil, structural("MSCompressed content", fmt.Errorf("%w: content stream is itself compressed", ErrCorrupt))
	}

	controlEntry, err := c.Resolve(ControlDataName)
	if err != nil {
		return nil, structural("LZXC control data", err)
	}
	raw, err := c.readMetadata(controlEntry)
	if err != nil {
		return nil, structural("LZXC control data", err)
	}
	control, err := parseControlData(raw)
	if err != nil {
		return nil, structural("LZXC control data", err)
	}

	resetEntry, err := c.Resolve(ResetTableName)
	if err != nil {
		return nil, structural("reset table", err)
	}
	raw, err = c.readMetadata(resetEntry)
	if err != nil {
		return nil, structural("reset table", err)
	}
	reset, err := parseResetTable(raw, content.Length)
	if err != nil {
		return nil, structural("reset table", err)
	}

	if content.Offset > 1<<62 || content.Length > 1<<62 {
		return nil, structural("MSCompressed content", fmt.Errorf("%w: offset %d length %d",
			ErrCorrupt, content.Offset, content.Length))
	}
	s := &compressedSection{
		reset:         reset,
		control:       control,
		contentOffset: c.header.DataOffset + int64(content.Offset), //nolint:gosec // bounded above
		contentLength: int64(content.Length),                      //nolint:gosec // bounded above
	}
	c.log.Debug("loaded compressed section",
		"windows", len(reset.Offsets),
		"block_length", reset.BlockLength,
		"uncompressed_length", reset.UncompressedLength,
		"reset_interval", control.ResetInterval,
		"window_size", control.WindowSize)
	return s, nil
}

func (c *Container) readMetadata(e Entry) ([]byte, error) {
	if e.Compressed() {
		return nil, fmt.Errorf("%w: %s stored compressed", ErrCorrupt, e.Name)
	}
	if e.Length > MaxMetadataLength {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrCorrupt, e.Name, e.Length)
	}
	return c.Read(e)
}
