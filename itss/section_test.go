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
	"encoding/binary"
	"errors"
	"testing"
)

func controlBytes(version, interval, window uint32, marker string) []byte {
	b := make([]byte, 28)
	binary.LittleEndian.PutUint32(b[0:], 6)
	copy(b[4:], marker)
	binary.LittleEndian.PutUint32(b[8:], version)
	binary.LittleEndian.PutUint32(b[12:], interval)
	binary.LittleEndian.PutUint32(b[16:], window)
	binary.LittleEndian.PutUint32(b[20:], 2)
	return b
}

func TestParseControlData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr    error
		name       string
		data       []byte
		wantWindow uint32
	}{
		{name: "version 2 units", data: controlBytes(2, 2, 2, "LZXC"), wantWindow: 0x10000},
		{name: "version 1 bytes", data: controlBytes(1, 4, 0x8000, "LZXC"), wantWindow: 0x8000},
		{name: "bad marker", data: controlBytes(2, 2, 2, "LZXD"), wantErr: ErrInvalidMagic},
		{name: "version 3", data: controlBytes(3, 2, 2, "LZXC"), wantErr: ErrUnsupportedVersion},
		{name: "zero interval", data: controlBytes(2, 0, 2, "LZXC"), wantErr: ErrCorrupt},
		{name: "zero window", data: controlBytes(2, 2, 0, "LZXC"), wantErr: ErrCorrupt},
		{name: "short", data: controlBytes(2, 2, 2, "LZXC")[:20], wantErr: ErrCorrupt},
	}
	for _, tt := range tests {
		cd, err := parseControlData(tt.data)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%s: parseControlData() error = %v, want %v", tt.name, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: parseControlData() error = %v", tt.name, err)
			continue
		}
		if cd.WindowSize != tt.wantWindow {
			t.Errorf("%s: WindowSize = 0x%X, want 0x%X", tt.name, cd.WindowSize, tt.wantWindow)
		}
	}
}

func resetBytes(entrySize uint32, uncompressed, block uint64, offsets ...uint64) []byte {
	b := make([]byte, resetHeaderSize+8*len(offsets))
	le := binary.LittleEndian
	le.PutUint32(b[0:], 2)
	le.PutUint32(b[4:], uint32(len(offsets))) //nolint:gosec // test sizes are small
	le.PutUint32(b[8:], entrySize)
	le.PutUint32(b[12:], resetHeaderSize)
	le.PutUint64(b[16:], uncompressed)
	le.PutUint64(b[32:], block)
	for i, off := range offsets {
		le.PutUint64(b[resetHeaderSize+8*i:], off)
	}
	return b
}

func TestParseResetTable(t *testing.T) {
	t.Parallel()

	rt, err := parseResetTable(resetBytes(8, 0x18000, 0x8000, 0, 100, 250), 300)
	if err != nil {
		t.Fatalf("parseResetTable() error = %v", err)
	}
	if len(rt.Offsets) != 3 || rt.Offsets[2] != 250 {
		t.Errorf("Offsets = %v", rt.Offsets)
	}

	bad := []struct {
		name string
		data []byte
	}{
		{"entry size 4", resetBytes(4, 10, 0x8000, 0)},
		{"no entries", resetBytes(8, 10, 0x8000)},
		{"zero block length", resetBytes(8, 10, 0, 0)},
		{"decreasing offsets", resetBytes(8, 10, 0x8000, 0, 50, 40)},
		{"offset beyond content", resetBytes(8, 10, 0x8000, 0, 500)},
		{"truncated table", resetBytes(8, 10, 0x8000, 0, 50)[:resetHeaderSize+8]},
		{"short header", make([]byte, 16)},
	}
	for _, tt := range bad {
		if _, err := parseResetTable(tt.data, 300); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: parseResetTable() error = %v, want ErrCorrupt", tt.name, err)
		}
	}
}

func TestWindowLength(t *testing.T) {
	t.Parallel()

	rt := &ResetTable{UncompressedLength: 0x8000*2 + 100, BlockLength: 0x8000}
	tests := []struct {
		k    int64
		want int
	}{
		{0, 0x8000},
		{1, 0x8000},
		{2, 100},
	}
	for _, tt := range tests {
		got, err := rt.windowLength(tt.k)
		if err != nil || got != tt.want {
			t.Errorf("windowLength(%d) = (%d, %v), want %d", tt.k, got, err, tt.want)
		}
	}
	if _, err := rt.windowLength(3); !errors.Is(err, ErrCorrupt) {
		t.Errorf("windowLength(3) error = %v, want ErrCorrupt", err)
	}

	unknown := &ResetTable{BlockLength: 0x8000}
	if got, err := unknown.windowLength(7); err != nil || got != 0x8000 {
		t.Errorf("windowLength without uncompressed length = (%d, %v)", got, err)
	}
}

func TestStructuralErrorWrapping(t *testing.T) {
	t.Parallel()

	inner := structural("reset table", ErrCorrupt)
	outer := structural("LZX window 3", inner)
	var se *StructuralError
	if !errors.As(outer, &se) || se.Field != "reset table" {
		t.Errorf("structural() rewrapped an existing StructuralError: %v", outer)
	}
	if !errors.Is(outer, ErrCorrupt) {
		t.Error("errors.Is(structural(...), ErrCorrupt) = false")
	}
}

func TestWindowCacheDisabled(t *testing.T) {
	t.Parallel()

	wc, err := newWindowCache(0)
	if err != nil {
		t.Fatalf("newWindowCache(0) error = %v", err)
	}
	wc.add(1, []byte("x"))
	if _, ok := wc.get(1); ok {
		t.Error("disabled cache returned a window")
	}
	if wc.len() != 0 {
		t.Errorf("len() = %d, want 0", wc.len())
	}
	wc.purge()

	wc, err = newWindowCache(2)
	if err != nil {
		t.Fatalf("newWindowCache(2) error = %v", err)
	}
	for k := range int64(3) {
		wc.add(k, []byte{byte(k)})
	}
	if _, ok := wc.get(0); ok {
		t.Error("least recently used window survived eviction")
	}
	if got, ok := wc.get(2); !ok || got[0] != 2 {
		t.Errorf("get(2) = (%v, %v)", got, ok)
	}
}
