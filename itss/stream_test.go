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

package itss_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ZaparooProject/go-chm/internal/chmtest"
	"github.com/ZaparooProject/go-chm/itss"
)

func TestReadUncompressed(t *testing.T) {
	t.Parallel()

	files := []chmtest.File{
		{Name: "/a.txt", Data: []byte("first file")},
		{Name: "/b.txt", Data: text(9000, 3)},
		{Name: "/empty", Data: nil},
	}
	img := build(t, &chmtest.Builder{Files: files})
	c := open(t, newTrackingReader(img.Data), nil)

	for _, f := range files {
		e := resolve(t, c, f.Name)
		got, err := c.Read(e)
		if err != nil {
			t.Fatalf("Read(%q) error = %v", f.Name, err)
		}
		if !bytes.Equal(got, f.Data) {
			t.Errorf("Read(%q) returned %d bytes, want %d", f.Name, len(got), len(f.Data))
		}
		if len(f.Data) > 4 {
			part, err := c.ReadRange(e, 2, 3)
			if err != nil {
				t.Fatalf("ReadRange(%q) error = %v", f.Name, err)
			}
			if !bytes.Equal(part, f.Data[2:5]) {
				t.Errorf("ReadRange(%q, 2, 3) = %q, want %q", f.Name, part, f.Data[2:5])
			}
		}
	}
}

func TestReadCompressedRanges(t *testing.T) {
	t.Parallel()

	files := []chmtest.File{
		{Name: "/one.htm", Data: text(700, 1), Compressed: true},
		{Name: "/two.htm", Data: text(1500, 2), Compressed: true},
		{Name: "/three.htm", Data: text(90, 3), Compressed: true},
	}
	img := build(t, &chmtest.Builder{
		Files:   files,
		Encoder: chmtest.Encoder{FrameSize: 256, ResetInterval: 2},
	})

	for _, cache := range []int{0, itss.DefaultWindowCache} {
		c := open(t, newTrackingReader(img.Data), &itss.Options{WindowCache: cache})
		for _, f := range files {
			e := resolve(t, c, f.Name)
			full, err := c.Read(e)
			if err != nil {
				t.Fatalf("cache %d: Read(%q) error = %v", cache, f.Name, err)
			}
			if !bytes.Equal(full, f.Data) {
				t.Fatalf("cache %d: Read(%q) content mismatch", cache, f.Name)
			}

			// Any split into adjacent ranges reassembles the entry.
			for _, a := range []int{0, 1, 255, 256, 257, len(f.Data) / 2, len(f.Data) - 1, len(f.Data)} {
				if a > len(f.Data) {
					continue
				}
				left, err := c.ReadRange(e, 0, int64(a))
				if err != nil {
					t.Fatalf("cache %d: ReadRange(%q, 0, %d) error = %v", cache, f.Name, a, err)
				}
				right, err := c.ReadRange(e, int64(a), int64(len(f.Data)-a))
				if err != nil {
					t.Fatalf("cache %d: ReadRange(%q, %d) error = %v", cache, f.Name, a, err)
				}
				if !bytes.Equal(append(left, right...), f.Data) {
					t.Errorf("cache %d: %q split at %d does not reassemble", cache, f.Name, a)
				}
			}
		}
	}
}

func TestReadExactWindowMultiple(t *testing.T) {
	t.Parallel()

	data := text(4*256, 9)
	img := build(t, &chmtest.Builder{
		Files:   []chmtest.File{{Name: "/exact.htm", Data: data, Compressed: true}},
		Encoder: chmtest.Encoder{FrameSize: 256, ResetInterval: 2},
	})
	c := open(t, newTrackingReader(img.Data), nil)

	rt := c.ResetTable()
	if len(rt.Offsets) != 4 || rt.UncompressedLength != 1024 {
		t.Errorf("reset table has %d windows for %d bytes, want 4 for 1024", len(rt.Offsets), rt.UncompressedLength)
	}
	got, err := c.Read(resolve(t, c, "/exact.htm"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Read() content mismatch")
	}
}

// segmentReads returns the compressed windows whose segments were read.
func segmentReads(r *trackingReader, img *chmtest.Image) []int {
	content, _ := img.Entry(chmtest.ContentName)
	base := img.DataOffset + int64(content.Offset) //nolint:gosec // test image offsets are small
	var windows []int
	for _, s := range r.snapshot() {
		for k, off := range img.Stream.Offsets {
			if s.off == base+int64(off) { //nolint:gosec // test image offsets are small
				windows = append(windows, k)
			}
		}
	}
	return windows
}

func TestReadDecodesFromResetBoundary(t *testing.T) {
	t.Parallel()

	data := text(8*128, 5)
	img := build(t, &chmtest.Builder{
		Files:   []chmtest.File{{Name: "/big.htm", Data: data, Compressed: true}},
		Encoder: chmtest.Encoder{FrameSize: 128, ResetInterval: 4},
	})
	r := newTrackingReader(img.Data)
	c := open(t, r, &itss.Options{WindowCache: 0})
	e := resolve(t, c, "/big.htm")

	r.reset()
	got, err := c.ReadRange(e, 5*128+10, 5)
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	if !bytes.Equal(got, data[5*128+10:5*128+15]) {
		t.Errorf("ReadRange() = %q, want %q", got, data[5*128+10:5*128+15])
	}
	if windows := segmentReads(r, img); len(windows) != 2 || windows[0] != 4 || windows[1] != 5 {
		t.Errorf("decoded windows %v, want [4 5]", windows)
	}

	// A range spanning windows 2 and 3 decodes 0 through 3 once each.
	r.reset()
	if _, err := c.ReadRange(e, 2*128+100, 100); err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	if windows := segmentReads(r, img); len(windows) != 4 || windows[0] != 0 || windows[3] != 3 {
		t.Errorf("decoded windows %v, want [0 1 2 3]", windows)
	}
}

func TestReadUsesWindowCache(t *testing.T) {
	t.Parallel()

	data := text(8*128, 6)
	img := build(t, &chmtest.Builder{
		Files:   []chmtest.File{{Name: "/big.htm", Data: data, Compressed: true}},
		Encoder: chmtest.Encoder{FrameSize: 128, ResetInterval: 4},
	})
	r := newTrackingReader(img.Data)
	c := open(t, r, nil)
	e := resolve(t, c, "/big.htm")

	if _, err := c.ReadRange(e, 6*128, 10); err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	if c.CachedWindows() != 3 {
		t.Errorf("CachedWindows() = %d, want 3", c.CachedWindows())
	}

	r.reset()
	got, err := c.ReadRange(e, 5*128, 128)
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	if !bytes.Equal(got, data[5*128:6*128]) {
		t.Error("cached window content mismatch")
	}
	if windows := segmentReads(r, img); len(windows) != 0 {
		t.Errorf("cached read decoded windows %v", windows)
	}
}

func TestReadRangeErrors(t *testing.T) {
	t.Parallel()

	img := build(t, &chmtest.Builder{
		Files: []chmtest.File{{Name: "/x.htm", Data: text(100, 1), Compressed: true}},
	})
	c := open(t, newTrackingReader(img.Data), nil)
	e := resolve(t, c, "/x.htm")

	tests := []struct {
		name   string
		off, n int64
	}{
		{"past end", 90, 11},
		{"negative offset", -1, 2},
		{"negative size", 0, -1},
		{"offset beyond length", 101, 0},
	}
	for _, tt := range tests {
		_, err := c.ReadRange(e, tt.off, tt.n)
		var re *itss.RangeError
		if !errors.As(err, &re) {
			t.Errorf("%s: ReadRange() error = %v, want *RangeError", tt.name, err)
			continue
		}
		if re.Name != "/x.htm" || re.Length != 100 {
			t.Errorf("%s: RangeError = %+v", tt.name, re)
		}
	}

	got, err := c.ReadRange(e, 100, 0)
	if err != nil || len(got) != 0 {
		t.Errorf("ReadRange(end, 0) = (%q, %v), want empty", got, err)
	}
}

func TestReadCorruptSegment(t *testing.T) {
	t.Parallel()

	data := text(600, 4)
	img := build(t, &chmtest.Builder{
		Files:   []chmtest.File{{Name: "/bad.htm", Data: data, Compressed: true}},
		Encoder: chmtest.Encoder{FrameSize: 256, ResetInterval: 1},
	})
	content, _ := img.Entry(chmtest.ContentName)
	// Turn the first block of window 1 into an aligned offset block.
	seg := img.DataOffset + int64(content.Offset) + int64(img.Stream.Offsets[1]) //nolint:gosec // small
	img.Data[seg+1] = 0x20
	img.Data[seg] = 0x00

	r := newTrackingReader(img.Data)
	c := open(t, r, &itss.Options{WindowCache: 0})
	e := resolve(t, c, "/bad.htm")

	if _, err := c.ReadRange(e, 0, 256); err != nil {
		t.Errorf("ReadRange(window 0) error = %v", err)
	}
	_, err := c.ReadRange(e, 256, 10)
	var se *itss.StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("ReadRange(window 1) error = %v, want *StructuralError", err)
	}
	if r.closed != 0 {
		t.Errorf("source closed %d times after a failed read, want 0", r.closed)
	}
	// The container stays usable after a failed read.
	if _, err := c.ReadRange(e, 10, 10); err != nil {
		t.Errorf("ReadRange after failure error = %v", err)
	}
}

func TestEntryReader(t *testing.T) {
	t.Parallel()

	data := text(3000, 8)
	img := build(t, &chmtest.Builder{
		Files:   []chmtest.File{{Name: "/r.htm", Data: data, Compressed: true}},
		Encoder: chmtest.Encoder{FrameSize: 512},
	})
	c := open(t, newTrackingReader(img.Data), nil)
	sr := c.EntryReader(resolve(t, c, "/r.htm"))

	if sr.Size() != 3000 {
		t.Errorf("Size() = %d, want 3000", sr.Size())
	}
	got, err := io.ReadAll(sr)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("ReadAll() content mismatch")
	}

	buf := make([]byte, 100)
	n, err := sr.ReadAt(buf, 2950)
	if n != 50 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadAt(2950) = (%d, %v), want (50, EOF)", n, err)
	}
	if !bytes.Equal(buf[:n], data[2950:]) {
		t.Error("ReadAt tail content mismatch")
	}
}
