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
	"github.com/ZaparooProject/go-chm/lzx"
)

// Read returns the full contents of e.
func (c *Container) Read(e Entry) ([]byte, error) {
	if e.Length > MaxEntryLength {
		return nil, structural("entry length", fmt.Errorf("%w: %s is %d bytes (max %d)",
			ErrCorrupt, e.Name, e.Length, MaxEntryLength))
	}
	return c.ReadRange(e, 0, int64(e.Length))
}

// ReadRange returns n bytes of e starting at off. The range must lie within
// the entry; there is no short read.
//
// A *StructuralError from a damaged window or segment leaves the source open
// and the container usable; other entries can still be read. Only Open
// closes the source on failure.
func (c *Container) ReadRange(e Entry, off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || e.Length > MaxEntryLength || uint64(off)+uint64(n) > e.Length {
		return nil, &RangeError{Name: e.Name, Offset: off, Size: n, Length: int64(min(e.Length, 1<<62))} //nolint:gosec // clamped
	}
	if n == 0 {
		return []byte{}, nil
	}

	switch e.Section {
	case SectionUncompressed:
		if e.Offset > 1<<62 {
			return nil, structural("section 0 offset", fmt.Errorf("%w: %d", ErrCorrupt, e.Offset))
		}
		pos := c.header.DataOffset + int64(e.Offset) + off //nolint:gosec // bounded above
		data, err := binary.ReadBytesAt(c.r, pos, int(n))
		if err != nil {
			return nil, structural("section 0 data", err)
		}
		return data, nil
	case SectionCompressed:
		if e.Offset > 1<<62 {
			return nil, structural("section 1 offset", fmt.Errorf("%w: %d", ErrCorrupt, e.Offset))
		}
		return c.readCompressed(int64(e.Offset)+off, n) //nolint:gosec // bounded above
	default:
		return nil, structural("entry section", fmt.Errorf("%w: section %d", ErrCorrupt, e.Section))
	}
}

// EntryReader returns a reader over the contents of e. Reads of compressed
// entries decode only the windows they touch.
func (c *Container) EntryReader(e Entry) *io.SectionReader {
	return io.NewSectionReader(&entryReaderAt{c: c, e: e}, 0, int64(min(e.Length, MaxEntryLength))) //nolint:gosec // clamped
}

type entryReaderAt struct {
	c *Container
	e Entry
}

func (r *entryReaderAt) ReadAt(p []byte, off int64) (int, error) {
	size := int64(r.e.Length) //nolint:gosec // EntryReader clamps the section length
	if off >= size {
		return 0, io.EOF
	}
	n := min(int64(len(p)), size-off)
	data, err := r.c.ReadRange(r.e, off, n)
	if err != nil {
		return 0, err
	}
	copy(p, data)
	if n < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// readCompressed materializes [start, start+n) of the decompressed stream.
func (c *Container) readCompressed(start, n int64) ([]byte, error) {
	s := c.section
	if s == nil {
		return nil, structural("MSCompressed section", ErrNoCompressedSection)
	}
	frame := int64(s.reset.BlockLength) //nolint:gosec // bounded by maxFrameSize
	if ul := s.reset.UncompressedLength; ul > 0 && uint64(start+n) > ul {
		return nil, structural("section 1 range", fmt.Errorf("%w: [%d, %d) beyond stream of %d bytes",
			ErrCorrupt, start, start+n, ul))
	}

	first := start / frame
	last := (start + n - 1) / frame
	sess := &session{c: c, s: s, next: -1}
	out := make([]byte, 0, n)

	for w := first; w <= last; w++ {
		data, err := sess.window(w)
		if err != nil {
			return nil, err
		}
		lo := int64(0)
		if w == first {
			lo = start - w*frame
		}
		hi := min(int64(len(data)), start+n-w*frame)
		if lo > hi {
			return nil, structural("section 1 range", fmt.Errorf("%w: window %d is %d bytes", ErrCorrupt, w, len(data)))
		}
		out = append(out, data[lo:hi]...)
	}
	if int64(len(out)) != n {
		return nil, structural("section 1 range", fmt.Errorf("%w: decoded %d of %d bytes", ErrCorrupt, len(out), n))
	}
	return out, nil
}

// session is one decoding pass. Its decoder is never shared between calls.
type session struct {
	c    *Container
	s    *compressedSection
	dec  *lzx.Decoder
	next int64 // window dec decodes next, -1 when dec holds no usable state
}

// window returns the decoded window w, from the cache when possible.
// Otherwise decoding restarts at w's reset boundary, or continues from the
// decoder's position when that already lies inside the same reset group.
func (ss *session) window(w int64) ([]byte, error) {
	if data, ok := ss.c.cache.get(w); ok {
		return data, nil
	}

	interval := int64(ss.s.control.ResetInterval)
	from := w - w%interval
	if ss.dec == nil || ss.next <= from || ss.next > w {
		if ss.dec == nil {
			dec, err := lzx.NewDecoder(int(ss.s.control.WindowSize))
			if err != nil {
				return nil, structural("LZXC window size", err)
			}
			ss.dec = dec
		}
		ss.next = from
	}

	var data []byte
	for ; ss.next <= w; ss.next++ {
		if ss.next%interval == 0 {
			ss.dec.Reset()
		}
		var err error
		if data, err = ss.decode(ss.next); err != nil {
			ss.next = -1
			return nil, err
		}
		ss.c.cache.add(ss.next, data)
	}
	return data, nil
}

func (ss *session) decode(k int64) ([]byte, error) {
	offsets := ss.s.reset.Offsets
	if k >= int64(len(offsets)) {
		return nil, structural("reset table", fmt.Errorf("%w: window %d of %d", ErrCorrupt, k, len(offsets)))
	}
	segStart := int64(offsets[k]) //nolint:gosec // bounded by contentLength
	segEnd := ss.s.contentLength
	if k+1 < int64(len(offsets)) {
		segEnd = int64(offsets[k+1]) //nolint:gosec // bounded by contentLength
	}
	seg, err := binary.ReadBytesAt(ss.c.r, ss.s.contentOffset+segStart, int(segEnd-segStart))
	if err != nil {
		return nil, structural("LZX segment", err)
	}
	outLen, err := ss.s.reset.windowLength(k)
	if err != nil {
		return nil, structural("reset table", err)
	}

	data, err := ss.dec.DecodeWindow(seg, outLen)
	if err != nil {
		return nil, structural(fmt.Sprintf("LZX window %d", k), err)
	}
	ss.c.log.Debug("decoded window", "window", k, "compressed", len(seg), "decoded", len(data))
	return data, nil
}
