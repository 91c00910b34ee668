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
	"iter"
	"strings"

	"github.com/ZaparooProject/go-chm/internal/binary"
)

const (
	leafHeaderSize  = 20
	indexHeaderSize = 8
	maxEncintLen    = 9
)

// ReadEncint decodes a directory variable-length integer starting at b[pos]:
// 7 bits per byte, most significant group first, high bit set on every byte
// but the last. It returns the value and the position after it.
func ReadEncint(b []byte, pos int) (uint64, int, error) {
	if pos < 0 || pos > len(b) {
		return 0, pos, fmt.Errorf("%w: encint at %d outside %d bytes", ErrCorrupt, pos, len(b))
	}
	var v uint64
	for i := range maxEncintLen {
		if i >= len(b)-pos {
			return 0, pos, fmt.Errorf("%w: truncated encint at %d", ErrCorrupt, pos)
		}
		c := b[pos+i]
		v = v<<7 | uint64(c&0x7F)
		if c&0x80 == 0 {
			return v, pos + i + 1, nil
		}
	}
	return 0, pos, fmt.Errorf("%w: encint at %d longer than %d bytes", ErrCorrupt, pos, maxEncintLen)
}

// leafPage is one PMGL page.
// Layout:
//
//	Offset 0x00: "PMGL"
//	Offset 0x04: Free space at the end of the page (4 bytes)
//	Offset 0x08: Always 0 (4 bytes)
//	Offset 0x0C: Previous leaf page, -1 if none (4 bytes)
//	Offset 0x10: Next leaf page, -1 if none (4 bytes)
//	Offset 0x14: Entries
type leafPage struct {
	body   []byte
	number int32
	next   int32
}

// indexPage is one PMGI page: "PMGI", free space, then (name, page) pairs.
type indexPage struct {
	entries []indexEntry
}

type indexEntry struct {
	name string // lowercased
	page int32
}

func (c *Container) pageOffset(n int32) int64 {
	return c.pagesOffset + int64(n)*int64(c.dir.PageSize)
}

func (c *Container) readPage(n int32, magic string) ([]byte, error) {
	end := c.pageOffset(n+1) - c.header.DirOffset
	if n < 0 || end > c.header.DirLength {
		return nil, structural("directory page", fmt.Errorf("%w: page %d outside directory", ErrCorrupt, n))
	}
	buf, err := binary.ReadBytesAt(c.r, c.pageOffset(n), int(c.dir.PageSize))
	if err != nil {
		return nil, structural("directory page", err)
	}
	if !binary.HasMagic(buf, magic) {
		return nil, structural(magic+" signature", fmt.Errorf("%w: page %d", ErrInvalidMagic, n))
	}
	return buf, nil
}

// pageBody returns the used part of a page after its header.
func pageBody(buf []byte, header int, n int32) ([]byte, error) {
	free, err := binary.Uint32LE(buf, 4)
	if err != nil {
		return nil, err
	}
	if int64(free) > int64(len(buf)-header) {
		return nil, fmt.Errorf("%w: page %d free space %d exceeds page", ErrCorrupt, n, free)
	}
	return buf[header : len(buf)-int(free)], nil
}

func (c *Container) readLeaf(n int32) (*leafPage, error) {
	buf, err := c.readPage(n, "PMGL")
	if err != nil {
		return nil, err
	}
	body, err := pageBody(buf, leafHeaderSize, n)
	if err != nil {
		return nil, structural("PMGL free space", err)
	}
	next, _ := binary.Int32LE(buf, 0x10)
	return &leafPage{number: n, next: next, body: body}, nil
}

// each calls fn for every entry of the page, stopping when fn returns false.
func (p *leafPage) each(c *Container, fn func(Entry) bool) error {
	for pos := 0; pos < len(p.body); {
		var e Entry
		var err error
		if e, pos, err = c.parseEntry(p.body, pos); err != nil {
			return structural("PMGL entry", fmt.Errorf("page %d: %w", p.number, err))
		}
		if !fn(e) {
			return nil
		}
	}
	return nil
}

func (c *Container) parseEntry(b []byte, pos int) (Entry, int, error) {
	nameLen, pos, err := ReadEncint(b, pos)
	if err != nil {
		return Entry{}, pos, err
	}
	if nameLen > uint64(len(b)-pos) {
		return Entry{}, pos, fmt.Errorf("%w: name of %d bytes at %d", ErrCorrupt, nameLen, pos)
	}
	e := Entry{Name: c.decodeName(b[pos : pos+int(nameLen)])}
	pos += int(nameLen)
	if e.Section, pos, err = ReadEncint(b, pos); err != nil {
		return Entry{}, pos, err
	}
	if e.Offset, pos, err = ReadEncint(b, pos); err != nil {
		return Entry{}, pos, err
	}
	if e.Length, pos, err = ReadEncint(b, pos); err != nil {
		return Entry{}, pos, err
	}
	return e, pos, nil
}

func (c *Container) readIndex(n int32) (*indexPage, error) {
	buf, err := c.readPage(n, "PMGI")
	if err != nil {
		return nil, err
	}
	body, err := pageBody(buf, indexHeaderSize, n)
	if err != nil {
		return nil, structural("PMGI free space", err)
	}

	p := &indexPage{}
	for pos := 0; pos < len(body); {
		nameLen, next, err := ReadEncint(body, pos)
		if err != nil {
			return nil, structural("PMGI entry", err)
		}
		pos = next
		if nameLen > uint64(len(body)-pos) {
			return nil, structural("PMGI entry", fmt.Errorf("%w: name of %d bytes", ErrCorrupt, nameLen))
		}
		name := strings.ToLower(c.decodeName(body[pos : pos+int(nameLen)]))
		pos += int(nameLen)
		page, next, err := ReadEncint(body, pos)
		if err != nil {
			return nil, structural("PMGI entry", err)
		}
		pos = next
		if page > uint64(c.dir.LastLeaf) || int64(page) < int64(c.dir.FirstLeaf) {
			return nil, structural("PMGI entry", fmt.Errorf("%w: child page %d outside leaves", ErrCorrupt, page))
		}
		p.entries = append(p.entries, indexEntry{name: name, page: int32(page)}) //nolint:gosec // bounded above
	}
	return p, nil
}

// walkLeaves visits leaf pages from start following next pointers. It stops
// after the last leaf or a -1 pointer, or when visit returns true. At most
// LastLeaf-FirstLeaf+1 pages are visited, and never more than the directory
// holds.
func (c *Container) walkLeaves(start int32, visit func(*leafPage) (bool, error)) error {
	bound := int(min(int64(c.dir.LastLeaf)-int64(c.dir.FirstLeaf)+1, c.numPages))
	n := start
	for visits := 0; n != -1; visits++ {
		if visits >= bound {
			return structural("PMGL chain", fmt.Errorf("%w: more than %d pages from page %d", ErrWalkBound, bound, start))
		}
		p, err := c.readLeaf(n)
		if err != nil {
			return err
		}
		stop, err := visit(p)
		if err != nil || stop {
			return err
		}
		if n == c.dir.LastLeaf {
			return nil
		}
		n = p.next
	}
	return nil
}

// Entries walks the directory from the first leaf page and yields every
// entry match accepts, or every entry when match is nil. Each call starts
// a fresh walk. A directory error is yielded once and ends the sequence.
func (c *Container) Entries(match func(Entry) bool) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		stopped := false
		err := c.walkLeaves(c.dir.FirstLeaf, func(p *leafPage) (bool, error) {
			err := p.each(c, func(e Entry) bool {
				if match != nil && !match(e) {
					return true
				}
				stopped = !yield(e, nil)
				return !stopped
			})
			return stopped, err
		})
		if err != nil && !stopped {
			yield(Entry{}, err)
		}
	}
}

// Resolve finds an entry by name, ignoring case.
//
// With a PMGI index the scan starts at the page of the last index entry
// sorting before name; without one it starts at the first leaf. The scan
// follows next pointers until the last leaf. A missing name yields a
// *NotFoundError.
func (c *Container) Resolve(name string) (Entry, error) {
	target := strings.ToLower(name)
	start := c.dir.FirstLeaf
	if c.dir.Depth == 2 {
		var err error
		if start, err = c.indexStart(target); err != nil {
			return Entry{}, err
		}
	}
	c.log.Debug("resolving entry", "name", name, "start_page", start)

	var found Entry
	ok := false
	err := c.walkLeaves(start, func(p *leafPage) (bool, error) {
		err := p.each(c, func(e Entry) bool {
			if strings.ToLower(e.Name) == target {
				found, ok = e, true
			}
			return !ok
		})
		return ok, err
	})
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, &NotFoundError{Name: name}
	}
	return found, nil
}

// indexStart picks the leaf page a lookup of target starts from. The first
// index name >= target selects its predecessor's page; when no name
// qualifies the last indexed page is used.
func (c *Container) indexStart(target string) (int32, error) {
	idx, err := c.readIndex(c.dir.IndexRoot)
	if err != nil {
		return 0, err
	}
	if len(idx.entries) == 0 {
		return c.dir.FirstLeaf, nil
	}
	for i, e := range idx.entries {
		if target <= e.name {
			if i == 0 {
				return c.dir.FirstLeaf, nil
			}
			return idx.entries[i-1].page, nil
		}
	}
	return idx.entries[len(idx.entries)-1].page, nil
}
