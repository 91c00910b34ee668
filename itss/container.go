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

// Package itss reads ITSF/ITSS compound containers, the storage format of
// Microsoft compiled HTML help (.chm) files.
//
// A container multiplexes named streams through a paged directory. Streams
// live either in raw content data (section 0) or in one LZX-compressed
// stream (section 1) that is decoded window by window on demand.
package itss

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// DefaultWindowCache is the number of decoded windows kept by default.
const DefaultWindowCache = 32

// Options configures Open.
type Options struct {
	// Logger receives debug output. Nil uses slog.Default().
	Logger *slog.Logger
	// WindowCache is the number of decoded windows to keep. Zero disables
	// caching.
	WindowCache int
}

// DefaultOptions returns the options Open uses when given nil.
func DefaultOptions() *Options {
	return &Options{WindowCache: DefaultWindowCache}
}

// Container is an open ITSF container. Its methods are safe for concurrent
// use when the underlying io.ReaderAt is.
type Container struct {
	r       io.ReaderAt
	header  *Header
	dir     *DirHeader
	section *compressedSection
	cache   *windowCache
	log     *slog.Logger
	charset Charset

	pagesOffset int64
	numPages    int64
	closeOnce   sync.Once
	closeErr    error
}

// Open parses the container headers and the compressed section metadata.
// If parsing fails and r implements io.Closer, r is closed before the
// error is returned.
func Open(r io.ReaderAt, opts *Options) (*Container, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	c := &Container{r: r, log: opts.Logger}
	if c.log == nil {
		c.log = slog.Default()
	}

	if err := c.init(opts); err != nil {
		if closer, ok := r.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil, err
	}
	return c, nil
}

func (c *Container) init(opts *Options) error {
	header, err := parseHeader(c.r)
	if err != nil {
		return err
	}
	c.header = header
	c.charset = CharsetForLocale(header.LangID)

	dir, err := parseDirHeader(c.r, header.DirOffset)
	if err != nil {
		return err
	}
	c.dir = dir
	c.pagesOffset = header.DirOffset + int64(dir.Length)
	c.numPages = (header.DirLength - int64(dir.Length)) / int64(dir.PageSize)
	if int64(dir.Length)+(int64(dir.LastLeaf)+1)*int64(dir.PageSize) > header.DirLength {
		return structural("ITSP leaf range", fmt.Errorf("%w: leaf %d beyond directory of %d bytes",
			ErrCorrupt, dir.LastLeaf, header.DirLength))
	}

	c.log.Debug("parsed container headers",
		"version", header.Version,
		"lang_id", fmt.Sprintf("0x%04X", header.LangID),
		"charset", c.charset.Name,
		"page_size", dir.PageSize,
		"depth", dir.Depth,
		"first_leaf", dir.FirstLeaf,
		"last_leaf", dir.LastLeaf)

	section, err := c.loadSection()
	if err != nil {
		return err
	}
	c.section = section

	cache, err := newWindowCache(opts.WindowCache)
	if err != nil {
		return fmt.Errorf("create window cache: %w", err)
	}
	c.cache = cache
	return nil
}

// Close purges cached windows and closes the underlying reader if it
// implements io.Closer. Close is idempotent.
func (c *Container) Close() error {
	c.closeOnce.Do(func() {
		c.cache.purge()
		if closer, ok := c.r.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				c.closeErr = fmt.Errorf("close container: %w", err)
			}
		}
	})
	return c.closeErr
}

// Header returns the ITSF header.
func (c *Container) Header() *Header { return c.header }

// DirHeader returns the ITSP directory header.
func (c *Container) DirHeader() *DirHeader { return c.dir }

// Charset returns the text encoding selected by the container's locale.
func (c *Container) Charset() Charset { return c.charset }

// ResetTable returns the compressed section's reset table, or nil when the
// container has no compressed section.
func (c *Container) ResetTable() *ResetTable {
	if c.section == nil {
		return nil
	}
	return c.section.reset
}

// ControlData returns the compressed section's LZXC control data, or nil
// when the container has no compressed section.
func (c *Container) ControlData() *ControlData {
	if c.section == nil {
		return nil
	}
	return c.section.control
}

// CachedWindows returns the number of decoded windows currently cached.
func (c *Container) CachedWindows() int { return c.cache.len() }
