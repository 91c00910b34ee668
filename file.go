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

package chm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ZaparooProject/go-chm/hhc"
	"github.com/ZaparooProject/go-chm/itss"
)

// ErrNoOutline is returned by Outline and Index when the file has no
// .hhc or .hhk sitemap.
var ErrNoOutline = errors.New("no sitemap in help file")

// File is an open help file. Its methods are safe for concurrent use.
type File struct {
	c    *itss.Container
	log  *slog.Logger
	name string
}

// Name returns the path the file was opened from, or "" for OpenReader.
func (f *File) Name() string { return f.name }

// Container exposes the underlying ITSF container.
func (f *File) Container() *itss.Container { return f.c }

// Close releases the file and its source.
func (f *File) Close() error { return f.c.Close() }

// Entries returns every directory entry, in directory order.
func (f *File) Entries() ([]itss.Entry, error) {
	var out []itss.Entry
	for e, err := range f.c.Entries(nil) {
		if err != nil {
			return nil, err //nolint:wrapcheck // itss errors are typed
		}
		out = append(out, e)
	}
	return out, nil
}

// List returns the name of every stream, including internal ones.
func (f *File) List() ([]string, error) {
	return f.names(nil)
}

// ContentFiles returns the names of the user-visible files, without
// directory markers or internal streams.
func (f *File) ContentFiles() ([]string, error) {
	return f.names(func(e itss.Entry) bool {
		return itss.IsContent(e.Name) && !e.IsDir()
	})
}

func (f *File) names(match func(itss.Entry) bool) ([]string, error) {
	var out []string
	for e, err := range f.c.Entries(match) {
		if err != nil {
			return nil, err //nolint:wrapcheck // itss errors are typed
		}
		out = append(out, e.Name)
	}
	return out, nil
}

// Stat resolves name, ignoring case. A missing name yields an error
// matching itss.ErrNotFound.
func (f *File) Stat(name string) (itss.Entry, error) {
	return f.c.Resolve(name) //nolint:wrapcheck // itss errors are typed
}

// ReadEntry returns the decoded contents of name.
func (f *File) ReadEntry(name string) ([]byte, error) {
	e, err := f.c.Resolve(name)
	if err != nil {
		return nil, err //nolint:wrapcheck // itss errors are typed
	}
	return f.c.Read(e) //nolint:wrapcheck // itss errors are typed
}

// ReadEntryRange returns n bytes of name starting at off.
func (f *File) ReadEntryRange(name string, off, n int64) ([]byte, error) {
	e, err := f.c.Resolve(name)
	if err != nil {
		return nil, err //nolint:wrapcheck // itss errors are typed
	}
	return f.c.ReadRange(e, off, n) //nolint:wrapcheck // itss errors are typed
}

// OpenEntry returns a reader over name that decodes only what it reads.
func (f *File) OpenEntry(name string) (*io.SectionReader, error) {
	e, err := f.c.Resolve(name)
	if err != nil {
		return nil, err //nolint:wrapcheck // itss errors are typed
	}
	return f.c.EntryReader(e), nil
}

// Encoding returns the charset implied by the file's locale.
func (f *File) Encoding() itss.Charset { return f.c.Charset() }

// DecodeText converts text in the file's charset to UTF-8.
func (f *File) DecodeText(b []byte) (string, error) {
	return f.c.DecodeText(b) //nolint:wrapcheck // decoder errors pass through
}

// Glob returns the content files matching a doublestar pattern such as
// "**/*.htm". Names and pattern are matched without their leading slash
// and case-insensitively.
func (f *File) Glob(pattern string) ([]string, error) {
	pattern = strings.ToLower(strings.TrimPrefix(pattern, "/"))
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("glob %q: %w", pattern, doublestar.ErrBadPattern)
	}
	files, err := f.ContentFiles()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range files {
		if doublestar.MatchUnvalidated(pattern, strings.ToLower(strings.TrimPrefix(name, "/"))) {
			out = append(out, name)
		}
	}
	return out, nil
}

// Outline parses the table of contents, the first .hhc file.
func (f *File) Outline() (*hhc.Node, error) {
	return f.sitemap(".hhc")
}

// Index parses the keyword index, the first .hhk file.
func (f *File) Index() (*hhc.Node, error) {
	return f.sitemap(".hhk")
}

func (f *File) sitemap(ext string) (*hhc.Node, error) {
	var found string
	for e, err := range f.c.Entries(func(e itss.Entry) bool {
		return strings.EqualFold(path.Ext(e.Name), ext)
	}) {
		if err != nil {
			return nil, err //nolint:wrapcheck // itss errors are typed
		}
		found = e.Name
		break
	}
	if found == "" {
		return nil, fmt.Errorf("%w: no %s file", ErrNoOutline, ext)
	}
	f.log.Debug("parsing sitemap", "name", found)

	raw, err := f.ReadEntry(found)
	if err != nil {
		return nil, err
	}
	text, err := hhc.Decode(raw, f.c.Charset().Encoding)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", found, err)
	}
	root, err := hhc.Parse(bytes.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", found, err)
	}
	return root, nil
}
