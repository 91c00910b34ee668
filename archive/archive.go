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

// Package archive finds compiled help files inside ZIP, 7z and RAR
// archives and unwraps single-stream .gz, .xz, .lzma and .zst files.
//
// Members are buffered into memory because the container reader needs
// random access.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// MaxMemberSize is the largest member Load buffers into memory (1GB).
const MaxMemberSize = 1 << 30

// Member is one regular file inside an archive.
type Member struct {
	Name string // Slash-separated path within the archive
	Size int64  // Uncompressed size
}

// Archive provides read access to the members of an archive.
type Archive interface {
	// Members lists the regular files of the archive.
	Members() ([]Member, error)

	// Open opens a member by name, ignoring case, and returns its
	// uncompressed size.
	Open(name string) (io.ReadCloser, int64, error)

	// Close releases the archive.
	Close() error
}

var openers = map[string]func(string) (Archive, error){
	".zip": OpenZIP,
	".7z":  OpenSevenZip,
	".rar": OpenRAR,
}

// Open opens an archive by extension.
func Open(path string) (Archive, error) {
	ext := strings.ToLower(filepath.Ext(path))
	open, ok := openers[ext]
	if !ok {
		return nil, FormatError{Format: ext}
	}
	return open(path)
}

// IsArchiveExtension reports whether ext names a supported archive format.
func IsArchiveExtension(ext string) bool {
	_, ok := openers[strings.ToLower(ext)]
	return ok
}

// Load reads a whole member into memory.
func Load(arc Archive, name string) (*bytes.Reader, error) {
	rc, size, err := arc.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	if size < 0 || size > MaxMemberSize {
		return nil, TooLargeError{Name: name, Size: size, Limit: MaxMemberSize}
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(rc, data); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return bytes.NewReader(data), nil
}

// sameMember compares member names the way Open does.
func sameMember(stored, wanted string) bool {
	clean := func(s string) string {
		return strings.TrimPrefix(filepath.ToSlash(s), "/")
	}
	return strings.EqualFold(clean(stored), clean(wanted))
}
