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

package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

var decompressors = map[string]func(io.Reader) (io.Reader, error){
	".gz": func(r io.Reader) (io.Reader, error) {
		return gzip.NewReader(r)
	},
	".xz": func(r io.Reader) (io.Reader, error) {
		return xz.NewReader(r)
	},
	".lzma": func(r io.Reader) (io.Reader, error) {
		return lzma.NewReader(r)
	},
	".zst": func(r io.Reader) (io.Reader, error) {
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	},
}

// IsCompressedPath reports whether path ends in .gz, .xz, .lzma or .zst.
func IsCompressedPath(path string) bool {
	_, ok := decompressors[strings.ToLower(filepath.Ext(path))]
	return ok
}

// TrimCompression strips a trailing compression extension, so that
// "help.chm.xz" becomes "help.chm".
func TrimCompression(path string) string {
	if IsCompressedPath(path) {
		return strings.TrimSuffix(path, filepath.Ext(path))
	}
	return path
}

// OpenCompressed decompresses a single-stream file into memory.
func OpenCompressed(path string) (*bytes.Reader, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided path
	if err != nil {
		return nil, fmt.Errorf("open compressed file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decompress(f, path)
}

// Decompress reads r, compressed in the format named by the extension of
// name, fully into memory.
func Decompress(r io.Reader, name string) (*bytes.Reader, error) {
	ext := strings.ToLower(filepath.Ext(name))
	newReader, ok := decompressors[ext]
	if !ok {
		return nil, FormatError{Format: ext}
	}
	dr, err := newReader(r)
	if err != nil {
		return nil, FormatError{Format: ext, Reason: err.Error()}
	}
	if c, ok := dr.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	data, err := io.ReadAll(io.LimitReader(dr, MaxMemberSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}
	if len(data) > MaxMemberSize {
		return nil, TooLargeError{Name: name, Size: int64(len(data)), Limit: MaxMemberSize}
	}
	return bytes.NewReader(data), nil
}
