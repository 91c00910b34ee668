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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nwaples/rardecode/v2"
)

// rarArchive rescans the archive from the start for every call because
// RAR members can only be read in order.
type rarArchive struct {
	file *os.File
	path string
}

// OpenRAR opens a RAR archive.
func OpenRAR(path string) (Archive, error) {
	file, err := os.Open(path) //nolint:gosec // caller-provided path
	if err != nil {
		return nil, fmt.Errorf("open RAR archive: %w", err)
	}
	return &rarArchive{file: file, path: path}, nil
}

// scan calls fn for each header until fn returns true.
func (a *rarArchive) scan(fn func(*rardecode.Reader, *rardecode.FileHeader) bool) error {
	if _, err := a.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek RAR archive: %w", err)
	}
	r, err := rardecode.NewReader(a.file)
	if err != nil {
		return fmt.Errorf("read RAR archive: %w", err)
	}
	for {
		h, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read RAR header: %w", err)
		}
		if !h.IsDir && fn(r, h) {
			return nil
		}
	}
}

func (a *rarArchive) Members() ([]Member, error) {
	var members []Member
	err := a.scan(func(_ *rardecode.Reader, h *rardecode.FileHeader) bool {
		members = append(members, Member{Name: h.Name, Size: h.UnPackedSize})
		return false
	})
	return members, err
}

func (a *rarArchive) Open(name string) (io.ReadCloser, int64, error) {
	var (
		found *rardecode.Reader
		size  int64
	)
	err := a.scan(func(r *rardecode.Reader, h *rardecode.FileHeader) bool {
		if sameMember(h.Name, name) {
			found, size = r, h.UnPackedSize
			return true
		}
		return false
	})
	if err != nil {
		return nil, 0, err
	}
	if found == nil {
		return nil, 0, FileNotFoundError{Archive: a.path, InternalPath: name}
	}
	return io.NopCloser(found), size, nil
}

func (a *rarArchive) Close() error {
	return a.file.Close() //nolint:wrapcheck // passthrough
}
