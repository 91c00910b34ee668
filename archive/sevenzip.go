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
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
)

type sevenZipArchive struct {
	rc   *sevenzip.ReadCloser
	path string
}

// OpenSevenZip opens a 7z archive.
func OpenSevenZip(path string) (Archive, error) {
	rc, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open 7z archive: %w", err)
	}
	return &sevenZipArchive{rc: rc, path: path}, nil
}

func (a *sevenZipArchive) Members() ([]Member, error) {
	var members []Member
	for _, f := range a.rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		//nolint:gosec // Safe: sizes beyond int64 are rejected by Load
		members = append(members, Member{Name: f.Name, Size: int64(f.UncompressedSize)})
	}
	return members, nil
}

// Open decodes the member's solid block up to the member. Members of the
// same block opened one after another each restart the block.
func (a *sevenZipArchive) Open(name string) (io.ReadCloser, int64, error) {
	for _, f := range a.rc.File {
		if !sameMember(f.Name, name) || f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, 0, fmt.Errorf("open %s in 7z: %w", name, err)
		}
		return rc, int64(f.UncompressedSize), nil //nolint:gosec // see Members
	}
	return nil, 0, FileNotFoundError{Archive: a.path, InternalPath: name}
}

func (a *sevenZipArchive) Close() error {
	return a.rc.Close() //nolint:wrapcheck // passthrough
}
