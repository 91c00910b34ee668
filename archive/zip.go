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
	"archive/zip"
	"fmt"
	"io"
)

type zipArchive struct {
	rc   *zip.ReadCloser
	path string
}

// OpenZIP opens a ZIP archive.
func OpenZIP(path string) (Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open ZIP archive: %w", err)
	}
	return &zipArchive{rc: rc, path: path}, nil
}

func (a *zipArchive) Members() ([]Member, error) {
	members := make([]Member, 0, len(a.rc.File))
	for _, f := range a.rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		//nolint:gosec // Safe: sizes beyond int64 are rejected by Load
		members = append(members, Member{Name: f.Name, Size: int64(f.UncompressedSize64)})
	}
	return members, nil
}

func (a *zipArchive) Open(name string) (io.ReadCloser, int64, error) {
	for _, f := range a.rc.File {
		if !sameMember(f.Name, name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, 0, fmt.Errorf("open %s in ZIP: %w", name, err)
		}
		return rc, int64(f.UncompressedSize64), nil //nolint:gosec // see Members
	}
	return nil, 0, FileNotFoundError{Archive: a.path, InternalPath: name}
}

func (a *zipArchive) Close() error {
	return a.rc.Close() //nolint:wrapcheck // passthrough
}
