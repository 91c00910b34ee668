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
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// archiveExtensions lists the formats ParsePath looks for, in search order.
var archiveExtensions = []string{".zip", ".7z", ".rar"}

// Path is a file path that may point inside an archive.
type Path struct {
	ArchivePath  string // Path to the archive file
	InternalPath string // Member path inside the archive, empty to auto-detect
}

// ParsePath splits paths such as "/docs/manuals.zip/api/help.chm" at the
// first archive that exists on disk. A path naming an archive itself yields
// an empty InternalPath. Paths that do not involve an archive return nil
// and no error.
//
//nolint:nilnil // nil, nil means "not an archive path"
func ParsePath(path string) (*Path, error) {
	slashed := filepath.ToSlash(path)
	lower := strings.ToLower(slashed)

	for _, ext := range archiveExtensions {
		idx := strings.Index(lower, ext+"/")
		if idx == -1 {
			continue
		}
		arcPath := path[:idx+len(ext)]
		ok, err := exists(arcPath)
		if err != nil {
			return nil, err
		}
		if ok {
			return &Path{ArchivePath: arcPath, InternalPath: slashed[idx+len(ext)+1:]}, nil
		}
	}

	if !IsArchiveExtension(filepath.Ext(path)) {
		return nil, nil
	}
	ok, err := exists(path)
	if err != nil || !ok {
		return nil, err
	}
	return &Path{ArchivePath: path}, nil
}

func exists(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat archive %s: %w", path, err)
	default:
		return !info.IsDir(), nil
	}
}

// IsArchivePath reports whether path names or points inside an archive,
// without touching the file system.
func IsArchivePath(path string) bool {
	lower := strings.ToLower(filepath.ToSlash(path))
	for _, ext := range archiveExtensions {
		if strings.Contains(lower, ext+"/") {
			return true
		}
	}
	return IsArchiveExtension(filepath.Ext(path))
}
