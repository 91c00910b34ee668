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

import "fmt"

// FormatError reports a wrapper or archive that cannot hold a help file:
// an extension with no reader, or a stream its reader rejects (Reason).
type FormatError struct {
	Format string
	Reason string
}

func (e FormatError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("no reader for %s help file containers", e.Format)
	}
	return fmt.Sprintf("cannot unwrap %s container: %s", e.Format, e.Reason)
}

// FileNotFoundError reports a help file path naming an archive member that
// does not exist.
type FileNotFoundError struct {
	Archive      string
	InternalPath string
}

func (e FileNotFoundError) Error() string {
	return fmt.Sprintf("archive %q has no member %q", e.Archive, e.InternalPath)
}

// NoCHMFilesError indicates an archive without any compiled help file.
type NoCHMFilesError struct {
	Archive string
}

func (e NoCHMFilesError) Error() string {
	return fmt.Sprintf("no CHM files found in archive %q", e.Archive)
}

// TooLargeError indicates a member or stream larger than the in-memory limit.
type TooLargeError struct {
	Name  string
	Size  int64
	Limit int64
}

func (e TooLargeError) Error() string {
	return fmt.Sprintf("%s is %d bytes, more than the %d byte limit", e.Name, e.Size, e.Limit)
}
