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

import "strings"

// Storage sections an entry can live in.
const (
	SectionUncompressed = 0
	SectionCompressed   = 1
)

// Entry is one directory entry.
type Entry struct {
	Name string
	// Section is 0 for raw content data and 1 for the LZX stream.
	Section uint64
	// Offset is a byte offset from the content data base in section 0, or a
	// logical offset in the decompressed stream in section 1.
	Offset uint64
	Length uint64
}

// Compressed reports whether the entry lives in the LZX stream.
func (e Entry) Compressed() bool {
	return e.Section != SectionUncompressed
}

// IsDir reports whether the entry is a directory marker (a name ending in /).
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// IsContent reports whether name is a user-visible content file: rooted at
// "/" and not one of the "/#" or "/$" bookkeeping streams.
func IsContent(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, "/") &&
		!strings.HasPrefix(name, "/#") && !strings.HasPrefix(name, "/$")
}

// IsSystem reports whether name is one of the container's internal streams.
func IsSystem(name string) bool {
	return strings.HasPrefix(name, "::") ||
		strings.HasPrefix(name, "/#") || strings.HasPrefix(name, "/$")
}
