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
	"path/filepath"
	"sort"
	"strings"
)

// helpExtensions ranks the ITSF-based file types, most wanted first.
var helpExtensions = map[string]int{
	".chm": 0,
	".chi": 1,
	".chw": 2,
}

// IsCHMFile reports whether name has a compiled help extension.
func IsCHMFile(name string) bool {
	_, ok := helpExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// DetectCHMFile returns the member of arc most likely to be the help file:
// a .chm before its .chi or .chw companions, shallower paths first.
func DetectCHMFile(arc Archive) (string, error) {
	members, err := arc.Members()
	if err != nil {
		return "", fmt.Errorf("list archive members: %w", err)
	}

	var found []Member
	for _, m := range members {
		if IsCHMFile(m.Name) {
			found = append(found, m)
		}
	}
	if len(found) == 0 {
		return "", NoCHMFilesError{Archive: "archive"}
	}

	sort.SliceStable(found, func(i, j int) bool {
		ri := helpExtensions[strings.ToLower(filepath.Ext(found[i].Name))]
		rj := helpExtensions[strings.ToLower(filepath.Ext(found[j].Name))]
		if ri != rj {
			return ri < rj
		}
		return strings.Count(found[i].Name, "/") < strings.Count(found[j].Name, "/")
	})
	return found[0].Name, nil
}
