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

package archive_test

import (
	"errors"
	"io"
	"testing"

	"github.com/ZaparooProject/go-chm/archive"
)

type listing []archive.Member

func (l listing) Members() ([]archive.Member, error) { return l, nil }
func (listing) Open(string) (io.ReadCloser, int64, error) { return nil, 0, io.EOF }
func (listing) Close() error { return nil }

func TestIsCHMFile(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]bool{
		"help.chm": true, "HELP.CHM": true, "dir/x.chi": true, "a.chw": true,
		"help.chm.xz": false, "help.html": false, "chm": false,
	} {
		if got := archive.IsCHMFile(name); got != want {
			t.Errorf("IsCHMFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDetectCHMFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		members listing
		want    string
	}{
		{"single", listing{{Name: "readme.txt"}, {Name: "help.chm"}}, "help.chm"},
		{"chm before chi", listing{{Name: "help.chi"}, {Name: "help.chm"}}, "help.chm"},
		{"shallow first", listing{{Name: "a/b/deep.chm"}, {Name: "top.chm"}}, "top.chm"},
		{"companion only", listing{{Name: "x.chw"}}, "x.chw"},
	}
	for _, tt := range tests {
		got, err := archive.DetectCHMFile(tt.members)
		if err != nil {
			t.Errorf("%s: DetectCHMFile() error = %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: DetectCHMFile() = %q, want %q", tt.name, got, tt.want)
		}
	}

	_, err := archive.DetectCHMFile(listing{{Name: "readme.txt"}})
	var nce archive.NoCHMFilesError
	if !errors.As(err, &nce) {
		t.Errorf("DetectCHMFile() error = %v, want NoCHMFilesError", err)
	}
}
