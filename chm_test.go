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

package chm_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"

	chm "github.com/ZaparooProject/go-chm"
	"github.com/ZaparooProject/go-chm/hhc"
	"github.com/ZaparooProject/go-chm/internal/chmtest"
	"github.com/ZaparooProject/go-chm/itss"
)

const tocText = `<HTML><BODY>
<UL>
	<LI> <OBJECT type="text/sitemap">
		<param name="Name" value="Welcome">
		<param name="Local" value="index.htm">
		</OBJECT>
	<UL>
		<LI> <OBJECT type="text/sitemap">
			<param name="Name" value="Page A">
			<param name="Local" value="html/a.htm">
			</OBJECT>
	</UL>
	<LI> <OBJECT type="text/sitemap">
		<param name="Name" value="Page B">
		<param name="Local" value="html/b.htm">
		</OBJECT>
</UL>
</BODY></HTML>
`

// page returns a few KB of distinct HTML.
func page(title string, n int) []byte {
	var sb strings.Builder
	sb.WriteString("<html><head><title>" + title + "</title></head><body>\n")
	for i := 0; sb.Len() < n; i++ {
		sb.WriteString("<p>" + title + " paragraph " + strings.Repeat("x", i%13) + "</p>\n")
	}
	return []byte(sb.String())
}

// fixture is the content of the test help file.
var fixture = map[string][]byte{
	"/index.htm":    page("Welcome", 3000),
	"/html/a.htm":   page("Page A", 9000),
	"/html/b.htm":   page("Page B", 1200),
	"/img/logo.gif": []byte("GIF89a\x01\x00\x01\x00"),
	"/toc.hhc":      []byte(tocText),
}

func buildCHM(t *testing.T) []byte {
	t.Helper()

	b := &chmtest.Builder{
		Encoder: chmtest.Encoder{FrameSize: 4096, ResetInterval: 2},
		Files: []chmtest.File{
			{Name: "/", Data: nil},
			{Name: "/html/", Data: nil},
			{Name: "/#SYSTEM", Data: []byte{3, 0, 0, 0}},
			{Name: "/$FIftiMain", Data: []byte("fts")},
			{Name: "/img/logo.gif", Data: fixture["/img/logo.gif"]},
		},
	}
	for _, name := range []string{"/index.htm", "/html/a.htm", "/html/b.htm", "/toc.hhc"} {
		b.Files = append(b.Files, chmtest.File{Name: name, Data: fixture[name], Compressed: true})
	}
	img, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return img.Data
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func openCHM(t *testing.T, path string) *chm.File {
	t.Helper()
	f, err := chm.Open(path)
	if err != nil {
		t.Fatalf("Open(%q) error = %v", path, err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func checkContents(t *testing.T, f *chm.File) {
	t.Helper()
	for name, want := range fixture {
		got, err := f.ReadEntry(name)
		if err != nil {
			t.Fatalf("ReadEntry(%q) error = %v", name, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("ReadEntry(%q) = %d bytes, want %d", name, len(got), len(want))
		}
	}
}

func TestOpenPlain(t *testing.T) {
	t.Parallel()

	path := writeFile(t, filepath.Join(t.TempDir(), "help.chm"), buildCHM(t))
	f := openCHM(t, path)
	if f.Name() != path {
		t.Errorf("Name() = %q, want %q", f.Name(), path)
	}
	checkContents(t, f)
}

func TestOpenArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	zipPath := filepath.Join(dir, "manuals.zip")
	zf, err := os.Create(zipPath) //nolint:gosec // test temp directory
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	w := zip.NewWriter(zf)
	for name, data := range map[string][]byte{
		"readme.txt":         []byte("see help"),
		"docs/api/help.chm":  buildCHM(t),
		"docs/api/help.chi":  []byte("not a help file"),
		"docs/other/xyz.txt": []byte("x"),
	} {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := zf.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"detected", zipPath},
		{"explicit member", zipPath + "/docs/api/help.chm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := openCHM(t, tt.path)
			if f.Name() != zipPath+"/docs/api/help.chm" {
				t.Errorf("Name() = %q", f.Name())
			}
			checkContents(t, f)
		})
	}

	if _, err := chm.Open(zipPath + "/docs/missing.chm"); err == nil {
		t.Error("Open() of a missing member succeeded")
	}
}

func TestOpenCompressedWrapper(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz.NewWriter() error = %v", err)
	}
	if _, err := w.Write(buildCHM(t)); err != nil {
		t.Fatalf("write xz: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close xz: %v", err)
	}

	path := writeFile(t, filepath.Join(t.TempDir(), "help.chm.xz"), buf.Bytes())
	checkContents(t, openCHM(t, path))
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := chm.Open(filepath.Join(dir, "missing.chm")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open(missing) error = %v, want os.ErrNotExist", err)
	}

	junk := writeFile(t, filepath.Join(dir, "junk.chm"), []byte("this is not a help file at all, not even close"))
	_, err := chm.Open(junk)
	var se *itss.StructuralError
	if !errors.As(err, &se) {
		t.Errorf("Open(junk) error = %v, want *itss.StructuralError", err)
	}

	if _, err := chm.OpenReader(bytes.NewReader(nil)); err == nil {
		t.Error("OpenReader(empty) succeeded")
	}
}

func TestListing(t *testing.T) {
	t.Parallel()

	f, err := chm.OpenReader(bytes.NewReader(buildCHM(t)), chm.WithWindowCache(0))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = f.Close() }()

	all, err := f.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, name := range []string{"/#SYSTEM", "/$FIftiMain", "/html/", itss.ContentName, itss.ResetTableName} {
		if !slices.Contains(all, name) {
			t.Errorf("List() missing %q", name)
		}
	}

	entries, err := f.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != len(all) {
		t.Errorf("Entries() = %d, List() = %d", len(entries), len(all))
	}

	content, err := f.ContentFiles()
	if err != nil {
		t.Fatalf("ContentFiles() error = %v", err)
	}
	want := []string{"/html/a.htm", "/html/b.htm", "/img/logo.gif", "/index.htm", "/toc.hhc"}
	if !slices.Equal(content, want) {
		t.Errorf("ContentFiles() = %q, want %q", content, want)
	}
}

func TestStatAndRanges(t *testing.T) {
	t.Parallel()

	f, err := chm.OpenReader(bytes.NewReader(buildCHM(t)))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = f.Close() }()

	e, err := f.Stat("/HTML/A.HTM")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if e.Name != "/html/a.htm" || !e.Compressed() || e.Length != uint64(len(fixture["/html/a.htm"])) {
		t.Errorf("Stat() = %+v", e)
	}

	want := fixture["/html/a.htm"][4000:4500]
	got, err := f.ReadEntryRange("/html/a.htm", 4000, 500)
	if err != nil {
		t.Fatalf("ReadEntryRange() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadEntryRange() = %q, want %q", got, want)
	}

	var re *itss.RangeError
	if _, err := f.ReadEntryRange("/html/b.htm", 1000, 1000); !errors.As(err, &re) {
		t.Errorf("ReadEntryRange(past end) error = %v, want *itss.RangeError", err)
	}

	r, err := f.OpenEntry("/index.htm")
	if err != nil {
		t.Fatalf("OpenEntry() error = %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(data, fixture["/index.htm"]) {
		t.Error("OpenEntry() contents differ")
	}

	for _, name := range []string{"/nope.htm", "/html/a.htmx"} {
		if _, err := f.ReadEntry(name); !errors.Is(err, itss.ErrNotFound) {
			t.Errorf("ReadEntry(%q) error = %v, want ErrNotFound", name, err)
		}
		if _, err := f.OpenEntry(name); !errors.Is(err, itss.ErrNotFound) {
			t.Errorf("OpenEntry(%q) error = %v, want ErrNotFound", name, err)
		}
	}
}

func TestGlob(t *testing.T) {
	t.Parallel()

	f, err := chm.OpenReader(bytes.NewReader(buildCHM(t)))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = f.Close() }()

	tests := []struct {
		pattern string
		want    []string
	}{
		{"**/*.htm", []string{"/html/a.htm", "/html/b.htm", "/index.htm"}},
		{"html/*", []string{"/html/a.htm", "/html/b.htm"}},
		{"/IMG/*.GIF", []string{"/img/logo.gif"}},
		{"*.hhc", []string{"/toc.hhc"}},
		{"*.pdf", nil},
	}
	for _, tt := range tests {
		got, err := f.Glob(tt.pattern)
		if err != nil {
			t.Errorf("Glob(%q) error = %v", tt.pattern, err)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("Glob(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}

	if _, err := f.Glob("html/[a"); err == nil {
		t.Error("Glob() accepted a malformed pattern")
	}
}

func TestOutline(t *testing.T) {
	t.Parallel()

	f, err := chm.OpenReader(bytes.NewReader(buildCHM(t)))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = f.Close() }()

	root, err := f.Outline()
	if err != nil {
		t.Fatalf("Outline() error = %v", err)
	}
	type item struct {
		name  string
		local string
		depth int
	}
	var got []item
	_ = root.Walk(func(n *hhc.Node, depth int) error {
		got = append(got, item{n.Name, n.Local, depth})
		return nil
	})
	want := []item{
		{hhc.RootName, "", 0},
		{"Welcome", "index.htm", 1},
		{"Page A", "html/a.htm", 2},
		{"Page B", "html/b.htm", 1},
	}
	if !slices.Equal(got, want) {
		t.Errorf("Outline() = %+v, want %+v", got, want)
	}

	if _, err := f.Index(); !errors.Is(err, chm.ErrNoOutline) {
		t.Errorf("Index() error = %v, want ErrNoOutline", err)
	}
}

func TestDecodeText(t *testing.T) {
	t.Parallel()

	f, err := chm.OpenReader(bytes.NewReader(buildCHM(t)))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = f.Close() }()

	if name := f.Encoding().Name; name != "iso-8859-1" {
		t.Errorf("Encoding() = %q, want iso-8859-1", name)
	}
	s, err := f.DecodeText([]byte{'c', 'a', 'f', 0xE9})
	if err != nil {
		t.Fatalf("DecodeText() error = %v", err)
	}
	if s != "café" {
		t.Errorf("DecodeText() = %q, want café", s)
	}
}
