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

package chm

import (
	"errors"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ZaparooProject/go-chm/itss"
)

// FS returns the content files as a read-only file system. Paths drop the
// leading slash ("html/index.htm"), and directories are synthesized from
// the names.
func (f *File) FS() fs.FS {
	return &helpFS{f: f}
}

type helpFS struct {
	f     *File
	err   error
	dirs  map[string][]fs.DirEntry
	files map[string]itss.Entry
	once  sync.Once
}

var (
	_ fs.ReadFileFS = (*helpFS)(nil)
	_ fs.ReadDirFS  = (*helpFS)(nil)
	_ fs.StatFS     = (*helpFS)(nil)
)

// index builds the directory tree on first use.
func (h *helpFS) index() error {
	h.once.Do(func() {
		h.dirs = map[string][]fs.DirEntry{".": nil}
		h.files = map[string]itss.Entry{}
		for e, err := range h.f.c.Entries(func(e itss.Entry) bool { return itss.IsContent(e.Name) }) {
			if err != nil {
				h.err = err
				return
			}
			name := strings.Trim(e.Name, "/")
			if !fs.ValidPath(name) {
				continue
			}
			if e.IsDir() {
				h.addDir(name)
				continue
			}
			h.files[name] = e
			h.addDir(path.Dir(name))
			h.dirs[path.Dir(name)] = append(h.dirs[path.Dir(name)], fs.FileInfoToDirEntry(fileInfo{e: e, name: path.Base(name)}))
		}
		for _, entries := range h.dirs {
			slices.SortFunc(entries, func(a, b fs.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })
		}
	})
	return h.err
}

// addDir records dir and links it into its parent, creating ancestors as
// needed.
func (h *helpFS) addDir(dir string) {
	if dir == "." {
		return
	}
	if _, ok := h.dirs[dir]; ok {
		return
	}
	h.dirs[dir] = nil
	parent := path.Dir(dir)
	h.addDir(parent)
	h.dirs[parent] = append(h.dirs[parent], fs.FileInfoToDirEntry(fileInfo{name: path.Base(dir), dir: true}))
}

func (h *helpFS) lookup(op, name string) (fs.FileInfo, bool, error) {
	if !fs.ValidPath(name) {
		return nil, false, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if err := h.index(); err != nil {
		return nil, false, &fs.PathError{Op: op, Path: name, Err: err}
	}
	if e, ok := h.files[name]; ok {
		return fileInfo{e: e, name: path.Base(name)}, false, nil
	}
	if _, ok := h.dirs[name]; ok {
		return fileInfo{name: path.Base(name), dir: true}, true, nil
	}
	return nil, false, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
}

func (h *helpFS) Open(name string) (fs.File, error) {
	info, isDir, err := h.lookup("open", name)
	if err != nil {
		return nil, err
	}
	if isDir {
		return &openDir{info: info, entries: h.dirs[name]}, nil
	}
	return &openFile{info: info, r: h.f.c.EntryReader(h.files[name])}, nil
}

func (h *helpFS) Stat(name string) (fs.FileInfo, error) {
	info, _, err := h.lookup("stat", name)
	return info, err
}

func (h *helpFS) ReadFile(name string) ([]byte, error) {
	_, isDir, err := h.lookup("read", name)
	if err != nil {
		return nil, err
	}
	if isDir {
		return nil, &fs.PathError{Op: "read", Path: name, Err: errors.New("is a directory")}
	}
	data, err := h.f.c.Read(h.files[name])
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return data, nil
}

func (h *helpFS) ReadDir(name string) ([]fs.DirEntry, error) {
	_, isDir, err := h.lookup("readdir", name)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: errors.New("not a directory")}
	}
	return slices.Clone(h.dirs[name]), nil
}

type fileInfo struct {
	name string
	e    itss.Entry
	dir  bool
}

func (fi fileInfo) Name() string { return fi.name }

func (fi fileInfo) Size() int64 {
	if fi.dir {
		return 0
	}
	return int64(min(fi.e.Length, itss.MaxEntryLength)) //nolint:gosec // clamped
}

func (fi fileInfo) Mode() fs.FileMode {
	if fi.dir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

func (fileInfo) ModTime() time.Time { return time.Time{} }
func (fi fileInfo) IsDir() bool     { return fi.dir }
func (fi fileInfo) Sys() any        { return fi.e }

type openFile struct {
	info fs.FileInfo
	r    *io.SectionReader
}

func (f *openFile) Stat() (fs.FileInfo, error)                   { return f.info, nil }
func (f *openFile) Read(p []byte) (int, error)                   { return f.r.Read(p) }
func (f *openFile) ReadAt(p []byte, off int64) (int, error)      { return f.r.ReadAt(p, off) }
func (f *openFile) Seek(offset int64, whence int) (int64, error) { return f.r.Seek(offset, whence) }
func (*openFile) Close() error                                   { return nil }

type openDir struct {
	info    fs.FileInfo
	entries []fs.DirEntry
	offset  int
}

func (d *openDir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (*openDir) Close() error                 { return nil }

func (d *openDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.Name(), Err: errors.New("is a directory")}
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return slices.Clone(rest), nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.offset += n
	return slices.Clone(rest[:n]), nil
}
