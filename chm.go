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

// Package chm reads Microsoft compiled HTML help (.chm) files.
//
// Files can be opened from disk, from inside ZIP, 7z or RAR archives
// ("manuals.zip/api/help.chm"), or from .gz, .xz, .lzma and .zst wrappers.
// Compressed content is decoded on demand, one LZX window at a time.
package chm

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ZaparooProject/go-chm/archive"
	"github.com/ZaparooProject/go-chm/itss"
)

// Option configures Open and OpenReader.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	windowCache int
}

// WithWindowCache sets how many decoded LZX windows are kept. Zero
// disables caching.
func WithWindowCache(n int) Option {
	return func(c *config) { c.windowCache = n }
}

// WithLogger sets the logger that receives debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) *config {
	c := &config{windowCache: itss.DefaultWindowCache}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Open opens a help file by path. Paths through an archive are buffered
// into memory, as are compressed wrappers.
func Open(path string, opts ...Option) (*File, error) {
	cfg := newConfig(opts)

	ap, err := archive.ParsePath(path)
	if err != nil {
		return nil, fmt.Errorf("parse path: %w", err)
	}
	if ap != nil {
		return openFromArchive(ap, cfg)
	}

	if archive.IsCompressedPath(path) {
		r, err := archive.OpenCompressed(path)
		if err != nil {
			return nil, err //nolint:wrapcheck // archive errors are typed
		}
		cfg.logger.Debug("decompressed wrapper", "path", path, "size", r.Size())
		return open(r, path, cfg)
	}

	f, err := os.Open(path) //nolint:gosec // caller-provided path
	if err != nil {
		return nil, fmt.Errorf("open help file: %w", err)
	}
	return open(f, path, cfg)
}

func openFromArchive(ap *archive.Path, cfg *config) (*File, error) {
	arc, err := archive.Open(ap.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = arc.Close() }()

	member := ap.InternalPath
	if member == "" {
		if member, err = archive.DetectCHMFile(arc); err != nil {
			return nil, fmt.Errorf("detect help file: %w", err)
		}
	}
	r, err := archive.Load(arc, member)
	if err != nil {
		return nil, err //nolint:wrapcheck // archive errors are typed
	}
	if archive.IsCompressedPath(member) {
		if r, err = archive.Decompress(r, member); err != nil {
			return nil, err //nolint:wrapcheck // archive errors are typed
		}
	}
	cfg.logger.Debug("loaded archive member", "archive", ap.ArchivePath, "member", member, "size", r.Size())
	return open(r, ap.ArchivePath+"/"+member, cfg)
}

// OpenReader opens a help file from r. If r implements io.Closer it is
// closed by Close, or right away when parsing fails.
func OpenReader(r io.ReaderAt, opts ...Option) (*File, error) {
	return open(r, "", newConfig(opts))
}

func open(r io.ReaderAt, name string, cfg *config) (*File, error) {
	c, err := itss.Open(r, &itss.Options{Logger: cfg.logger, WindowCache: cfg.windowCache})
	if err != nil {
		if name != "" {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		return nil, fmt.Errorf("open help file: %w", err)
	}
	return &File{c: c, name: name, log: cfg.logger}, nil
}
