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

package itss_test

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ZaparooProject/go-chm/internal/chmtest"
	"github.com/ZaparooProject/go-chm/itss"
)

type span struct {
	off int64
	n   int
}

// trackingReader records every ReadAt call and counts Close calls.
type trackingReader struct {
	r      *bytes.Reader
	reads  []span
	closed int
	mu     sync.Mutex
}

func newTrackingReader(data []byte) *trackingReader {
	return &trackingReader{r: bytes.NewReader(data)}
}

func (tr *trackingReader) ReadAt(p []byte, off int64) (int, error) {
	tr.mu.Lock()
	tr.reads = append(tr.reads, span{off, len(p)})
	tr.mu.Unlock()
	return tr.r.ReadAt(p, off)
}

func (tr *trackingReader) Close() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.closed++
	return nil
}

func (tr *trackingReader) reset() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.reads = nil
}

func (tr *trackingReader) snapshot() []span {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]span(nil), tr.reads...)
}

// touched reports whether any recorded read overlaps [lo, hi).
func (tr *trackingReader) touched(lo, hi int64) bool {
	for _, s := range tr.snapshot() {
		if s.off < hi && s.off+int64(s.n) > lo {
			return true
		}
	}
	return false
}

func build(t *testing.T, b *chmtest.Builder) *chmtest.Image {
	t.Helper()
	img, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return img
}

func open(t *testing.T, r *trackingReader, opts *itss.Options) *itss.Container {
	t.Helper()
	c, err := itss.Open(r, opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// text returns n bytes of compressible, non-periodic text.
func text(n, seed int) []byte {
	var sb strings.Builder
	for i := 0; sb.Len() < n; i++ {
		fmt.Fprintf(&sb, "<li>item %d of section %d</li>\n", (i*7+seed)%97, seed)
	}
	return []byte(sb.String()[:n])
}

func resolve(t *testing.T, c *itss.Container, name string) itss.Entry {
	t.Helper()
	e, err := c.Resolve(name)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", name, err)
	}
	return e
}
