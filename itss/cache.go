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

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// windowCache keeps recently decoded windows keyed by window index.
// A nil cache stores nothing. Cached slices are shared and must not be
// modified.
type windowCache struct {
	lru *lru.Cache[int64, []byte]
}

func newWindowCache(size int) (*windowCache, error) {
	if size <= 0 {
		return nil, nil //nolint:nilnil // caching disabled
	}
	c, err := lru.New[int64, []byte](size)
	if err != nil {
		return nil, err
	}
	return &windowCache{lru: c}, nil
}

func (wc *windowCache) get(w int64) ([]byte, bool) {
	if wc == nil {
		return nil, false
	}
	return wc.lru.Get(w)
}

func (wc *windowCache) add(w int64, data []byte) {
	if wc == nil {
		return
	}
	wc.lru.Add(w, data)
}

func (wc *windowCache) len() int {
	if wc == nil {
		return 0
	}
	return wc.lru.Len()
}

func (wc *windowCache) purge() {
	if wc != nil {
		wc.lru.Purge()
	}
}
