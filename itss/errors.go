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
	"errors"
	"fmt"
)

// Allocation limits to prevent DoS from malicious containers.
const (
	// MaxPageSize is the largest directory page accepted (1MB).
	MaxPageSize = 1 << 20

	// MaxResetEntries is the largest reset table accepted (4M windows = 128GB at 32K).
	MaxResetEntries = 4 << 20

	// MaxEntryLength is the largest single entry read into memory (1GB).
	MaxEntryLength = 1 << 30

	// MaxMetadataLength caps the control data and reset table entries (64MB).
	MaxMetadataLength = 64 << 20
)

// Common errors for container parsing.
var (
	// ErrInvalidMagic indicates a header signature mismatch.
	ErrInvalidMagic = errors.New("invalid magic")

	// ErrUnsupportedVersion indicates an unknown header or control data version.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrUnsupportedDepth indicates a directory index depth other than 1 or 2.
	ErrUnsupportedDepth = errors.New("unsupported directory depth")

	// ErrWalkBound indicates a leaf chain longer than the directory allows,
	// usually a cycle in the next-page pointers.
	ErrWalkBound = errors.New("directory walk exceeded page bound")

	// ErrCorrupt indicates inconsistent offsets, lengths or encodings.
	ErrCorrupt = errors.New("corrupt container")

	// ErrNoCompressedSection indicates a compressed entry in a container
	// without MSCompressed section metadata.
	ErrNoCompressedSection = errors.New("no compressed section")

	// ErrNotFound matches any *NotFoundError via errors.Is.
	ErrNotFound = errors.New("entry not found")
)

// StructuralError reports a malformed or unsupported container. Field names
// the structure or header field being parsed when the problem was found.
type StructuralError struct {
	Err   error
	Field string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural error in %s: %v", e.Field, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

func structural(field string, err error) error {
	var se *StructuralError
	if errors.As(err, &se) {
		return err
	}
	return &StructuralError{Field: field, Err: err}
}

// NotFoundError is returned when a name is absent after a full directory scan.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entry not found: %s", e.Name)
}

// Is makes errors.Is(err, ErrNotFound) true for every NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// RangeError is returned when a requested byte range lies outside an entry.
type RangeError struct {
	Name   string
	Offset int64
	Size   int64
	Length int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range [%d, %d) outside %s of length %d", e.Offset, e.Offset+e.Size, e.Name, e.Length)
}
