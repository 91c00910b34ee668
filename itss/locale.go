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
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// Charset pairs a text encoding with its conventional name.
type Charset struct {
	Encoding encoding.Encoding
	Name     string
}

var defaultCharset = Charset{Encoding: charmap.ISO8859_1, Name: "iso-8859-1"}

var localeCharsets = map[uint32]Charset{
	0x0804: {simplifiedchinese.GBK, "gbk"},
	0x0404: {traditionalchinese.Big5, "big5"},
	0x0C04: {traditionalchinese.Big5, "big5"},
	0x0401: {charmap.ISO8859_6, "iso-8859-6"},
	0x0405: {charmap.ISO8859_2, "iso-8859-2"},
	0x0408: {charmap.ISO8859_7, "iso-8859-7"},
	0x040D: {charmap.ISO8859_8, "iso-8859-8"},
	0x0411: {japanese.EUCJP, "euc-jp"},
	0x0412: {korean.EUCKR, "euc-kr"},
	0x041F: {charmap.ISO8859_9, "iso-8859-9"},
}

// CharsetForLocale returns the text encoding used for a Windows locale
// identifier. Unknown locales get ISO-8859-1.
func CharsetForLocale(lcid uint32) Charset {
	if cs, ok := localeCharsets[lcid]; ok {
		return cs
	}
	return defaultCharset
}

// decodeName returns raw as a string, decoding it with the container's
// charset when it is not valid UTF-8.
func (c *Container) decodeName(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	s, err := c.charset.Encoding.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(s)
}

// DecodeText converts text stored in the container's locale charset to UTF-8.
func (c *Container) DecodeText(b []byte) (string, error) {
	s, err := c.charset.Encoding.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(s), nil
}
