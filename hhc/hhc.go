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

// Package hhc parses the HTML sitemap files (.hhc tables of contents and
// .hhk indexes) stored in compiled help containers.
package hhc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

// Root names.
const (
	RootName  = "Table of Contents"
	EmptyName = "Root"
)

const sitemapType = "text/sitemap"

// Node is one sitemap object. Only the root has no Type.
type Node struct {
	Name        string            `json:"name,omitempty"`
	Local       string            `json:"local,omitempty"`
	URL         string            `json:"url,omitempty"`
	FrameName   string            `json:"frame_name,omitempty"`
	WindowName  string            `json:"window_name,omitempty"`
	Comment     string            `json:"comment,omitempty"`
	Merge       string            `json:"merge,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
	SeeAlso     []string          `json:"see_also,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	Children    []*Node           `json:"children,omitempty"`
	ImageNumber int               `json:"image_number,omitempty"`
	New         bool              `json:"new,omitempty"`
}

// HasChildren reports whether the node is an inner node of the outline.
func (n *Node) HasChildren() bool { return len(n.Children) > 0 }

// SkipChildren returned by a Walk callback skips the node's children.
var SkipChildren = errors.New("skip children") //nolint:revive,staticcheck // sentinel used like fs.SkipDir

// Walk calls fn for n and its descendants in document order. The root is
// at depth 0.
func (n *Node) Walk(fn func(n *Node, depth int) error) error {
	return n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) error, depth int) error {
	if err := fn(n, depth); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, c := range n.Children {
		if err := c.walk(fn, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Some help compilers write quotes unescaped inside param values, which
// ends the attribute early.
var unescapedValue = regexp.MustCompile(`\s<param name=".*" value="(.*"+.*)">\s`)

func sanitize(s string) string {
	return unescapedValue.ReplaceAllStringFunc(s, func(param string) string {
		m := unescapedValue.FindStringSubmatch(param)
		if m == nil {
			return param
		}
		return strings.Replace(param, m[1], strings.ReplaceAll(m[1], `"`, "&quot;"), 1)
	})
}

// Decode converts raw sitemap bytes to UTF-8. A charset declared in a meta
// tag wins; otherwise valid UTF-8 is kept as is and anything else is
// decoded with fallback.
func Decode(b []byte, fallback encoding.Encoding) ([]byte, error) {
	if enc, name := charset.Lookup(declaredCharset(b)); enc != nil && name != "utf-8" {
		return enc.NewDecoder().Bytes(b)
	}
	if utf8.Valid(b) || fallback == nil {
		return b, nil
	}
	return fallback.NewDecoder().Bytes(b)
}

// declaredCharset returns the charset label of the first <meta> tag that
// names one, scanning up to the first object.
func declaredCharset(b []byte) string {
	z := html.NewTokenizer(bytes.NewReader(b))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "object", "ul", "body":
				return ""
			case "meta":
				if !hasAttr {
					continue
				}
				a := attrs(z)
				if label := a["charset"]; label != "" {
					return label
				}
				content := strings.ToLower(a["content"])
				if _, label, ok := strings.Cut(content, "charset="); ok {
					return strings.Trim(strings.TrimSpace(label), `"';`)
				}
			}
		default:
		}
	}
}

// Parse reads a UTF-8 sitemap. Objects of type text/sitemap become nodes;
// a <ul> nests the following objects under the most recent one.
func Parse(r io.Reader) (*Node, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sitemap: %w", err)
	}

	p := &parser{root: &Node{Name: RootName}}
	p.stack = []*Node{p.root}
	z := html.NewTokenizer(strings.NewReader(sanitize(string(raw))))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				if len(p.root.Children) == 0 {
					p.root.Name = EmptyName
				}
				return p.root, nil
			}
			return nil, fmt.Errorf("tokenize sitemap: %w", z.Err())
		case html.StartTagToken, html.SelfClosingTagToken:
			p.start(z)
		case html.EndTagToken:
			name, _ := z.TagName()
			p.end(string(name))
		default:
		}
	}
}

type parser struct {
	root    *Node
	object  *Node
	last    *Node // last sitemap object closed at the current level
	objType string
	stack   []*Node
}

func attrs(z *html.Tokenizer) map[string]string {
	out := map[string]string{}
	for {
		key, val, more := z.TagAttr()
		out[string(key)] = string(val)
		if !more {
			return out
		}
	}
}

func (p *parser) start(z *html.Tokenizer) {
	name, hasAttr := z.TagName()
	var a map[string]string
	if hasAttr {
		a = attrs(z)
	}

	switch string(name) {
	case "object":
		p.object = &Node{}
		p.objType = strings.ToLower(a["type"])
	case "param":
		if p.object != nil {
			p.object.set(a["name"], a["value"])
		}
	case "ul":
		// An <ul> without a preceding object repeats the current level so
		// its </ul> stays balanced.
		parent := p.stack[len(p.stack)-1]
		if p.last != nil {
			parent = p.last
		}
		p.stack = append(p.stack, parent)
		p.last = nil
	}
}

func (p *parser) end(name string) {
	switch name {
	case "object":
		if p.object != nil && p.objType == sitemapType {
			top := p.stack[len(p.stack)-1]
			top.Children = append(top.Children, p.object)
			p.last = p.object
		}
		p.object = nil
	case "ul":
		if len(p.stack) > 1 {
			p.stack = p.stack[:len(p.stack)-1]
		}
		p.last = nil
	}
}

func (n *Node) set(key, value string) {
	switch strings.ToLower(key) {
	case "name":
		if n.Name == "" {
			n.Name = value
		} else {
			n.param(key, value)
		}
	case "local":
		if n.Local == "" {
			n.Local = value
		} else {
			n.param(key, value)
		}
	case "url":
		n.URL = value
	case "framename":
		n.FrameName = value
	case "windowname":
		n.WindowName = value
	case "comment":
		n.Comment = value
	case "merge":
		n.Merge = value
	case "keyword":
		n.Keywords = append(n.Keywords, value)
	case "see also":
		n.SeeAlso = append(n.SeeAlso, value)
	case "imagenumber":
		if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			n.ImageNumber = v
		}
	case "new":
		n.New = value == "1"
	default:
		n.param(key, value)
	}
}

func (n *Node) param(key, value string) {
	if n.Params == nil {
		n.Params = map[string]string{}
	}
	n.Params[strings.ToLower(key)] = value
}
