package chmtest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Names of the compressed section's bookkeeping entries.
const (
	ContentName     = "::DataSpace/Storage/MSCompressed/Content"
	ControlDataName = "::DataSpace/Storage/MSCompressed/ControlData"
	ResetTableName  = "::DataSpace/Storage/MSCompressed/Transform/" +
		"{7FC28940-9D31-11D0-9B27-00A0C91E9C7C}/InstanceData/ResetTable"
)

// File is one stream stored in a built container.
type File struct {
	Name       string
	Data       []byte
	Compressed bool
}

// Builder assembles a CHM image in memory.
type Builder struct {
	Files []File
	// Encoder compresses the content stream. A zero Encoder is usable.
	Encoder Encoder
	// Version is the ITSF version, 3 by default.
	Version int
	// LangID is the locale identifier stored in the header.
	LangID uint32
	// PageSize is the directory page size, 4096 by default.
	PageSize int
	// EntriesPerPage limits entries in each leaf page. Zero packs pages.
	EntriesPerPage int
	// Index writes a PMGI root page and marks the directory depth 2.
	Index bool
	// FirstLeaf is the page number of the first leaf page. Pages before it
	// are filled with 0xFF.
	FirstLeaf int
	// Names are written as given instead of being sorted.
	Unsorted bool
}

// Image is a built container plus the layout facts tests assert against.
type Image struct {
	Data          []byte
	DirOffset     int64
	PagesOffset   int64
	PageSize      int
	DataOffset    int64
	FirstLeaf     int
	LastLeaf      int
	IndexRoot     int
	NumPages      int
	Stream        *Stream
	Entries       []ImageEntry
	ResetInterval int
}

// ImageEntry is a directory entry as written.
type ImageEntry struct {
	Name    string
	Section uint64
	Offset  uint64
	Length  uint64
	Page    int
}

// PageOffset returns the absolute offset of directory page n.
func (img *Image) PageOffset(n int) int64 {
	return img.PagesOffset + int64(n)*int64(img.PageSize)
}

// SetNext rewrites the next-page pointer of leaf page n.
func (img *Image) SetNext(n int, next int32) {
	off := img.PageOffset(n) + 16
	//nolint:gosec // Safe: two's complement reinterpretation
	binary.LittleEndian.PutUint32(img.Data[off:], uint32(next))
}

// Entry returns the written entry with the given name.
func (img *Image) Entry(name string) (ImageEntry, bool) {
	for _, e := range img.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return ImageEntry{}, false
}

const (
	itsfV3Length = 0x60
	itsfV2Length = 0x58
	itspLength   = 0x54
	leafHeader   = 20
	indexHeader  = 8
)

// Build lays out the container.
func (b *Builder) Build() (*Image, error) {
	version := b.Version
	if version == 0 {
		version = 3
	}
	pageSize := b.PageSize
	if pageSize == 0 {
		pageSize = 4096
	}

	var section0 []byte
	var entries []ImageEntry
	var plain []byte
	type span struct{ off, n int }
	compressed := map[string]span{}

	for _, f := range b.Files {
		if f.Compressed {
			compressed[f.Name] = span{len(plain), len(f.Data)}
			plain = append(plain, f.Data...)
			continue
		}
		entries = append(entries, ImageEntry{
			Name:   f.Name,
			Offset: uint64(len(section0)),
			Length: uint64(len(f.Data)),
		})
		section0 = append(section0, f.Data...)
	}

	img := &Image{PageSize: pageSize, FirstLeaf: b.FirstLeaf, IndexRoot: -1, ResetInterval: b.Encoder.interval()}
	if len(compressed) > 0 {
		st, err := b.Encoder.EncodeBytes(plain)
		if err != nil {
			return nil, err
		}
		img.Stream = st
		for _, f := range b.Files {
			if s, ok := compressed[f.Name]; ok {
				entries = append(entries, ImageEntry{
					Name: f.Name, Section: 1, Offset: uint64(s.off), Length: uint64(s.n),
				})
			}
		}
		add := func(name string, data []byte) {
			entries = append(entries, ImageEntry{
				Name: name, Offset: uint64(len(section0)), Length: uint64(len(data)),
			})
			section0 = append(section0, data...)
		}
		add(ContentName, st.Compressed)
		add(ControlDataName, b.controlData())
		add(ResetTableName, resetTable(st, len(plain), b.Encoder.frame()))
	}

	if !b.Unsorted {
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
		})
	}

	leaves, err := b.layoutLeaves(entries, pageSize)
	if err != nil {
		return nil, err
	}
	numLeaves := len(leaves)
	img.LastLeaf = b.FirstLeaf + numLeaves - 1
	numPages := b.FirstLeaf + numLeaves
	if b.Index {
		img.IndexRoot = numPages
		numPages++
	}
	img.NumPages = numPages

	headerLen := itsfV3Length
	if version == 2 {
		headerLen = itsfV2Length
	}
	img.DirOffset = int64(headerLen) + 0x18
	img.PagesOffset = img.DirOffset + itspLength
	dirLength := int64(itspLength) + int64(numPages*pageSize)
	img.DataOffset = img.DirOffset + dirLength

	out := make([]byte, img.DataOffset, img.DataOffset+int64(len(section0)))
	le := binary.LittleEndian

	copy(out, "ITSF")
	le.PutUint32(out[4:], uint32(version))
	le.PutUint32(out[8:], uint32(headerLen))
	le.PutUint32(out[12:], 1)
	le.PutUint32(out[16:], 0x12345678)
	le.PutUint32(out[20:], b.LangID)
	le.PutUint64(out[0x38:], uint64(headerLen))
	le.PutUint64(out[0x40:], 0x18)
	le.PutUint64(out[0x48:], uint64(img.DirOffset))
	le.PutUint64(out[0x50:], uint64(dirLength))
	if version == 3 {
		le.PutUint64(out[0x58:], uint64(img.DataOffset))
	}

	itsp := out[img.DirOffset:]
	copy(itsp, "ITSP")
	le.PutUint32(itsp[4:], 1)
	le.PutUint32(itsp[8:], itspLength)
	le.PutUint32(itsp[12:], 0x0a)
	le.PutUint32(itsp[16:], uint32(pageSize))
	le.PutUint32(itsp[20:], 2)
	depth := uint32(1)
	if b.Index {
		depth = 2
	}
	le.PutUint32(itsp[24:], depth)
	//nolint:gosec // Safe: -1 is stored as its two's complement
	le.PutUint32(itsp[28:], uint32(int32(img.IndexRoot)))
	le.PutUint32(itsp[32:], uint32(b.FirstLeaf))
	le.PutUint32(itsp[36:], uint32(img.LastLeaf))
	le.PutUint32(itsp[40:], 0xFFFFFFFF)
	le.PutUint32(itsp[44:], uint32(numPages))
	le.PutUint32(itsp[48:], b.LangID)

	for n := range b.FirstLeaf {
		page := out[img.PageOffset(n) : img.PageOffset(n)+int64(pageSize)]
		for i := range page {
			page[i] = 0xFF
		}
	}

	for i, leaf := range leaves {
		n := b.FirstLeaf + i
		page := out[img.PageOffset(n) : img.PageOffset(n)+int64(pageSize)]
		copy(page, "PMGL")
		le.PutUint32(page[4:], uint32(pageSize-leafHeader-len(leaf.body)))
		prev, next := int32(n-1), int32(n+1)
		if i == 0 {
			prev = -1
		}
		if i == numLeaves-1 {
			next = -1
		}
		//nolint:gosec // Safe: two's complement reinterpretation
		le.PutUint32(page[12:], uint32(prev))
		//nolint:gosec // Safe: two's complement reinterpretation
		le.PutUint32(page[16:], uint32(next))
		copy(page[leafHeader:], leaf.body)
		for _, idx := range leaf.entries {
			entries[idx].Page = n
		}
	}

	if b.Index {
		var body []byte
		for i, leaf := range leaves {
			name := entries[leaf.entries[0]].Name
			body = AppendEncint(body, uint64(len(name)))
			body = append(body, name...)
			body = AppendEncint(body, uint64(b.FirstLeaf+i))
		}
		if len(body) > pageSize-indexHeader {
			return nil, errors.New("index page overflow")
		}
		page := out[img.PageOffset(img.IndexRoot) : img.PageOffset(img.IndexRoot)+int64(pageSize)]
		copy(page, "PMGI")
		le.PutUint32(page[4:], uint32(pageSize-indexHeader-len(body)))
		copy(page[indexHeader:], body)
	}

	out = append(out, section0...)
	img.Data = out
	img.Entries = entries
	return img, nil
}

type leafLayout struct {
	body    []byte
	entries []int
}

func (b *Builder) layoutLeaves(entries []ImageEntry, pageSize int) ([]leafLayout, error) {
	var leaves []leafLayout
	var cur leafLayout
	for i, e := range entries {
		rec := AppendEncint(nil, uint64(len(e.Name)))
		rec = append(rec, e.Name...)
		rec = AppendEncint(rec, e.Section)
		rec = AppendEncint(rec, e.Offset)
		rec = AppendEncint(rec, e.Length)
		if len(rec) > pageSize-leafHeader {
			return nil, fmt.Errorf("entry %q does not fit in a page", e.Name)
		}
		full := len(cur.body)+len(rec) > pageSize-leafHeader ||
			(b.EntriesPerPage > 0 && len(cur.entries) == b.EntriesPerPage)
		if full {
			leaves = append(leaves, cur)
			cur = leafLayout{}
		}
		cur.body = append(cur.body, rec...)
		cur.entries = append(cur.entries, i)
	}
	if len(cur.entries) > 0 || len(leaves) == 0 {
		leaves = append(leaves, cur)
	}
	return leaves, nil
}

func (b *Builder) controlData() []byte {
	out := make([]byte, 28)
	le := binary.LittleEndian
	le.PutUint32(out[0:], 6)
	copy(out[4:], "LZXC")
	le.PutUint32(out[8:], 2)
	le.PutUint32(out[12:], uint32(b.Encoder.interval()))
	le.PutUint32(out[16:], EncoderWindowSize/0x8000)
	le.PutUint32(out[20:], 2)
	return out
}

func resetTable(st *Stream, uncompressed, frame int) []byte {
	out := make([]byte, 0x28+8*len(st.Offsets))
	le := binary.LittleEndian
	le.PutUint32(out[0:], 2)
	le.PutUint32(out[4:], uint32(len(st.Offsets)))
	le.PutUint32(out[8:], 8)
	le.PutUint32(out[12:], 0x28)
	le.PutUint64(out[16:], uint64(uncompressed))
	le.PutUint64(out[24:], uint64(len(st.Compressed)))
	le.PutUint64(out[32:], uint64(frame))
	for i, off := range st.Offsets {
		le.PutUint64(out[0x28+8*i:], off)
	}
	return out
}

// AppendEncint appends v as a CHM variable-length integer.
func AppendEncint(b []byte, v uint64) []byte {
	var tmp [10]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7F)
	v >>= 7
	for v > 0 {
		i--
		tmp[i] = byte(v&0x7F) | 0x80
		v >>= 7
	}
	return append(b, tmp[i:]...)
}
