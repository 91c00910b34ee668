// Package chmtest builds synthetic CHM containers and LZX streams for tests.
//
// The LZX encoder only emits verbatim blocks with fixed, flat code lengths:
// every main tree symbol gets a 9-bit code and every length tree symbol an
// 8-bit code. It is not a compressor worth using outside tests.
package chmtest

import (
	"fmt"

	"github.com/ZaparooProject/go-chm/lzx"
)

const (
	// DefaultFrameSize is the decoded size of one window.
	DefaultFrameSize = 0x8000

	// EncoderWindowSize is the LZX window size the encoder assumes.
	EncoderWindowSize = 1 << 16

	mainSymbols   = lzx.NumChars + 32*8
	mainCodeBits  = 9
	lengthCodeBit = 8
	maxDistance   = 1 << 15
)

// BitWriter packs bits most significant first into 16-bit little-endian
// words, the order lzx reads them in.
type BitWriter struct {
	buf []byte
	acc uint32
	n   int
}

// WriteBits appends the low n bits of v.
func (w *BitWriter) WriteBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.acc = w.acc<<1 | (v>>uint(i))&1
		w.n++
		if w.n == 16 {
			w.buf = append(w.buf, byte(w.acc), byte(w.acc>>8))
			w.acc = 0
			w.n = 0
		}
	}
}

// Bytes pads the pending word with zeros and returns everything written so
// far. The writer is empty afterwards.
func (w *BitWriter) Bytes() []byte {
	if w.n > 0 {
		w.WriteBits(0, 16-w.n)
	}
	out := w.buf
	w.buf = nil
	return out
}

// OpKind identifies an encoder operation.
type OpKind int

const (
	// OpLiteral emits one byte.
	OpLiteral OpKind = iota
	// OpMatch copies Length bytes from Offset bytes back.
	OpMatch
	// OpRepeat copies Length bytes using repeated-offset register Register.
	OpRepeat
)

// Op is one encoder operation.
type Op struct {
	Kind     OpKind
	Byte     byte
	Offset   int
	Register int
	Length   int
}

// Lit returns literal operations for each byte of s.
func Lit(s string) []Op {
	ops := make([]Op, 0, len(s))
	for i := range len(s) {
		ops = append(ops, Op{Kind: OpLiteral, Byte: s[i], Length: 1})
	}
	return ops
}

// Match returns a back-reference operation.
func Match(offset, length int) Op {
	return Op{Kind: OpMatch, Offset: offset, Length: length}
}

// Repeat returns an operation reusing register r (0, 1 or 2).
func Repeat(r, length int) Op {
	return Op{Kind: OpRepeat, Register: r, Length: length}
}

// Stream is an encoded LZX stream with its reset table offsets.
type Stream struct {
	Compressed []byte
	// Offsets holds the compressed start of each window.
	Offsets []uint64
	// Plain is the decoded content.
	Plain []byte
	// MaxOffset is the largest offset register value the stream used.
	MaxOffset uint32
}

// Encoder writes verbatim LZX for a 64 KiB window.
type Encoder struct {
	// FrameSize is the decoded size of each window. Defaults to 0x8000.
	// Containers need it to be at least lzx.MaxMatch so that every window
	// starts at a distinct compressed offset.
	FrameSize int
	// ResetInterval is the number of windows per reset group. Defaults to 2.
	ResetInterval int
	// BlockSize caps the decoded size of one block. Zero puts one block in
	// each reset group.
	BlockSize int
	// TranslationSize, when non-zero, is written in each group header.
	TranslationSize uint32
}

func (e *Encoder) frame() int {
	if e.FrameSize <= 0 {
		return DefaultFrameSize
	}
	return e.FrameSize
}

func (e *Encoder) interval() int {
	if e.ResetInterval <= 0 {
		return 2
	}
	return e.ResetInterval
}

// Encode encodes ops. Operations may cross window boundaries but not reset
// group boundaries, and matches may only reach back within their group.
func (e *Encoder) Encode(ops []Op) (*Stream, error) {
	frame := e.frame()
	group := frame * e.interval()

	plain, err := e.simulate(ops, group)
	if err != nil {
		return nil, err
	}
	blocks := e.splitBlocks(ops, group)

	st := &Stream{Plain: plain, Offsets: []uint64{0}}
	var w BitWriter
	var prevMain [mainSymbols]uint8
	var prevLength [lzx.NumSecondaryLengths]uint8
	r := [3]uint32{1, 1, 1}
	pos := 0
	next := frame
	total := len(plain)

	for _, b := range blocks {
		if pos%group == 0 {
			prevMain = [mainSymbols]uint8{}
			prevLength = [lzx.NumSecondaryLengths]uint8{}
			r = [3]uint32{1, 1, 1}
			if e.TranslationSize != 0 {
				w.WriteBits(1, 1)
				w.WriteBits(e.TranslationSize>>16, 16)
				w.WriteBits(e.TranslationSize&0xFFFF, 16)
			} else {
				w.WriteBits(0, 1)
			}
		}

		size := 0
		for _, op := range ops[b.start:b.end] {
			size += op.Length
		}
		w.WriteBits(lzx.BlockTypeVerbatim, 3)
		//nolint:gosec // Safe: block sizes are bounded by the reset group
		w.WriteBits(uint32(size>>8), 16)
		//nolint:gosec // Safe: masked
		w.WriteBits(uint32(size&0xFF), 8)
		writeLengths(&w, prevMain[:lzx.NumChars], mainCodeBits)
		writeLengths(&w, prevMain[lzx.NumChars:], mainCodeBits)
		writeLengths(&w, prevLength[:], lengthCodeBit)
		for i := range prevMain {
			prevMain[i] = mainCodeBits
		}
		for i := range prevLength {
			prevLength[i] = lengthCodeBit
		}

		for _, op := range ops[b.start:b.end] {
			e.writeOp(&w, op, &r, st)
			pos += op.Length
			for pos >= next && next < total {
				st.Compressed = append(st.Compressed, w.Bytes()...)
				st.Offsets = append(st.Offsets, uint64(len(st.Compressed)))
				next += frame
			}
		}
	}
	st.Compressed = append(st.Compressed, w.Bytes()...)
	return st, nil
}

type blockSpan struct{ start, end int }

// splitBlocks cuts ops into blocks at group boundaries and, when BlockSize
// is set, whenever a block reaches BlockSize decoded bytes.
func (e *Encoder) splitBlocks(ops []Op, group int) []blockSpan {
	var spans []blockSpan
	start, pos, size := 0, 0, 0
	for i, op := range ops {
		if i > start && (pos%group == 0 || (e.BlockSize > 0 && size >= e.BlockSize)) {
			spans = append(spans, blockSpan{start, i})
			start, size = i, 0
		}
		pos += op.Length
		size += op.Length
	}
	if start < len(ops) {
		spans = append(spans, blockSpan{start, len(ops)})
	}
	return spans
}

// simulate produces the decoded output of ops and validates them.
func (e *Encoder) simulate(ops []Op, group int) ([]byte, error) {
	var out []byte
	r := [3]int{1, 1, 1}
	for i, op := range ops {
		pos := len(out)
		if pos%group == 0 {
			r = [3]int{1, 1, 1}
		}
		if op.Length < 1 || (op.Kind != OpLiteral && (op.Length < lzx.MinMatch || op.Length > lzx.MaxMatch)) {
			return nil, fmt.Errorf("op %d: bad length %d", i, op.Length)
		}
		if pos/group != (pos+op.Length-1)/group {
			return nil, fmt.Errorf("op %d crosses a reset group boundary", i)
		}
		var offset int
		switch op.Kind {
		case OpLiteral:
			out = append(out, op.Byte)
			continue
		case OpMatch:
			offset = op.Offset
			r[2], r[1], r[0] = r[1], r[0], offset
		case OpRepeat:
			offset = r[op.Register]
			if op.Register != 0 {
				r[op.Register] = r[0]
				r[0] = offset
			}
		}
		if offset < 1 || offset > maxDistance || pos-offset < (pos/group)*group {
			return nil, fmt.Errorf("op %d: offset %d out of range", i, offset)
		}
		for range op.Length {
			out = append(out, out[len(out)-offset])
		}
	}
	return out, nil
}

func (e *Encoder) writeOp(w *BitWriter, op Op, r *[3]uint32, st *Stream) {
	if op.Kind == OpLiteral {
		w.WriteBits(uint32(op.Byte), mainCodeBits)
		return
	}

	header := min(op.Length-lzx.MinMatch, lzx.NumPrimaryLengths)
	var slot int
	var extra uint32
	switch op.Kind {
	case OpRepeat:
		slot = op.Register
		offset := r[op.Register]
		if op.Register != 0 {
			r[op.Register] = r[0]
			r[0] = offset
		}
	default:
		//nolint:gosec // Safe: offsets are validated by simulate
		off := uint32(op.Offset)
		slot, extra = lzx.PositionSlot(off + 2)
		r[2], r[1], r[0] = r[1], r[0], off
		st.MaxOffset = max(st.MaxOffset, off)
	}

	//nolint:gosec // Safe: symbol is below mainSymbols
	w.WriteBits(uint32(lzx.NumChars+slot*8+header), mainCodeBits)
	if header == lzx.NumPrimaryLengths {
		//nolint:gosec // Safe: footer is below NumSecondaryLengths
		w.WriteBits(uint32(op.Length-lzx.MinMatch-lzx.NumPrimaryLengths), lengthCodeBit)
	}
	if slot >= 4 {
		w.WriteBits(extra, lzx.ExtraBits(slot))
	}
}

// writeLengths writes a pretree with 4-bit codes for symbols 0-15 and then
// the deltas that turn prev into a flat list of length bits.
func writeLengths(w *BitWriter, prev []uint8, bits uint8) {
	for sym := range 20 {
		if sym < 16 {
			w.WriteBits(4, 4)
		} else {
			w.WriteBits(0, 4)
		}
	}
	for _, p := range prev {
		w.WriteBits(uint32((int(p)-int(bits)+17)%17), 4)
	}
}

// EncodeBytes greedily compresses data. Matches never reach back past the
// start of their reset group but may run across window boundaries.
func (e *Encoder) EncodeBytes(data []byte) (*Stream, error) {
	group := e.frame() * e.interval()
	var ops []Op
	chains := make(map[[3]byte][]int)
	lastOffset := 1

	for i := 0; i < len(data); {
		groupStart := (i / group) * group
		if i == groupStart {
			lastOffset = 1
		}
		groupEnd := min(groupStart+group, len(data))
		bestLen, bestOff := 0, 0
		if i+3 <= groupEnd {
			key := [3]byte{data[i], data[i+1], data[i+2]}
			cands := chains[key]
			for j := len(cands) - 1; j >= 0 && j >= len(cands)-16; j-- {
				c := cands[j]
				if c < groupStart || i-c > maxDistance {
					break
				}
				n := 0
				for i+n < groupEnd && n < lzx.MaxMatch && data[c+n] == data[i+n] {
					n++
				}
				if n > bestLen {
					bestLen, bestOff = n, i-c
				}
			}
		}

		step := 1
		switch {
		case bestLen >= 3 && bestOff == lastOffset:
			ops = append(ops, Repeat(0, bestLen))
			step = bestLen
		case bestLen >= 3:
			ops = append(ops, Match(bestOff, bestLen))
			lastOffset = bestOff
			step = bestLen
		default:
			ops = append(ops, Op{Kind: OpLiteral, Byte: data[i], Length: 1})
		}
		for k := i; k < i+step; k++ {
			if k+3 <= len(data) {
				key := [3]byte{data[k], data[k+1], data[k+2]}
				chains[key] = append(chains[key], k)
			}
		}
		i += step
	}
	return e.Encode(ops)
}
