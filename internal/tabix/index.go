// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tabix reads tabix (TBI) indexes and the BGZF-compressed,
// tab-delimited files they index.
package tabix

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/inodb/vibe-vcf/internal/bgzf"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

const (
	magic = "TBI\x01"

	// minShift and depth define the tabix binning scheme.
	minShift = 14
	depth    = 5

	// linearWindowSize is the span of one linear index entry.
	linearWindowSize = 1 << minShift

	// metadataBin is the pseudo-bin that carries per-reference statistics.
	metadataBin = 37450

	// MaxPosition is the largest coordinate the binning scheme can address.
	MaxPosition = 1 << (minShift + depth*3)
)

// Format codes found in the index header.
const (
	FormatGeneric = 0
	FormatSAM     = 1
	FormatVCF     = 2
)

var (
	// ErrBadMagic is returned when the index does not start with "TBI\1".
	ErrBadMagic = errors.New("tabix: not a tabix index")
	// ErrMalformedLine is returned when a data line lacks required columns
	// or has a non-numeric position.
	ErrMalformedLine = errors.New("tabix: malformed line")
)

// Header is the fixed part of a tabix index describing the indexed file.
type Header struct {
	Format   int32
	ColSeq   int32 // 1-based column of the sequence name
	ColBeg   int32 // 1-based column of the start position
	ColEnd   int32 // 1-based column of the end position, or 0
	MetaChar byte  // lines starting with this byte are skipped
	Skip     int32 // number of leading lines to skip

	ZeroBased bool // positions are 0-based half-open rather than 1-based
}

// RefSeq describes one reference sequence known to the index.
type RefSeq struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Length int64  `json:"length"` // estimated from the linear index
}

type reference struct {
	bins   map[uint32][]bgzf.Chunk
	linear []bgzf.Address
}

// Index is a parsed tabix index.
type Index struct {
	Header
	names []string
	ids   map[string]int // regularized name to reference id
	refs  []reference

	// FirstDataLine is the smallest chunk start in the index, which is where
	// the header of the indexed file ends. Zero when the index has no chunks.
	FirstDataLine bgzf.Address
}

// HeaderLength returns how many compressed bytes from the start of the file
// must be fetched to cover the header: through the end of the block holding
// the first data line, or one full block when that is unknown.
func (idx *Index) HeaderLength() int64 {
	if idx.FirstDataLine == 0 {
		return bgzf.MaximumBlockSize
	}
	end := int64(idx.FirstDataLine.BlockOffset()) + bgzf.MaximumBlockSize - 1
	return end + 1
}

// ParseIndex parses a BGZF-compressed (or already decompressed) tabix index.
func ParseIndex(b []byte) (*Index, error) {
	if len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b {
		raw, err := bgzf.Uncompress(b)
		if err != nil {
			return nil, fmt.Errorf("decompress index: %w", err)
		}
		b = raw
	}
	r := bytes.NewReader(b)

	got := make([]byte, len(magic))
	if _, err := io.ReadFull(r, got); err != nil || string(got) != magic {
		return nil, ErrBadMagic
	}

	var hdr struct {
		Refs, Format, ColSeq, ColBeg, ColEnd, Meta, Skip, NamesLen int32
	}
	if err := read(r, &hdr); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if hdr.Refs < 0 || hdr.NamesLen < 0 {
		return nil, fmt.Errorf("invalid header (%d references, %d name bytes)", hdr.Refs, hdr.NamesLen)
	}

	idx := &Index{
		Header: Header{
			Format:   hdr.Format & 0xffff,
			ColSeq:   hdr.ColSeq,
			ColBeg:   hdr.ColBeg,
			ColEnd:   hdr.ColEnd,
			MetaChar: byte(hdr.Meta),
			Skip:     hdr.Skip,

			ZeroBased: hdr.Format&0x10000 != 0,
		},
		ids:  make(map[string]int),
		refs: make([]reference, hdr.Refs),
	}

	names := make([]byte, hdr.NamesLen)
	if _, err := io.ReadFull(r, names); err != nil {
		return nil, fmt.Errorf("reading names: %w", err)
	}
	if trimmed := strings.TrimRight(string(names), "\x00"); trimmed != "" {
		for _, name := range strings.Split(trimmed, "\x00") {
			idx.ids[regularize(name)] = len(idx.names)
			idx.names = append(idx.names, name)
		}
	}
	if len(idx.names) != int(hdr.Refs) {
		return nil, fmt.Errorf("found %d names for %d references", len(idx.names), hdr.Refs)
	}

	first := bgzf.LastAddress
	for i := range idx.refs {
		ref, err := readReference(r, &first)
		if err != nil {
			return nil, fmt.Errorf("reference %q: %w", idx.names[i], err)
		}
		idx.refs[i] = ref
	}
	if first != bgzf.LastAddress {
		idx.FirstDataLine = first
	}
	return idx, nil
}

func readReference(r io.Reader, first *bgzf.Address) (reference, error) {
	var binCount int32
	if err := read(r, &binCount); err != nil {
		return reference{}, fmt.Errorf("reading bin count: %w", err)
	}
	if binCount < 0 {
		return reference{}, fmt.Errorf("invalid bin count %d", binCount)
	}

	ref := reference{bins: make(map[uint32][]bgzf.Chunk, binCount)}
	for j := int32(0); j < binCount; j++ {
		var b struct {
			ID     uint32
			Chunks int32
		}
		if err := read(r, &b); err != nil {
			return reference{}, fmt.Errorf("reading bin header: %w", err)
		}
		if b.Chunks < 0 {
			return reference{}, fmt.Errorf("invalid chunk count %d", b.Chunks)
		}
		chunks := make([]bgzf.Chunk, b.Chunks)
		if err := read(r, chunks); err != nil {
			return reference{}, fmt.Errorf("reading chunks: %w", err)
		}
		if b.ID == metadataBin {
			continue
		}
		for _, c := range chunks {
			if c.Start < *first {
				*first = c.Start
			}
		}
		ref.bins[b.ID] = append(ref.bins[b.ID], chunks...)
	}

	var intervals int32
	if err := read(r, &intervals); err != nil {
		return reference{}, fmt.Errorf("reading interval count: %w", err)
	}
	if intervals < 0 {
		return reference{}, fmt.Errorf("invalid interval count (%d intervals)", intervals)
	}
	ref.linear = make([]bgzf.Address, intervals)
	if err := read(r, ref.linear); err != nil {
		return reference{}, fmt.Errorf("reading offsets: %w", err)
	}
	return ref, nil
}

func read(r io.Reader, v any) error {
	return binary.Read(r, binary.LittleEndian, v)
}

// regularize maps reference names that differ only by a "chr" prefix or
// case onto one key.
func regularize(name string) string {
	return strings.ToLower(vcf.NormalizeChrom(name))
}

// RefID returns the id of the named reference sequence.
func (idx *Index) RefID(name string) (int, bool) {
	id, ok := idx.ids[regularize(name)]
	return id, ok
}

// RefSeqs returns the reference sequences in index order.
func (idx *Index) RefSeqs() []RefSeq {
	out := make([]RefSeq, len(idx.names))
	for i, name := range idx.names {
		out[i] = RefSeq{ID: i, Name: name, Length: int64(len(idx.refs[i].linear)) * linearWindowSize}
	}
	return out
}

// Chunks returns the merged file chunks that may hold records of the named
// sequence overlapping [start, end). Unknown sequences yield no chunks.
func (idx *Index) Chunks(name string, start, end int64) []bgzf.Chunk {
	id, ok := idx.RefID(name)
	if !ok {
		return nil
	}
	ref := idx.refs[id]
	start = max(start, 0)
	end = min(end, MaxPosition)
	if end <= start {
		return nil
	}

	// Chunks ending before the first record of the start window cannot
	// contain overlapping records.
	var minOffset bgzf.Address
	if n := len(ref.linear); n > 0 {
		minOffset = ref.linear[min(int(start>>minShift), n-1)]
	}

	var chunks []bgzf.Chunk
	for _, b := range binsForRange(uint32(start), uint32(end)) {
		for _, c := range ref.bins[uint32(b)] {
			if c.End > minOffset {
				chunks = append(chunks, c)
			}
		}
	}
	return bgzf.Merge(chunks, 0)
}

// binsForRange lists the bins overlapping [start, end). It is derived from
// the C examples in the SAM/tabix specification.
func binsForRange(start, end uint32) []uint16 {
	if end <= start {
		return nil
	}
	end--
	var bins []uint16
	for l, t, s := uint(0), uint(0), uint(minShift+depth*3); l <= depth; l++ {
		b := t + (uint(start) >> s)
		e := t + (uint(end) >> s)
		for i := b; i <= e; i++ {
			bins = append(bins, uint16(i))
		}
		s -= 3
		t += 1 << (l * 3)
	}
	return bins
}
