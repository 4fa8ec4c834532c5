// Package tabixtest builds small BGZF-compressed VCF files and their tabix
// indexes for tests.
package tabixtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/inodb/vibe-vcf/internal/bgzf"
)

const (
	minShift    = 14
	metadataBin = 37450
)

// Options controls the layout of the built file.
type Options struct {
	// LinesPerBlock starts a new BGZF block after this many data lines.
	// Zero keeps all data lines in as few blocks as possible.
	LinesPerBlock int
}

// Fixture is a compressed VCF file and its tabix index.
type Fixture struct {
	Data  []byte
	Index []byte
}

type record struct {
	beg, end   int64
	start, fin bgzf.Address
}

type reference struct {
	name    string
	records []record
}

// Build compresses text, a complete VCF file whose data lines are sorted by
// position within each sequence, and indexes it.
func Build(text string, opts Options) (*Fixture, error) {
	var data bytes.Buffer
	w := bgzf.NewWriter(&data)

	var refs []*reference
	byName := make(map[string]*reference)
	dataLines := 0
	headerDone := false

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if _, err := w.Write([]byte(line)); err != nil {
				return nil, err
			}
			continue
		}
		if !headerDone {
			// Data starts on a fresh block, as the header hint assumes.
			if err := w.Flush(); err != nil {
				return nil, err
			}
			headerDone = true
		}
		if opts.LinesPerBlock > 0 && dataLines > 0 && dataLines%opts.LinesPerBlock == 0 {
			if err := w.Flush(); err != nil {
				return nil, err
			}
		}

		fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %q: too few columns", line)
		}
		pos, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", line, err)
		}
		beg := pos - 1
		end := beg + max(int64(len(fields[3])), 1)

		rec := record{beg: beg, end: end, start: w.Address()}
		if _, err := w.Write([]byte(line)); err != nil {
			return nil, err
		}
		rec.fin = w.Address()
		dataLines++

		ref, ok := byName[fields[0]]
		if !ok {
			ref = &reference{name: fields[0]}
			byName[fields[0]] = ref
			refs = append(refs, ref)
		}
		ref.records = append(ref.records, rec)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	raw, err := encodeIndex(refs)
	if err != nil {
		return nil, err
	}
	var index bytes.Buffer
	iw := bgzf.NewWriter(&index)
	if _, err := iw.Write(raw); err != nil {
		return nil, err
	}
	if err := iw.Close(); err != nil {
		return nil, err
	}

	return &Fixture{Data: data.Bytes(), Index: index.Bytes()}, nil
}

// Must is Build that fails the test on error.
func Must(tb testing.TB, text string, opts Options) *Fixture {
	tb.Helper()
	f, err := Build(text, opts)
	if err != nil {
		tb.Fatalf("build tabix fixture: %v", err)
	}
	return f
}

func reg2bin(beg, end int64) uint32 {
	end--
	switch {
	case beg>>14 == end>>14:
		return ((1<<15)-1)/7 + uint32(beg>>14)
	case beg>>17 == end>>17:
		return ((1<<12)-1)/7 + uint32(beg>>17)
	case beg>>20 == end>>20:
		return ((1<<9)-1)/7 + uint32(beg>>20)
	case beg>>23 == end>>23:
		return ((1<<6)-1)/7 + uint32(beg>>23)
	case beg>>26 == end>>26:
		return ((1<<3)-1)/7 + uint32(beg>>26)
	}
	return 0
}

func encodeIndex(refs []*reference) ([]byte, error) {
	var names bytes.Buffer
	for _, ref := range refs {
		names.WriteString(ref.name)
		names.WriteByte(0)
	}

	var buf bytes.Buffer
	put := func(v any) {
		binary.Write(&buf, binary.LittleEndian, v)
	}

	buf.WriteString("TBI\x01")
	put([]int32{
		int32(len(refs)),
		2,   // format: VCF
		1,   // sequence column
		2,   // start column
		0,   // no end column
		'#', // meta character
		0,   // lines to skip
		int32(names.Len()),
	})
	buf.Write(names.Bytes())

	for _, ref := range refs {
		bins := make(map[uint32][]bgzf.Chunk)
		var linear []bgzf.Address
		for _, rec := range ref.records {
			id := reg2bin(rec.beg, rec.end)
			chunks := bins[id]
			if n := len(chunks); n > 0 && chunks[n-1].End == rec.start {
				chunks[n-1].End = rec.fin
			} else {
				chunks = append(chunks, bgzf.Chunk{Start: rec.start, End: rec.fin})
			}
			bins[id] = chunks

			for win := rec.beg >> minShift; win <= (rec.end-1)>>minShift; win++ {
				for int64(len(linear)) <= win {
					linear = append(linear, 0)
				}
				if linear[win] == 0 {
					linear[win] = rec.start
				}
			}
		}
		for i := 1; i < len(linear); i++ {
			if linear[i] == 0 {
				linear[i] = linear[i-1]
			}
		}

		first, last := ref.records[0], ref.records[len(ref.records)-1]
		bins[metadataBin] = []bgzf.Chunk{
			{Start: first.start, End: last.fin},
			{Start: bgzf.Address(len(ref.records)), End: 0},
		}

		ids := make([]uint32, 0, len(bins))
		for id := range bins {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		put(int32(len(ids)))
		for _, id := range ids {
			put(id)
			put(int32(len(bins[id])))
			put(bins[id])
		}
		put(int32(len(linear)))
		put(linear)
	}
	return buf.Bytes(), nil
}
