package tabix

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/vibe-vcf/internal/bgzf"
	"github.com/inodb/vibe-vcf/internal/blob"
	"github.com/inodb/vibe-vcf/internal/lazy"
)

// Line is one data line of an indexed file.
type Line struct {
	SeqName string   // sequence name the lines were requested for
	Fields  []string // tab-delimited columns
	Start   int64    // 0-based start
	End     int64    // exclusive end
}

// Overlaps reports whether the line overlaps [start, end). A zero-width line
// at s overlaps when start <= s < end.
func (l *Line) Overlaps(start, end int64) bool {
	if l.Start == l.End {
		return start <= l.Start && l.Start < end
	}
	return l.Start < end && l.End > start
}

// IndexedFile reads ranges of a BGZF file through its tabix index.
type IndexedFile struct {
	index *lazy.Value[*Index]
	data  blob.Object

	// Transform, when set, runs on every parsed line before the overlap
	// test and may rewrite Start and End.
	Transform func(*Line)

	// MinColumns rejects lines with fewer columns as malformed.
	MinColumns int
}

// NewIndexedFile returns an IndexedFile over the given index and data
// objects. The index is loaded on first use.
func NewIndexedFile(index, data blob.Object) *IndexedFile {
	return &IndexedFile{
		index: lazy.NewValue(func(ctx context.Context) (*Index, error) {
			b, err := blob.ReadRange(ctx, index, 0, -1)
			if err != nil {
				return nil, fmt.Errorf("read index: %w", err)
			}
			return ParseIndex(b)
		}),
		data: data,
	}
}

// IndexLoaded waits for the index, loading it if needed. A failed load is
// reported to every caller.
func (f *IndexedFile) IndexLoaded(ctx context.Context) (*Index, error) {
	return f.index.Get(ctx)
}

// ReadData fetches length compressed bytes from offset and returns the
// decompressed contents of every complete block in that range.
func (f *IndexedFile) ReadData(ctx context.Context, offset, length int64) ([]byte, error) {
	raw, err := blob.ReadRange(ctx, f.data, offset, length)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	blocks, err := bgzf.DecodeBlocks(raw, uint64(offset))
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	for _, b := range blocks {
		out.Write(b.Data)
	}
	return out.Bytes(), nil
}

// RefSeqs lists the reference sequences in the index.
func (f *IndexedFile) RefSeqs(ctx context.Context) ([]RefSeq, error) {
	idx, err := f.IndexLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return idx.RefSeqs(), nil
}

// GetLines calls fn, in file order, for every line of seq overlapping
// [start, end). Lines are not deduplicated across chunks. Scanning stops at
// the first error, which is returned.
func (f *IndexedFile) GetLines(ctx context.Context, seq string, start, end int64, fn func(*Line) error) error {
	idx, err := f.IndexLoaded(ctx)
	if err != nil {
		return err
	}

	want := regularize(seq)
	for _, chunk := range idx.Chunks(seq, start, end) {
		if err := ctx.Err(); err != nil {
			return err
		}

		from, to := chunk.FetchRange()
		raw, err := blob.ReadRange(ctx, f.data, from, to-from)
		if err != nil {
			return fmt.Errorf("read chunk %s: %w", chunk, err)
		}
		blocks, err := bgzf.DecodeBlocks(raw, uint64(from))
		if err != nil {
			return fmt.Errorf("decode chunk %s: %w", chunk, err)
		}

		done, err := f.scan(idx, bgzf.ChunkData(blocks, chunk), seq, want, start, end, fn)
		if err != nil || done {
			return err
		}
	}
	return nil
}

// scan emits the overlapping lines of one chunk. done is set once a line
// starts at or past end, since lines are sorted.
func (f *IndexedFile) scan(idx *Index, data []byte, seq, want string, start, end int64, fn func(*Line) error) (done bool, err error) {
	for len(data) > 0 {
		var text []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			text, data = data[:i], data[i+1:]
		} else {
			text, data = data, nil
		}
		text = bytes.TrimRight(text, "\r")
		if len(text) == 0 || text[0] == idx.MetaChar {
			continue
		}

		line, err := f.parseLine(idx, string(text))
		if err != nil {
			return false, err
		}
		if regularize(line.SeqName) != want {
			continue
		}
		line.SeqName = seq

		if f.Transform != nil {
			f.Transform(line)
		}
		if line.Start >= end {
			return true, nil
		}
		if !line.Overlaps(start, end) {
			continue
		}
		if err := fn(line); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (f *IndexedFile) parseLine(idx *Index, text string) (*Line, error) {
	fields := strings.Split(text, "\t")
	need := max(int(idx.ColSeq), int(idx.ColBeg), int(idx.ColEnd), f.MinColumns)
	if len(fields) < need {
		return nil, fmt.Errorf("%w: expected at least %d columns, found %d", ErrMalformedLine, need, len(fields))
	}
	if idx.ColSeq < 1 || idx.ColBeg < 1 {
		return nil, fmt.Errorf("%w: index has no sequence or start column", ErrMalformedLine)
	}

	pos, err := strconv.ParseInt(fields[idx.ColBeg-1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid position %q", ErrMalformedLine, fields[idx.ColBeg-1])
	}

	line := &Line{SeqName: fields[idx.ColSeq-1], Fields: fields, Start: pos}
	if !idx.ZeroBased {
		line.Start--
	}
	line.End = line.Start + 1
	if idx.ColEnd > 0 {
		if e, err := strconv.ParseInt(fields[idx.ColEnd-1], 10, 64); err == nil {
			line.End = e
		}
	}
	return line, nil
}
