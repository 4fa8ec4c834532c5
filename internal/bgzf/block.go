// Copyright 2017 Google Inc.
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

package bgzf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// headerSize is the fixed gzip header plus XLEN.
const headerSize = 12

// ErrTruncated is returned when the input ends inside a block.
var ErrTruncated = errors.New("bgzf: truncated block")

// EOFBlock is the empty block that terminates a BGZF file.
var EOFBlock = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00,
	0x00, 0xff, 0x06, 0x00, 0x42, 0x43, 0x02, 0x00,
	0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// Block is one decompressed BGZF block.
type Block struct {
	Offset uint64 // offset of the compressed block in the file
	Size   int    // compressed size
	Data   []byte
}

// BlockSize returns the total compressed size of the block starting at b[0],
// read from its BC extra subfield.
func BlockSize(b []byte) (int, error) {
	if len(b) < headerSize {
		return 0, ErrTruncated
	}
	if b[0] != 0x1f || b[1] != 0x8b || b[2] != 8 || b[3]&4 == 0 {
		return 0, fmt.Errorf("bgzf: invalid block header %x", b[:4])
	}
	xlen := int(binary.LittleEndian.Uint16(b[10:12]))
	if len(b) < headerSize+xlen {
		return 0, ErrTruncated
	}
	extra := b[headerSize : headerSize+xlen]
	for len(extra) >= 4 {
		slen := int(binary.LittleEndian.Uint16(extra[2:4]))
		if extra[0] == 'B' && extra[1] == 'C' && slen == 2 && len(extra) >= 6 {
			return int(binary.LittleEndian.Uint16(extra[4:6])) + 1, nil
		}
		if len(extra) < 4+slen {
			break
		}
		extra = extra[4+slen:]
	}
	return 0, errors.New("bgzf: missing BC extra field")
}

// DecodeBlock decodes the single BGZF block at the start of b and returns the
// uncompressed data and the compressed block size.
func DecodeBlock(b []byte) ([]byte, int, error) {
	size, err := BlockSize(b)
	if err != nil {
		return nil, 0, err
	}
	if len(b) < size {
		return nil, 0, ErrTruncated
	}

	gzr, err := gzip.NewReader(bytes.NewReader(b[:size]))
	if err != nil {
		return nil, 0, fmt.Errorf("initializing gzip reader: %w", err)
	}
	defer gzr.Close()
	gzr.Multistream(false)

	data, err := io.ReadAll(gzr)
	if err != nil {
		return nil, 0, fmt.Errorf("decompressing data: %w", err)
	}
	return data, size, nil
}

// DecodeBlocks decodes consecutive blocks from b, whose first byte sits at
// file offset base. A trailing partial block is not an error; b is usually a
// range fetch whose end is only an upper bound.
func DecodeBlocks(b []byte, base uint64) ([]Block, error) {
	var blocks []Block
	offset := 0
	for offset < len(b) {
		data, size, err := DecodeBlock(b[offset:])
		if errors.Is(err, ErrTruncated) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("block at offset %d: %w", base+uint64(offset), err)
		}
		blocks = append(blocks, Block{Offset: base + uint64(offset), Size: size, Data: data})
		offset += size
	}
	return blocks, nil
}

// Uncompress decodes every complete block in b and concatenates the data.
func Uncompress(b []byte) ([]byte, error) {
	blocks, err := DecodeBlocks(b, 0)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	for _, blk := range blocks {
		out.Write(blk.Data)
	}
	return out.Bytes(), nil
}

// ChunkData returns the uncompressed bytes between the chunk's start and end
// addresses. blocks must begin with the block at c.Start.BlockOffset(). When
// the end block was not fetched all remaining data is returned.
func ChunkData(blocks []Block, c Chunk) []byte {
	if len(blocks) == 0 || blocks[0].Offset != c.Start.BlockOffset() {
		return nil
	}

	endBlock := c.End.BlockOffset()
	var out bytes.Buffer
	for i, blk := range blocks {
		if blk.Offset > endBlock {
			break
		}
		data := blk.Data
		lo, hi := 0, len(data)
		if i == 0 {
			lo = min(int(c.Start.DataOffset()), len(data))
		}
		if blk.Offset == endBlock {
			hi = min(int(c.End.DataOffset()), len(data))
		}
		if lo < hi {
			out.Write(data[lo:hi])
		}
	}
	return out.Bytes()
}

// EncodeBlock returns a single BGZF block that encodes the bytes in data.
func EncodeBlock(data []byte) ([]byte, error) {
	if len(data) > MaximumBlockSize {
		return nil, errors.New("data exceeds maximum block size")
	}

	var buffer bytes.Buffer
	gzw := gzip.NewWriter(&buffer)
	gzw.Header.Extra = []byte{
		0x42, 0x43, // Extra ID.
		0x02, 0x00, // Length of extra data (2 bytes).
		0x00, 0x00, // BSIZE (filled in after writing the archive).
	}
	gzw.Header.OS = 0xff
	if _, err := gzw.Write(data); err != nil {
		return nil, fmt.Errorf("writing compressed data: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing writer: %w", err)
	}

	bsize := buffer.Len() - 1
	if bsize >= MaximumBlockSize {
		return nil, errors.New("compressed block exceeds maximum block size")
	}
	encoded := buffer.Bytes()
	binary.LittleEndian.PutUint16(encoded[16:18], uint16(bsize))
	return encoded, nil
}
