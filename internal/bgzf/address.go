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

// Package bgzf provides support for reading block-compressed (BGZF) files
// by virtual address.
package bgzf

import (
	"fmt"
	"sort"
	"strconv"
)

// LastAddress is the maximum valid BGZF address.
const LastAddress = Address(0xffffffffffffffff)

// MaximumBlockSize is the maximum BGZF block size, compressed or not.
const MaximumBlockSize = 65536

// Address stores a BGZF "virtual address". The lower 16 bits store the data
// offset inside the uncompressed block and upper 48 bits store the block
// offset inside the compressed file.
type Address uint64

// NewAddress returns a new Address with the provided offsets.
func NewAddress(blockOffset uint64, dataOffset uint16) Address {
	return Address(blockOffset<<16 | uint64(dataOffset))
}

// BlockOffset returns the offset to the start of the compressed block.
func (v Address) BlockOffset() uint64 {
	return uint64(v >> 16)
}

// DataOffset returns the offset to the data in the uncompressed block.
func (v Address) DataOffset() uint16 {
	return uint16(v & 0xffff)
}

// String returns a representation of v that can be parsed with ParseAddress.
func (v Address) String() string {
	return strconv.FormatUint(uint64(v), 16)
}

// ParseAddress attempts to parse input into an Address.
func ParseAddress(input string) (Address, error) {
	v, err := strconv.ParseUint(input, 16, 64)
	return Address(v), err
}

// Chunk specifies a region from Start to End inside a BGZF file.
type Chunk struct {
	Start, End Address
}

// String returns a human readable description of the receiver.
func (c Chunk) String() string {
	return fmt.Sprintf("[%s-%s]", c.Start, c.End)
}

// FetchRange returns the compressed byte range [start, end) that holds every
// block the chunk touches. The end is an upper bound; it may run past EOF.
func (c Chunk) FetchRange() (start, end int64) {
	return int64(c.Start.BlockOffset()), int64(c.End.BlockOffset()) + MaximumBlockSize
}

// Merge sorts input and joins chunks that intersect. Merge will not join two
// chunks if their combined size could exceed sizeLimit; zero means no limit.
// Overlapping ranges are not trimmed, so a record may be read twice when two
// adjacent chunks share a block boundary.
func Merge(input []Chunk, sizeLimit uint64) []Chunk {
	if len(input) == 0 {
		return nil
	}
	sorted := append([]Chunk(nil), input...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	merged := []Chunk{sorted[0]}
	for _, next := range sorted[1:] {
		output := &merged[len(merged)-1]

		var size uint64
		if next.End.BlockOffset() == output.Start.BlockOffset() {
			size = uint64(next.End.DataOffset()) - uint64(output.Start.DataOffset())
		} else {
			// Estimate using the maximum size for the last block.
			size = next.End.BlockOffset() - output.Start.BlockOffset() + MaximumBlockSize
		}

		if next.Start <= output.End && (sizeLimit == 0 || size <= sizeLimit) {
			if output.End < next.End {
				output.End = next.End
			}
		} else {
			merged = append(merged, next)
		}
	}
	return merged
}
