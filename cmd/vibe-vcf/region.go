package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/vibe-vcf/internal/store"
	"github.com/inodb/vibe-vcf/internal/tabix"
)

// parseRegion parses a samtools-style region: "seq", "seq:pos" or
// "seq:start-end" with 1-based inclusive positions. Commas in numbers are
// ignored. The result is a 0-based half-open query. An empty string queries
// the default reference sequence over its whole length.
func parseRegion(s string) (store.Query, error) {
	s = strings.TrimSpace(s)
	seq, span, hasSpan := strings.Cut(s, ":")
	if !hasSpan || span == "" {
		return store.Query{SeqID: seq, Start: 0, End: tabix.MaxPosition}, nil
	}

	span = strings.ReplaceAll(span, ",", "")
	from, to, hasEnd := strings.Cut(span, "-")

	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil || start < 1 {
		return store.Query{}, fmt.Errorf("%w: bad start in region %q", errUsage, s)
	}
	end := start
	if hasEnd {
		if to == "" {
			end = tabix.MaxPosition
		} else if end, err = strconv.ParseInt(to, 10, 64); err != nil {
			return store.Query{}, fmt.Errorf("%w: bad end in region %q", errUsage, s)
		}
	}
	if end < start {
		return store.Query{}, fmt.Errorf("%w: end before start in region %q", errUsage, s)
	}

	return store.Query{SeqID: seq, Start: start - 1, End: end}, nil
}
