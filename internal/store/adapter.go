package store

import (
	"github.com/inodb/vibe-vcf/internal/tabix"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

// NormalizeCoordinates gives a VCF line the half-open, 0-based extent of its
// REF allele. An empty REF yields a zero-width line at POS-1.
func NormalizeCoordinates(l *tabix.Line) {
	if len(l.Fields) <= vcf.ColRef {
		return
	}
	pos, err := vcf.ParsePos(l.Fields[vcf.ColPos])
	if err != nil {
		return
	}
	l.Start, l.End = vcf.Interval(pos, l.Fields[vcf.ColRef])
}
