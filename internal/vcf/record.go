package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// Column indices of a VCF data line.
const (
	ColChrom = iota
	ColPos
	ColID
	ColRef
	ColAlt
	ColQual
	ColFilter
	ColInfo
	ColFormat
	ColFirstSample
)

// MinColumns is the number of columns a data line needs before it can be
// turned into a feature (CHROM through ALT).
const MinColumns = ColAlt + 1

// Record is one tab-delimited data line of a VCF file.
type Record struct {
	SeqName string   // Reference sequence the record was requested for
	Fields  []string // Raw columns: CHROM, POS, ID, REF, ALT, QUAL, FILTER, INFO, FORMAT, samples...
	Start   int64    // 0-based start (interbase)
	End     int64    // Exclusive end
}

// Field returns column i, or the empty string when the line is shorter.
func (r *Record) Field(i int) string {
	if i < len(r.Fields) {
		return r.Fields[i]
	}
	return ""
}

// Ref returns the reference allele column.
func (r *Record) Ref() string {
	return r.Field(ColRef)
}

// Alt returns the alternate allele column.
func (r *Record) Alt() string {
	return r.Field(ColAlt)
}

// SplitLine splits a data line into its tab-delimited columns.
func SplitLine(line string) []string {
	return strings.Split(strings.TrimRight(line, "\r\n"), "\t")
}

// ParsePos parses the 1-based POS column.
func ParsePos(s string) (int64, error) {
	pos, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid position: %s", s)
	}
	return pos, nil
}

// Interval converts a 1-based POS and its REF allele into a half-open,
// 0-based interval. The format has no end column; the extent is the REF length.
func Interval(pos int64, ref string) (start, end int64) {
	start = pos - 1
	return start, start + int64(len(ref))
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func NormalizeChrom(chrom string) string {
	if len(chrom) > 3 && strings.EqualFold(chrom[:3], "chr") {
		return chrom[3:]
	}
	return chrom
}
