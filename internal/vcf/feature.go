package vcf

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// VariantType is a Sequence Ontology inspired label for the shape of a
// ref/alt allele pair.
type VariantType string

// Variant types returned by Classify.
const (
	TypeRemark       VariantType = "remark"
	TypeSNV          VariantType = "SNV"
	TypeSubstitution VariantType = "substitution"
	TypeInversion    VariantType = "inversion"
	TypeInsertion    VariantType = "insertion"
	TypeDeletion     VariantType = "deletion"
	TypeIndel        VariantType = "indel"
)

// Feature is a typed VCF record with interbase coordinates.
type Feature struct {
	ID          string      `json:"id"`
	SeqID       string      `json:"seq_id"`
	Start       int64       `json:"start"`
	End         int64       `json:"end"`
	Type        VariantType `json:"type"`
	Ref         Value       `json:"ref"`
	Alt         Value       `json:"alt"`
	Score       Value       `json:"score"`
	Filter      Value       `json:"filter"`
	Info        Value       `json:"info"`
	Format      Value       `json:"format"`
	Other       []Value     `json:"other"`
	Description string      `json:"description"`
}

// fingerprintColumns is the number of leading columns (CHROM..FORMAT) hashed
// when a record carries no ID.
const fingerprintColumns = ColFirstSample

// BuildFeature converts a record whose Start and End have already been set
// into a Feature. It never fails; malformed lines are expected to have been
// rejected by the reader.
func BuildFeature(rec *Record) *Feature {
	values := NormalizeMissing(rec.Fields)
	value := func(i int) Value {
		if i < len(values) {
			return values[i]
		}
		return Value{}
	}

	ref, alt := rec.Ref(), rec.Alt()
	typ := Classify(ref, alt)

	id := value(ColID)
	if !id.Valid || id.Text == "" {
		id = Present(Fingerprint(rec.Fields[:min(len(rec.Fields), fingerprintColumns)]))
	}

	f := &Feature{
		ID:          id.Text,
		SeqID:       rec.SeqName,
		Start:       rec.Start,
		End:         rec.End,
		Type:        typ,
		Ref:         value(ColRef),
		Alt:         value(ColAlt),
		Score:       value(ColQual),
		Filter:      value(ColFilter),
		Info:        value(ColInfo),
		Format:      value(ColFormat),
		Other:       []Value{},
		Description: fmt.Sprintf("%s: %s -> %s", typ, ref, alt),
	}
	if len(values) > ColFirstSample {
		f.Other = values[ColFirstSample:]
	}
	return f
}

// Classify labels a ref/alt allele pair. alt may hold several comma
// separated alleles. Every input yields exactly one label.
func Classify(ref, alt string) VariantType {
	// No alternate allele: the record is only an annotation.
	if alt == MissingValue {
		return TypeRemark
	}

	alleles := strings.Split(alt, ",")
	minLen, maxLen := len(alleles[0]), len(alleles[0])
	for _, a := range alleles[1:] {
		minLen = min(minLen, len(a))
		maxLen = max(maxLen, len(a))
	}
	refLen := len(ref)

	switch {
	case refLen == 1 && minLen == 1 && maxLen == 1:
		// SNV rather than SNP: population frequency is unknown here.
		return TypeSNV
	case refLen == minLen && refLen == maxLen:
		if len(alleles) == 1 && alleles[0] == reverse(ref) {
			return TypeInversion
		}
		return TypeSubstitution
	case symbolic(alleles):
		// Lengths of <DEL>, breakends and the like say nothing about the change.
		return TypeIndel
	case refLen > maxLen:
		return TypeDeletion
	case refLen < minLen:
		return TypeInsertion
	default:
		return TypeIndel
	}
}

// symbolic reports whether any allele is a symbolic allele or a breakend.
func symbolic(alleles []string) bool {
	for _, a := range alleles {
		if strings.ContainsAny(a, "<>[]") {
			return true
		}
	}
	return false
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// Fingerprint returns a stable identifier for an ordered list of fields.
// Each field is length-prefixed so that ("ab", "c") and ("a", "bc") differ.
func Fingerprint(fields []string) string {
	d := xxhash.New()
	var n [binary.MaxVarintLen64]byte
	for _, f := range fields {
		d.Write(n[:binary.PutUvarint(n[:], uint64(len(f)))])
		d.WriteString(f)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
