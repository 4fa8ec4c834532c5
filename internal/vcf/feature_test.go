package vcf

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		ref, alt string
		want     VariantType
	}{
		{"A", ".", TypeRemark},
		{"A", "G", TypeSNV},
		{"A", "G,T", TypeSNV},
		{"AC", "GT", TypeSubstitution},
		{"AG", "CT", TypeSubstitution},
		{"ACG", "GCA", TypeInversion},
		{"AT", "TA", TypeInversion},
		{"AC", "CA,GT", TypeSubstitution},
		{"A", "AT", TypeInsertion},
		{"A", "ATT,AT", TypeInsertion},
		{"", "A", TypeInsertion},
		{"AT", "A", TypeDeletion},
		{"ATG", "A,AT", TypeDeletion},
		{"ATG", "C", TypeDeletion},
		{"A", "G,AT", TypeIndel},
		{"ATG", "A,ACG", TypeIndel},
		{"AT", "G,ATCC", TypeIndel},
		{"A", "<DEL>", TypeIndel},
		{"G", "G]17:198982]", TypeIndel},
	}

	for _, tt := range tests {
		t.Run(tt.ref+">"+tt.alt, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.ref, tt.alt))
		})
	}
}

func newRecord(line string) *Record {
	fields := SplitLine(line)
	pos, _ := ParsePos(fields[ColPos])
	rec := &Record{SeqName: fields[ColChrom], Fields: fields}
	rec.Start, rec.End = Interval(pos, fields[ColRef])
	return rec
}

func TestBuildFeature(t *testing.T) {
	rec := newRecord("ctgA\t100\trs1\tA\tG\t29\tPASS\tDP=3\tGT\t0/1\t1/1")
	f := BuildFeature(rec)

	assert.Equal(t, "rs1", f.ID)
	assert.Equal(t, "ctgA", f.SeqID)
	assert.Equal(t, int64(99), f.Start)
	assert.Equal(t, int64(100), f.End)
	assert.Equal(t, TypeSNV, f.Type)
	assert.Equal(t, Present("A"), f.Ref)
	assert.Equal(t, Present("G"), f.Alt)
	assert.Equal(t, Present("29"), f.Score)
	assert.Equal(t, Present("PASS"), f.Filter)
	assert.Equal(t, Present("DP=3"), f.Info)
	assert.Equal(t, Present("GT"), f.Format)
	assert.Equal(t, []Value{Present("0/1"), Present("1/1")}, f.Other)
	assert.Equal(t, "SNV: A -> G", f.Description)
}

func TestBuildFeature_Missing(t *testing.T) {
	rec := newRecord("ctgA\t100\t.\tAT\t.\t.\t.\t.")
	f := BuildFeature(rec)

	assert.Equal(t, TypeRemark, f.Type)
	assert.Equal(t, "remark: AT -> .", f.Description)
	assert.False(t, f.Alt.Valid)
	assert.False(t, f.Score.Valid)
	assert.False(t, f.Format.Valid)
	assert.Empty(t, f.Other)
	assert.Len(t, f.ID, 16)
	assert.Equal(t, Fingerprint(rec.Fields), f.ID)

	b, err := json.Marshal(f)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Nil(t, m["alt"])
	assert.Equal(t, "AT", m["ref"])
	assert.Equal(t, []any{}, m["other"])
}

func TestBuildFeature_ShortLine(t *testing.T) {
	f := BuildFeature(newRecord("ctgA\t5\t.\tA\tAC"))
	assert.Equal(t, TypeInsertion, f.Type)
	assert.False(t, f.Score.Valid)
	assert.False(t, f.Info.Valid)
	assert.Equal(t, int64(4), f.Start)
	assert.Equal(t, int64(5), f.End)
}

func TestBuildFeature_ZeroWidth(t *testing.T) {
	f := BuildFeature(newRecord("ctgA\t10\t.\t\tA"))
	assert.Equal(t, f.Start, f.End)
	assert.Equal(t, TypeInsertion, f.Type)
}

func TestFingerprint(t *testing.T) {
	a := []string{"1", "100", ".", "A", "G", ".", ".", ".", "."}
	b := append([]string(nil), a...)

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 16)

	b[4] = "T"
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))

	// Field boundaries matter.
	assert.NotEqual(t, Fingerprint([]string{"ab", "c"}), Fingerprint([]string{"a", "bc"}))
}

func TestFingerprint_SampleColumnsIgnored(t *testing.T) {
	base := "1\t100\t.\tA\tG\t.\t.\t.\tGT"
	f1 := BuildFeature(newRecord(base + "\t0/1"))
	f2 := BuildFeature(newRecord(base + "\t1/1"))
	assert.Equal(t, f1.ID, f2.ID)
}

func TestValue(t *testing.T) {
	assert.Equal(t, "x", Value{}.Or("x"))
	assert.Equal(t, "a", Present("a").Or("x"))

	var v Value
	require.NoError(t, json.Unmarshal([]byte(`"q"`), &v))
	assert.Equal(t, Present("q"), v)
	require.NoError(t, json.Unmarshal([]byte(`null`), &v))
	assert.False(t, v.Valid)

	assert.Equal(t, []Value{Present("a"), {}, Present("")}, NormalizeMissing([]string{"a", ".", ""}))
}

func TestNormalizeChrom(t *testing.T) {
	assert.Equal(t, "1", NormalizeChrom("chr1"))
	assert.Equal(t, "X", NormalizeChrom("CHRX"))
	assert.Equal(t, "chr", NormalizeChrom("chr"))
	assert.Equal(t, "ctgA", NormalizeChrom("ctgA"))
}
