package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-vcf/internal/store"
	"github.com/inodb/vibe-vcf/internal/tabix"
)

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in   string
		want store.Query
	}{
		{"12", store.Query{SeqID: "12", End: tabix.MaxPosition}},
		{"chr12:", store.Query{SeqID: "chr12", End: tabix.MaxPosition}},
		{"12:25245351", store.Query{SeqID: "12", Start: 25245350, End: 25245351}},
		{"12:25,245,000-25,246,000", store.Query{SeqID: "12", Start: 25244999, End: 25246000}},
		{"12:100-", store.Query{SeqID: "12", Start: 99, End: tabix.MaxPosition}},
		{"", store.Query{End: tabix.MaxPosition}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRegion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRegion_Errors(t *testing.T) {
	for _, in := range []string{"12:abc", "12:0-10", "12:10-5", "12:5-x"} {
		_, err := parseRegion(in)
		assert.ErrorIs(t, err, errUsage, in)
	}
}
