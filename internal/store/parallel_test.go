package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func regionQueries(n int) []Query {
	qs := make([]Query, n)
	for i := range qs {
		switch i % 3 {
		case 0:
			qs[i] = Query{SeqID: "ctgA", Start: 0, End: 50000}
		case 1:
			qs[i] = Query{SeqID: "ctgB", Start: 0, End: 10}
		default:
			qs[i] = Query{SeqID: "ctgA", Start: 1000, End: 2000}
		}
	}
	return qs
}

func TestParallelQuery_OrderPreservation(t *testing.T) {
	s := openStore(t, testHeader+testBody, Config{}, healthy())

	results := s.ParallelQuery(context.Background(), QueryItems(regionQueries(60)), 8)

	var collected []int
	err := OrderedCollect(results, func(r WorkResult) error {
		require.NoError(t, r.Err)
		collected = append(collected, r.Seq)
		switch r.Seq % 3 {
		case 0:
			assert.Len(t, r.Features, 4)
		case 1:
			assert.Equal(t, []string{"v5"}, ids(r.Features))
		default:
			assert.Empty(t, r.Features)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, collected, 60)
	for i, seq := range collected {
		assert.Equal(t, i, seq, "result %d out of order", i)
	}
}

func TestParallelQuery_ConfiguredWorkers(t *testing.T) {
	s := openStore(t, testHeader+testBody, Config{Workers: 1}, healthy())

	results := s.ParallelQuery(context.Background(), QueryItems(regionQueries(10)), 0)

	count := 0
	err := OrderedCollect(results, func(r WorkResult) error {
		assert.Equal(t, count, r.Seq)
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestParallelQuery_EmptyInput(t *testing.T) {
	s := openStore(t, testHeader+testBody, Config{}, healthy())

	results := s.ParallelQuery(context.Background(), QueryItems(nil), 4)

	count := 0
	err := OrderedCollect(results, func(WorkResult) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestParallelQuery_ErrorsPerQuery(t *testing.T) {
	s := openStore(t, testHeader+testBody, Config{}, healthy())

	results := s.ParallelQuery(context.Background(), QueryItems([]Query{
		{SeqID: "ctgA", Start: 0, End: 100},
		{Start: 0, End: 100},
		{SeqID: "ctgB", Start: 0, End: 10},
	}), 2)

	var errs []error
	err := OrderedCollect(results, func(r WorkResult) error {
		errs = append(errs, r.Err)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], ErrNoSeqID)
	assert.NoError(t, errs[2])
}

func TestOrderedCollect_EarlyError(t *testing.T) {
	s := openStore(t, testHeader+testBody, Config{}, healthy())

	results := s.ParallelQuery(context.Background(), QueryItems(regionQueries(30)), 4)

	count := 0
	err := OrderedCollect(results, func(WorkResult) error {
		count++
		if count == 5 {
			return fmt.Errorf("stop at 5")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 5, count)
}
