package stats

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// everyN places a one-base feature every n bases.
func everyN(n int64, calls *atomic.Int32) SampleFunc {
	return func(_ context.Context, _ string, start, end int64, visit func(int64, int64)) error {
		if calls != nil {
			calls.Add(1)
		}
		for p := (start / n) * n; p < end; p += n {
			if p+1 > start {
				visit(p, p+1)
			}
		}
		return nil
	}
}

func TestEstimate_DoublesUntilTarget(t *testing.T) {
	var calls atomic.Int32
	s, err := Estimate(context.Background(), everyN(10, &calls), RefSeq{Name: "1", End: 1_000_000}, Options{})
	require.NoError(t, err)

	// 100, 200, ..., 3200 bases: 3200/10 = 320 >= 300.
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, int64(3200), s.SampledBases)
	assert.GreaterOrEqual(t, s.FeatureCount, 300)
	assert.InDelta(t, 0.1, s.FeatureDensity, 0.001)

	iv := s.Intervals[0]
	assert.Equal(t, int64(250000-1600), iv.Start)
	assert.Equal(t, int64(250000+1600), iv.End)
}

func TestEstimate_StopsAtReferenceLength(t *testing.T) {
	var calls atomic.Int32
	s, err := Estimate(context.Background(), everyN(1000, &calls), RefSeq{Name: "1", End: 1000}, Options{})
	require.NoError(t, err)

	// 100, 200, 400; 800*2 > 1000 stops at 800, clipped to [0, 650).
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, int64(650), s.SampledBases)
	assert.Equal(t, int64(0), s.Intervals[0].Start)
	assert.Equal(t, int64(650), s.Intervals[0].End)
}

func TestEstimate_CountsOnlyContainedFeatures(t *testing.T) {
	sample := func(_ context.Context, _ string, start, end int64, visit func(int64, int64)) error {
		visit(start-5, start+5) // straddles the left edge
		visit(start, start+1)
		visit(end-1, end+10) // straddles the right edge
		return nil
	}
	s, err := Estimate(context.Background(), sample, RefSeq{Name: "1", End: 100}, Options{})
	require.NoError(t, err)
	// The 100 base window is clipped to [0, 75).
	assert.Equal(t, 1, s.FeatureCount)
	assert.InDelta(t, 1.0/75, s.FeatureDensity, 1e-9)
}

func TestEstimate_ClippedWindowDensity(t *testing.T) {
	// A feature every 10 bases is a density of 0.1 however the window is clipped.
	s, err := Estimate(context.Background(), everyN(10, nil), RefSeq{Name: "1", End: 1000}, Options{})
	require.NoError(t, err)
	assert.Less(t, s.SampledBases, int64(800))
	assert.InDelta(t, 0.1, s.FeatureDensity, 1e-9)
}

func TestEstimate_Timeout(t *testing.T) {
	var calls atomic.Int32
	clock := time.Unix(0, 0)
	opts := Options{Timeout: time.Second, now: func() time.Time {
		clock = clock.Add(600 * time.Millisecond)
		return clock
	}}

	_, err := Estimate(context.Background(), everyN(1_000_000, &calls), RefSeq{Name: "1", End: 1 << 30}, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEstimate_Error(t *testing.T) {
	boom := errors.New("fetch failed")
	sample := func(context.Context, string, int64, int64, func(int64, int64)) error { return boom }

	_, err := Estimate(context.Background(), sample, RefSeq{Name: "1", End: 1000}, Options{})
	assert.ErrorIs(t, err, boom)

	_, err = EstimateAll(context.Background(), sample, []RefSeq{{Name: "1", End: 1000}}, Options{})
	assert.ErrorIs(t, err, boom)
}

func TestEstimateAll(t *testing.T) {
	refs := []RefSeq{{Name: "1", End: 1000}, {Name: "2", End: 1000}, {Name: "3", End: 1000}}

	s, err := EstimateAll(context.Background(), everyN(10, nil), refs, Options{MaxRefSeqs: 2})
	require.NoError(t, err)
	require.Len(t, s.Intervals, 2)
	// Two windows clipped to [0, 650), 65 features each.
	assert.Equal(t, int64(1300), s.SampledBases)
	assert.Equal(t, 130, s.FeatureCount)
	assert.InDelta(t, 0.1, s.FeatureDensity, 1e-9)

	empty, err := EstimateAll(context.Background(), everyN(10, nil), nil, Options{})
	require.NoError(t, err)
	assert.Zero(t, empty.FeatureDensity)
}
