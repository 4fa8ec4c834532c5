// Package stats estimates global feature statistics of a store by sampling
// windows of increasing size.
package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

// Defaults used when Options fields are zero.
const (
	DefaultTimeout       = 3 * time.Second
	DefaultTargetCount   = 300
	DefaultInitialWindow = 100
	DefaultMaxRefSeqs    = 1
)

// SampleFunc visits the extent of every feature of seq overlapping
// [start, end).
type SampleFunc func(ctx context.Context, seq string, start, end int64, visit func(start, end int64)) error

// RefSeq is a reference sequence to sample.
type RefSeq struct {
	Name       string
	Start, End int64
}

// Options tunes the estimation.
type Options struct {
	Timeout       time.Duration
	TargetCount   int   // stop doubling once a window holds this many features
	InitialWindow int64 // first window size in bases
	MaxRefSeqs    int   // number of reference sequences sampled concurrently

	now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.TargetCount <= 0 {
		o.TargetCount = DefaultTargetCount
	}
	if o.InitialWindow <= 0 {
		o.InitialWindow = DefaultInitialWindow
	}
	if o.MaxRefSeqs <= 0 {
		o.MaxRefSeqs = DefaultMaxRefSeqs
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Interval is a sampled window.
type Interval struct {
	Seq    string `json:"seq"`
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
	Length int64  `json:"length"`
}

// Stats is the outcome of an estimation.
type Stats struct {
	FeatureCount   int        `json:"featureCount"`
	FeatureDensity float64    `json:"featureDensity"` // features per base
	SampledBases   int64      `json:"sampledBases"`
	Intervals      []Interval `json:"intervals,omitempty"`
}

// Estimate samples a window near the first quarter of ref, doubling it until
// it holds TargetCount features, would exceed the reference, or Timeout has
// elapsed since the first sample.
func Estimate(ctx context.Context, sample SampleFunc, ref RefSeq, opts Options) (*Stats, error) {
	opts = opts.withDefaults()
	began := opts.now()
	refLen := ref.End - ref.Start
	center := float64(ref.Start)*0.75 + float64(ref.End)*0.25

	for length := opts.InitialWindow; ; length *= 2 {
		start := max(0, int64(math.Round(center-float64(length)/2)))
		end := min(int64(math.Round(center+float64(length)/2)), ref.End)

		count := 0
		err := sample(ctx, ref.Name, start, end, func(fs, fe int64) {
			if fs >= start && fe <= end {
				count++
			}
		})
		if err != nil {
			return nil, fmt.Errorf("sample %s:%d-%d: %w", ref.Name, start, end, err)
		}

		if count >= opts.TargetCount || length*2 > refLen || opts.now().Sub(began) >= opts.Timeout {
			// Density is over the bases actually sampled, which is less than
			// length when the window was clipped to the reference.
			width := end - start
			st := &Stats{
				FeatureCount: count,
				SampledBases: width,
				Intervals:    []Interval{{Seq: ref.Name, Start: start, End: end, Length: width}},
			}
			if width > 0 {
				st.FeatureDensity = float64(count) / float64(width)
			}
			return st, nil
		}
	}
}

// EstimateAll runs Estimate on the first MaxRefSeqs references concurrently
// and combines the samples. No references yields zero stats.
func EstimateAll(ctx context.Context, sample SampleFunc, refs []RefSeq, opts Options) (*Stats, error) {
	opts = opts.withDefaults()
	refs = refs[:min(len(refs), opts.MaxRefSeqs)]
	if len(refs) == 0 {
		return &Stats{}, nil
	}

	results := make([]*Stats, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			s, err := Estimate(gctx, sample, ref, opts)
			if err != nil {
				return err
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &Stats{}
	for _, s := range results {
		total.FeatureCount += s.FeatureCount
		total.SampledBases += s.SampledBases
		total.Intervals = append(total.Intervals, s.Intervals...)
	}
	if total.SampledBases > 0 {
		total.FeatureDensity = float64(total.FeatureCount) / float64(total.SampledBases)
	}
	return total, nil
}
