package store

import (
	"cmp"
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/tabix"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

// Features calls fn for every feature overlapping q, in index order. It waits
// for the header first, so a failed header load fails every query. Features
// seen in more than one index chunk may be reported twice; Feature.ID is
// stable and can be used to drop repeats. An error from fn stops the scan and
// is returned.
func (s *Store) Features(ctx context.Context, q Query, fn func(*vcf.Feature) error) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}

	began := time.Now()
	n := 0
	defer func() { s.metrics.RecordQuery(time.Since(began), n, err) }()

	if _, err := s.header.Get(ctx); err != nil {
		return err
	}

	seq := cmp.Or(q.SeqID, s.cfg.RefSeq)
	if seq == "" {
		return ErrNoSeqID
	}

	err = s.file.GetLines(ctx, seq, q.Start, q.End, func(l *tabix.Line) error {
		n++
		return fn(vcf.BuildFeature(&vcf.Record{
			SeqName: l.SeqName,
			Fields:  l.Fields,
			Start:   l.Start,
			End:     l.End,
		}))
	})
	if err != nil {
		s.logger.Warn("query failed",
			zap.String("seq", seq),
			zap.Int64("start", q.Start),
			zap.Int64("end", q.End),
			zap.Error(err))
	}
	return err
}

// GetFeatures runs Features in the background. onFeature is called for each
// feature, then exactly one of onFinished or onError, after which no callback
// runs. An error returned by onFeature is reported through onError.
func (s *Store) GetFeatures(ctx context.Context, q Query, onFeature func(*vcf.Feature) error, onFinished func(), onError func(error)) {
	go func() {
		if err := s.Features(ctx, q, onFeature); err != nil {
			onError(err)
			return
		}
		onFinished()
	}()
}

// RefSeqs lists the reference sequences of the index once the header is
// loaded.
func (s *Store) RefSeqs(ctx context.Context) ([]tabix.RefSeq, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if _, err := s.header.Get(ctx); err != nil {
		return nil, err
	}
	return s.file.RefSeqs(ctx)
}

// GetRefSeqs is the callback form of RefSeqs.
func (s *Store) GetRefSeqs(ctx context.Context, onRefSeq func(tabix.RefSeq), onFinished func(), onError func(error)) {
	go func() {
		refs, err := s.RefSeqs(ctx)
		if err != nil {
			onError(err)
			return
		}
		for _, r := range refs {
			onRefSeq(r)
		}
		onFinished()
	}()
}
