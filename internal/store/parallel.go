package store

import (
	"context"
	"runtime"
	"sync"

	"github.com/inodb/vibe-vcf/internal/vcf"
)

// WorkItem is a query tagged with its position in the request.
type WorkItem struct {
	Seq   int
	Query Query
}

// WorkResult holds the features of one query.
type WorkResult struct {
	Seq      int
	Query    Query
	Features []*vcf.Feature
	Err      error
}

// ParallelQuery runs queries on a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, the configured worker count or runtime.NumCPU() is used.
func (s *Store) ParallelQuery(ctx context.Context, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = s.cfg.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				var feats []*vcf.Feature
				err := s.Features(ctx, item.Query, func(f *vcf.Feature) error {
					feats = append(feats, f)
					return nil
				})
				results <- WorkResult{
					Seq:      item.Seq,
					Query:    item.Query,
					Features: feats,
					Err:      err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// QueryItems feeds queries to ParallelQuery, numbered in order.
func QueryItems(queries []Query) <-chan WorkItem {
	ch := make(chan WorkItem, len(queries))
	for i, q := range queries {
		ch <- WorkItem{Seq: i, Query: q}
	}
	close(ch)
	return ch
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
