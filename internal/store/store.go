// Package store serves VCF features from a BGZF-compressed, tabix-indexed
// file. A Store loads the index, parses the header once and estimates
// feature statistics in the background, then answers range queries.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/blob"
	"github.com/inodb/vibe-vcf/internal/lazy"
	"github.com/inodb/vibe-vcf/internal/metrics"
	"github.com/inodb/vibe-vcf/internal/stats"
	"github.com/inodb/vibe-vcf/internal/tabix"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

var (
	// ErrFetch wraps every failure of the underlying byte sources.
	ErrFetch = errors.New("store: fetch failed")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")
	// ErrNoSeqID is returned for a query without a sequence when the store
	// has no default reference sequence.
	ErrNoSeqID = errors.New("store: query has no sequence name")
)

// Config describes where a store reads its data.
type Config struct {
	// URLTemplate locates the BGZF data file. "{refseq}" is replaced by RefSeq.
	URLTemplate string
	// TBIURLTemplate locates the tabix index; defaults to URLTemplate + ".tbi".
	TBIURLTemplate string
	// RefSeq is substituted into the templates and used for queries that
	// name no sequence.
	RefSeq string

	StatsTimeout time.Duration
	MaxRefSeqs   int
	Workers      int // parallel query workers; zero uses runtime.NumCPU
	CacheEntries int   // cached byte ranges of the data file
	CacheBytes   int64 // total bytes those ranges may hold

	Blob blob.Options
}

func (c Config) withDefaults() Config {
	if c.TBIURLTemplate == "" {
		c.TBIURLTemplate = c.URLTemplate + ".tbi"
	}
	return c
}

// State is a step of the store lifecycle.
type State int

const (
	Unopened State = iota
	HeaderLoading
	HeaderReady
	StatsLoading
	Ready
	Failed
)

var stateNames = []string{"unopened", "header_loading", "header_ready", "stats_loading", "ready", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Query selects the features of SeqID overlapping [Start, End).
type Query struct {
	SeqID string `json:"seq_id"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

// ObjectOpener opens a byte source by URL.
type ObjectOpener func(ctx context.Context, url string) (blob.Object, error)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithHeaderParser replaces vcf.ParseHeader.
func WithHeaderParser(fn func([]byte) *vcf.Header) Option {
	return func(s *Store) { s.parseHeader = fn }
}

// WithObjectOpener replaces blob.Open for both byte sources.
func WithObjectOpener(fn ObjectOpener) Option {
	return func(s *Store) { s.open = fn }
}

// WithMetrics records store activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Store answers feature queries over one indexed VCF file.
type Store struct {
	cfg         Config
	logger      *zap.Logger
	metrics     *metrics.Metrics
	parseHeader func([]byte) *vcf.Header
	open        ObjectOpener

	data, index blob.Object
	file        *tabix.IndexedFile

	header        *lazy.Value[*vcf.Header]
	statsReady    *lazy.Signal[*stats.Stats]
	featuresReady *lazy.Signal[struct{}]

	mu     sync.Mutex
	state  State
	err    error
	closed atomic.Bool
}

// Open resolves the byte sources named by cfg and starts loading the index,
// the header and the statistics in the background. It returns as soon as
// both sources are opened; load failures surface through the readiness
// signals and every later call.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.URLTemplate == "" {
		return nil, errors.New("store: no data URL")
	}
	cfg = cfg.withDefaults()

	s := &Store{
		cfg:           cfg,
		logger:        zap.NewNop(),
		parseHeader:   vcf.ParseHeader,
		statsReady:    lazy.NewSignal[*stats.Stats](),
		featuresReady: lazy.NewSignal[struct{}](),
	}
	for _, o := range opts {
		o(s)
	}
	if s.open == nil {
		s.open = func(ctx context.Context, url string) (blob.Object, error) {
			return blob.Open(ctx, url, cfg.Blob)
		}
	}

	dataURL := blob.ResolveTemplate(cfg.URLTemplate, cfg.RefSeq)
	indexURL := blob.ResolveTemplate(cfg.TBIURLTemplate, cfg.RefSeq)
	data, err := s.open(ctx, dataURL)
	if err != nil {
		return nil, fmt.Errorf("open data %s: %w", dataURL, err)
	}
	index, err := s.open(ctx, indexURL)
	if err != nil {
		data.Close()
		return nil, fmt.Errorf("open index %s: %w", indexURL, err)
	}
	s.data = fetchObject{blob.NewCache(data, cfg.CacheEntries, cfg.CacheBytes)}
	s.index = fetchObject{index}

	s.file = tabix.NewIndexedFile(s.index, s.data)
	s.file.Transform = NormalizeCoordinates
	s.file.MinColumns = vcf.MinColumns
	s.header = lazy.NewValue(s.loadHeader)

	s.logger.Debug("store opened", zap.String("data", dataURL), zap.String("index", indexURL))
	s.setState(HeaderLoading)
	go s.init(context.WithoutCancel(ctx))
	return s, nil
}

func (s *Store) init(ctx context.Context) {
	if _, err := s.header.Get(ctx); err != nil {
		s.fail(err)
		return
	}
	s.setState(HeaderReady)

	s.setState(StatsLoading)
	st, err := s.estimateStats(ctx)
	if err != nil {
		s.fail(fmt.Errorf("estimate stats: %w", err))
		return
	}
	s.metrics.SetFeatureDensity(st.FeatureDensity)
	s.statsReady.Resolve(st)
	s.featuresReady.Resolve(struct{}{})
	s.setState(Ready)
}

func (s *Store) loadHeader(ctx context.Context) (*vcf.Header, error) {
	idx, err := s.file.IndexLoaded(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	b, err := s.file.ReadData(ctx, 0, idx.HeaderLength())
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	s.metrics.RecordHeaderParse()
	h := s.parseHeader(b)
	s.logger.Debug("header parsed",
		zap.Int("bytes", len(b)),
		zap.Int("samples", len(h.Samples)))
	return h, nil
}

func (s *Store) estimateStats(ctx context.Context) (*stats.Stats, error) {
	refs, err := s.file.RefSeqs(ctx)
	if err != nil {
		return nil, err
	}

	var sample []stats.RefSeq
	for _, r := range refs {
		if s.cfg.RefSeq != "" && !sameSeq(r.Name, s.cfg.RefSeq) {
			continue
		}
		sample = append(sample, stats.RefSeq{Name: r.Name, End: r.Length})
	}

	return stats.EstimateAll(ctx, s.sampleFeatures, sample, stats.Options{
		Timeout:    s.cfg.StatsTimeout,
		MaxRefSeqs: s.cfg.MaxRefSeqs,
	})
}

func (s *Store) sampleFeatures(ctx context.Context, seq string, start, end int64, visit func(int64, int64)) error {
	return s.file.GetLines(ctx, seq, start, end, func(l *tabix.Line) error {
		visit(l.Start, l.End)
		return nil
	})
}

func sameSeq(a, b string) bool {
	return strings.EqualFold(vcf.NormalizeChrom(a), vcf.NormalizeChrom(b))
}

func (s *Store) setState(st State) {
	s.mu.Lock()
	if s.state == Failed {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()

	s.logger.Debug("store state", zap.Stringer("state", st))
	s.metrics.SetState(st.String(), stateNames)
}

// fail moves the store to Failed and fails both readiness signals with err.
func (s *Store) fail(err error) {
	s.mu.Lock()
	if s.state == Failed {
		s.mu.Unlock()
		return
	}
	s.state, s.err = Failed, err
	s.mu.Unlock()

	s.logger.Warn("store initialization failed", zap.Error(err))
	s.metrics.SetState(Failed.String(), stateNames)
	s.statsReady.Fail(err)
	s.featuresReady.Fail(err)
}

// State reports the lifecycle state and, when Failed, the error.
func (s *Store) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.err
}

// StatsReady settles once statistics are estimated or initialization fails.
func (s *Store) StatsReady() *lazy.Signal[*stats.Stats] {
	return s.statsReady
}

// FeaturesReady settles together with StatsReady.
func (s *Store) FeaturesReady() *lazy.Signal[struct{}] {
	return s.featuresReady
}

// Header waits for the parsed header.
func (s *Store) Header(ctx context.Context) (*vcf.Header, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.header.Get(ctx)
}

// Stats waits for the estimated statistics.
func (s *Store) Stats(ctx context.Context) (*stats.Stats, error) {
	return s.statsReady.Wait(ctx)
}

// DataSize returns the size of the compressed data file.
func (s *Store) DataSize(ctx context.Context) (int64, error) {
	return s.data.Size(ctx)
}

// Config returns the configuration the store was opened with.
func (s *Store) Config() Config {
	return s.cfg
}

// Close releases both byte sources. A store still initializing moves to
// Failed and its pending readiness signals fail with ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	if s.state != Ready && s.state != Failed {
		s.state, s.err = Failed, ErrClosed
		s.metrics.SetState(Failed.String(), stateNames)
	}
	s.mu.Unlock()
	s.statsReady.Fail(ErrClosed)
	s.featuresReady.Fail(ErrClosed)
	return errors.Join(s.data.Close(), s.index.Close())
}
