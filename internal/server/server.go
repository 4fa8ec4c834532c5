// Package server exposes a feature store over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/stats"
	"github.com/inodb/vibe-vcf/internal/store"
	"github.com/inodb/vibe-vcf/internal/tabix"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

// Source is the part of *store.Store the server needs.
type Source interface {
	Features(ctx context.Context, q store.Query, fn func(*vcf.Feature) error) error
	RefSeqs(ctx context.Context) ([]tabix.RefSeq, error)
	Header(ctx context.Context) (*vcf.Header, error)
	Stats(ctx context.Context) (*stats.Stats, error)
	State() (store.State, error)
}

// Options configures the router.
type Options struct {
	Logger   *zap.Logger
	Gatherer prometheus.Gatherer // served at /metrics; nil disables the route
	// MaxFeatures caps the features returned by one request; zero means no cap.
	MaxFeatures int
}

// NewRouter builds the gin engine serving src.
func NewRouter(src Source, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &handlers{src: src, logger: opts.Logger, maxFeatures: opts.MaxFeatures}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opts.Logger))

	r.GET("/healthz", h.health)
	r.GET("/refseqs", h.refSeqs)
	r.GET("/header", h.header)
	r.GET("/stats", h.stats)
	r.GET("/features/:seq", h.features)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(began)))
	}
}

type handlers struct {
	src         Source
	logger      *zap.Logger
	maxFeatures int
}

// statusFor maps store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNoSeqID):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *handlers) health(c *gin.Context) {
	state, err := h.src.State()
	body := gin.H{"state": state.String()}
	if err != nil {
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (h *handlers) refSeqs(c *gin.Context) {
	refs, err := h.src.RefSeqs(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refseqs": refs})
}

func (h *handlers) header(c *gin.Context) {
	hdr, err := h.src.Header(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hdr)
}

func (h *handlers) stats(c *gin.Context) {
	st, err := h.src.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

var errTooMany = errors.New("too many features")

func (h *handlers) features(c *gin.Context) {
	q := store.Query{SeqID: c.Param("seq")}
	var err error
	if q.Start, err = parseCoord(c.Query("start"), 0); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start: " + err.Error()})
		return
	}
	if q.End, err = parseCoord(c.Query("end"), tabix.MaxPosition); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end: " + err.Error()})
		return
	}
	if q.End < q.Start {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end before start"})
		return
	}

	// Features repeated across index chunks are returned once.
	seen := make(map[string]bool)
	feats := []*vcf.Feature{}
	err = h.src.Features(c.Request.Context(), q, func(f *vcf.Feature) error {
		if seen[f.ID] {
			return nil
		}
		seen[f.ID] = true
		if h.maxFeatures > 0 && len(feats) >= h.maxFeatures {
			return errTooMany
		}
		feats = append(feats, f)
		return nil
	})
	if errors.Is(err, errTooMany) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "more than " + strconv.Itoa(h.maxFeatures) + " features; narrow the range"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "features": feats})
}

func parseCoord(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("negative coordinate")
	}
	return v, nil
}
