package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-vcf/internal/blob"
	"github.com/inodb/vibe-vcf/internal/metrics"
	"github.com/inodb/vibe-vcf/internal/stats"
	"github.com/inodb/vibe-vcf/internal/store"
	"github.com/inodb/vibe-vcf/internal/tabix"
	"github.com/inodb/vibe-vcf/internal/tabix/tabixtest"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testVCF = "##fileformat=VCFv4.2\n" +
	"##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Depth\">\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
	"1\t100\tv1\tA\tG\t.\tPASS\tDP=3\n" +
	"1\t200\tv2\tAT\tA\t.\tPASS\t.\n" +
	"2\t50\tv3\tC\tCA\t.\tPASS\t.\n"

func openTestStore(t *testing.T, reg *prometheus.Registry) *store.Store {
	t.Helper()
	fx := tabixtest.Must(t, testVCF, tabixtest.Options{})
	mem := blob.NewMemoryStore()
	mem.Put("test/data.vcf.gz", fx.Data)
	mem.Put("test/data.vcf.gz.tbi", fx.Index)

	s, err := store.Open(context.Background(), store.Config{
		URLTemplate: "mem://test/data.vcf.gz",
		Blob:        blob.Options{Memory: mem},
	}, store.WithMetrics(metrics.New(reg)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.FeaturesReady().Wait(context.Background())
	require.NoError(t, err)
	return s
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestFeaturesRoute(t *testing.T) {
	router := NewRouter(openTestStore(t, prometheus.NewRegistry()), Options{})

	w := get(router, "/features/1?start=0&end=1000")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var resp struct {
		Query    store.Query    `json:"query"`
		Features []*vcf.Feature `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Features, 2)
	assert.Equal(t, "v1", resp.Features[0].ID)
	assert.Equal(t, int64(99), resp.Features[0].Start)
	assert.Equal(t, vcf.TypeDeletion, resp.Features[1].Type)
	assert.Equal(t, store.Query{SeqID: "1", Start: 0, End: 1000}, resp.Query)
}

func TestFeaturesRoute_DefaultRangeAndEmpty(t *testing.T) {
	router := NewRouter(openTestStore(t, prometheus.NewRegistry()), Options{})

	w := get(router, "/features/2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"v3"`)

	w = get(router, "/features/1?start=5000&end=6000")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"features":[]`)
}

func TestFeaturesRoute_BadParams(t *testing.T) {
	router := NewRouter(openTestStore(t, prometheus.NewRegistry()), Options{})

	for _, path := range []string{
		"/features/1?start=abc",
		"/features/1?end=-4",
		"/features/1?start=100&end=10",
	} {
		w := get(router, path)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestFeaturesRoute_MaxFeatures(t *testing.T) {
	router := NewRouter(openTestStore(t, prometheus.NewRegistry()), Options{MaxFeatures: 1})

	w := get(router, "/features/1?start=0&end=1000")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRefSeqsHeaderStatsRoutes(t *testing.T) {
	router := NewRouter(openTestStore(t, prometheus.NewRegistry()), Options{})

	w := get(router, "/refseqs")
	require.Equal(t, http.StatusOK, w.Code)
	var refs struct {
		RefSeqs []tabix.RefSeq `json:"refseqs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refs))
	require.Len(t, refs.RefSeqs, 2)
	assert.Equal(t, "1", refs.RefSeqs[0].Name)

	w = get(router, "/header")
	require.Equal(t, http.StatusOK, w.Code)
	var hdr vcf.Header
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hdr))
	assert.Equal(t, "VCFv4.2", hdr.FileFormat())

	w = get(router, "/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var st stats.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Positive(t, st.SampledBases)

	w = get(router, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := NewRouter(openTestStore(t, reg), Options{Gatherer: reg})

	require.Equal(t, http.StatusOK, get(router, "/features/1?start=0&end=1000").Code)

	w := get(router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vibe_vcf_store_queries_total")

	noMetrics := NewRouter(openTestStore(t, prometheus.NewRegistry()), Options{})
	assert.Equal(t, http.StatusNotFound, get(noMetrics, "/metrics").Code)
}

// failingSource fails every call with err.
type failingSource struct{ err error }

func (f failingSource) Features(context.Context, store.Query, func(*vcf.Feature) error) error {
	return f.err
}
func (f failingSource) RefSeqs(context.Context) ([]tabix.RefSeq, error) { return nil, f.err }
func (f failingSource) Header(context.Context) (*vcf.Header, error)     { return nil, f.err }
func (f failingSource) Stats(context.Context) (*stats.Stats, error)     { return nil, f.err }
func (f failingSource) State() (store.State, error)                     { return store.Failed, f.err }

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("read header: %w", fmt.Errorf("%w: refused", store.ErrFetch)), http.StatusBadGateway},
		{store.ErrNoSeqID, http.StatusBadRequest},
		{store.ErrClosed, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		router := NewRouter(failingSource{tt.err}, Options{})
		for _, path := range []string{"/features/1", "/refseqs", "/header", "/stats"} {
			w := get(router, path)
			assert.Equal(t, tt.want, w.Code, "%s: %v", path, tt.err)
			assert.Contains(t, w.Body.String(), `"error"`)
		}
		assert.Equal(t, http.StatusServiceUnavailable, get(router, "/healthz").Code)
	}
}
