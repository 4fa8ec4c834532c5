package blob

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const content = "0123456789abcdefghij"

func readAll(t *testing.T, obj Object, offset, length int64) string {
	t.Helper()
	b, err := ReadRange(context.Background(), obj, offset, length)
	require.NoError(t, err)
	return string(b)
}

func checkRanges(t *testing.T, obj Object) {
	t.Helper()
	tests := []struct {
		name           string
		offset, length int64
		want           string
	}{
		{"prefix", 0, 5, "01234"},
		{"middle", 10, 3, "abc"},
		{"to end", 15, -1, "fghij"},
		{"whole", 0, -1, content},
		{"past end clipped", 18, 100, "ij"},
		{"starts past end", 50, 10, ""},
		{"empty", 3, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readAll(t, obj, tt.offset, tt.length))
		})
	}

	size, err := obj.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)
}

func TestMemory(t *testing.T) {
	checkRanges(t, NewMemory([]byte(content)))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	store.Put("data.vcf.gz", []byte(content))

	obj, err := Open(context.Background(), "mem://data.vcf.gz", Options{Memory: store})
	require.NoError(t, err)
	checkRanges(t, obj)

	_, err = Open(context.Background(), "mem://missing", Options{Memory: store})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Open(context.Background(), "mem://data.vcf.gz", Options{})
	assert.Error(t, err)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	for _, url := range []string{path, "file://" + path} {
		t.Run(url, func(t *testing.T) {
			obj, err := Open(context.Background(), url, Options{})
			require.NoError(t, err)
			defer obj.Close()
			checkRanges(t, obj)
		})
	}

	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data.bin" {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "data.bin", time.Time{}, bytes.NewReader([]byte(content)))
	}))
	defer srv.Close()

	obj, err := Open(context.Background(), srv.URL+"/data.bin", Options{HTTPRateLimit: 1000})
	require.NoError(t, err)
	checkRanges(t, obj)

	missing, err := Open(context.Background(), srv.URL+"/missing", Options{})
	require.NoError(t, err)
	_, err = missing.NewRangeReader(context.Background(), 0, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTP_RangeIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(content))
	}))
	defer srv.Close()

	obj := OpenHTTP(srv.URL, 0)
	assert.Equal(t, "abc", readAll(t, obj, 10, 3))
	assert.Equal(t, "fghij", readAll(t, obj, 15, -1))
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	_, err := Open(context.Background(), "ftp://host/file", Options{})
	assert.Error(t, err)

	_, err = Open(context.Background(), "minio://bucket/key", Options{})
	assert.Error(t, err)
}

func TestResolveTemplate(t *testing.T) {
	tests := []struct {
		tmpl, refSeq, want string
	}{
		{"data/{refseq}.vcf.gz", "chr1", "data/chr1.vcf.gz"},
		{"s3://bucket/{refseq}/{refseq}.vcf.gz", "2", "s3://bucket/2/2.vcf.gz"},
		{"data/all.vcf.gz", "chr1", "data/all.vcf.gz"},
		{"data/{refseq}.vcf.gz", "", "data/.vcf.gz"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveTemplate(tt.tmpl, tt.refSeq))
	}
}

// countingObject counts range reads and blocks them until release is closed.
type countingObject struct {
	Object
	reads   atomic.Int32
	release chan struct{}
}

func (c *countingObject) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	c.reads.Add(1)
	if c.release != nil {
		<-c.release
	}
	return c.Object.NewRangeReader(ctx, offset, length)
}

func TestCache_SharesConcurrentFetches(t *testing.T) {
	inner := &countingObject{Object: NewMemory([]byte(content)), release: make(chan struct{})}
	cache := NewCache(inner, 0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := cache.ReadRange(context.Background(), 2, 4)
			assert.NoError(t, err)
			assert.Equal(t, "2345", string(b))
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.Equal(t, int32(1), inner.reads.Load())
	assert.Equal(t, "2345", readAll(t, cache, 2, 4))
	assert.Equal(t, int32(1), inner.reads.Load())
}

func TestCache_Evicts(t *testing.T) {
	inner := &countingObject{Object: NewMemory([]byte(content))}
	cache := NewCache(inner, 2, 0)

	readAll(t, cache, 0, 1)
	readAll(t, cache, 1, 1)
	readAll(t, cache, 2, 1) // evicts 0:1
	readAll(t, cache, 0, 1)
	assert.Equal(t, int32(4), inner.reads.Load())

	hits, misses := cache.Stats()
	assert.Equal(t, uint64(0), hits)
	assert.Equal(t, uint64(4), misses)

	readAll(t, cache, 0, 1)
	hits, _ = cache.Stats()
	assert.Equal(t, uint64(1), hits)
}

func TestCache_BoundedByBytes(t *testing.T) {
	big := make([]byte, 1<<20)
	inner := &countingObject{Object: NewMemory(big)}
	cache := NewCache(inner, 0, 300<<10)

	// Eight whole-object reads from distinct offsets.
	for i := int64(0); i < 8; i++ {
		b, err := cache.ReadRange(context.Background(), i, -1)
		require.NoError(t, err)
		assert.Len(t, b, len(big)-int(i))
	}
	entries, held := cache.Held()
	assert.Zero(t, entries)
	assert.Zero(t, held)

	// Small ranges are kept until the byte budget is spent.
	for i := int64(0); i < 4; i++ {
		readAll(t, cache, i*(100<<10), 100<<10)
	}
	entries, held = cache.Held()
	assert.Equal(t, 3, entries)
	assert.Equal(t, int64(300<<10), held)

	reads := inner.reads.Load()
	readAll(t, cache, 3*(100<<10), 100<<10) // newest, still cached
	assert.Equal(t, reads, inner.reads.Load())
	readAll(t, cache, 0, 100<<10) // oldest, evicted
	assert.Equal(t, reads+1, inner.reads.Load())
}
