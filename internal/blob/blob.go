// Package blob provides byte-range access to immutable objects on local
// disk, in memory, over HTTP and in cloud object stores.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Object is a read-only handle to a byte-addressable object.
type Object interface {
	// NewRangeReader returns a reader over length bytes starting at offset.
	// A length of -1 reads until the end of the object. Reading past the end
	// yields fewer bytes, not an error.
	NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error)
	// Size returns the size of the object in bytes.
	Size(ctx context.Context) (int64, error)
	// Close releases resources held by the handle.
	Close() error
}

// Options configures the backends used by Open.
type Options struct {
	// Memory serves mem://<name> URLs.
	Memory *MemoryStore

	S3Region   string
	S3Endpoint string // path-style endpoint override for S3-compatible services

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioSecure    bool

	// HTTPRateLimit caps HTTP requests per second; zero disables limiting.
	HTTPRateLimit float64
}

// RefSeqToken is substituted by ResolveTemplate.
const RefSeqToken = "{refseq}"

// ResolveTemplate substitutes the reference sequence name into a URL template.
func ResolveTemplate(tmpl, refSeq string) string {
	return strings.ReplaceAll(tmpl, RefSeqToken, refSeq)
}

// Open returns an Object for rawURL, dispatching on its scheme. Plain paths
// and file:// URLs read local files.
func Open(ctx context.Context, rawURL string, opts Options) (Object, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path; a single letter scheme is a Windows drive.
		return OpenFile(rawURL)
	}

	key := strings.TrimPrefix(u.Path, "/")
	switch u.Scheme {
	case "file":
		return OpenFile(u.Path)
	case "mem":
		if opts.Memory == nil {
			return nil, fmt.Errorf("open %s: no memory store configured", rawURL)
		}
		return opts.Memory.Open(u.Host + u.Path)
	case "http", "https":
		return OpenHTTP(rawURL, opts.HTTPRateLimit), nil
	case "gs":
		return OpenGCS(ctx, u.Host, key)
	case "s3":
		return OpenS3(ctx, u.Host, key, opts.S3Region, opts.S3Endpoint)
	case "minio":
		return OpenMinio(u.Host, key, opts)
	default:
		return nil, fmt.Errorf("open %s: unsupported scheme %q", rawURL, u.Scheme)
	}
}

// ReadRange reads length bytes at offset from obj into memory. A length of
// -1 reads to the end.
func ReadRange(ctx context.Context, obj Object, offset, length int64) ([]byte, error) {
	r, err := obj.NewRangeReader(ctx, offset, length)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read range %d+%d: %w", offset, length, err)
	}
	return b, nil
}

// clampRange bounds [offset, offset+length) to an object of the given size.
// It returns the inclusive end, or -1 when the range is empty.
func clampRange(offset, length, size int64) (end int64) {
	if offset >= size || length == 0 {
		return -1
	}
	end = size - 1
	if length > 0 && offset+length-1 < end {
		end = offset + length - 1
	}
	return end
}
