package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCS is an Object in Google Cloud Storage.
type GCS struct {
	client *storage.Client
	handle *storage.ObjectHandle
}

// OpenGCS returns a handle to gs://bucket/object using application default
// credentials.
func OpenGCS(ctx context.Context, bucket, object string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client, handle: client.Bucket(bucket).Object(object)}, nil
}

func (g *GCS) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	r, err := g.handle.NewRangeReader(ctx, offset, length)
	if err != nil {
		return nil, g.wrap(err)
	}
	return r, nil
}

func (g *GCS) Size(ctx context.Context) (int64, error) {
	attrs, err := g.handle.Attrs(ctx)
	if err != nil {
		return 0, g.wrap(err)
	}
	return attrs.Size, nil
}

func (g *GCS) wrap(err error) error {
	name := fmt.Sprintf("gs://%s/%s", g.handle.BucketName(), g.handle.ObjectName())
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (g *GCS) Close() error {
	return g.client.Close()
}
