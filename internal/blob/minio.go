package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Minio is an Object in a MinIO (or other S3-compatible) bucket.
type Minio struct {
	client *minio.Client
	bucket string
	key    string
}

// OpenMinio returns a handle to bucket/key on the endpoint in opts.
func OpenMinio(bucket, key string, opts Options) (*Minio, error) {
	if opts.MinioEndpoint == "" {
		return nil, fmt.Errorf("open minio://%s/%s: no endpoint configured", bucket, key)
	}
	client, err := minio.New(opts.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.MinioAccessKey, opts.MinioSecretKey, ""),
		Secure: opts.MinioSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Minio{client: client, bucket: bucket, key: key}, nil
}

func (m *Minio) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if length == 0 {
		return io.NopCloser(eofReader{}), nil
	}

	opts := minio.GetObjectOptions{}
	var err error
	switch {
	case length > 0:
		err = opts.SetRange(offset, offset+length-1)
	case offset > 0:
		err = opts.SetRange(offset, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("set range: %w", err)
	}

	obj, err := m.client.GetObject(ctx, m.bucket, m.key, opts)
	if err != nil {
		return nil, m.wrap(err)
	}
	return obj, nil
}

func (m *Minio) Size(ctx context.Context) (int64, error) {
	info, err := m.client.StatObject(ctx, m.bucket, m.key, minio.StatObjectOptions{})
	if err != nil {
		return 0, m.wrap(err)
	}
	return info.Size, nil
}

func (m *Minio) wrap(err error) error {
	name := fmt.Sprintf("minio://%s/%s", m.bucket, m.key)
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.Code == "NoSuchBucket" {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (m *Minio) Close() error {
	return nil
}
