package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/inodb/vibe-vcf/internal/blob"
)

// fetchObject marks every failure of the wrapped byte source with ErrFetch.
type fetchObject struct {
	blob.Object
}

func (o fetchObject) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	r, err := o.Object.NewRangeReader(ctx, offset, length)
	if err != nil {
		return nil, fetchError(err)
	}
	return fetchReader{r}, nil
}

func (o fetchObject) Size(ctx context.Context) (int64, error) {
	n, err := o.Object.Size(ctx)
	if err != nil {
		return 0, fetchError(err)
	}
	return n, nil
}

type fetchReader struct {
	io.ReadCloser
}

func (r fetchReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		err = fetchError(err)
	}
	return n, err
}

func fetchError(err error) error {
	if errors.Is(err, ErrFetch) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFetch, err)
}
