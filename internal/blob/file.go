package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// File is an Object backed by a local file.
type File struct {
	f    *os.File
	size int64
}

// OpenFile opens the file at path.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &File{f: f, size: info.Size()}, nil
}

func (f *File) NewRangeReader(_ context.Context, offset, length int64) (io.ReadCloser, error) {
	end := clampRange(offset, length, f.size)
	if end < 0 {
		return io.NopCloser(io.NewSectionReader(f.f, 0, 0)), nil
	}
	return io.NopCloser(io.NewSectionReader(f.f, offset, end-offset+1)), nil
}

func (f *File) Size(context.Context) (int64, error) {
	return f.size, nil
}

func (f *File) Close() error {
	return f.f.Close()
}
