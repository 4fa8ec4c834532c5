package bgzf

import (
	"fmt"
	"io"
)

// writeBlockSize keeps encoded blocks below the BSIZE limit even when the
// input does not compress.
const writeBlockSize = 0xff00

// Writer writes BGZF blocks and tracks the virtual address of the next byte.
// It is used to build fixtures; it does not write in parallel.
type Writer struct {
	w       io.Writer
	buf     []byte
	written uint64 // compressed bytes flushed so far
	closed  bool
}

// NewWriter returns a Writer that writes blocks to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buf: make([]byte, 0, writeBlockSize)}
}

// Address returns the virtual address at which the next written byte will be
// found.
func (w *Writer) Address() Address {
	return NewAddress(w.written, uint16(len(w.buf)))
}

// Write buffers p, emitting full blocks as they fill.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("bgzf: write after close")
	}
	n := 0
	for len(p) > 0 {
		k := min(len(p), writeBlockSize-len(w.buf))
		w.buf = append(w.buf, p[:k]...)
		p = p[k:]
		n += k
		if len(w.buf) == writeBlockSize {
			if err := w.Flush(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Flush ends the current block so the next write starts a new one.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	block, err := EncodeBlock(w.buf)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(block); err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	w.written += uint64(len(block))
	w.buf = w.buf[:0]
	return nil
}

// Close flushes pending data and writes the EOF marker block.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.closed = true
	if _, err := w.w.Write(EOFBlock); err != nil {
		return fmt.Errorf("writing eof block: %w", err)
	}
	w.written += uint64(len(EOFBlock))
	return nil
}
