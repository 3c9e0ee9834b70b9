// Package sink provides the append-only byte outputs the trie builder
// writes into.
package sink

import (
	"fmt"
	"io"
	"slices"
)

// Sink is an append-only output that knows how many bytes it has taken.
type Sink interface {
	io.Writer

	// Pos returns the current write position
	Pos() uint64
}

// Buffer is an in-memory Sink that can be reversed in place.
// The zero value is ready to use.
type Buffer struct {
	buf []byte
}

// NewBuffer creates a Buffer with the given initial capacity
func NewBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, 0, capacity)}
}

// Write appends p to the buffer. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Pos returns the number of bytes written so far
func (b *Buffer) Pos() uint64 {
	return uint64(len(b.buf))
}

// Bytes returns the buffer contents. The slice aliases the buffer until the
// next write.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Reverse reverses the whole buffer in place.
func (b *Buffer) Reverse() {
	slices.Reverse(b.buf)
}

// Writer is a Sink over an io.Writer that counts the bytes passed through,
// starting at an arbitrary offset.
type Writer struct {
	w   io.Writer
	pos uint64
}

// NewWriter wraps w. Positions start at offset, which lets the trie begin in
// the middle of a larger file.
func NewWriter(w io.Writer, offset uint64) *Writer {
	return &Writer{w: w, pos: offset}
}

// Write forwards p to the underlying writer
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += uint64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write to sink at %d: %w", w.pos, err)
	}
	return n, nil
}

// Pos returns the offset plus the bytes written
func (w *Writer) Pos() uint64 {
	return w.pos
}

// ReverseTo writes the first size bytes of src to dst in reverse order,
// chunk by chunk, so a raw builder output spilled to disk can be turned
// into a usable trie without loading it whole.
func ReverseTo(dst io.Writer, src io.ReaderAt, size int64, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	chunk := make([]byte, chunkSize)
	for end := size; end > 0; {
		start := max(end-int64(chunkSize), 0)
		part := chunk[:end-start]
		if _, err := src.ReadAt(part, start); err != nil && err != io.EOF {
			return fmt.Errorf("failed to read chunk at %d: %w", start, err)
		}
		slices.Reverse(part)
		if _, err := dst.Write(part); err != nil {
			return fmt.Errorf("failed to write reversed chunk: %w", err)
		}
		end = start
	}
	return nil
}
