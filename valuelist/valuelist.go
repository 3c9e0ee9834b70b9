// Package valuelist holds the values that share one exact trie key.
package valuelist

import (
	"errors"
	"fmt"

	"github.com/shruggr/geotrie/varint"
)

var ErrTruncated = errors.New("value list truncated")

// List accumulates the values of one key. Values are dumped once, in the
// order they were appended, when the node owning the key is written.
type List interface {
	Append(value []byte)
	Len() int
	Dump(dst []byte) []byte
}

// Factory creates an empty List for a new trie node.
type Factory func() List

// Reader splits a dumped value list back into values. A count below zero
// reads until data is exhausted, which is how leaves are decoded.
type Reader func(data []byte, count int) (values [][]byte, n int, err error)

// Fixed stores values of one constant width back to back.
type Fixed struct {
	width  int
	values []byte
	count  int
}

// NewFixed returns a Factory of Fixed lists of the given width.
func NewFixed(width int) Factory {
	if width <= 0 {
		panic(fmt.Sprintf("valuelist: invalid fixed width %d", width))
	}
	return func() List { return &Fixed{width: width} }
}

func (l *Fixed) Append(value []byte) {
	if len(value) != l.width {
		panic(fmt.Sprintf("valuelist: value size mismatch: expected %d, got %d", l.width, len(value)))
	}
	l.values = append(l.values, value...)
	l.count++
}

func (l *Fixed) Len() int { return l.count }

func (l *Fixed) Dump(dst []byte) []byte {
	return append(dst, l.values...)
}

// ReadFixed returns a Reader for lists written by NewFixed(width).
func ReadFixed(width int) Reader {
	return func(data []byte, count int) ([][]byte, int, error) {
		if count < 0 {
			if len(data)%width != 0 {
				return nil, 0, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrTruncated, len(data), width)
			}
			count = len(data) / width
		}
		if len(data) < count*width {
			return nil, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, count*width, len(data))
		}
		values := make([][]byte, count)
		for i := range values {
			values[i] = data[i*width : (i+1)*width]
		}
		return values, count * width, nil
	}
}

// Prefixed stores each value as a varint length followed by its bytes.
type Prefixed struct {
	buf   []byte
	count int
}

// NewPrefixed creates an empty Prefixed list. It satisfies Factory.
func NewPrefixed() List {
	return &Prefixed{}
}

func (l *Prefixed) Append(value []byte) {
	l.buf = varint.AppendUvarint(l.buf, uint64(len(value)))
	l.buf = append(l.buf, value...)
	l.count++
}

func (l *Prefixed) Len() int { return l.count }

func (l *Prefixed) Dump(dst []byte) []byte {
	return append(dst, l.buf...)
}

// ReadPrefixed is the Reader for Prefixed lists.
func ReadPrefixed(data []byte, count int) ([][]byte, int, error) {
	var values [][]byte
	pos := 0
	for (count < 0 && pos < len(data)) || len(values) < count {
		size, n, err := varint.Uvarint(data[pos:])
		if err != nil {
			return nil, 0, fmt.Errorf("%w: value %d: %v", ErrTruncated, len(values), err)
		}
		pos += n
		if uint64(len(data)-pos) < size {
			return nil, 0, fmt.Errorf("%w: value %d needs %d bytes, have %d", ErrTruncated, len(values), size, len(data)-pos)
		}
		values = append(values, data[pos:pos+int(size)])
		pos += int(size)
	}
	return values, pos, nil
}
