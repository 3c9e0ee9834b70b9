// Package edge holds the per-edge aggregates stored next to every child
// edge of a trie. An aggregate summarises all values reachable through the
// edge, so a reader can skip whole subtrees without decoding their leaves.
package edge

import (
	"encoding/binary"
	"fmt"
)

// Builder accumulates the aggregate of one open trie node.
//
// The builder keeps a prototype and gives every new node a Clone of it.
// When a node is finished, its parent folds it in with AddEdge and the
// node's own aggregate is stored with StoreValue. StoreValue must give the
// same bytes whatever order values and edges were folded in.
type Builder interface {
	// AddValue folds one value of the node's key into the aggregate
	AddValue(value []byte)

	// AddEdge folds a finished child's aggregate into this one
	AddEdge(child Builder)

	// StoreValue appends the fixed-width serialized aggregate to dst
	StoreValue(dst []byte) []byte

	// Size is the width in bytes of StoreValue's output
	Size() int

	// Clone returns an independent copy
	Clone() Builder
}

// Empty is the aggregate for tries that carry no per-edge metric.
type Empty struct{}

func (Empty) AddValue([]byte)              {}
func (Empty) AddEdge(Builder)              {}
func (Empty) StoreValue(dst []byte) []byte { return dst }
func (Empty) Size() int                    { return 0 }
func (Empty) Clone() Builder               { return Empty{} }

// Unsigned lists the widths MaxValue can store.
type Unsigned interface {
	uint8 | uint16 | uint32 | uint64
}

// MaxValue keeps the maximum of a projection over every value in the
// subtree, e.g. the highest feature rank under a prefix.
type MaxValue[T Unsigned] struct {
	calc  func(value []byte) T
	value T
}

// NewMaxValue creates a running maximum over calc(value).
func NewMaxValue[T Unsigned](calc func(value []byte) T) *MaxValue[T] {
	return &MaxValue[T]{calc: calc}
}

// Value returns the current maximum
func (m *MaxValue[T]) Value() T {
	return m.value
}

func (m *MaxValue[T]) AddValue(value []byte) {
	m.value = max(m.value, m.calc(value))
}

func (m *MaxValue[T]) AddEdge(child Builder) {
	c, ok := child.(*MaxValue[T])
	if !ok {
		panic(fmt.Sprintf("edge: cannot fold %T into %T", child, m))
	}
	m.value = max(m.value, c.value)
}

// StoreValue appends the maximum in little-endian byte order.
func (m *MaxValue[T]) StoreValue(dst []byte) []byte {
	switch v := any(m.value).(type) {
	case uint8:
		return append(dst, v)
	case uint16:
		return binary.LittleEndian.AppendUint16(dst, v)
	case uint32:
		return binary.LittleEndian.AppendUint32(dst, v)
	case uint64:
		return binary.LittleEndian.AppendUint64(dst, v)
	}
	panic("unreachable")
}

func (m *MaxValue[T]) Size() int {
	var zero T
	return binary.Size(zero)
}

func (m *MaxValue[T]) Clone() Builder {
	c := *m
	return &c
}

// ReadMaxValue decodes a stored MaxValue of the given width.
func ReadMaxValue(data []byte) (uint64, error) {
	switch len(data) {
	case 1:
		return uint64(data[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(data)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(data)), nil
	case 8:
		return binary.LittleEndian.Uint64(data), nil
	}
	return 0, fmt.Errorf("invalid max value width: %d", len(data))
}

// FirstByte projects a value onto its leading byte, a common rank layout.
func FirstByte(value []byte) uint8 {
	if len(value) == 0 {
		return 0
	}
	return value[0]
}

// LittleEndian32 projects a value onto its leading 4 bytes read as a
// little-endian uint32. Shorter values are zero-padded.
func LittleEndian32(value []byte) uint32 {
	var buf [4]byte
	copy(buf[:], value)
	return binary.LittleEndian.Uint32(buf[:])
}
