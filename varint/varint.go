// Package varint encodes the integers of the trie format: unsigned
// little-endian base-128 varints and zig-zag mapped signed varints.
package varint

import (
	"fmt"

	mvarint "github.com/multiformats/go-varint"
)

// MaxLen is the longest encoding AppendUvarint can produce.
const MaxLen = mvarint.MaxLenUvarint63

// ZigZag32 maps a signed 32-bit difference onto an unsigned value so that
// small magnitudes of either sign stay small.
func ZigZag32(d int32) uint32 {
	return uint32((d << 1) ^ (d >> 31))
}

// UnZigZag32 is the inverse of ZigZag32.
func UnZigZag32(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}

// AppendUvarint appends the varint encoding of x to dst.
func AppendUvarint(dst []byte, x uint64) []byte {
	var buf [MaxLen]byte
	n := mvarint.PutUvarint(buf[:], x)
	return append(dst, buf[:n]...)
}

// AppendVarint appends the zig-zag varint encoding of d to dst.
func AppendVarint(dst []byte, d int32) []byte {
	return AppendUvarint(dst, uint64(ZigZag32(d)))
}

// Uvarint decodes an unsigned varint from the front of buf and returns the
// value and the number of bytes consumed.
func Uvarint(buf []byte) (uint64, int, error) {
	x, n, err := mvarint.FromUvarint(buf)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode uvarint: %w", err)
	}
	return x, n, nil
}

// Varint decodes a zig-zag varint from the front of buf.
func Varint(buf []byte) (int32, int, error) {
	x, n, err := Uvarint(buf)
	if err != nil {
		return 0, 0, err
	}
	if x > 0xFFFFFFFF {
		return 0, 0, fmt.Errorf("zig-zag varint %d overflows 32 bits", x)
	}
	return UnZigZag32(uint32(x)), n, nil
}
