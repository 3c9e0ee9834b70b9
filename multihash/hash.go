package multihash

import (
	"bytes"
	"encoding/hex"
	"fmt"

	mh "github.com/multiformats/go-multihash"
	_ "github.com/multiformats/go-multihash/register/blake3"
	"github.com/shruggr/geotrie/kvstore"
)

// BlobHash wraps a BLAKE3 multihash identifying a trie blob
// Format: <0x1e><0x20><32 bytes> = 34 bytes total
type BlobHash []byte

// NewBlobHash creates a BLAKE3 multihash from data
func NewBlobHash(data []byte) (BlobHash, error) {
	h, err := mh.Sum(data, mh.BLAKE3, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to hash data: %w", err)
	}
	return BlobHash(h), nil
}

// WrapDigest wraps an existing 32-byte BLAKE3 digest as a multihash
func WrapDigest(digest kvstore.Hash) (BlobHash, error) {
	h, err := mh.Encode(digest[:], mh.BLAKE3)
	if err != nil {
		return nil, fmt.Errorf("failed to encode hash: %w", err)
	}
	return BlobHash(h), nil
}

// Verify checks that the hash matches the provided data
func (h BlobHash) Verify(data []byte) error {
	decoded, err := mh.Decode(mh.Multihash(h))
	if err != nil {
		return fmt.Errorf("invalid multihash: %w", err)
	}

	if decoded.Code != mh.BLAKE3 {
		return fmt.Errorf("expected BLAKE3 hash, got 0x%x", decoded.Code)
	}

	computed, err := mh.Sum(data, decoded.Code, decoded.Length)
	if err != nil {
		return fmt.Errorf("hash computation failed: %w", err)
	}

	if !bytes.Equal(computed, h) {
		return fmt.Errorf("hash verification failed")
	}

	return nil
}

// Digest extracts the 32-byte digest from the multihash
func (h BlobHash) Digest() (kvstore.Hash, error) {
	decoded, err := mh.Decode(mh.Multihash(h))
	if err != nil {
		return kvstore.Hash{}, fmt.Errorf("invalid multihash: %w", err)
	}

	if len(decoded.Digest) != 32 {
		return kvstore.Hash{}, fmt.Errorf("expected 32-byte digest, got %d bytes", len(decoded.Digest))
	}

	var digest kvstore.Hash
	copy(digest[:], decoded.Digest)
	return digest, nil
}

// Bytes returns the raw multihash bytes
func (h BlobHash) Bytes() []byte {
	return []byte(h)
}

// Hex returns the hex-encoded multihash
func (h BlobHash) Hex() string {
	return hex.EncodeToString(h)
}
