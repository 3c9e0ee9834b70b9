package kvstore

import (
	"context"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// Hash is the BLAKE3 digest of a finished trie blob.
// It names a trie in the catalog and in the blob cache.
type Hash = chainhash.Hash

// KVStore holds finished trie blobs.
// The indexer keys every blob by its BLAKE3 multihash (34 bytes), so a key
// always names the same bytes and rebuilding an identical trie rewrites the
// same entry. Stores copy values on Put and Get.
type KVStore interface {
	// Put stores blob under key, replacing any blob already there
	Put(ctx context.Context, key []byte, blob []byte) error

	// Get returns the blob stored under key, or nil, nil if there is none
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Delete removes the blob under key; deleting a missing key is not an error
	Delete(ctx context.Context, key []byte) error

	// Close flushes and releases the store
	Close() error
}
