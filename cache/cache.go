package cache

import (
	"github.com/shruggr/geotrie/kvstore"
)

// BlobCache keeps recently loaded trie blobs in memory
// This avoids re-reading and re-verifying a trie from the KVStore when the
// same index is queried repeatedly
type BlobCache interface {
	// Get retrieves a cached trie blob by its digest
	// Returns nil, false if not cached
	Get(hash kvstore.Hash) ([]byte, bool)

	// Put stores a trie blob
	Put(hash kvstore.Hash, blob []byte) error

	// Delete removes a cached blob
	Delete(hash kvstore.Hash) error

	// Clear removes all cached entries
	Clear() error
}
