package metadata

import (
	"context"

	"github.com/google/uuid"
	"github.com/shruggr/geotrie/kvstore"
)

// TrieMeta describes one built trie blob
// The blob itself is stored in the KVStore under the multihash of Hash
type TrieMeta struct {
	ID            uuid.UUID    // unique per build
	Name          string       // caller-chosen name; rebuilding a name keeps older builds
	Hash          kvstore.Hash // BLAKE3 digest of the finished trie
	Entries       uint64       // records read
	Keys          uint64       // distinct keys
	Nodes         uint64       // nodes written
	Size          uint64       // trie size in bytes
	EdgeValueSize int          // width of each edge value
	ValueList     string       // value list encoding
	CreatedAt     int64        // unix seconds
}

// Store defines the interface for the trie catalog
// Implementations use SQLite or other relational databases
type Store interface {
	// PutTrie records a finished build
	PutTrie(ctx context.Context, meta *TrieMeta) error

	// GetTrie returns the latest build of name, or nil if there is none
	GetTrie(ctx context.Context, name string) (*TrieMeta, error)

	// GetTrieByHash returns a build by its digest, or nil if there is none
	GetTrieByHash(ctx context.Context, hash kvstore.Hash) (*TrieMeta, error)

	// ListTries returns the latest build of every name, ordered by name
	ListTries(ctx context.Context) ([]*TrieMeta, error)

	// DeleteTrie removes every build of name and returns the removed records
	DeleteTrie(ctx context.Context, name string) ([]*TrieMeta, error)

	// Close releases any resources
	Close() error
}
