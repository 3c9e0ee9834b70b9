package indexer

import (
	"context"
	"errors"
	"iter"

	"github.com/shruggr/geotrie/kvstore"
	"github.com/shruggr/geotrie/metadata"
	"github.com/shruggr/geotrie/triebuilder"
)

var (
	// ErrEmptyName is returned when a trie is built or looked up without a name
	ErrEmptyName = errors.New("trie name is required")

	// ErrTrieNotFound is returned when no stored trie matches a hash or name
	ErrTrieNotFound = errors.New("trie not found")
)

// Indexer builds tries, stores the finished blobs content-addressed and
// records every build in a catalog
type Indexer interface {
	// BuildTrie builds a trie from sorted entries and stores it under name
	// Returns the catalog record of the new build
	BuildTrie(ctx context.Context, name string, entries iter.Seq[triebuilder.Entry]) (*metadata.TrieMeta, error)

	// LoadTrie returns the verified trie blob with the given BLAKE3 digest
	// The caller owns the returned slice
	LoadTrie(ctx context.Context, hash kvstore.Hash) ([]byte, error)

	// LoadTrieByName returns the latest build of name and its blob
	LoadTrieByName(ctx context.Context, name string) (*metadata.TrieMeta, []byte, error)

	// ListTries returns the latest build of every name
	ListTries(ctx context.Context) ([]*metadata.TrieMeta, error)

	// DeleteTrie removes every build of name
	// Blobs still referenced by another name are kept
	// Returns the number of builds removed
	DeleteTrie(ctx context.Context, name string) (int, error)
}
