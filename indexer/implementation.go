package indexer

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shruggr/geotrie/cache"
	"github.com/shruggr/geotrie/kvstore"
	"github.com/shruggr/geotrie/metadata"
	"github.com/shruggr/geotrie/multihash"
	"github.com/shruggr/geotrie/sink"
	"github.com/shruggr/geotrie/triebuilder"
)

// Config holds the collaborators of an Indexer
type Config struct {
	Store   kvstore.KVStore // Trie blobs by multihash (required)
	Catalog metadata.Store  // Build records (required)
	Cache   cache.BlobCache // Recently loaded blobs (optional)
	Logger  *slog.Logger    // slog.Default() if nil
	Options triebuilder.Options

	// ValueList names the value list encoding of Options for the catalog
	ValueList string

	// SpillDir, if set, receives the raw builder output instead of memory
	SpillDir string
}

// implementation is the concrete implementation of Indexer
type implementation struct {
	store     kvstore.KVStore
	catalog   metadata.Store
	cache     cache.BlobCache
	logger    *slog.Logger
	opts      triebuilder.Options
	valueList string
	spillDir  string
}

// New creates a new Indexer
func New(config *Config) (Indexer, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("Store is required")
	}
	if config.Catalog == nil {
		return nil, fmt.Errorf("Catalog is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts := config.Options
	if opts.Logger == nil {
		opts.Logger = logger
	}
	valueList := config.ValueList
	if valueList == "" {
		valueList = "prefixed"
	}

	return &implementation{
		store:     config.Store,
		catalog:   config.Catalog,
		cache:     config.Cache,
		logger:    logger,
		opts:      opts,
		valueList: valueList,
		spillDir:  config.SpillDir,
	}, nil
}

// BuildTrie builds, stores and catalogs a trie
func (x *implementation) BuildTrie(
	ctx context.Context,
	name string,
	entries iter.Seq[triebuilder.Entry],
) (*metadata.TrieMeta, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob, stats, err := x.buildBlob(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to build trie %q: %w", name, err)
	}
	// Cancellation truncates the input, so the trie is incomplete
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := multihash.NewBlobHash(blob)
	if err != nil {
		return nil, err
	}
	digest, err := key.Digest()
	if err != nil {
		return nil, err
	}

	if err := x.store.Put(ctx, key.Bytes(), blob); err != nil {
		return nil, fmt.Errorf("failed to store trie: %w", err)
	}
	if x.cache != nil {
		if err := x.cache.Put(digest, blob); err != nil {
			x.logger.Warn("Failed to cache trie", "hash", key.Hex(), "error", err)
		}
	}

	edgeValueSize := 0
	if x.opts.EdgeBuilder != nil {
		edgeValueSize = x.opts.EdgeBuilder.Size()
	}

	meta := &metadata.TrieMeta{
		ID:            uuid.New(),
		Name:          name,
		Hash:          digest,
		Entries:       stats.Entries,
		Keys:          stats.Keys,
		Nodes:         stats.NodesWritten,
		Size:          uint64(len(blob)),
		EdgeValueSize: edgeValueSize,
		ValueList:     x.valueList,
		CreatedAt:     time.Now().Unix(),
	}
	if err := x.catalog.PutTrie(ctx, meta); err != nil {
		return nil, fmt.Errorf("failed to record trie: %w", err)
	}

	x.logger.Info("Trie stored",
		"name", name,
		"id", meta.ID,
		"hash", key.Hex(),
		"keys", stats.Keys,
		"bytes", meta.Size)

	return meta, nil
}

// buildBlob runs the builder and returns the finished, reversed trie
func (x *implementation) buildBlob(ctx context.Context, entries iter.Seq[triebuilder.Entry]) ([]byte, triebuilder.Stats, error) {
	if x.spillDir != "" {
		return x.buildSpilled(ctx, entries)
	}

	var out sink.Buffer
	stats, err := triebuilder.Build(&out, untilDone(ctx, entries), x.opts)
	if err != nil {
		return nil, stats, err
	}
	out.Reverse()
	return out.Bytes(), stats, nil
}

// buildSpilled writes the raw builder output to a temporary file and reads
// it back reversed, so only the finished trie is held in memory
func (x *implementation) buildSpilled(ctx context.Context, entries iter.Seq[triebuilder.Entry]) ([]byte, triebuilder.Stats, error) {
	f, err := os.CreateTemp(x.spillDir, "trie-*.raw")
	if err != nil {
		return nil, triebuilder.Stats{}, fmt.Errorf("failed to create spill file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(f.Name())
	}()

	w := bufio.NewWriter(f)
	stats, err := triebuilder.Build(sink.NewWriter(w, 0), untilDone(ctx, entries), x.opts)
	if err != nil {
		return nil, stats, err
	}
	if err := w.Flush(); err != nil {
		return nil, stats, fmt.Errorf("failed to flush spill file: %w", err)
	}

	out := sink.NewBuffer(int(stats.Bytes))
	if err := sink.ReverseTo(out, f, int64(stats.Bytes), 0); err != nil {
		return nil, stats, err
	}
	return out.Bytes(), stats, nil
}

// LoadTrie reads a trie blob from the cache or the store
// The returned slice belongs to the caller
func (x *implementation) LoadTrie(ctx context.Context, hash kvstore.Hash) ([]byte, error) {
	if x.cache != nil {
		if blob, ok := x.cache.Get(hash); ok {
			x.logger.Debug("Trie cache hit", "hash", hash.String())
			return slices.Clone(blob), nil
		}
	}

	key, err := multihash.WrapDigest(hash)
	if err != nil {
		return nil, err
	}

	blob, err := x.store.Get(ctx, key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to load trie: %w", err)
	}
	if blob == nil {
		return nil, fmt.Errorf("%w: %s", ErrTrieNotFound, hash.String())
	}

	if err := key.Verify(blob); err != nil {
		return nil, fmt.Errorf("trie %s: %w", hash.String(), err)
	}

	if x.cache != nil {
		if err := x.cache.Put(hash, slices.Clone(blob)); err != nil {
			x.logger.Warn("Failed to cache trie", "hash", hash.String(), "error", err)
		}
	}

	return blob, nil
}

// LoadTrieByName resolves name through the catalog and loads its blob
func (x *implementation) LoadTrieByName(ctx context.Context, name string) (*metadata.TrieMeta, []byte, error) {
	if name == "" {
		return nil, nil, ErrEmptyName
	}

	meta, err := x.catalog.GetTrie(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if meta == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrTrieNotFound, name)
	}

	blob, err := x.LoadTrie(ctx, meta.Hash)
	if err != nil {
		return nil, nil, err
	}

	return meta, blob, nil
}

// ListTries returns the latest build of every name
func (x *implementation) ListTries(ctx context.Context) ([]*metadata.TrieMeta, error) {
	return x.catalog.ListTries(ctx)
}

// DeleteTrie removes the catalog records of name and any blob left
// unreferenced
func (x *implementation) DeleteTrie(ctx context.Context, name string) (int, error) {
	if name == "" {
		return 0, ErrEmptyName
	}

	removed, err := x.catalog.DeleteTrie(ctx, name)
	if err != nil {
		return 0, err
	}
	if len(removed) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrTrieNotFound, name)
	}

	seen := make(map[kvstore.Hash]bool, len(removed))
	for _, meta := range removed {
		if seen[meta.Hash] {
			continue
		}
		seen[meta.Hash] = true

		// The catalog rows are gone; a blob that cannot be removed now is
		// only wasted space
		other, err := x.catalog.GetTrieByHash(ctx, meta.Hash)
		if err != nil {
			x.logger.Warn("Failed to check trie references", "hash", meta.Hash.String(), "error", err)
			continue
		}
		if other != nil {
			continue
		}

		if err := x.deleteBlob(ctx, meta.Hash); err != nil {
			x.logger.Warn("Failed to delete trie blob", "hash", meta.Hash.String(), "error", err)
		}
	}

	x.logger.Info("Trie deleted", "name", name, "builds", len(removed))
	return len(removed), nil
}

func (x *implementation) deleteBlob(ctx context.Context, hash kvstore.Hash) error {
	key, err := multihash.WrapDigest(hash)
	if err != nil {
		return err
	}
	if err := x.store.Delete(ctx, key.Bytes()); err != nil {
		return fmt.Errorf("failed to delete trie blob: %w", err)
	}
	if x.cache != nil {
		if err := x.cache.Delete(hash); err != nil {
			return fmt.Errorf("failed to evict trie blob: %w", err)
		}
	}
	return nil
}

// untilDone stops the sequence once ctx is done
func untilDone(ctx context.Context, entries iter.Seq[triebuilder.Entry]) iter.Seq[triebuilder.Entry] {
	return func(yield func(triebuilder.Entry) bool) {
		for e := range entries {
			if ctx.Err() != nil || !yield(e) {
				return
			}
		}
	}
}
