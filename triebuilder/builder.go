// Package triebuilder writes a compact, self-describing binary trie from a
// sorted stream of key/value records in a single pass.
//
// Nodes are emitted bottom-up with their bytes reversed, so no offset ever
// has to be patched. The caller reverses the whole output once when the
// build is done; see the format description in node.go.
//
// Example:
//
//	var out sink.Buffer
//	stats, err := triebuilder.Build(&out, slices.Values(entries), triebuilder.Options{})
//	if err != nil {
//	    return err
//	}
//	out.Reverse()
//	trie := out.Bytes()
package triebuilder

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/shruggr/geotrie/edge"
	"github.com/shruggr/geotrie/sink"
	"github.com/shruggr/geotrie/valuelist"
)

// TrieChar is one symbol of the key alphabet.
type TrieChar uint32

// DefaultChar is the symbol of the root node.
const DefaultChar TrieChar = 0

// ErrUnsortedInput is returned when a key sorts before the key preceding it.
var ErrUnsortedInput = errors.New("trie input is not sorted")

// Entry is one input record.
type Entry struct {
	Key   []TrieChar
	Value []byte
}

// Equal reports whether both the key and the value of e and o match.
func (e Entry) Equal(o Entry) bool {
	return slices.Equal(e.Key, o.Key) && bytes.Equal(e.Value, o.Value)
}

// Options configures a build. The zero value writes length-prefixed value
// lists and no edge values.
type Options struct {
	// EdgeBuilder is the prototype cloned into every node
	EdgeBuilder edge.Builder

	// NewValueList creates the value list of every node
	NewValueList valuelist.Factory

	// Logger receives the build summary; slog.Default() if nil
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.EdgeBuilder == nil {
		o.EdgeBuilder = edge.Empty{}
	}
	if o.NewValueList == nil {
		o.NewValueList = valuelist.NewPrefixed
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Stats describes a finished build.
type Stats struct {
	Entries         uint64 // records read
	Duplicates      uint64 // records skipped as exact repeats
	Keys            uint64 // distinct keys
	NodesWritten    uint64 // nodes serialized, root included
	EdgesCompressed uint64 // nodes folded into a parent edge
	Bytes           uint64 // bytes written to the sink
	MaxDepth        int    // longest key
}

type builder struct {
	sink    sink.Sink
	opts    Options
	nodes   []nodeInfo
	scratch []byte
	stats   Stats
}

func (b *builder) newNode(pos uint64, c TrieChar) nodeInfo {
	return nodeInfo{
		begPos: pos,
		char:   c,
		values: b.opts.NewValueList(),
		edge:   b.opts.EdgeBuilder.Clone(),
	}
}

// Build writes the trie of entries to s. Entries must come in
// non-decreasing key order; a record equal to the one before it in both
// key and value is skipped, while the same key with another value adds a
// value to that key.
//
// On error the bytes already written to s are not a usable trie.
func Build(s sink.Sink, entries iter.Seq[Entry], opts Options) (Stats, error) {
	b := &builder{
		sink:  s,
		opts:  opts.withDefaults(),
		nodes: make([]nodeInfo, 0, 32),
	}
	start := s.Pos()
	b.nodes = append(b.nodes, b.newNode(start, DefaultChar))

	var prevKey []TrieChar
	var prevValue []byte
	first := true

	for e := range entries {
		b.stats.Entries++
		if !first && e.Equal(Entry{Key: prevKey, Value: prevValue}) {
			b.stats.Duplicates++
			continue
		}
		if slices.Compare(e.Key, prevKey) < 0 {
			return b.stats, fmt.Errorf("%w: %q after %q", ErrUnsortedInput, KeyString(e.Key), KeyString(prevKey))
		}

		nCommon := commonPrefixLen(e.Key, prevKey)
		if first || nCommon != len(e.Key) || nCommon != len(prevKey) {
			b.stats.Keys++
		}

		// The root is always common.
		if err := b.popNodes(len(b.nodes) - nCommon - 1); err != nil {
			return b.stats, err
		}

		pos := s.Pos()
		for _, c := range e.Key[nCommon:] {
			b.nodes = append(b.nodes, b.newNode(pos, c))
		}
		last := &b.nodes[len(b.nodes)-1]
		last.values.Append(e.Value)
		last.edge.AddValue(e.Value)

		b.stats.MaxDepth = max(b.stats.MaxDepth, len(e.Key))
		prevKey = append(prevKey[:0], e.Key...)
		prevValue = append(prevValue[:0], e.Value...)
		first = false
	}

	if err := b.popNodes(len(b.nodes) - 1); err != nil {
		return b.stats, err
	}
	if err := b.writeNodeReverse(DefaultChar, &b.nodes[0], true); err != nil {
		return b.stats, err
	}
	b.stats.Bytes = s.Pos() - start

	b.opts.Logger.Debug("trie built",
		"entries", b.stats.Entries,
		"duplicates", b.stats.Duplicates,
		"keys", b.stats.Keys,
		"nodes", b.stats.NodesWritten,
		"compressed", b.stats.EdgesCompressed,
		"bytes", b.stats.Bytes)

	return b.stats, nil
}

func commonPrefixLen(a, b []TrieChar) int {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// KeyString renders a key as the string of its symbols taken as runes.
func KeyString(key []TrieChar) string {
	runes := make([]rune, len(key))
	for i, c := range key {
		runes[i] = rune(c)
	}
	return string(runes)
}
