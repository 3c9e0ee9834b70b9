package triebuilder

import (
	"fmt"
	"slices"

	"github.com/shruggr/geotrie/edge"
	"github.com/shruggr/geotrie/valuelist"
	"github.com/shruggr/geotrie/varint"
)

// Trie format, as read after the builder output has been reversed once.
//
// The file is a single root node. Leaves and internal nodes are laid out
// in pre-order: a node, then the subtrees of its children in the same order
// as the child infos in its header (descending key order).
//
// Leaf node:
//
//	[value] ... [value]
//
// Internal node:
//
//	[1: header]          bits 7-6: min(valueCount, 3)
//	                     bits 5-0: min(childCount, 63)
//	[vu valueCount]      if valueCount in header == 3
//	[vu childCount]      if childCount in header == 63
//	[value] ... [value]
//	[childInfo] ... [childInfo]
//
// Child info:
//
//	[1: header]          bit 7: child is a leaf
//	                     bit 6: short edge
//	                     bits 5-0: zigzag(edge[0] - base) if short edge,
//	                               min(len(edge)-1, 63) otherwise
//	[vu len(edge)-1]     if not short and bits 5-0 == 63
//	[vi edge[0] - base]  if not short
//	[vi edge[1] - edge[0]]
//	...
//	[edge value]         fixed width, see edge.Builder
//	[vu child size]      for every child but the last one
//
// The base of the first child is the parent node's symbol. The base of
// every following child is the first edge symbol of the child before it.
const (
	headerValueShift = 6
	maxHeaderCount   = 3
	maxHeaderChild   = 63

	childLeafFlag  = 0x80
	childShortFlag = 0x40
	childLowBits   = 0x3f

	maxEdgeLen = 100000
)

// childInfo is a finished child edge as seen from its parent.
type childInfo struct {
	isLeaf    bool
	size      uint64
	edge      []TrieChar
	edgeValue []byte
}

// nodeInfo is an open node on the build stack.
type nodeInfo struct {
	begPos   uint64
	char     TrieChar
	children []childInfo
	values   valuelist.List
	edge     edge.Builder
}

// writeNode appends one node to dst, children in the given order.
// A node without children that is not the root is a leaf and is written as
// its bare value list.
func writeNode(dst []byte, baseChar TrieChar, values valuelist.List, children []childInfo, isRoot bool) []byte {
	if len(children) == 0 && !isRoot {
		return values.Dump(dst)
	}

	childCount := len(children)
	valueCount := values.Len()
	header := byte(min(valueCount, maxHeaderCount)<<headerValueShift | min(childCount, maxHeaderChild))
	dst = append(dst, header)
	if valueCount >= maxHeaderCount {
		dst = varint.AppendUvarint(dst, uint64(valueCount))
	}
	if childCount >= maxHeaderChild {
		dst = varint.AppendUvarint(dst, uint64(childCount))
	}
	dst = values.Dump(dst)

	for i := range children {
		child := &children[i]
		dst = writeChild(dst, baseChar, child)
		baseChar = child.edge[0]
		if i != len(children)-1 {
			dst = varint.AppendUvarint(dst, child.size)
		}
	}
	return dst
}

func writeChild(dst []byte, baseChar TrieChar, child *childInfo) []byte {
	symbols := child.edge
	if len(symbols) == 0 {
		panic("triebuilder: empty child edge")
	}
	if len(symbols) >= maxEdgeLen {
		panic(fmt.Sprintf("triebuilder: edge of %d symbols exceeds %d", len(symbols), maxEdgeLen))
	}

	var header byte
	if child.isLeaf {
		header |= childLeafFlag
	}

	diff0 := varint.ZigZag32(int32(symbols[0] - baseChar))
	if len(symbols) == 1 && diff0&^childLowBits == 0 {
		dst = append(dst, header|childShortFlag|byte(diff0))
	} else {
		if n := len(symbols) - 1; n < maxHeaderChild {
			dst = append(dst, header|byte(n))
		} else {
			dst = append(dst, header|childLowBits)
			dst = varint.AppendUvarint(dst, uint64(n))
		}
		for _, c := range symbols {
			dst = varint.AppendVarint(dst, int32(c-baseChar))
			baseChar = c
		}
	}
	return append(dst, child.edgeValue...)
}

// writeNodeReverse writes node to the sink with its bytes reversed, so that
// the final reversal of the whole output restores them. Children are
// written last to first for the same reason; node.children is reordered in
// place.
func (b *builder) writeNodeReverse(baseChar TrieChar, node *nodeInfo, isRoot bool) error {
	slices.Reverse(node.children)
	b.scratch = writeNode(b.scratch[:0], baseChar, node.values, node.children, isRoot)
	slices.Reverse(b.scratch)
	if _, err := b.sink.Write(b.scratch); err != nil {
		return fmt.Errorf("failed to write node: %w", err)
	}
	b.stats.NodesWritten++
	return nil
}

// popNodes finishes the top count open nodes and hands each one to its
// parent. A node with no values and a single child writes nothing: its
// symbol is prepended to the child's edge instead.
func (b *builder) popNodes(count int) error {
	if count < 0 || count >= len(b.nodes) {
		panic(fmt.Sprintf("triebuilder: cannot pop %d of %d open nodes", count, len(b.nodes)))
	}

	for ; count > 0; count-- {
		top := len(b.nodes) - 1
		node := &b.nodes[top]
		parent := &b.nodes[top-1]

		if node.values.Len() == 0 && len(node.children) <= 1 {
			if len(node.children) != 1 {
				panic("triebuilder: open node has neither values nor children")
			}
			child := &node.children[0]
			symbols := make([]TrieChar, 0, 1+len(child.edge))
			symbols = append(symbols, node.char)
			symbols = append(symbols, child.edge...)
			parent.children = append(parent.children, childInfo{
				isLeaf: child.isLeaf,
				size:   child.size,
				edge:   symbols,
			})
			b.stats.EdgesCompressed++
		} else {
			if err := b.writeNodeReverse(node.char, node, false); err != nil {
				return err
			}
			parent.children = append(parent.children, childInfo{
				isLeaf: len(node.children) == 0,
				size:   b.sink.Pos() - node.begPos,
				edge:   []TrieChar{node.char},
			})
		}

		parent.edge.AddEdge(node.edge)
		last := &parent.children[len(parent.children)-1]
		last.edgeValue = node.edge.StoreValue(nil)

		b.nodes[top] = nodeInfo{}
		b.nodes = b.nodes[:top]
	}
	return nil
}
