package triebuilder

import (
	"fmt"

	"github.com/shruggr/geotrie/valuelist"
	"github.com/shruggr/geotrie/varint"
)

// testNode is a node decoded from a finished trie.
type testNode struct {
	values   [][]byte
	children []testChild
}

type testChild struct {
	isLeaf    bool
	edge      []TrieChar
	edgeValue []byte
	node      *testNode
}

// testReader decodes the trie format structurally, checking every size it
// meets on the way.
type testReader struct {
	readValues valuelist.Reader
	edgeSize   int
}

func (r *testReader) decode(data []byte) (*testNode, error) {
	return r.decodeNode(data, DefaultChar, false)
}

func (r *testReader) decodeNode(data []byte, baseChar TrieChar, isLeaf bool) (*testNode, error) {
	if isLeaf {
		values, n, err := r.readValues(data, -1)
		if err != nil {
			return nil, err
		}
		if n != len(data) {
			return nil, fmt.Errorf("leaf has %d trailing bytes", len(data)-n)
		}
		return &testNode{values: values}, nil
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("missing node header")
	}
	header := data[0]
	pos := 1
	valueCount := int(header >> headerValueShift)
	childCount := int(header & childLowBits)
	if valueCount == maxHeaderCount {
		x, n, err := varint.Uvarint(data[pos:])
		if err != nil {
			return nil, err
		}
		valueCount = int(x)
		pos += n
	}
	if childCount == maxHeaderChild {
		x, n, err := varint.Uvarint(data[pos:])
		if err != nil {
			return nil, err
		}
		childCount = int(x)
		pos += n
	}

	values, n, err := r.readValues(data[pos:], valueCount)
	if err != nil {
		return nil, err
	}
	pos += n
	node := &testNode{values: values, children: make([]testChild, childCount)}

	sizes := make([]uint64, childCount)
	for i := range node.children {
		if pos >= len(data) {
			return nil, fmt.Errorf("child %d: missing header", i)
		}
		child := &node.children[i]
		h := data[pos]
		pos++
		child.isLeaf = h&childLeafFlag != 0
		if h&childShortFlag != 0 {
			d := varint.UnZigZag32(uint32(h & childLowBits))
			child.edge = []TrieChar{baseChar + TrieChar(d)}
		} else {
			edgeLen := uint64(h & childLowBits)
			if edgeLen == maxHeaderChild {
				x, n, err := varint.Uvarint(data[pos:])
				if err != nil {
					return nil, err
				}
				edgeLen = x
				pos += n
			}
			c := baseChar
			for j := uint64(0); j <= edgeLen; j++ {
				d, n, err := varint.Varint(data[pos:])
				if err != nil {
					return nil, fmt.Errorf("child %d symbol %d: %w", i, j, err)
				}
				pos += n
				c += TrieChar(d)
				child.edge = append(child.edge, c)
			}
		}
		baseChar = child.edge[0]

		if pos+r.edgeSize > len(data) {
			return nil, fmt.Errorf("child %d: truncated edge value", i)
		}
		child.edgeValue = data[pos : pos+r.edgeSize]
		pos += r.edgeSize

		if i != childCount-1 {
			size, n, err := varint.Uvarint(data[pos:])
			if err != nil {
				return nil, err
			}
			sizes[i] = size
			pos += n
		}
	}

	for i := range node.children {
		child := &node.children[i]
		end := len(data)
		if i != childCount-1 {
			end = pos + int(sizes[i])
			if end > len(data) {
				return nil, fmt.Errorf("child %d: size %d overruns node", i, sizes[i])
			}
		}
		child.node, err = r.decodeNode(data[pos:end], child.edge[len(child.edge)-1], child.isLeaf)
		if err != nil {
			return nil, fmt.Errorf("child %q: %w", KeyString(child.edge), err)
		}
		pos = end
	}
	return node, nil
}

// flatten maps every key of the subtree to its values.
func (n *testNode) flatten(prefix []TrieChar, out map[string][][]byte) {
	if len(n.values) > 0 {
		out[KeyString(prefix)] = n.values
	}
	for _, c := range n.children {
		key := append(append([]TrieChar{}, prefix...), c.edge...)
		c.node.flatten(key, out)
	}
}

func (n *testNode) child(edge string) *testChild {
	for i := range n.children {
		if KeyString(n.children[i].edge) == edge {
			return &n.children[i]
		}
	}
	return nil
}

// allValues returns every value in the subtree.
func (n *testNode) allValues() [][]byte {
	values := append([][]byte{}, n.values...)
	for _, c := range n.children {
		values = append(values, c.node.allValues()...)
	}
	return values
}
