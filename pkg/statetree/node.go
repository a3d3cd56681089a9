package statetree

import (
	"github.com/veritasledger/veritas-core/pkg/core/types"
)

const (
	// branchingFactor is the fan-out of inner nodes, one child per key nibble.
	branchingFactor = 16

	// maxDepth is the number of nibbles in a 256-bit key.
	maxDepth = types.IdentifierLength * 2

	nodeKindLeaf  byte = 0x00
	nodeKindInner byte = 0x01
)

// node is a single trie node. Nodes are shared between derived trees and may
// only be mutated by the tree whose generation matches; every other tree must
// copy the node first.
type node struct {
	gen uint64

	// inner node state
	inner    bool
	children [branchingFactor]*node

	// leaf state
	key   types.Identifier
	value []byte

	hash      types.Identifier
	hashValid bool
	dirty     bool
}

func newLeaf(gen uint64, key types.Identifier, value []byte) *node {
	return &node{
		gen:   gen,
		key:   key,
		value: value,
		dirty: true,
	}
}

func newInner(gen uint64) *node {
	return &node{
		gen:   gen,
		inner: true,
		dirty: true,
	}
}

// clone returns a mutable copy of the node for the given generation. The copy
// starts out dirty with an invalid hash because it is only ever created on a
// mutation path.
func (n *node) clone(gen uint64) *node {
	cloned := &node{
		gen:   gen,
		inner: n.inner,
		key:   n.key,
		value: n.value,
		dirty: true,
	}
	cloned.children = n.children

	return cloned
}

// computeHash returns the node hash, recomputing and caching it if a mutation
// invalidated it. Leaf hash covers the kind tag, the key and the entry bytes;
// inner hash covers the kind tag and the ordered child hashes with the zero
// identifier standing in for empty children.
func (n *node) computeHash() types.Identifier {
	if n.hashValid {
		return n.hash
	}

	if !n.inner {
		buf := make([]byte, 0, 1+types.IdentifierLength+len(n.value))
		buf = append(buf, nodeKindLeaf)
		buf = append(buf, n.key[:]...)
		buf = append(buf, n.value...)
		n.hash = types.IdentifierFromData(buf)
	} else {
		buf := make([]byte, 0, 1+branchingFactor*types.IdentifierLength)
		buf = append(buf, nodeKindInner)
		for _, child := range n.children {
			if child == nil {
				buf = append(buf, types.EmptyIdentifier[:]...)
			} else {
				childHash := child.computeHash()
				buf = append(buf, childHash[:]...)
			}
		}
		n.hash = types.IdentifierFromData(buf)
	}
	n.hashValid = true

	return n.hash
}

// childCount returns the number of occupied child slots and the last occupied
// child, which callers use to collapse single-leaf inner nodes.
func (n *node) childCount() (count int, last *node) {
	for _, child := range n.children {
		if child != nil {
			count++
			last = child
		}
	}

	return count, last
}

// nibbleAt returns the nibble of the key that selects the child at the given
// trie depth, high nibble first.
func nibbleAt(key types.Identifier, depth int) int {
	b := key[depth/2]
	if depth%2 == 0 {
		return int(b >> 4)
	}

	return int(b & 0x0f)
}
