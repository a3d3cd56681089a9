// Package statetree implements the authenticated, copy-on-write Merkle trie
// that backs both the account-state tree and the per-ledger transaction tree.
//
// A tree derived from a parent shares every unmodified subtree with it.
// Sharing is arbitrated by node generations: each tree owns one generation and
// may only mutate nodes carrying it, so a write through any tree copies the
// affected path and never back-mutates what a sibling or ancestor observes.
package statetree

import (
	"encoding/binary"

	"go.uber.org/atomic"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/runtime/syncutils"

	"github.com/veritasledger/veritas-core/pkg/core/types"
)

// Tree is one branch of a copy-on-write Merkle trie lineage. The zero value is
// not usable; obtain instances from New or Derive.
//
// A Tree has a single logical writer. Sealed ledgers stop writing, which makes
// their trees safe for any number of concurrent readers.
type Tree struct {
	root    *node
	size    int
	gen     uint64
	lineage *atomic.Uint64

	mutex syncutils.RWMutex
}

// New creates an empty tree that starts its own lineage.
func New() *Tree {
	lineage := atomic.NewUint64(0)

	return &Tree{
		gen:     lineage.Add(1),
		lineage: lineage,
	}
}

// Derive branches a new tree off the receiver. The derived tree shares all
// current nodes with the receiver; both sides retire their write access to the
// shared nodes, so subsequent writes through either tree copy before mutating.
func (t *Tree) Derive() *Tree {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.gen = t.lineage.Add(1)

	return &Tree{
		root:    t.root,
		size:    t.size,
		gen:     t.lineage.Add(1),
		lineage: t.lineage,
	}
}

// Put stores the entry under the given key, replacing any previous entry.
func (t *Tree) Put(key types.Identifier, entry []byte) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	value := make([]byte, len(entry))
	copy(value, entry)

	t.root = t.put(t.root, 0, key, value)
}

// Get returns the entry stored under the given key. Absence is an explicit
// result, not a failure.
func (t *Tree) Get(key types.Identifier) ([]byte, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	n := t.root
	for depth := 0; n != nil; depth++ {
		if !n.inner {
			if n.key != key {
				return nil, false
			}

			entry := make([]byte, len(n.value))
			copy(entry, n.value)

			return entry, true
		}
		n = n.children[nibbleAt(key, depth)]
	}

	return nil, false
}

// Has reports whether an entry is stored under the given key.
func (t *Tree) Has(key types.Identifier) bool {
	_, exists := t.Get(key)

	return exists
}

// Delete removes the entry stored under the given key and reports whether an
// entry was present.
func (t *Tree) Delete(key types.Identifier) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	newRoot, deleted := t.remove(t.root, 0, key)
	if deleted {
		t.root = newRoot
		t.size--
	}

	return deleted
}

// Size returns the number of entries in the tree.
func (t *Tree) Size() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.size
}

// Root returns the Merkle root committing to all entries. It is recomputed
// lazily along mutated paths and cached per node; the empty tree commits to
// the zero identifier.
func (t *Tree) Root() types.Identifier {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.root == nil {
		return types.EmptyIdentifier
	}

	return t.root.computeHash()
}

// ForEach visits all entries in ascending key order until the consumer
// returns false.
func (t *Tree) ForEach(consumer func(key types.Identifier, entry []byte) bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	t.forEach(t.root, consumer)
}

func (t *Tree) forEach(n *node, consumer func(key types.Identifier, entry []byte) bool) bool {
	if n == nil {
		return true
	}

	if !n.inner {
		return consumer(n.key, n.value)
	}

	for _, child := range n.children {
		if !t.forEach(child, consumer) {
			return false
		}
	}

	return true
}

// FlushDirty persists every node created or changed since the last flush,
// keyed by node hash and tagged with the given ledger sequence. It returns the
// number of nodes written. Re-flushing a clean tree writes nothing, and
// re-writing an unchanged node stores identical bytes, so the operation is
// idempotent. Nothing is marked clean unless the whole batch commits.
func (t *Tree) FlushDirty(store kvstore.KVStore, ledgerSeq uint32) (int, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.root == nil || !t.root.dirty {
		return 0, nil
	}

	mutations, err := store.Batched()
	if err != nil {
		return 0, ierrors.Wrap(err, "failed to open batched mutations for flush")
	}

	var flushed []*node
	if err := t.collectDirty(t.root, ledgerSeq, mutations, &flushed); err != nil {
		mutations.Cancel()

		return 0, err
	}

	if err := mutations.Commit(); err != nil {
		return 0, ierrors.Wrapf(err, "failed to commit %d flushed nodes", len(flushed))
	}

	for _, n := range flushed {
		n.dirty = false
	}

	return len(flushed), nil
}

// collectDirty stages all dirty nodes reachable from n. Dirty nodes always
// form a region connected to the root, so the walk stops at clean subtrees.
func (t *Tree) collectDirty(n *node, ledgerSeq uint32, mutations kvstore.BatchedMutations, flushed *[]*node) error {
	if n == nil || !n.dirty {
		return nil
	}

	if n.inner {
		for _, child := range n.children {
			if err := t.collectDirty(child, ledgerSeq, mutations, flushed); err != nil {
				return err
			}
		}
	}

	nodeHash := n.computeHash()
	if err := mutations.Set(nodeHash[:], serializeNode(n, ledgerSeq)); err != nil {
		return ierrors.Wrapf(err, "failed to stage node %s", nodeHash)
	}
	*flushed = append(*flushed, n)

	return nil
}

// serializeNode encodes a node for persistence: the tagging ledger sequence,
// the node kind, and either key+entry (leaf) or the ordered child hashes
// (inner).
func serializeNode(n *node, ledgerSeq uint32) []byte {
	var buf []byte
	if !n.inner {
		buf = make([]byte, 0, 5+types.IdentifierLength+len(n.value))
	} else {
		buf = make([]byte, 0, 5+branchingFactor*types.IdentifierLength)
	}

	buf = binary.LittleEndian.AppendUint32(buf, ledgerSeq)
	if !n.inner {
		buf = append(buf, nodeKindLeaf)
		buf = append(buf, n.key[:]...)
		buf = append(buf, n.value...)

		return buf
	}

	buf = append(buf, nodeKindInner)
	for _, child := range n.children {
		if child == nil {
			buf = append(buf, types.EmptyIdentifier[:]...)
		} else {
			childHash := child.computeHash()
			buf = append(buf, childHash[:]...)
		}
	}

	return buf
}

// own returns a node that the tree is allowed to mutate, copying it first if
// it is shared with another tree in the lineage.
func (t *Tree) own(n *node) *node {
	if n.gen == t.gen {
		n.hashValid = false
		n.dirty = true

		return n
	}

	return n.clone(t.gen)
}

func (t *Tree) put(n *node, depth int, key types.Identifier, value []byte) *node {
	if n == nil {
		t.size++

		return newLeaf(t.gen, key, value)
	}

	if !n.inner {
		if n.key == key {
			n = t.own(n)
			n.value = value

			return n
		}

		// Distinct keys collide at this depth: grow an inner chain until the
		// two key paths diverge. The existing leaf node is moved, not copied.
		t.size++

		return t.splitLeaf(n, depth, newLeaf(t.gen, key, value))
	}

	n = t.own(n)
	idx := nibbleAt(key, depth)
	n.children[idx] = t.put(n.children[idx], depth+1, key, value)

	return n
}

func (t *Tree) splitLeaf(existing *node, depth int, added *node) *node {
	if depth >= maxDepth {
		// Only reachable with equal keys, which put already handled.
		panic("statetree: leaf split beyond maximum depth")
	}

	branch := newInner(t.gen)

	existingIdx := nibbleAt(existing.key, depth)
	addedIdx := nibbleAt(added.key, depth)
	if existingIdx == addedIdx {
		branch.children[existingIdx] = t.splitLeaf(existing, depth+1, added)
	} else {
		branch.children[existingIdx] = existing
		branch.children[addedIdx] = added
	}

	return branch
}

// remove deletes the leaf for key below n and canonicalizes the remaining
// structure: empty inner nodes disappear and an inner node left with a single
// leaf child collapses into that leaf, so the trie shape (and therefore the
// root hash) is a pure function of the stored contents.
func (t *Tree) remove(n *node, depth int, key types.Identifier) (*node, bool) {
	if n == nil {
		return nil, false
	}

	if !n.inner {
		if n.key != key {
			return n, false
		}

		return nil, true
	}

	idx := nibbleAt(key, depth)
	newChild, deleted := t.remove(n.children[idx], depth+1, key)
	if !deleted {
		return n, false
	}

	n = t.own(n)
	n.children[idx] = newChild

	switch count, last := n.childCount(); {
	case count == 0:
		return nil, true
	case count == 1 && !last.inner:
		return last, true
	default:
		return n, true
	}
}
