package statetree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/kvstore/mapdb"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/statetree"
)

func key(seed string) types.Identifier {
	return types.IdentifierFromData([]byte(seed))
}

func TestPutGetDelete(t *testing.T) {
	tree := statetree.New()

	require.Equal(t, types.EmptyIdentifier, tree.Root())
	require.Equal(t, 0, tree.Size())

	tree.Put(key("a"), []byte("entry a"))
	tree.Put(key("b"), []byte("entry b"))
	tree.Put(key("c"), []byte("entry c"))
	require.Equal(t, 3, tree.Size())

	entry, exists := tree.Get(key("b"))
	require.True(t, exists)
	require.Equal(t, []byte("entry b"), entry)

	_, exists = tree.Get(key("missing"))
	require.False(t, exists)

	tree.Put(key("b"), []byte("entry b2"))
	entry, exists = tree.Get(key("b"))
	require.True(t, exists)
	require.Equal(t, []byte("entry b2"), entry)
	require.Equal(t, 3, tree.Size())

	require.True(t, tree.Delete(key("b")))
	require.False(t, tree.Delete(key("b")))
	require.False(t, tree.Has(key("b")))
	require.Equal(t, 2, tree.Size())
}

func TestRootIsPureFunctionOfContents(t *testing.T) {
	buildInOrder := func(seeds ...string) *statetree.Tree {
		tree := statetree.New()
		for _, seed := range seeds {
			tree.Put(key(seed), []byte("entry "+seed))
		}

		return tree
	}

	forward := buildInOrder("a", "b", "c", "d", "e")
	backward := buildInOrder("e", "d", "c", "b", "a")
	require.Equal(t, forward.Root(), backward.Root())

	// inserting and deleting an extra entry must restore the exact root
	withExtra := buildInOrder("a", "b", "c", "d", "e")
	withExtra.Put(key("extra"), []byte("entry extra"))
	require.NotEqual(t, forward.Root(), withExtra.Root())
	require.True(t, withExtra.Delete(key("extra")))
	require.Equal(t, forward.Root(), withExtra.Root())
}

func TestRootChangesOnMutation(t *testing.T) {
	tree := statetree.New()
	tree.Put(key("a"), []byte("v1"))
	rootBefore := tree.Root()

	tree.Put(key("a"), []byte("v2"))
	require.NotEqual(t, rootBefore, tree.Root())
}

func TestDeriveSharesUnmodifiedState(t *testing.T) {
	parent := statetree.New()
	parent.Put(key("shared"), []byte("shared entry"))
	parent.Put(key("mutated"), []byte("parent view"))
	parentRoot := parent.Root()

	child := parent.Derive()
	require.Equal(t, parentRoot, child.Root())

	child.Put(key("mutated"), []byte("child view"))
	child.Put(key("child only"), []byte("child entry"))
	require.True(t, child.Delete(key("shared")))

	// the parent's view is untouched by any child mutation
	require.Equal(t, parentRoot, parent.Root())
	entry, exists := parent.Get(key("mutated"))
	require.True(t, exists)
	require.Equal(t, []byte("parent view"), entry)
	require.True(t, parent.Has(key("shared")))
	require.False(t, parent.Has(key("child only")))

	// and the other way around: the parent writing after Derive does not
	// leak into the child
	parent.Put(key("shared"), []byte("parent rewrite"))
	entry, exists = child.Get(key("mutated"))
	require.True(t, exists)
	require.Equal(t, []byte("child view"), entry)
	require.False(t, child.Has(key("shared")))
}

func TestForEachVisitsAscendingKeys(t *testing.T) {
	tree := statetree.New()
	for _, seed := range []string{"q", "w", "e", "r", "t", "y"} {
		tree.Put(key(seed), []byte(seed))
	}

	var visited []types.Identifier
	tree.ForEach(func(k types.Identifier, _ []byte) bool {
		visited = append(visited, k)

		return true
	})

	require.Len(t, visited, tree.Size())
	for i := 1; i < len(visited); i++ {
		require.Equal(t, -1, visited[i-1].Compare(visited[i]))
	}
}

func TestFlushDirty(t *testing.T) {
	store := mapdb.NewMapDB()

	tree := statetree.New()
	tree.Put(key("a"), []byte("entry a"))
	tree.Put(key("b"), []byte("entry b"))

	written, err := tree.FlushDirty(store, 1)
	require.NoError(t, err)
	require.NotZero(t, written)

	// the root node is persisted under its own hash
	root := tree.Root()
	has, err := store.Has(root[:])
	require.NoError(t, err)
	require.True(t, has)

	// a second flush with no mutations is a no-op
	written, err = tree.FlushDirty(store, 1)
	require.NoError(t, err)
	require.Zero(t, written)

	// only the changed path is flushed again
	tree.Put(key("a"), []byte("entry a2"))
	written, err = tree.FlushDirty(store, 2)
	require.NoError(t, err)
	require.NotZero(t, written)
}

func TestFlushDirtyAfterDerive(t *testing.T) {
	store := mapdb.NewMapDB()

	parent := statetree.New()
	parent.Put(key("a"), []byte("entry a"))
	_, err := parent.FlushDirty(store, 1)
	require.NoError(t, err)

	child := parent.Derive()
	child.Put(key("b"), []byte("entry b"))

	written, err := child.FlushDirty(store, 2)
	require.NoError(t, err)
	require.NotZero(t, written)

	childRoot := child.Root()
	has, err := store.Has(childRoot[:])
	require.NoError(t, err)
	require.True(t, has)

	// the parent has nothing left to flush; its nodes were either flushed
	// before or are shared and untouched
	written, err = parent.FlushDirty(store, 2)
	require.NoError(t, err)
	require.Zero(t, written)
}
