package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasledger/veritas-core/pkg/core/types"
)

func TestIdentifierFromData(t *testing.T) {
	id1 := types.IdentifierFromData([]byte("some data"))
	id2 := types.IdentifierFromData([]byte("some data"))
	id3 := types.IdentifierFromData([]byte("some other data"))

	require.Equal(t, id1, id2)
	require.NotEqual(t, id1, id3)
	require.False(t, id1.IsEmpty())
	require.True(t, types.EmptyIdentifier.IsEmpty())
}

func TestIdentifierHexRoundtrip(t *testing.T) {
	id := types.IdentifierFromData([]byte("roundtrip"))

	parsed, err := types.IdentifierFromHexString(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = types.IdentifierFromHexString("abcd")
	require.Error(t, err)
}

func TestIdentifierCompare(t *testing.T) {
	low := types.MustIdentifierFromHexString("00000000000000000000000000000000000000000000000000000000000000ff")
	high := types.MustIdentifierFromHexString("ff00000000000000000000000000000000000000000000000000000000000000")

	require.Equal(t, -1, low.Compare(high))
	require.Equal(t, 1, high.Compare(low))
	require.Equal(t, 0, low.Compare(low))
}
