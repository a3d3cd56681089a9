package txset_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/protocol"
	"github.com/veritasledger/veritas-core/pkg/txset"
)

func testTransactions(count int) []*protocol.Transaction {
	txs := make([]*protocol.Transaction, count)
	for i := range txs {
		txs[i] = &protocol.Transaction{
			Type:     protocol.TxTypePayment,
			Account:  types.IdentifierFromData([]byte{byte(i)}),
			Sequence: uint32(i + 1),
			Fee:      10,
			Amount:   protocol.NativeAmount("XRP", 100),
		}
	}

	return txs
}

func TestOrderIsIndependentOfInsertionOrder(t *testing.T) {
	txs := testTransactions(8)

	forward := txset.New(txs...)

	backward := txset.New()
	for i := len(txs) - 1; i >= 0; i-- {
		require.True(t, backward.Add(txs[i]))
	}

	forwardOrder := forward.SortedTransactions()
	backwardOrder := backward.SortedTransactions()
	require.Len(t, forwardOrder, len(txs))
	require.Len(t, backwardOrder, len(txs))
	for i := range forwardOrder {
		require.Equal(t, forwardOrder[i].ID(), backwardOrder[i].ID())
	}

	// ascending by content hash
	for i := 1; i < len(forwardOrder); i++ {
		require.Equal(t, -1, forwardOrder[i-1].ID().Compare(forwardOrder[i].ID()))
	}
}

func TestAddIsIdempotent(t *testing.T) {
	txs := testTransactions(3)
	set := txset.New(txs...)

	require.False(t, set.Add(txs[0]))
	require.Equal(t, 3, set.Size())
	require.True(t, set.Has(txs[0].ID()))
}

func TestReducedSubsetKeepsRelativeOrder(t *testing.T) {
	txs := testTransactions(8)
	full := txset.New(txs...)

	fullOrder := full.SortedTransactions()
	subset := txset.New(fullOrder[1], fullOrder[4], fullOrder[6])

	subsetOrder := subset.SortedTransactions()
	require.Len(t, subsetOrder, 3)
	require.Equal(t, fullOrder[1].ID(), subsetOrder[0].ID())
	require.Equal(t, fullOrder[4].ID(), subsetOrder[1].ID())
	require.Equal(t, fullOrder[6].ID(), subsetOrder[2].ID())
}
