package closer_test

import (
	"testing"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/stretchr/testify/require"

	"github.com/veritasledger/veritas-core/pkg/closer"
	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/ledger"
	"github.com/veritasledger/veritas-core/pkg/protocol"
	"github.com/veritasledger/veritas-core/pkg/txset"
)

const testFee = 10

var (
	xrp    = protocol.NativeAsset("XRP")
	master = types.IdentifierFromData([]byte("master"))
	alice  = types.IdentifierFromData([]byte("alice"))
	bob    = types.IdentifierFromData([]byte("bob"))
	gw     = types.IdentifierFromData([]byte("gateway"))
)

func newGenesis(t *testing.T) *ledger.Ledger {
	t.Helper()

	genesis, err := ledger.NewGenesis(ledger.GenesisConfig{
		Master:   master,
		Supplies: []protocol.AssetBalance{{Asset: xrp, Value: 100_000_000}},
	})
	require.NoError(t, err)

	return genesis
}

func newCloser(t *testing.T) *closer.Closer {
	t.Helper()

	return closer.New(log.NewLogger().NewChildLogger(t.Name()), nil)
}

func paymentTx(account types.AccountID, sequence uint32, destination types.AccountID, amount protocol.Amount) *protocol.Transaction {
	return &protocol.Transaction{
		Type:        protocol.TxTypePayment,
		Account:     account,
		Sequence:    sequence,
		Fee:         testFee,
		Destination: destination,
		Amount:      amount,
	}
}

func TestCloseIsDeterministic(t *testing.T) {
	txs := []*protocol.Transaction{
		paymentTx(master, 1, alice, protocol.NativeAmount("XRP", 1_000)),
		paymentTx(master, 2, bob, protocol.NativeAmount("XRP", 2_000)),
		paymentTx(master, 3, gw, protocol.NativeAmount("XRP", 3_000)),
	}

	closeTime := protocol.CloseTimeFromUTC(time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC))

	// two independent nodes receive the candidates in different orders
	first, _, err := newCloser(t).CloseAndAdvance(newGenesis(t), txset.New(txs...), closeTime, true)
	require.NoError(t, err)

	reordered := txset.New(txs[2], txs[0], txs[1])
	second, _, err := newCloser(t).CloseAndAdvance(newGenesis(t), reordered, closeTime, true)
	require.NoError(t, err)

	require.Equal(t, first.Hash(), second.Hash())
	require.Equal(t, first.Header().StateRoot, second.Header().StateRoot)
	require.Equal(t, first.Header().TxRoot, second.Header().TxRoot)
}

func TestCloseRetriesSequenceGaps(t *testing.T) {
	// the canonical content-hash order may put sequence 2 before sequence 1;
	// either way the retry passes converge on both being applied
	candidates := txset.New(
		paymentTx(master, 2, bob, protocol.NativeAmount("XRP", 2_000)),
		paymentTx(master, 1, alice, protocol.NativeAmount("XRP", 1_000)),
	)

	closed, deferred, err := newCloser(t).CloseAndAdvance(newGenesis(t), candidates, 100, true)
	require.NoError(t, err)
	require.Empty(t, deferred)

	aliceAccount, exists, err := closed.AccountState(alice)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, uint64(1_000), aliceAccount.Balance(xrp))

	bobAccount, exists, err := closed.AccountState(bob)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, uint64(2_000), bobAccount.Balance(xrp))
}

func TestCloseAppliesLongSequenceChain(t *testing.T) {
	// a single account submitting a long run of consecutive sequences is the
	// worst case for the retry loop: canonical order can reverse the chain, so
	// a pass may apply only one transaction. The whole chain must still land.
	const chainLength = 40

	txs := make([]*protocol.Transaction, 0, chainLength)
	for sequence := uint32(1); sequence <= chainLength; sequence++ {
		txs = append(txs, paymentTx(master, sequence, alice, protocol.NativeAmount("XRP", 100)))
	}

	closed, deferred, err := newCloser(t).CloseAndAdvance(newGenesis(t), txset.New(txs...), 100, true)
	require.NoError(t, err)
	require.Empty(t, deferred)

	aliceAccount, exists, err := closed.AccountState(alice)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, uint64(chainLength*100), aliceAccount.Balance(xrp))

	masterAccount, _, err := closed.AccountState(master)
	require.NoError(t, err)
	require.Equal(t, uint32(chainLength), masterAccount.Sequence)

	for _, tx := range txs {
		require.True(t, closed.HasTransaction(tx.ID()))
	}
}

type failingPersister struct{}

func (failingPersister) PersistLedger(*ledger.Ledger) error {
	return ierrors.New("write stalled")
}

func TestClosePersistFailureLeavesParentUntouched(t *testing.T) {
	genesis := newGenesis(t)
	parentRoot := genesis.StateTree().Root()
	candidates := txset.New(paymentTx(master, 1, alice, protocol.NativeAmount("XRP", 1_000)))

	failing := closer.New(log.NewLogger().NewChildLogger(t.Name()), failingPersister{})
	_, _, err := failing.CloseAndAdvance(genesis, candidates, 100, true)
	require.ErrorContains(t, err, "failed to persist ledger")

	// the parent is unchanged and can be closed again
	require.Equal(t, parentRoot, genesis.StateTree().Root())
	require.True(t, genesis.IsClosed())

	closed, deferred, err := newCloser(t).CloseAndAdvance(genesis, candidates, 100, true)
	require.NoError(t, err)
	require.Empty(t, deferred)

	aliceAccount, exists, err := closed.AccountState(alice)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, uint64(1_000), aliceAccount.Balance(xrp))
}

func TestCloseDefersUnsatisfiable(t *testing.T) {
	// sequence 3 can never apply without a sequence 2 in the set
	stuck := paymentTx(master, 3, bob, protocol.NativeAmount("XRP", 2_000))
	candidates := txset.New(
		paymentTx(master, 1, alice, protocol.NativeAmount("XRP", 1_000)),
		stuck,
	)

	closed, deferred, err := newCloser(t).CloseAndAdvance(newGenesis(t), candidates, 100, true)
	require.NoError(t, err)

	require.Len(t, deferred, 1)
	require.Equal(t, stuck.ID(), deferred[0].ID())
	require.False(t, closed.HasTransaction(stuck.ID()))
	require.True(t, closed.IsClosed())
	require.NoError(t, closed.CheckState())
}

func TestCloseLeavesParentUntouched(t *testing.T) {
	genesis := newGenesis(t)
	parentRoot := genesis.StateTree().Root()

	_, _, err := newCloser(t).CloseAndAdvance(genesis, txset.New(
		paymentTx(master, 1, alice, protocol.NativeAmount("XRP", 1_000)),
	), 100, true)
	require.NoError(t, err)

	require.Equal(t, parentRoot, genesis.StateTree().Root())
	_, exists, err := genesis.AccountState(alice)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCloseSealsHeader(t *testing.T) {
	c := newCloser(t)

	closed, _, err := c.CloseAndAdvance(newGenesis(t), txset.New(), 77, true)
	require.NoError(t, err)

	header := closed.Header()
	require.True(t, header.Closed)
	require.True(t, header.CloseTimeAgreed)
	require.Equal(t, uint32(60), header.CloseTime)
	require.Equal(t, closed.StateTree().Root(), header.StateRoot)
	require.Equal(t, closed.TxTree().Root(), header.TxRoot)
}

// TestCloseMultiLedgerScenario drives consecutive closes: funding native
// accounts, establishing trust lines and moving issued value, then placing
// and cancelling offers under a freeze. State is fully checked after every
// close.
func TestCloseMultiLedgerScenario(t *testing.T) {
	c := newCloser(t)
	foo := protocol.IssuedAsset("FOO", gw)

	// ledger 2: fund everyone with native currency
	ledger2, deferred, err := c.CloseAndAdvance(newGenesis(t), txset.New(
		paymentTx(master, 1, gw, protocol.NativeAmount("XRP", 100_000)),
		paymentTx(master, 2, alice, protocol.NativeAmount("XRP", 50_000)),
		paymentTx(master, 3, bob, protocol.NativeAmount("XRP", 50_000)),
	), 100, true)
	require.NoError(t, err)
	require.Empty(t, deferred)
	require.NoError(t, ledger2.CheckState())
	require.Equal(t, uint32(2), ledger2.Sequence())

	// ledger 3: trust lines towards the gateway
	ledger3, deferred, err := c.CloseAndAdvance(ledger2, txset.New(
		&protocol.Transaction{
			Type: protocol.TxTypeTrustSet, Account: alice, Sequence: 1, Fee: testFee,
			LimitAmount: protocol.Amount{Asset: foo, Value: 1_000},
		},
		&protocol.Transaction{
			Type: protocol.TxTypeTrustSet, Account: bob, Sequence: 1, Fee: testFee,
			LimitAmount: protocol.Amount{Asset: foo, Value: 1_000},
		},
	), 200, true)
	require.NoError(t, err)
	require.Empty(t, deferred)
	require.NoError(t, ledger3.CheckState())

	// ledger 4: the gateway mints to alice and alice offers FOO for XRP. If
	// the offer sorts before the mint it is unfunded at first and only goes
	// through on the retry pass.
	ledger4, deferred, err := c.CloseAndAdvance(ledger3, txset.New(
		paymentTx(gw, 1, alice, protocol.Amount{Asset: foo, Value: 500}),
		&protocol.Transaction{
			Type: protocol.TxTypeOfferCreate, Account: alice, Sequence: 2, Fee: testFee,
			TakerPays: protocol.NativeAmount("XRP", 1_000),
			TakerGets: protocol.Amount{Asset: foo, Value: 100},
		},
	), 300, true)
	require.NoError(t, err)
	require.Empty(t, deferred)
	require.NoError(t, ledger4.CheckState())

	line, exists, err := ledger4.TrustLine(alice, foo)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, uint64(500), line.Balance)

	_, exists, err = ledger4.Offer(alice, 2)
	require.NoError(t, err)
	require.True(t, exists)

	// ledger 5: the gateway freezes its books
	ledger5, deferred, err := c.CloseAndAdvance(ledger4, txset.New(
		&protocol.Transaction{
			Type: protocol.TxTypeAccountSet, Account: gw, Sequence: 2, Fee: testFee,
			SetFlag: protocol.AccountSetFlagGlobalFreeze,
		},
	), 400, true)
	require.NoError(t, err)
	require.Empty(t, deferred)
	require.NoError(t, ledger5.CheckState())

	gwAccount, _, err := ledger5.AccountState(gw)
	require.NoError(t, err)
	require.True(t, gwAccount.IsFrozen())

	// ledger 6: the issued payment bounces off the freeze, the cancel still
	// goes through
	frozenPayment := paymentTx(bob, 2, alice, protocol.Amount{Asset: foo, Value: 100})
	ledger6, _, err := c.CloseAndAdvance(ledger5, txset.New(
		frozenPayment,
		&protocol.Transaction{
			Type: protocol.TxTypeOfferCancel, Account: alice, Sequence: 3, Fee: testFee,
			OfferSequence: 2,
		},
	), 500, true)
	require.NoError(t, err)
	require.NoError(t, ledger6.CheckState())

	_, exists, err = ledger6.Offer(alice, 2)
	require.NoError(t, err)
	require.False(t, exists)

	// the frozen payment was terminally rejected, not recorded
	require.False(t, ledger6.HasTransaction(frozenPayment.ID()))

	// ancestry: each header links to its parent and the skip list accumulates
	require.Equal(t, ledger5.Hash(), ledger6.ParentHash())
	ancestors, err := ledger6.AncestorHashes()
	require.NoError(t, err)
	require.Contains(t, ancestors, ledger5.Hash())
	require.Contains(t, ancestors, ledger4.Hash())
	require.Contains(t, ancestors, ledger3.Hash())
}
