package protocol_test

import (
	"math"
	"testing"
	"time"

	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/stretchr/testify/require"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/protocol"
	"github.com/veritasledger/veritas-core/pkg/quality"
)

func account(seed string) types.AccountID {
	return types.IdentifierFromData([]byte(seed))
}

func TestAccountRootBalances(t *testing.T) {
	root := protocol.NewAccountRoot(account("alice"))
	xrp := protocol.NativeAsset("XRP")
	foo := protocol.IssuedAsset("FOO", account("gw1"))

	root.AddBalance(xrp, 1000)
	root.AddBalance(foo, 50)
	require.Equal(t, uint64(1000), root.Balance(xrp))
	require.Equal(t, uint64(50), root.Balance(foo))

	require.True(t, root.SubtractBalance(xrp, 400))
	require.Equal(t, uint64(600), root.Balance(xrp))
	require.False(t, root.SubtractBalance(xrp, 601))
	require.Equal(t, uint64(600), root.Balance(xrp))

	serialized, err := root.Bytes()
	require.NoError(t, err)
	parsed, consumed, err := protocol.AccountRootFromBytes(serialized)
	require.NoError(t, err)
	require.Equal(t, len(serialized), consumed)
	require.Equal(t, root, parsed)
}

func TestAccountRootBalanceOrderIsCanonical(t *testing.T) {
	xrp := protocol.NativeAsset("XRP")
	vbc := protocol.NativeAsset("VBC")

	first := protocol.NewAccountRoot(account("alice"))
	first.AddBalance(xrp, 1)
	first.AddBalance(vbc, 2)

	second := protocol.NewAccountRoot(account("alice"))
	second.AddBalance(vbc, 2)
	second.AddBalance(xrp, 1)

	firstBytes, err := first.Bytes()
	require.NoError(t, err)
	secondBytes, err := second.Bytes()
	require.NoError(t, err)
	require.Equal(t, firstBytes, secondBytes)
}

func TestAssetSerialization(t *testing.T) {
	for _, asset := range []protocol.Asset{
		protocol.NativeAsset("XRP"),
		protocol.IssuedAsset("FOO", account("gw1")),
		protocol.IssuedAsset("ABCDEFGHIJKLMNOPQRST", account("gw2")), // full-width code
	} {
		serialized, err := asset.Bytes()
		require.NoError(t, err)
		require.Len(t, serialized, protocol.CurrencyLength+types.IdentifierLength)

		parsed, err := protocol.AssetFromReader(stream.NewByteReader(serialized))
		require.NoError(t, err)
		require.Equal(t, asset, parsed)
	}

	amount := protocol.IssuedAmount("FOO", account("gw1"), 42)
	serialized, err := amount.Bytes()
	require.NoError(t, err)
	parsed, err := protocol.AmountFromReader(stream.NewByteReader(serialized))
	require.NoError(t, err)
	require.Equal(t, amount, parsed)
}

func TestTransactionIdentity(t *testing.T) {
	tx := &protocol.Transaction{
		Type:        protocol.TxTypePayment,
		Account:     account("alice"),
		Destination: account("bob"),
		Sequence:    1,
		Fee:         10,
		Amount:      protocol.NativeAmount("XRP", 100),
	}

	same := &protocol.Transaction{
		Type:        protocol.TxTypePayment,
		Account:     account("alice"),
		Destination: account("bob"),
		Sequence:    1,
		Fee:         10,
		Amount:      protocol.NativeAmount("XRP", 100),
	}

	different := &protocol.Transaction{
		Type:        protocol.TxTypePayment,
		Account:     account("alice"),
		Destination: account("bob"),
		Sequence:    2,
		Fee:         10,
		Amount:      protocol.NativeAmount("XRP", 100),
	}

	require.Equal(t, tx.ID(), same.ID())
	require.NotEqual(t, tx.ID(), different.ID())

	serialized, err := tx.Bytes()
	require.NoError(t, err)
	parsed, _, err := protocol.TransactionFromBytes(serialized)
	require.NoError(t, err)
	require.Equal(t, tx.ID(), parsed.ID())
}

func TestResultClasses(t *testing.T) {
	require.Equal(t, protocol.ClassApplied, protocol.ResultApplied.Class())

	for _, code := range []protocol.ResultCode{
		protocol.ResultRetryPreSequence,
		protocol.ResultRetryNoDestination,
		protocol.ResultRetryUnfunded,
	} {
		require.Equal(t, protocol.ClassRetry, code.Class(), code.String())
	}

	for _, code := range []protocol.ResultCode{
		protocol.ResultPastSequence,
		protocol.ResultMalformed,
		protocol.ResultFrozen,
		protocol.ResultNoAccount,
		protocol.ResultNoLine,
		protocol.ResultNoPermission,
		protocol.ResultUnknownType,
	} {
		require.Equal(t, protocol.ClassTerminal, code.Class(), code.String())
	}
}

func TestBookDirectoryEmbedsRate(t *testing.T) {
	foo := protocol.IssuedAsset("FOO", account("gw1"))
	bar := protocol.IssuedAsset("BAR", account("gw2"))

	rate := protocol.OfferRate(protocol.Amount{Asset: foo, Value: 2}, protocol.Amount{Asset: bar, Value: 4})
	require.Equal(t, protocol.QualityOne/2, rate)

	directory := protocol.BookDirectory(foo, bar, rate)
	require.Equal(t, rate, quality.FromIdentifier(directory))

	// same book, different rate: same base, different page
	other := protocol.BookDirectory(foo, bar, rate*2)
	require.Equal(t, quality.Base(directory), quality.Base(other))
	require.NotEqual(t, directory, other)
}

func TestOfferRateLargeValues(t *testing.T) {
	foo := protocol.IssuedAsset("FOO", account("gw1"))
	bar := protocol.IssuedAsset("BAR", account("gw2"))

	// takerPays * QualityOne exceeds 64 bits, the quotient does not
	const huge = uint64(40_000_000_000)
	rate := protocol.OfferRate(protocol.Amount{Asset: foo, Value: huge}, protocol.Amount{Asset: bar, Value: huge * 2})
	require.Equal(t, protocol.QualityOne/2, rate)

	// the quotient itself does not fit either: saturate at the worst price
	rate = protocol.OfferRate(protocol.Amount{Asset: foo, Value: math.MaxUint64}, protocol.Amount{Asset: bar, Value: 1})
	require.Equal(t, uint64(math.MaxUint64), rate)

	require.Equal(t, uint64(0), protocol.OfferRate(protocol.Amount{Asset: foo, Value: 1}, protocol.Amount{Asset: bar, Value: 0}))
}

func TestHeaderHashCoversConsensusFieldsOnly(t *testing.T) {
	header := &protocol.Header{
		Sequence:            7,
		ParentHash:          types.IdentifierFromData([]byte("parent")),
		StateRoot:           types.IdentifierFromData([]byte("state")),
		TxRoot:              types.IdentifierFromData([]byte("tx")),
		CloseTime:           1234560,
		CloseTimeResolution: protocol.DefaultCloseTimeResolution,
		CloseTimeAgreed:     true,
	}
	header.SetSupply(protocol.NativeAsset("XRP"), 1_000_000)

	hash := header.Hash()

	// local markers do not change the ledger hash
	marked := header.Clone()
	marked.Closed = true
	marked.Validated = true
	require.Equal(t, hash, marked.Hash())

	// consensus fields do
	reclosed := header.Clone()
	reclosed.CloseTime += protocol.DefaultCloseTimeResolution
	require.NotEqual(t, hash, reclosed.Hash())

	serialized, err := marked.Bytes()
	require.NoError(t, err)
	parsed, _, err := protocol.HeaderFromBytes(serialized)
	require.NoError(t, err)
	require.Equal(t, marked, parsed)
}

func TestCloseTimeRounding(t *testing.T) {
	closeTime := protocol.CloseTimeFromUTC(time.Date(2000, 1, 1, 0, 1, 17, 0, time.UTC))
	require.Equal(t, uint32(77), closeTime)
	require.Equal(t, uint32(60), protocol.RoundCloseTime(closeTime, 30))
	require.Equal(t, closeTime, protocol.RoundCloseTime(closeTime, 0))
}
