package protocol

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/quality"
)

// State-tree key spaces. Every entry kind lives in its own space so distinct
// objects can never collide on an index.
const (
	spaceAccount     byte = 'a'
	spaceTrustLine   byte = 'r'
	spaceOffer       byte = 'o'
	spaceSchedule    byte = 's'
	spaceSkipList    byte = 'k'
	spaceBook        byte = 'b'
	spaceTransaction byte = 't'
)

// AccountIndex returns the state-tree key of an account entry.
func AccountIndex(account types.AccountID) types.Identifier {
	return spacedIndex(spaceAccount, account[:])
}

// TrustLineIndex returns the state-tree key of the trust line between the
// account and the asset's issuer.
func TrustLineIndex(account types.AccountID, asset Asset) types.Identifier {
	buf := make([]byte, 0, 2*types.IdentifierLength+CurrencyLength)
	buf = append(buf, account[:]...)
	buf = append(buf, asset.Issuer[:]...)
	buf = append(buf, asset.Currency[:]...)

	return spacedIndex(spaceTrustLine, buf)
}

// OfferIndex returns the state-tree key of the offer the account created with
// the given sequence number.
func OfferIndex(account types.AccountID, sequence uint32) types.Identifier {
	buf := make([]byte, 0, types.IdentifierLength+4)
	buf = append(buf, account[:]...)
	buf = binary.BigEndian.AppendUint32(buf, sequence)

	return spacedIndex(spaceOffer, buf)
}

// ScheduleIndex returns the state-tree key of the release schedule for the
// given issued currency.
func ScheduleIndex(issuer types.AccountID, currency Currency) types.Identifier {
	buf := make([]byte, 0, types.IdentifierLength+CurrencyLength)
	buf = append(buf, issuer[:]...)
	buf = append(buf, currency[:]...)

	return spacedIndex(spaceSchedule, buf)
}

// SkipListIndex returns the state-tree key of the rolling recent-ancestors
// entry that is rewritten on every close.
func SkipListIndex() types.Identifier {
	return spacedIndex(spaceSkipList, nil)
}

// SkipListIndexFor returns the state-tree key of the skip-list entry covering
// the 256-ledger span that contains the given sequence.
func SkipListIndexFor(ledgerSeq uint32) types.Identifier {
	buf := binary.BigEndian.AppendUint32(nil, ledgerSeq>>8)

	return spacedIndex(spaceSkipList, buf)
}

// TransactionIndex returns the transaction-tree key for a transaction.
func TransactionIndex(txID types.Identifier) types.Identifier {
	return spacedIndex(spaceTransaction, txID[:])
}

// BookDirectory returns the book page key for an offer trading takerPays
// against takerGets: a base key derived from the asset pair with the offer's
// rate embedded in the trailing bytes.
func BookDirectory(takerPays, takerGets Asset, rate uint64) types.Identifier {
	buf := make([]byte, 0, 2*(types.IdentifierLength+CurrencyLength))
	buf = append(buf, takerPays.Currency[:]...)
	buf = append(buf, takerPays.Issuer[:]...)
	buf = append(buf, takerGets.Currency[:]...)
	buf = append(buf, takerGets.Issuer[:]...)

	return quality.WithRate(spacedIndex(spaceBook, buf), rate)
}

// OfferRate returns the rate key of an offer: the units of takerPays demanded
// per QualityOne units of takerGets, lower being the better price for a taker.
// Rates beyond the representable range saturate at the worst possible price.
func OfferRate(takerPays, takerGets Amount) uint64 {
	if takerGets.Value == 0 {
		return 0
	}

	hi, lo := bits.Mul64(takerPays.Value, QualityOne)
	if hi >= takerGets.Value {
		return math.MaxUint64
	}
	rate, _ := bits.Div64(hi, lo, takerGets.Value)

	return rate
}

// QualityOne is the rate representing parity between the two sides of a book.
const QualityOne uint64 = 1_000_000_000

func spacedIndex(space byte, data []byte) types.Identifier {
	buf := make([]byte, 0, 1+len(data))
	buf = append(buf, space)
	buf = append(buf, data...)

	return types.IdentifierFromData(buf)
}
