// Package txset implements the canonical ordering of a candidate transaction
// set: a strict total order derived from transaction content hashes, so any
// two participants holding the same set compute the same sequence without
// coordinating on arrival order.
package txset

import (
	"sort"

	"github.com/iotaledger/hive.go/ds/shrinkingmap"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/protocol"
)

// Set is a transaction set with a canonical order. The zero value is not
// usable; obtain instances from New.
type Set struct {
	transactions *shrinkingmap.ShrinkingMap[types.Identifier, *protocol.Transaction]
}

// New creates a set over the given transactions.
func New(txs ...*protocol.Transaction) *Set {
	s := &Set{
		transactions: shrinkingmap.New[types.Identifier, *protocol.Transaction](),
	}
	for _, tx := range txs {
		s.Add(tx)
	}

	return s
}

// Add inserts a transaction and reports whether it was not present before.
// Membership is keyed by content hash, so re-adding the same transaction is a
// no-op and insertion order never matters.
func (s *Set) Add(tx *protocol.Transaction) bool {
	return s.transactions.Set(tx.ID(), tx)
}

// Has reports whether the transaction with the given ID is in the set.
func (s *Set) Has(txID types.Identifier) bool {
	return s.transactions.Has(txID)
}

// Size returns the number of transactions in the set.
func (s *Set) Size() int {
	return s.transactions.Size()
}

// SortedTransactions returns the set's transactions in canonical order:
// ascending content hash, interpreted as an unsigned integer. Content hashes
// are effectively unique, so ties do not occur.
func (s *Set) SortedTransactions() []*protocol.Transaction {
	sorted := s.transactions.Values()
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID().Compare(sorted[j].ID()) < 0
	})

	return sorted
}
