package ledger

import (
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/protocol"
	"github.com/veritasledger/veritas-core/pkg/statetree"
)

// ErrInconsistentState is wrapped by every failure of CheckState.
var ErrInconsistentState = ierrors.New("ledger state is inconsistent")

// CheckState verifies the internal consistency of the ledger: every entry
// parses, lives under exactly the index its content derives, references only
// existing accounts, native balances sum up to the supply counters, and the
// stored roots match a fresh recomputation from the leaves.
func (l *Ledger) CheckState() error {
	accounts := make(map[types.AccountID]*protocol.AccountRoot)
	balanceSums := make(map[protocol.Asset]uint64)

	var deferredChecks []func() error
	var walkErr error

	comparisonTree := statetree.New()

	l.stateTree.ForEach(func(key types.Identifier, entry []byte) bool {
		comparisonTree.Put(key, entry)

		kind, err := protocol.KindOfEntry(entry)
		if err != nil {
			walkErr = ierrors.Wrapf(ErrInconsistentState, "unreadable entry at %s: %s", key, err)

			return false
		}

		switch kind {
		case protocol.EntryKindAccountRoot:
			root, _, err := protocol.AccountRootFromBytes(entry)
			if err != nil {
				walkErr = ierrors.Wrapf(ErrInconsistentState, "corrupt account entry at %s: %s", key, err)

				return false
			}
			if expected := protocol.AccountIndex(root.Account); expected != key {
				walkErr = ierrors.Wrapf(ErrInconsistentState, "account %s stored at %s, expected %s", root.Account, key, expected)

				return false
			}
			accounts[root.Account] = root
			for _, balance := range root.Balances {
				if balance.Asset.IsNative() {
					balanceSums[balance.Asset] += balance.Value
				}
			}

		case protocol.EntryKindTrustLine:
			line, _, err := protocol.TrustLineFromBytes(entry)
			if err != nil {
				walkErr = ierrors.Wrapf(ErrInconsistentState, "corrupt trust line at %s: %s", key, err)

				return false
			}
			if expected := protocol.TrustLineIndex(line.Account, line.Asset); expected != key {
				walkErr = ierrors.Wrapf(ErrInconsistentState, "trust line %s/%s stored at %s, expected %s", line.Account, line.Asset, key, expected)

				return false
			}
			deferredChecks = append(deferredChecks, func() error {
				if _, exists := accounts[line.Account]; !exists {
					return ierrors.Wrapf(ErrInconsistentState, "trust line %s references missing account", line.Account)
				}

				return nil
			})

		case protocol.EntryKindOffer:
			offer, _, err := protocol.OfferFromBytes(entry)
			if err != nil {
				walkErr = ierrors.Wrapf(ErrInconsistentState, "corrupt offer at %s: %s", key, err)

				return false
			}
			if expected := protocol.OfferIndex(offer.Account, offer.Sequence); expected != key {
				walkErr = ierrors.Wrapf(ErrInconsistentState, "offer %s/%d stored at %s, expected %s", offer.Account, offer.Sequence, key, expected)

				return false
			}
			deferredChecks = append(deferredChecks, func() error {
				if _, exists := accounts[offer.Account]; !exists {
					return ierrors.Wrapf(ErrInconsistentState, "offer of %s references missing account", offer.Account)
				}

				return nil
			})

		case protocol.EntryKindReleaseSchedule:
			schedule, _, err := protocol.ReleaseScheduleFromBytes(entry)
			if err != nil {
				walkErr = ierrors.Wrapf(ErrInconsistentState, "corrupt release schedule at %s: %s", key, err)

				return false
			}
			if expected := protocol.ScheduleIndex(schedule.Issuer, schedule.Currency); expected != key {
				walkErr = ierrors.Wrapf(ErrInconsistentState, "release schedule of %s stored at %s, expected %s", schedule.Issuer, key, expected)

				return false
			}

		case protocol.EntryKindSkipList:
			if _, _, err := protocol.SkipListEntryFromBytes(entry); err != nil {
				walkErr = ierrors.Wrapf(ErrInconsistentState, "corrupt skip list at %s: %s", key, err)

				return false
			}

		default:
			walkErr = ierrors.Wrapf(ErrInconsistentState, "unknown entry kind %d at %s", kind, key)

			return false
		}

		return true
	})
	if walkErr != nil {
		return walkErr
	}

	for _, check := range deferredChecks {
		if err := check(); err != nil {
			return err
		}
	}

	l.mutex.RLock()
	header := l.header.Clone()
	l.mutex.RUnlock()

	for _, supply := range header.Supplies {
		if sum := balanceSums[supply.Asset]; sum != supply.Value {
			return ierrors.Wrapf(ErrInconsistentState, "balances of %s sum to %d, supply counter says %d", supply.Asset, sum, supply.Value)
		}
	}

	// a fresh recomputation from the leaves must reproduce the root
	if recomputed := comparisonTree.Root(); recomputed != l.stateTree.Root() {
		return ierrors.Wrapf(ErrInconsistentState, "state root %s does not match recomputation %s", l.stateTree.Root(), recomputed)
	}

	if header.Closed {
		if header.StateRoot != l.stateTree.Root() {
			return ierrors.Wrapf(ErrInconsistentState, "sealed state root %s does not match tree root %s", header.StateRoot, l.stateTree.Root())
		}
		if header.TxRoot != l.txTree.Root() {
			return ierrors.Wrapf(ErrInconsistentState, "sealed tx root %s does not match tree root %s", header.TxRoot, l.txTree.Root())
		}
	}

	return nil
}
