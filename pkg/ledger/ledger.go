// Package ledger implements the versioned ledger: a header plus an
// authenticated account-state tree and a per-ledger transaction tree. Open
// ledgers are derived copy-on-write from their sealed parent, mutated by a
// single writer, and become immutable once sealed.
package ledger

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/syncutils"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/protocol"
	"github.com/veritasledger/veritas-core/pkg/statetree"
)

var (
	// ErrLedgerClosed is returned when a mutation is attempted on a sealed ledger.
	ErrLedgerClosed = ierrors.New("ledger is sealed")

	// ErrLedgerOpen is returned when an operation requires a sealed ledger.
	ErrLedgerOpen = ierrors.New("ledger is still open")

	// ErrForkDetected is returned when locally computed roots disagree with
	// externally agreed values. This is a signal for the consensus layer, not
	// a local fault.
	ErrForkDetected = ierrors.New("fork detected")
)

// Ledger is one versioned snapshot of global state plus the transactions that
// produced it from its parent. The zero value is not usable; obtain instances
// from NewGenesis and Derive.
type Ledger struct {
	header    *protocol.Header
	stateTree *statetree.Tree
	txTree    *statetree.Tree

	mutex syncutils.RWMutex
}

// Derive creates the next open ledger on top of a sealed parent. The child
// shares the parent's state tree copy-on-write and starts an empty
// transaction tree; discarding the child at any point leaves the parent
// untouched.
func (l *Ledger) Derive() (*Ledger, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if !l.header.Closed {
		return nil, ierrors.Wrapf(ErrLedgerOpen, "cannot derive from open ledger %d", l.header.Sequence)
	}

	header := l.header.Clone()
	header.Sequence = l.header.Sequence + 1
	header.ParentHash = l.header.Hash()
	header.StateRoot = types.EmptyIdentifier
	header.TxRoot = types.EmptyIdentifier
	header.CloseTime = 0
	header.CloseTimeAgreed = false
	header.Closed = false
	header.Validated = false

	return &Ledger{
		header:    header,
		stateTree: l.stateTree.Derive(),
		txTree:    statetree.New(),
	}, nil
}

// Header returns a copy of the ledger header.
func (l *Ledger) Header() *protocol.Header {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.header.Clone()
}

// Sequence returns the ledger sequence number.
func (l *Ledger) Sequence() uint32 {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.header.Sequence
}

// ParentHash returns the hash of the parent ledger.
func (l *Ledger) ParentHash() types.Identifier {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.header.ParentHash
}

// Hash returns the ledger hash. It is only final once the ledger is sealed.
func (l *Ledger) Hash() types.Identifier {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.header.Hash()
}

// IsClosed reports whether the ledger has been sealed.
func (l *Ledger) IsClosed() bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.header.Closed
}

// IsValidated reports whether the consensus layer confirmed the ledger.
func (l *Ledger) IsValidated() bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.header.Validated
}

// SetValidated marks the ledger as confirmed by the consensus layer. Sealing
// alone never implies network agreement.
func (l *Ledger) SetValidated() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.header.Closed {
		return ierrors.Wrapf(ErrLedgerOpen, "cannot validate open ledger %d", l.header.Sequence)
	}
	l.header.Validated = true

	return nil
}

// CheckAgreedRoots compares the sealed roots against values agreed by the
// network. A mismatch means this node computed a different history than its
// peers and must be surfaced, never silently resolved.
func (l *Ledger) CheckAgreedRoots(stateRoot types.Identifier, txRoot types.Identifier) error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if !l.header.Closed {
		return ierrors.Wrapf(ErrLedgerOpen, "cannot compare roots of open ledger %d", l.header.Sequence)
	}

	if l.header.StateRoot != stateRoot {
		return ierrors.Wrapf(ErrForkDetected, "ledger %d state root %s disagrees with agreed %s", l.header.Sequence, l.header.StateRoot, stateRoot)
	}
	if l.header.TxRoot != txRoot {
		return ierrors.Wrapf(ErrForkDetected, "ledger %d transaction root %s disagrees with agreed %s", l.header.Sequence, l.header.TxRoot, txRoot)
	}

	return nil
}

// StateTree exposes the account-state tree (flushing, checks).
func (l *Ledger) StateTree() *statetree.Tree {
	return l.stateTree
}

// TxTree exposes the transaction tree (flushing, checks).
func (l *Ledger) TxTree() *statetree.Tree {
	return l.txTree
}

// AccountState returns the account entry for the given account. Absence is an
// explicit result.
func (l *Ledger) AccountState(account types.AccountID) (*protocol.AccountRoot, bool, error) {
	entry, exists := l.stateTree.Get(protocol.AccountIndex(account))
	if !exists {
		return nil, false, nil
	}

	root, _, err := protocol.AccountRootFromBytes(entry)
	if err != nil {
		return nil, false, ierrors.Wrapf(err, "corrupt account entry for %s", account)
	}

	return root, true, nil
}

// PutAccountState writes the account entry.
func (l *Ledger) PutAccountState(root *protocol.AccountRoot) error {
	if err := l.guardOpen(); err != nil {
		return err
	}

	entry, err := root.Bytes()
	if err != nil {
		return ierrors.Wrapf(err, "failed to serialize account entry for %s", root.Account)
	}
	l.stateTree.Put(protocol.AccountIndex(root.Account), entry)

	return nil
}

// TrustLine returns the trust line of the account for the given asset.
func (l *Ledger) TrustLine(account types.AccountID, asset protocol.Asset) (*protocol.TrustLine, bool, error) {
	entry, exists := l.stateTree.Get(protocol.TrustLineIndex(account, asset))
	if !exists {
		return nil, false, nil
	}

	line, _, err := protocol.TrustLineFromBytes(entry)
	if err != nil {
		return nil, false, ierrors.Wrapf(err, "corrupt trust line entry for %s %s", account, asset)
	}

	return line, true, nil
}

// PutTrustLine writes the trust-line entry.
func (l *Ledger) PutTrustLine(line *protocol.TrustLine) error {
	if err := l.guardOpen(); err != nil {
		return err
	}

	entry, err := line.Bytes()
	if err != nil {
		return ierrors.Wrapf(err, "failed to serialize trust line for %s %s", line.Account, line.Asset)
	}
	l.stateTree.Put(protocol.TrustLineIndex(line.Account, line.Asset), entry)

	return nil
}

// Offer returns the offer the account created with the given sequence.
func (l *Ledger) Offer(account types.AccountID, sequence uint32) (*protocol.Offer, bool, error) {
	entry, exists := l.stateTree.Get(protocol.OfferIndex(account, sequence))
	if !exists {
		return nil, false, nil
	}

	offer, _, err := protocol.OfferFromBytes(entry)
	if err != nil {
		return nil, false, ierrors.Wrapf(err, "corrupt offer entry for %s seq %d", account, sequence)
	}

	return offer, true, nil
}

// PutOffer writes the offer entry.
func (l *Ledger) PutOffer(offer *protocol.Offer) error {
	if err := l.guardOpen(); err != nil {
		return err
	}

	entry, err := offer.Bytes()
	if err != nil {
		return ierrors.Wrapf(err, "failed to serialize offer for %s seq %d", offer.Account, offer.Sequence)
	}
	l.stateTree.Put(protocol.OfferIndex(offer.Account, offer.Sequence), entry)

	return nil
}

// DeleteOffer removes the offer entry and reports whether it existed.
func (l *Ledger) DeleteOffer(account types.AccountID, sequence uint32) (bool, error) {
	if err := l.guardOpen(); err != nil {
		return false, err
	}

	return l.stateTree.Delete(protocol.OfferIndex(account, sequence)), nil
}

// ReleaseSchedule returns the release schedule of the given issued currency.
func (l *Ledger) ReleaseSchedule(issuer types.AccountID, currency protocol.Currency) (*protocol.ReleaseSchedule, bool, error) {
	entry, exists := l.stateTree.Get(protocol.ScheduleIndex(issuer, currency))
	if !exists {
		return nil, false, nil
	}

	schedule, _, err := protocol.ReleaseScheduleFromBytes(entry)
	if err != nil {
		return nil, false, ierrors.Wrapf(err, "corrupt release schedule for %s %s", issuer, currency.String())
	}

	return schedule, true, nil
}

// PutReleaseSchedule writes the release-schedule entry.
func (l *Ledger) PutReleaseSchedule(schedule *protocol.ReleaseSchedule) error {
	if err := l.guardOpen(); err != nil {
		return err
	}

	entry, err := schedule.Bytes()
	if err != nil {
		return ierrors.Wrapf(err, "failed to serialize release schedule for %s", schedule.Issuer)
	}
	l.stateTree.Put(protocol.ScheduleIndex(schedule.Issuer, schedule.Currency), entry)

	return nil
}

// RecordTransaction adds an applied transaction and its result to the
// transaction tree.
func (l *Ledger) RecordTransaction(tx *protocol.Transaction, result protocol.ResultCode) error {
	if err := l.guardOpen(); err != nil {
		return err
	}

	record := &protocol.TxRecord{Transaction: tx, Result: result}
	entry, err := record.Bytes()
	if err != nil {
		return ierrors.Wrapf(err, "failed to serialize transaction record %s", tx.ID())
	}
	l.txTree.Put(protocol.TransactionIndex(tx.ID()), entry)

	return nil
}

// HasTransaction reports whether the given transaction was recorded in this
// ledger.
func (l *Ledger) HasTransaction(txID types.Identifier) bool {
	return l.txTree.Has(protocol.TransactionIndex(txID))
}

// TxRecord returns the recorded transaction with the given ID.
func (l *Ledger) TxRecord(txID types.Identifier) (*protocol.TxRecord, bool, error) {
	entry, exists := l.txTree.Get(protocol.TransactionIndex(txID))
	if !exists {
		return nil, false, nil
	}

	record, _, err := protocol.TxRecordFromBytes(entry)
	if err != nil {
		return nil, false, ierrors.Wrapf(err, "corrupt transaction record %s", txID)
	}

	return record, true, nil
}

// Supply returns the aggregate supply counter for the given asset.
func (l *Ledger) Supply(asset protocol.Asset) uint64 {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.header.Supply(asset)
}

// BurnSupply destroys supply of the given asset (fee destruction).
func (l *Ledger) BurnSupply(asset protocol.Asset, value uint64) error {
	if err := l.guardOpen(); err != nil {
		return err
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.header.BurnSupply(asset, value)

	return nil
}

// Seal fixes the ledger: the state- and transaction-tree roots are recomputed
// and stored, the close time is rounded down to the resolution and stamped
// together with the externally supplied agreement flag, and the ledger
// becomes immutable.
func (l *Ledger) Seal(closeTime uint32, resolution uint32, closeTimeAgreed bool) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.header.Closed {
		return ierrors.Wrapf(ErrLedgerClosed, "cannot seal ledger %d twice", l.header.Sequence)
	}

	l.header.StateRoot = l.stateTree.Root()
	l.header.TxRoot = l.txTree.Root()
	l.header.CloseTime = protocol.RoundCloseTime(closeTime, resolution)
	l.header.CloseTimeResolution = resolution
	l.header.CloseTimeAgreed = closeTimeAgreed
	l.header.Closed = true

	return nil
}

func (l *Ledger) guardOpen() error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if l.header.Closed {
		return ierrors.Wrapf(ErrLedgerClosed, "cannot mutate sealed ledger %d", l.header.Sequence)
	}

	return nil
}
