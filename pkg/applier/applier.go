// Package applier applies transactions to a working ledger. Each transaction
// type is handled by a registered transactor implementing the validate/apply
// contract; the engine owns the checks every type shares (account existence,
// sequence discipline, fee funding) and the fee/sequence accounting around a
// successful application.
package applier

import (
	"github.com/iotaledger/hive.go/ds/shrinkingmap"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/options"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/protocol"
)

// View is the working ledger surface a transactor operates on. All side
// effects of application stay confined to it; no external I/O happens while a
// transaction is applied.
type View interface {
	Sequence() uint32
	AccountState(account types.AccountID) (*protocol.AccountRoot, bool, error)
	PutAccountState(root *protocol.AccountRoot) error
	TrustLine(account types.AccountID, asset protocol.Asset) (*protocol.TrustLine, bool, error)
	PutTrustLine(line *protocol.TrustLine) error
	Offer(account types.AccountID, sequence uint32) (*protocol.Offer, bool, error)
	PutOffer(offer *protocol.Offer) error
	DeleteOffer(account types.AccountID, sequence uint32) (bool, error)
	ReleaseSchedule(issuer types.AccountID, currency protocol.Currency) (*protocol.ReleaseSchedule, bool, error)
	PutReleaseSchedule(schedule *protocol.ReleaseSchedule) error
	RecordTransaction(tx *protocol.Transaction, result protocol.ResultCode) error
	BurnSupply(asset protocol.Asset, value uint64) error
}

// Flags modify how a transaction is applied.
type Flags uint32

const (
	// FlagOpenLedger marks application against an open scratch ledger rather
	// than a closing one.
	FlagOpenLedger Flags = 1 << iota

	// FlagRetry marks a re-application from the retry queue.
	FlagRetry
)

// Transactor implements the business rule of one transaction type. Validate
// must not mutate the view; Apply may assume Validate passed and the engine
// already consumed fee and sequence. A non-nil error from either is an engine
// fault, never a business outcome.
type Transactor interface {
	Validate(view View, tx *protocol.Transaction) (protocol.ResultCode, error)
	Apply(view View, tx *protocol.Transaction) (protocol.ResultCode, error)
}

// Applier dispatches transactions to registered transactors.
type Applier struct {
	transactors *shrinkingmap.ShrinkingMap[protocol.TxType, Transactor]

	optsFeeAsset protocol.Asset
}

// New creates an applier with all built-in transactors registered.
func New(opts ...options.Option[Applier]) *Applier {
	return options.Apply(&Applier{
		transactors:  shrinkingmap.New[protocol.TxType, Transactor](),
		optsFeeAsset: protocol.NativeAsset("XRP"),
	}, opts, func(a *Applier) {
		a.MustRegisterTransactor(protocol.TxTypePayment, &paymentTransactor{feeAsset: a.optsFeeAsset})
		a.MustRegisterTransactor(protocol.TxTypeTrustSet, &trustSetTransactor{})
		a.MustRegisterTransactor(protocol.TxTypeOfferCreate, &offerCreateTransactor{})
		a.MustRegisterTransactor(protocol.TxTypeOfferCancel, &offerCancelTransactor{})
		a.MustRegisterTransactor(protocol.TxTypeAccountSet, &accountSetTransactor{})
		a.MustRegisterTransactor(protocol.TxTypeIssue, &issueTransactor{})
	})
}

// WithFeeAsset sets the native asset fees are paid and burned in.
func WithFeeAsset(asset protocol.Asset) options.Option[Applier] {
	return func(a *Applier) {
		a.optsFeeAsset = asset
	}
}

// FeeAsset returns the native asset fees are paid in.
func (a *Applier) FeeAsset() protocol.Asset {
	return a.optsFeeAsset
}

// RegisterTransactor adds a transactor for a type tag. Registration is the
// only extension mechanism; registering a tag twice is refused.
func (a *Applier) RegisterTransactor(txType protocol.TxType, transactor Transactor) error {
	if !a.transactors.Set(txType, transactor) {
		return ierrors.Errorf("transactor for type %s is already registered", txType)
	}

	return nil
}

// MustRegisterTransactor is RegisterTransactor, panicking on a duplicate tag.
func (a *Applier) MustRegisterTransactor(txType protocol.TxType, transactor Transactor) {
	if err := a.RegisterTransactor(txType, transactor); err != nil {
		panic(err)
	}
}

// Apply runs one transaction against the working ledger and returns its
// categorized outcome. Retryable and terminal outcomes leave the view
// untouched, except that a terminal outcome from a transactor's Apply still
// consumes the fee and the sequence number it validated with. A non-nil error
// signals an engine fault (corrupt state, serialization failure), never a
// business outcome.
func (a *Applier) Apply(view View, tx *protocol.Transaction, flags Flags) (protocol.ResultCode, error) {
	transactor, exists := a.transactors.Get(tx.Type)
	if !exists {
		return protocol.ResultUnknownType, nil
	}

	account, exists, err := view.AccountState(tx.Account)
	if err != nil {
		return 0, err
	}
	if !exists {
		return protocol.ResultNoAccount, nil
	}

	switch {
	case tx.Sequence <= account.Sequence:
		return protocol.ResultPastSequence, nil
	case tx.Sequence > account.Sequence+1:
		return protocol.ResultRetryPreSequence, nil
	}

	if account.Balance(a.optsFeeAsset) < tx.Fee {
		return protocol.ResultRetryUnfunded, nil
	}

	code, err := transactor.Validate(view, tx)
	if err != nil {
		return 0, ierrors.Wrapf(err, "failed to validate transaction %s", tx.ID())
	}
	if code != protocol.ResultApplied {
		return code, nil
	}

	// the transaction validated: consume fee and sequence, then let the
	// transactor mutate the trees
	account.SubtractBalance(a.optsFeeAsset, tx.Fee)
	account.Sequence = tx.Sequence
	if err := view.PutAccountState(account); err != nil {
		return 0, err
	}
	if err := view.BurnSupply(a.optsFeeAsset, tx.Fee); err != nil {
		return 0, err
	}

	if code, err = transactor.Apply(view, tx); err != nil {
		return 0, err
	}
	if code.Class() == protocol.ClassRetry {
		return 0, ierrors.Errorf("transactor for %s returned retryable code %s from Apply", tx.Type, code)
	}

	if err := view.RecordTransaction(tx, code); err != nil {
		return 0, err
	}

	return code, nil
}
