package applier

import (
	"github.com/veritasledger/veritas-core/pkg/protocol"
)

// issueTransactor mints a scheduled issuance: it credits the destination's
// trust line with the issued amount and records the release schedule under the
// issuer and currency. Only the issuer of the asset may issue it.
type issueTransactor struct{}

func (i *issueTransactor) Validate(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	if tx.Amount.Value == 0 || tx.Amount.Asset.IsNative() || len(tx.Schedule) == 0 {
		return protocol.ResultMalformed, nil
	}
	if tx.Destination.IsEmpty() || tx.Destination == tx.Account {
		return protocol.ResultMalformed, nil
	}
	if tx.Amount.Asset.Issuer != tx.Account {
		return protocol.ResultNoPermission, nil
	}

	account, exists, err := view.AccountState(tx.Account)
	if err != nil {
		return 0, err
	}
	if !exists {
		return protocol.ResultNoAccount, nil
	}
	if account.IsFrozen() {
		return protocol.ResultFrozen, nil
	}

	if _, exists, err = view.AccountState(tx.Destination); err != nil {
		return 0, err
	} else if !exists {
		return protocol.ResultRetryNoDestination, nil
	}

	line, exists, err := view.TrustLine(tx.Destination, tx.Amount.Asset)
	if err != nil {
		return 0, err
	}
	if !exists {
		return protocol.ResultNoLine, nil
	}
	if line.Balance+tx.Amount.Value > line.Limit {
		return protocol.ResultNoPermission, nil
	}

	return protocol.ResultApplied, nil
}

func (i *issueTransactor) Apply(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	line, _, err := view.TrustLine(tx.Destination, tx.Amount.Asset)
	if err != nil {
		return 0, err
	}
	line.Balance += tx.Amount.Value
	if err := view.PutTrustLine(line); err != nil {
		return 0, err
	}

	schedule := &protocol.ReleaseSchedule{
		Issuer:   tx.Account,
		Currency: tx.Amount.Asset.Currency,
		Points:   tx.Schedule,
	}
	if err := view.PutReleaseSchedule(schedule); err != nil {
		return 0, err
	}

	return protocol.ResultApplied, nil
}
