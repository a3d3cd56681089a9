package applier

import (
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/veritasledger/veritas-core/pkg/protocol"
)

// paymentTransactor moves native or issued value between accounts. Native
// payments to a missing destination create the destination account; issued
// payments ride on trust lines and are blocked while the issuer has frozen
// its books.
type paymentTransactor struct {
	feeAsset protocol.Asset
}

func (p *paymentTransactor) Validate(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	if tx.Amount.Value == 0 || tx.Destination.IsEmpty() || tx.Destination == tx.Account {
		return protocol.ResultMalformed, nil
	}

	account, exists, err := view.AccountState(tx.Account)
	if err != nil {
		return 0, err
	}
	if !exists {
		return protocol.ResultNoAccount, nil
	}

	if tx.Amount.Asset.IsNative() {
		required := tx.Amount.Value
		if tx.Amount.Asset == p.feeAsset {
			required += tx.Fee
		}
		if account.Balance(tx.Amount.Asset) < required {
			return protocol.ResultRetryUnfunded, nil
		}

		return protocol.ResultApplied, nil
	}

	return p.validateIssued(view, tx)
}

func (p *paymentTransactor) validateIssued(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	issuer := tx.Amount.Asset.Issuer

	issuerAccount, exists, err := view.AccountState(issuer)
	if err != nil {
		return 0, err
	}
	if exists && issuerAccount.IsFrozen() {
		return protocol.ResultFrozen, nil
	}

	if _, exists, err = view.AccountState(tx.Destination); err != nil {
		return 0, err
	} else if !exists {
		return protocol.ResultRetryNoDestination, nil
	}

	// sending issued value consumes the sender's trust line balance unless the
	// sender is the issuer itself
	if tx.Account != issuer {
		line, exists, err := view.TrustLine(tx.Account, tx.Amount.Asset)
		if err != nil {
			return 0, err
		}
		if !exists {
			return protocol.ResultNoLine, nil
		}
		if line.Balance < tx.Amount.Value {
			return protocol.ResultRetryUnfunded, nil
		}
	}

	// receiving issued value requires a trust line with headroom unless the
	// receiver is the issuer redeeming its own obligation
	if tx.Destination != issuer {
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
	}

	return protocol.ResultApplied, nil
}

func (p *paymentTransactor) Apply(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	if tx.Amount.Asset.IsNative() {
		return p.applyNative(view, tx)
	}

	return p.applyIssued(view, tx)
}

func (p *paymentTransactor) applyNative(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	source, _, err := view.AccountState(tx.Account)
	if err != nil {
		return 0, err
	}
	if !source.SubtractBalance(tx.Amount.Asset, tx.Amount.Value) {
		return 0, ierrors.Errorf("source %s no longer covers validated amount %v", tx.Account, tx.Amount)
	}
	if err := view.PutAccountState(source); err != nil {
		return 0, err
	}

	destination, exists, err := view.AccountState(tx.Destination)
	if err != nil {
		return 0, err
	}
	if !exists {
		destination = protocol.NewAccountRoot(tx.Destination)
	}
	destination.AddBalance(tx.Amount.Asset, tx.Amount.Value)
	if err := view.PutAccountState(destination); err != nil {
		return 0, err
	}

	return protocol.ResultApplied, nil
}

func (p *paymentTransactor) applyIssued(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	issuer := tx.Amount.Asset.Issuer

	if tx.Account != issuer {
		line, _, err := view.TrustLine(tx.Account, tx.Amount.Asset)
		if err != nil {
			return 0, err
		}
		if line.Balance < tx.Amount.Value {
			return 0, ierrors.Errorf("trust line of %s no longer covers validated amount %v", tx.Account, tx.Amount)
		}
		line.Balance -= tx.Amount.Value
		if err := view.PutTrustLine(line); err != nil {
			return 0, err
		}
	}

	if tx.Destination != issuer {
		line, _, err := view.TrustLine(tx.Destination, tx.Amount.Asset)
		if err != nil {
			return 0, err
		}
		line.Balance += tx.Amount.Value
		if err := view.PutTrustLine(line); err != nil {
			return 0, err
		}
	}

	return protocol.ResultApplied, nil
}
