package applier

import (
	"github.com/veritasledger/veritas-core/pkg/protocol"
)

// trustSetTransactor creates or updates a trust line towards an issuer. The
// line's balance is never touched here, only its limit and flags.
type trustSetTransactor struct{}

func (t *trustSetTransactor) Validate(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	if tx.LimitAmount.Asset.IsNative() || tx.LimitAmount.Asset.Issuer == tx.Account {
		return protocol.ResultMalformed, nil
	}

	if _, exists, err := view.AccountState(tx.LimitAmount.Asset.Issuer); err != nil {
		return 0, err
	} else if !exists {
		return protocol.ResultRetryNoDestination, nil
	}

	return protocol.ResultApplied, nil
}

func (t *trustSetTransactor) Apply(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	line, exists, err := view.TrustLine(tx.Account, tx.LimitAmount.Asset)
	if err != nil {
		return 0, err
	}
	if !exists {
		line = &protocol.TrustLine{
			Account: tx.Account,
			Asset:   tx.LimitAmount.Asset,
		}
	}
	line.Limit = tx.LimitAmount.Value
	line.Flags = tx.Flags

	if err := view.PutTrustLine(line); err != nil {
		return 0, err
	}

	return protocol.ResultApplied, nil
}
