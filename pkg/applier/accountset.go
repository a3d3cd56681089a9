package applier

import (
	"github.com/veritasledger/veritas-core/pkg/protocol"
)

// accountSetTransactor toggles account-level flags. Only the global freeze
// flag is recognized; setting and clearing the same flag in one transaction
// is refused.
type accountSetTransactor struct{}

func validAccountSetFlag(flag uint32) bool {
	return flag == 0 || flag == protocol.AccountSetFlagGlobalFreeze
}

func (a *accountSetTransactor) Validate(_ View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	if !validAccountSetFlag(tx.SetFlag) || !validAccountSetFlag(tx.ClearFlag) {
		return protocol.ResultMalformed, nil
	}
	if tx.SetFlag != 0 && tx.SetFlag == tx.ClearFlag {
		return protocol.ResultMalformed, nil
	}

	return protocol.ResultApplied, nil
}

func (a *accountSetTransactor) Apply(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	account, _, err := view.AccountState(tx.Account)
	if err != nil {
		return 0, err
	}

	if tx.SetFlag == protocol.AccountSetFlagGlobalFreeze {
		account.Flags |= protocol.AccountFlagGlobalFreeze
	}
	if tx.ClearFlag == protocol.AccountSetFlagGlobalFreeze {
		account.Flags &^= protocol.AccountFlagGlobalFreeze
	}

	if err := view.PutAccountState(account); err != nil {
		return 0, err
	}

	return protocol.ResultApplied, nil
}
