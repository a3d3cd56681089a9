package applier

import (
	"github.com/veritasledger/veritas-core/pkg/protocol"
)

// offerCreateTransactor places an offer entry into the state tree. The offer
// is filed under its book directory, whose trailing bytes encode the exchange
// rate so that offers of one book sort best-rate first.
type offerCreateTransactor struct{}

func (o *offerCreateTransactor) Validate(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	if tx.TakerPays.Value == 0 || tx.TakerGets.Value == 0 {
		return protocol.ResultMalformed, nil
	}
	if tx.TakerPays.Asset == tx.TakerGets.Asset {
		return protocol.ResultMalformed, nil
	}

	account, exists, err := view.AccountState(tx.Account)
	if err != nil {
		return 0, err
	}
	if !exists {
		return protocol.ResultNoAccount, nil
	}

	for _, asset := range []protocol.Asset{tx.TakerPays.Asset, tx.TakerGets.Asset} {
		if asset.IsNative() {
			continue
		}
		issuerAccount, exists, err := view.AccountState(asset.Issuer)
		if err != nil {
			return 0, err
		}
		if exists && issuerAccount.IsFrozen() {
			return protocol.ResultFrozen, nil
		}
	}

	// the taker-gets side is what the account stands to deliver
	if tx.TakerGets.Asset.IsNative() {
		if account.Balance(tx.TakerGets.Asset) < tx.TakerGets.Value {
			return protocol.ResultRetryUnfunded, nil
		}
	} else if tx.Account != tx.TakerGets.Asset.Issuer {
		line, exists, err := view.TrustLine(tx.Account, tx.TakerGets.Asset)
		if err != nil {
			return 0, err
		}
		if !exists || line.Balance < tx.TakerGets.Value {
			return protocol.ResultRetryUnfunded, nil
		}
	}

	return protocol.ResultApplied, nil
}

func (o *offerCreateTransactor) Apply(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	rate := protocol.OfferRate(tx.TakerPays, tx.TakerGets)

	offer := &protocol.Offer{
		Account:       tx.Account,
		Sequence:      tx.Sequence,
		TakerPays:     tx.TakerPays,
		TakerGets:     tx.TakerGets,
		BookDirectory: protocol.BookDirectory(tx.TakerPays.Asset, tx.TakerGets.Asset, rate),
	}

	if err := view.PutOffer(offer); err != nil {
		return 0, err
	}

	return protocol.ResultApplied, nil
}

// offerCancelTransactor removes a previously placed offer. Cancelling an
// offer that no longer exists still applies as a no-op, so a cancel can never
// get stuck behind a fill or an earlier cancel.
type offerCancelTransactor struct{}

func (o *offerCancelTransactor) Validate(_ View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	if tx.OfferSequence == 0 || tx.OfferSequence >= tx.Sequence {
		return protocol.ResultMalformed, nil
	}

	return protocol.ResultApplied, nil
}

func (o *offerCancelTransactor) Apply(view View, tx *protocol.Transaction) (protocol.ResultCode, error) {
	if _, err := view.DeleteOffer(tx.Account, tx.OfferSequence); err != nil {
		return 0, err
	}

	return protocol.ResultApplied, nil
}
