package ledger

import (
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/protocol"
	"github.com/veritasledger/veritas-core/pkg/statetree"
)

// GenesisConfig seeds the first ledger. All counters are explicit: the full
// starting supply of every tracked asset is credited to the master account,
// and nothing is drawn from hidden process-wide state.
type GenesisConfig struct {
	Master              types.AccountID
	Supplies            []protocol.AssetBalance
	CloseTimeResolution uint32
}

// NewGenesis builds and seals the genesis ledger.
func NewGenesis(config GenesisConfig) (*Ledger, error) {
	if config.Master.IsEmpty() {
		return nil, ierrors.New("genesis config is missing the master account")
	}

	resolution := config.CloseTimeResolution
	if resolution == 0 {
		resolution = protocol.DefaultCloseTimeResolution
	}

	l := &Ledger{
		header: &protocol.Header{
			Sequence:            1,
			CloseTimeResolution: resolution,
		},
		stateTree: statetree.New(),
		txTree:    statetree.New(),
	}

	master := protocol.NewAccountRoot(config.Master)
	for _, supply := range config.Supplies {
		if !supply.Asset.IsNative() {
			return nil, ierrors.Errorf("genesis supply must be native, got %s", supply.Asset)
		}
		master.AddBalance(supply.Asset, supply.Value)
		l.header.SetSupply(supply.Asset, supply.Value)
	}

	if err := l.PutAccountState(master); err != nil {
		return nil, ierrors.Wrap(err, "failed to seed master account")
	}

	if err := l.Seal(0, resolution, true); err != nil {
		return nil, ierrors.Wrap(err, "failed to seal genesis ledger")
	}

	return l, nil
}
