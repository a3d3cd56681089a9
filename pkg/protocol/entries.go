package protocol

import (
	"sort"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/quality"
)

// EntryKind tags a serialized state-tree entry.
type EntryKind byte

const (
	EntryKindAccountRoot EntryKind = iota + 1
	EntryKindTrustLine
	EntryKindOffer
	EntryKindReleaseSchedule
	EntryKindSkipList
)

func (e EntryKind) String() string {
	switch e {
	case EntryKindAccountRoot:
		return "AccountRoot"
	case EntryKindTrustLine:
		return "TrustLine"
	case EntryKindOffer:
		return "Offer"
	case EntryKindReleaseSchedule:
		return "ReleaseSchedule"
	case EntryKindSkipList:
		return "SkipList"
	default:
		return "Unknown"
	}
}

// KindOfEntry returns the kind tag of a serialized entry.
func KindOfEntry(entry []byte) (EntryKind, error) {
	if len(entry) == 0 {
		return 0, ierrors.New("empty state entry")
	}

	return EntryKind(entry[0]), nil
}

// AccountFlagGlobalFreeze marks an account whose issued-asset movements are
// frozen; native transfers remain possible.
const AccountFlagGlobalFreeze uint32 = 1 << 22

// AssetBalance is one asset position of an account or one aggregate supply
// counter of a ledger. Lists of balances are kept sorted by asset so their
// serialization is canonical.
type AssetBalance struct {
	Asset Asset
	Value uint64
}

// AccountRoot is the state-tree entry of one account.
type AccountRoot struct {
	Account  types.AccountID
	Sequence uint32
	Flags    uint32
	Balances []AssetBalance
}

// NewAccountRoot creates an account entry with a zero sequence and no
// balances.
func NewAccountRoot(account types.AccountID) *AccountRoot {
	return &AccountRoot{Account: account}
}

// Balance returns the account's position in the given asset.
func (a *AccountRoot) Balance(asset Asset) uint64 {
	for _, balance := range a.Balances {
		if balance.Asset == asset {
			return balance.Value
		}
	}

	return 0
}

// SetBalance replaces the account's position in the given asset, keeping the
// balance list sorted. A zero balance keeps its slot so funding history stays
// distinguishable from an asset the account never held.
func (a *AccountRoot) SetBalance(asset Asset, value uint64) {
	for i, balance := range a.Balances {
		if balance.Asset == asset {
			a.Balances[i].Value = value

			return
		}
	}

	a.Balances = append(a.Balances, AssetBalance{Asset: asset, Value: value})
	sort.Slice(a.Balances, func(i, j int) bool {
		return a.Balances[i].Asset.Compare(a.Balances[j].Asset) < 0
	})
}

// AddBalance credits the account in the given asset.
func (a *AccountRoot) AddBalance(asset Asset, value uint64) {
	a.SetBalance(asset, a.Balance(asset)+value)
}

// SubtractBalance debits the account in the given asset and reports whether
// the account was sufficiently funded.
func (a *AccountRoot) SubtractBalance(asset Asset, value uint64) bool {
	current := a.Balance(asset)
	if current < value {
		return false
	}
	a.SetBalance(asset, current-value)

	return true
}

// IsFrozen reports whether the account carries the global freeze flag.
func (a *AccountRoot) IsFrozen() bool {
	return a.Flags&AccountFlagGlobalFreeze != 0
}

// Bytes returns the kind-tagged serialized entry.
func (a *AccountRoot) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	// There can't be any errors.
	_ = stream.Write(byteBuffer, byte(EntryKindAccountRoot))
	_ = stream.Write(byteBuffer, a.Account)
	_ = stream.Write(byteBuffer, a.Sequence)
	_ = stream.Write(byteBuffer, a.Flags)
	_ = stream.WriteCollection(byteBuffer, serializer.SeriLengthPrefixTypeAsUint16, func() (int, error) {
		for _, balance := range a.Balances {
			assetBytes, err := balance.Asset.Bytes()
			if err != nil {
				return 0, err
			}
			_ = stream.WriteBytes(byteBuffer, assetBytes)
			_ = stream.Write(byteBuffer, balance.Value)
		}

		return len(a.Balances), nil
	})

	return byteBuffer.Bytes()
}

// AccountRootFromBytes parses a kind-tagged account entry.
func AccountRootFromBytes(b []byte) (*AccountRoot, int, error) {
	reader := stream.NewByteReader(b)

	if err := expectEntryKind(reader, EntryKindAccountRoot); err != nil {
		return nil, 0, err
	}

	a := new(AccountRoot)
	var err error
	if a.Account, err = stream.Read[types.AccountID](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read account")
	}
	if a.Sequence, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read sequence")
	}
	if a.Flags, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read flags")
	}
	if err = stream.ReadCollection(reader, serializer.SeriLengthPrefixTypeAsUint16, func(i int) error {
		var balance AssetBalance
		if balance.Asset, err = AssetFromReader(reader); err != nil {
			return err
		}
		if balance.Value, err = stream.Read[uint64](reader); err != nil {
			return err
		}
		a.Balances = append(a.Balances, balance)

		return nil
	}); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read balances")
	}

	return a, reader.BytesRead(), nil
}

// TrustLine is the state-tree entry recording how much of an issued asset an
// account holds and up to which limit it accepts it.
type TrustLine struct {
	Account types.AccountID
	Asset   Asset
	Limit   uint64
	Balance uint64
	Flags   uint32
}

// Bytes returns the kind-tagged serialized entry.
func (t *TrustLine) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	assetBytes, err := t.Asset.Bytes()
	if err != nil {
		return nil, err
	}

	// There can't be any errors.
	_ = stream.Write(byteBuffer, byte(EntryKindTrustLine))
	_ = stream.Write(byteBuffer, t.Account)
	_ = stream.WriteBytes(byteBuffer, assetBytes)
	_ = stream.Write(byteBuffer, t.Limit)
	_ = stream.Write(byteBuffer, t.Balance)
	_ = stream.Write(byteBuffer, t.Flags)

	return byteBuffer.Bytes()
}

// TrustLineFromBytes parses a kind-tagged trust-line entry.
func TrustLineFromBytes(b []byte) (*TrustLine, int, error) {
	reader := stream.NewByteReader(b)

	if err := expectEntryKind(reader, EntryKindTrustLine); err != nil {
		return nil, 0, err
	}

	t := new(TrustLine)
	var err error
	if t.Account, err = stream.Read[types.AccountID](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read account")
	}
	if t.Asset, err = AssetFromReader(reader); err != nil {
		return nil, 0, err
	}
	if t.Limit, err = stream.Read[uint64](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read limit")
	}
	if t.Balance, err = stream.Read[uint64](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read balance")
	}
	if t.Flags, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read flags")
	}

	return t, reader.BytesRead(), nil
}

// Offer is the state-tree entry of an open exchange offer. BookDirectory is
// the book page key with the offer's effective rate embedded in its trailing
// bytes.
type Offer struct {
	Account       types.AccountID
	Sequence      uint32
	TakerPays     Amount
	TakerGets     Amount
	BookDirectory types.Identifier
}

// Quality returns the offer's exchange-rate ordering key.
func (o *Offer) Quality() uint64 {
	return quality.FromIdentifier(o.BookDirectory)
}

// Bytes returns the kind-tagged serialized entry.
func (o *Offer) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	paysBytes, err := o.TakerPays.Bytes()
	if err != nil {
		return nil, err
	}
	getsBytes, err := o.TakerGets.Bytes()
	if err != nil {
		return nil, err
	}

	// There can't be any errors.
	_ = stream.Write(byteBuffer, byte(EntryKindOffer))
	_ = stream.Write(byteBuffer, o.Account)
	_ = stream.Write(byteBuffer, o.Sequence)
	_ = stream.WriteBytes(byteBuffer, paysBytes)
	_ = stream.WriteBytes(byteBuffer, getsBytes)
	_ = stream.Write(byteBuffer, o.BookDirectory)

	return byteBuffer.Bytes()
}

// OfferFromBytes parses a kind-tagged offer entry.
func OfferFromBytes(b []byte) (*Offer, int, error) {
	reader := stream.NewByteReader(b)

	if err := expectEntryKind(reader, EntryKindOffer); err != nil {
		return nil, 0, err
	}

	o := new(Offer)
	var err error
	if o.Account, err = stream.Read[types.AccountID](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read account")
	}
	if o.Sequence, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read sequence")
	}
	if o.TakerPays, err = AmountFromReader(reader); err != nil {
		return nil, 0, err
	}
	if o.TakerGets, err = AmountFromReader(reader); err != nil {
		return nil, 0, err
	}
	if o.BookDirectory, err = stream.Read[types.Identifier](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read book directory")
	}

	return o, reader.BytesRead(), nil
}

// ReleasePoint is one step of an issuance release schedule: from Expiration
// seconds after issuance on, ReleaseRate units become transferable.
type ReleasePoint struct {
	Expiration  uint32
	ReleaseRate uint64
}

// ReleaseSchedule is the state-tree entry recording the release schedule of a
// scheduled issuance.
type ReleaseSchedule struct {
	Issuer   types.AccountID
	Currency Currency
	Points   []ReleasePoint
}

// Bytes returns the kind-tagged serialized entry.
func (r *ReleaseSchedule) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	// There can't be any errors.
	_ = stream.Write(byteBuffer, byte(EntryKindReleaseSchedule))
	_ = stream.Write(byteBuffer, r.Issuer)
	_ = stream.WriteBytes(byteBuffer, r.Currency[:])
	_ = stream.WriteCollection(byteBuffer, serializer.SeriLengthPrefixTypeAsUint16, func() (int, error) {
		for _, point := range r.Points {
			_ = stream.Write(byteBuffer, point.Expiration)
			_ = stream.Write(byteBuffer, point.ReleaseRate)
		}

		return len(r.Points), nil
	})

	return byteBuffer.Bytes()
}

// ReleaseScheduleFromBytes parses a kind-tagged release-schedule entry.
func ReleaseScheduleFromBytes(b []byte) (*ReleaseSchedule, int, error) {
	reader := stream.NewByteReader(b)

	if err := expectEntryKind(reader, EntryKindReleaseSchedule); err != nil {
		return nil, 0, err
	}

	r := new(ReleaseSchedule)
	var err error
	if r.Issuer, err = stream.Read[types.AccountID](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read issuer")
	}
	if r.Currency, err = CurrencyFromReader(reader); err != nil {
		return nil, 0, err
	}
	if err = stream.ReadCollection(reader, serializer.SeriLengthPrefixTypeAsUint16, func(i int) error {
		var point ReleasePoint
		if point.Expiration, err = stream.Read[uint32](reader); err != nil {
			return err
		}
		if point.ReleaseRate, err = stream.Read[uint64](reader); err != nil {
			return err
		}
		r.Points = append(r.Points, point)

		return nil
	}); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read release points")
	}

	return r, reader.BytesRead(), nil
}

// SkipListEntry is the state-tree entry holding back-references to recent
// ancestor ledgers for efficient history lookup.
type SkipListEntry struct {
	Hashes []types.Identifier
}

// Bytes returns the kind-tagged serialized entry.
func (s *SkipListEntry) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	// There can't be any errors.
	_ = stream.Write(byteBuffer, byte(EntryKindSkipList))
	_ = stream.WriteCollection(byteBuffer, serializer.SeriLengthPrefixTypeAsUint16, func() (int, error) {
		for _, hash := range s.Hashes {
			_ = stream.Write(byteBuffer, hash)
		}

		return len(s.Hashes), nil
	})

	return byteBuffer.Bytes()
}

// SkipListEntryFromBytes parses a kind-tagged skip-list entry.
func SkipListEntryFromBytes(b []byte) (*SkipListEntry, int, error) {
	reader := stream.NewByteReader(b)

	if err := expectEntryKind(reader, EntryKindSkipList); err != nil {
		return nil, 0, err
	}

	s := new(SkipListEntry)
	if err := stream.ReadCollection(reader, serializer.SeriLengthPrefixTypeAsUint16, func(i int) error {
		hash, err := stream.Read[types.Identifier](reader)
		if err != nil {
			return err
		}
		s.Hashes = append(s.Hashes, hash)

		return nil
	}); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read skip list hashes")
	}

	return s, reader.BytesRead(), nil
}

func expectEntryKind(reader *stream.ByteReader, expected EntryKind) error {
	kind, err := stream.Read[byte](reader)
	if err != nil {
		return ierrors.Wrap(err, "failed to read entry kind")
	}
	if EntryKind(kind) != expected {
		return ierrors.Errorf("unexpected entry kind %s, expected %s", EntryKind(kind), expected)
	}

	return nil
}
