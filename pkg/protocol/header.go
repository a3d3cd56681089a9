package protocol

import (
	"sort"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/hive.go/stringify"

	"github.com/veritasledger/veritas-core/pkg/core/types"
)

// LedgerTimeEpoch is the fixed epoch for ledger close times: 2000-01-01
// 00:00:00 UTC as seconds since the Unix epoch.
const LedgerTimeEpoch int64 = 946684800

// DefaultCloseTimeResolution is the default granularity, in seconds, to which
// close times are rounded.
const DefaultCloseTimeResolution uint32 = 30

// CloseTimeFromUTC converts a wall-clock time to ledger close-time seconds.
func CloseTimeFromUTC(t time.Time) uint32 {
	seconds := t.Unix() - LedgerTimeEpoch
	if seconds < 0 {
		return 0
	}

	return uint32(seconds)
}

// RoundCloseTime rounds a close time down to the given resolution.
func RoundCloseTime(closeTime, resolution uint32) uint32 {
	if resolution == 0 {
		return closeTime
	}

	return closeTime - closeTime%resolution
}

// Header carries the fixed fields of one ledger. Hashes are provisional while
// the ledger is open and become final when it is sealed.
type Header struct {
	Sequence            uint32
	ParentHash          types.Identifier
	StateRoot           types.Identifier
	TxRoot              types.Identifier
	CloseTime           uint32
	CloseTimeResolution uint32
	CloseTimeAgreed     bool
	Closed              bool
	Validated           bool

	// Supplies tracks the aggregate total supply of every natively tracked
	// asset, sorted by asset. Fees burn supply of the asset they are paid in.
	Supplies []AssetBalance
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	cloned := *h
	cloned.Supplies = make([]AssetBalance, len(h.Supplies))
	copy(cloned.Supplies, h.Supplies)

	return &cloned
}

// Supply returns the aggregate supply of the given asset.
func (h *Header) Supply(asset Asset) uint64 {
	for _, supply := range h.Supplies {
		if supply.Asset == asset {
			return supply.Value
		}
	}

	return 0
}

// SetSupply replaces the aggregate supply of the given asset, keeping the
// supply list sorted.
func (h *Header) SetSupply(asset Asset, value uint64) {
	for i, supply := range h.Supplies {
		if supply.Asset == asset {
			h.Supplies[i].Value = value

			return
		}
	}

	h.Supplies = append(h.Supplies, AssetBalance{Asset: asset, Value: value})
	sort.Slice(h.Supplies, func(i, j int) bool {
		return h.Supplies[i].Asset.Compare(h.Supplies[j].Asset) < 0
	})
}

// BurnSupply reduces the aggregate supply of the given asset, saturating at
// zero.
func (h *Header) BurnSupply(asset Asset, value uint64) {
	current := h.Supply(asset)
	if value > current {
		value = current
	}
	h.SetSupply(asset, current-value)
}

// Hash returns the ledger hash: the content hash of the consensus-relevant
// header fields. Local markers (closed, validated) are excluded, so all
// nodes sealing the same ledger compute the same hash.
func (h *Header) Hash() types.Identifier {
	byteBuffer := stream.NewByteBuffer()

	// There can't be any errors.
	_ = stream.Write(byteBuffer, h.Sequence)
	_ = stream.Write(byteBuffer, h.ParentHash)
	_ = stream.Write(byteBuffer, h.StateRoot)
	_ = stream.Write(byteBuffer, h.TxRoot)
	_ = stream.Write(byteBuffer, h.CloseTime)
	_ = stream.Write(byteBuffer, h.CloseTimeResolution)
	_ = stream.Write(byteBuffer, h.CloseTimeAgreed)
	_ = writeSupplies(byteBuffer, h.Supplies)

	bytes, err := byteBuffer.Bytes()
	if err != nil {
		panic(ierrors.Wrap(err, "failed to serialize header for hashing"))
	}

	return types.IdentifierFromData(bytes)
}

// Bytes returns the full serialized header, including local markers.
func (h *Header) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	// There can't be any errors.
	_ = stream.Write(byteBuffer, h.Sequence)
	_ = stream.Write(byteBuffer, h.ParentHash)
	_ = stream.Write(byteBuffer, h.StateRoot)
	_ = stream.Write(byteBuffer, h.TxRoot)
	_ = stream.Write(byteBuffer, h.CloseTime)
	_ = stream.Write(byteBuffer, h.CloseTimeResolution)
	_ = stream.Write(byteBuffer, h.CloseTimeAgreed)
	_ = stream.Write(byteBuffer, h.Closed)
	_ = stream.Write(byteBuffer, h.Validated)
	_ = writeSupplies(byteBuffer, h.Supplies)

	return byteBuffer.Bytes()
}

// HeaderFromBytes parses a serialized header.
func HeaderFromBytes(b []byte) (*Header, int, error) {
	reader := stream.NewByteReader(b)

	h := new(Header)
	var err error
	if h.Sequence, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read sequence")
	}
	if h.ParentHash, err = stream.Read[types.Identifier](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read parent hash")
	}
	if h.StateRoot, err = stream.Read[types.Identifier](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read state root")
	}
	if h.TxRoot, err = stream.Read[types.Identifier](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read tx root")
	}
	if h.CloseTime, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read close time")
	}
	if h.CloseTimeResolution, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read close time resolution")
	}
	if h.CloseTimeAgreed, err = stream.Read[bool](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read close time agreed flag")
	}
	if h.Closed, err = stream.Read[bool](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read closed flag")
	}
	if h.Validated, err = stream.Read[bool](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read validated flag")
	}
	if err = stream.ReadCollection(reader, serializer.SeriLengthPrefixTypeAsUint16, func(i int) error {
		var supply AssetBalance
		if supply.Asset, err = AssetFromReader(reader); err != nil {
			return err
		}
		if supply.Value, err = stream.Read[uint64](reader); err != nil {
			return err
		}
		h.Supplies = append(h.Supplies, supply)

		return nil
	}); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read supplies")
	}

	return h, reader.BytesRead(), nil
}

func (h *Header) String() string {
	return stringify.Struct("Header",
		stringify.NewStructField("Sequence", h.Sequence),
		stringify.NewStructField("ParentHash", h.ParentHash),
		stringify.NewStructField("StateRoot", h.StateRoot),
		stringify.NewStructField("TxRoot", h.TxRoot),
		stringify.NewStructField("CloseTime", h.CloseTime),
		stringify.NewStructField("Closed", h.Closed),
		stringify.NewStructField("Validated", h.Validated),
	)
}

func writeSupplies(byteBuffer *stream.ByteBuffer, supplies []AssetBalance) error {
	return stream.WriteCollection(byteBuffer, serializer.SeriLengthPrefixTypeAsUint16, func() (int, error) {
		for _, supply := range supplies {
			assetBytes, err := supply.Asset.Bytes()
			if err != nil {
				return 0, err
			}
			_ = stream.WriteBytes(byteBuffer, assetBytes)
			_ = stream.Write(byteBuffer, supply.Value)
		}

		return len(supplies), nil
	})
}
