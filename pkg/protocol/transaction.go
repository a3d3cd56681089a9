package protocol

import (
	"sync"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"

	"github.com/veritasledger/veritas-core/pkg/core/types"
)

// TxType tags the kind of a transaction. The set of types is closed but
// extensible through transactor registration.
type TxType uint16

const (
	TxTypePayment     TxType = 0
	TxTypeAccountSet  TxType = 3
	TxTypeOfferCreate TxType = 7
	TxTypeOfferCancel TxType = 8
	TxTypeTrustSet    TxType = 20
	TxTypeIssue       TxType = 101
)

func (t TxType) String() string {
	switch t {
	case TxTypePayment:
		return "Payment"
	case TxTypeAccountSet:
		return "AccountSet"
	case TxTypeOfferCreate:
		return "OfferCreate"
	case TxTypeOfferCancel:
		return "OfferCancel"
	case TxTypeTrustSet:
		return "TrustSet"
	case TxTypeIssue:
		return "Issue"
	default:
		return "Unknown"
	}
}

// AccountSet flag numbers carried in SetFlag / ClearFlag.
const AccountSetFlagGlobalFreeze uint32 = 7

// Transaction is one signed instruction. It is immutable after construction;
// its identity is the content hash of its serialization. A single flat field
// set covers all transaction types; transactors read the fields their type
// defines and treat the rest as absent.
type Transaction struct {
	Type     TxType
	Account  types.AccountID
	Sequence uint32
	Fee      uint64
	Flags    uint32

	Destination   types.AccountID
	Amount        Amount
	LimitAmount   Amount
	TakerPays     Amount
	TakerGets     Amount
	OfferSequence uint32
	SetFlag       uint32
	ClearFlag     uint32
	Schedule      []ReleasePoint

	idOnce sync.Once
	id     types.Identifier
}

// ID returns the transaction's content hash. It is computed once and cached.
func (t *Transaction) ID() types.Identifier {
	t.idOnce.Do(func() {
		bytes, err := t.Bytes()
		if err != nil {
			panic(ierrors.Wrap(err, "failed to serialize transaction for hashing"))
		}
		t.id = types.IdentifierFromData(bytes)
	})

	return t.id
}

// Bytes returns the canonical serialization of the transaction.
func (t *Transaction) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	amountBytes := func(a Amount) []byte {
		b, err := a.Bytes()
		if err != nil {
			panic(err)
		}

		return b
	}

	// There can't be any errors.
	_ = stream.Write(byteBuffer, uint16(t.Type))
	_ = stream.Write(byteBuffer, t.Account)
	_ = stream.Write(byteBuffer, t.Sequence)
	_ = stream.Write(byteBuffer, t.Fee)
	_ = stream.Write(byteBuffer, t.Flags)
	_ = stream.Write(byteBuffer, t.Destination)
	_ = stream.WriteBytes(byteBuffer, amountBytes(t.Amount))
	_ = stream.WriteBytes(byteBuffer, amountBytes(t.LimitAmount))
	_ = stream.WriteBytes(byteBuffer, amountBytes(t.TakerPays))
	_ = stream.WriteBytes(byteBuffer, amountBytes(t.TakerGets))
	_ = stream.Write(byteBuffer, t.OfferSequence)
	_ = stream.Write(byteBuffer, t.SetFlag)
	_ = stream.Write(byteBuffer, t.ClearFlag)
	_ = stream.WriteCollection(byteBuffer, serializer.SeriLengthPrefixTypeAsUint16, func() (int, error) {
		for _, point := range t.Schedule {
			_ = stream.Write(byteBuffer, point.Expiration)
			_ = stream.Write(byteBuffer, point.ReleaseRate)
		}

		return len(t.Schedule), nil
	})

	return byteBuffer.Bytes()
}

// TransactionFromBytes parses a transaction from its canonical serialization.
func TransactionFromBytes(b []byte) (*Transaction, int, error) {
	reader := stream.NewByteReader(b)

	t := new(Transaction)
	var err error

	var rawType uint16
	if rawType, err = stream.Read[uint16](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read transaction type")
	}
	t.Type = TxType(rawType)

	if t.Account, err = stream.Read[types.AccountID](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read account")
	}
	if t.Sequence, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read sequence")
	}
	if t.Fee, err = stream.Read[uint64](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read fee")
	}
	if t.Flags, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read flags")
	}
	if t.Destination, err = stream.Read[types.AccountID](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read destination")
	}
	if t.Amount, err = AmountFromReader(reader); err != nil {
		return nil, 0, err
	}
	if t.LimitAmount, err = AmountFromReader(reader); err != nil {
		return nil, 0, err
	}
	if t.TakerPays, err = AmountFromReader(reader); err != nil {
		return nil, 0, err
	}
	if t.TakerGets, err = AmountFromReader(reader); err != nil {
		return nil, 0, err
	}
	if t.OfferSequence, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read offer sequence")
	}
	if t.SetFlag, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read set flag")
	}
	if t.ClearFlag, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read clear flag")
	}
	if err = stream.ReadCollection(reader, serializer.SeriLengthPrefixTypeAsUint16, func(i int) error {
		var point ReleasePoint
		if point.Expiration, err = stream.Read[uint32](reader); err != nil {
			return err
		}
		if point.ReleaseRate, err = stream.Read[uint64](reader); err != nil {
			return err
		}
		t.Schedule = append(t.Schedule, point)

		return nil
	}); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read release schedule")
	}

	return t, reader.BytesRead(), nil
}

// TxRecord is what an applied transaction leaves in the transaction tree: the
// transaction itself plus the result it applied with.
type TxRecord struct {
	Transaction *Transaction
	Result      ResultCode
}

// Bytes returns the serialized record.
func (r *TxRecord) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	txBytes, err := r.Transaction.Bytes()
	if err != nil {
		return nil, err
	}

	// There can't be any errors.
	_ = stream.Write(byteBuffer, byte(r.Result))
	_ = stream.WriteBytesWithSize(byteBuffer, txBytes, serializer.SeriLengthPrefixTypeAsUint32)

	return byteBuffer.Bytes()
}

// TxRecordFromBytes parses a transaction-tree record.
func TxRecordFromBytes(b []byte) (*TxRecord, int, error) {
	reader := stream.NewByteReader(b)

	r := new(TxRecord)

	rawResult, err := stream.Read[byte](reader)
	if err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read result code")
	}
	r.Result = ResultCode(rawResult)

	txBytes, err := stream.ReadBytesWithSize(reader, serializer.SeriLengthPrefixTypeAsUint32)
	if err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read transaction bytes")
	}
	if r.Transaction, _, err = TransactionFromBytes(txBytes); err != nil {
		return nil, 0, err
	}

	return r, reader.BytesRead(), nil
}
