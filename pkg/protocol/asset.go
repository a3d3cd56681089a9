package protocol

import (
	"bytes"
	"strings"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2/stream"

	"github.com/veritasledger/veritas-core/pkg/core/types"
)

// CurrencyLength is the byte length of a currency code.
const CurrencyLength = 20

// Currency is a padded currency code. Short ASCII codes occupy the leading
// bytes with the remainder zeroed.
type Currency [CurrencyLength]byte

// CurrencyFromCode builds a Currency from a short ASCII code.
func CurrencyFromCode(code string) Currency {
	var c Currency
	copy(c[:], code)

	return c
}

func (c Currency) String() string {
	return strings.TrimRight(string(c[:]), "\x00")
}

// CurrencyFromReader reads a currency code off the given reader.
func CurrencyFromReader(reader *stream.ByteReader) (Currency, error) {
	var c Currency

	currencyBytes, err := stream.ReadBytes(reader, CurrencyLength)
	if err != nil {
		return c, ierrors.Wrap(err, "failed to read currency")
	}
	copy(c[:], currencyBytes)

	return c, nil
}

// Asset identifies a transactable asset: a currency code plus the issuing
// account. Native assets carry the zero issuer and exist independently of any
// trust relationship.
type Asset struct {
	Currency Currency
	Issuer   types.AccountID
}

// NativeAsset returns the asset for a natively tracked currency.
func NativeAsset(code string) Asset {
	return Asset{Currency: CurrencyFromCode(code)}
}

// IssuedAsset returns the asset for a currency issued by the given account.
func IssuedAsset(code string, issuer types.AccountID) Asset {
	return Asset{Currency: CurrencyFromCode(code), Issuer: issuer}
}

// IsNative reports whether the asset is tracked natively (no issuer).
func (a Asset) IsNative() bool {
	return a.Issuer.IsEmpty()
}

// Compare orders assets by currency, then issuer. The order is the canonical
// one used for balance and supply lists.
func (a Asset) Compare(other Asset) int {
	if c := bytes.Compare(a.Currency[:], other.Currency[:]); c != 0 {
		return c
	}

	return a.Issuer.Compare(other.Issuer)
}

// Bytes returns the serialized asset.
func (a Asset) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer(CurrencyLength + types.IdentifierLength)

	// There can't be any errors.
	_ = stream.WriteBytes(byteBuffer, a.Currency[:])
	_ = stream.Write(byteBuffer, a.Issuer)

	return byteBuffer.Bytes()
}

// AssetFromReader reads an asset off the given reader.
func AssetFromReader(reader *stream.ByteReader) (Asset, error) {
	var a Asset
	var err error

	if a.Currency, err = CurrencyFromReader(reader); err != nil {
		return a, err
	}
	if a.Issuer, err = stream.Read[types.AccountID](reader); err != nil {
		return a, ierrors.Wrap(err, "failed to read issuer")
	}

	return a, nil
}

func (a Asset) String() string {
	if a.IsNative() {
		return a.Currency.String()
	}

	return a.Currency.String() + "/" + a.Issuer.String()
}

// Amount is a value denominated in an asset, expressed in the asset's
// smallest indivisible unit.
type Amount struct {
	Asset Asset
	Value uint64
}

// NativeAmount builds an amount of a native asset.
func NativeAmount(code string, value uint64) Amount {
	return Amount{Asset: NativeAsset(code), Value: value}
}

// IssuedAmount builds an amount of an issued asset.
func IssuedAmount(code string, issuer types.AccountID, value uint64) Amount {
	return Amount{Asset: IssuedAsset(code, issuer), Value: value}
}

// Bytes returns the serialized amount.
func (a Amount) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	assetBytes, err := a.Asset.Bytes()
	if err != nil {
		return nil, err
	}

	// There can't be any errors.
	_ = stream.WriteBytes(byteBuffer, assetBytes)
	_ = stream.Write(byteBuffer, a.Value)

	return byteBuffer.Bytes()
}

// AmountFromReader reads an amount off the given reader.
func AmountFromReader(reader *stream.ByteReader) (Amount, error) {
	var a Amount
	var err error

	if a.Asset, err = AssetFromReader(reader); err != nil {
		return a, err
	}
	if a.Value, err = stream.Read[uint64](reader); err != nil {
		return a, ierrors.Wrap(err, "failed to read amount value")
	}

	return a, nil
}
