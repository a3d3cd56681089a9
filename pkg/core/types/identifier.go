package types

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/iotaledger/hive.go/ierrors"
)

// IdentifierLength is the byte length of an Identifier.
const IdentifierLength = blake2b.Size256

// Identifier is a 256-bit value that identifies ledger objects, tree nodes and
// transactions. Content-derived identifiers are computed with blake2b-256.
type Identifier [IdentifierLength]byte

// EmptyIdentifier is the zero Identifier. It doubles as the root of an empty tree.
var EmptyIdentifier = Identifier{}

// IdentifierFromData returns the content identifier of the given data.
func IdentifierFromData(data []byte) Identifier {
	return blake2b.Sum256(data)
}

// IdentifierFromBytes parses an Identifier from a byte slice and returns the
// number of bytes consumed.
func IdentifierFromBytes(b []byte) (Identifier, int, error) {
	if len(b) < IdentifierLength {
		return EmptyIdentifier, 0, ierrors.Errorf("invalid identifier length: %d", len(b))
	}

	var id Identifier
	copy(id[:], b[:IdentifierLength])

	return id, IdentifierLength, nil
}

// IdentifierFromHexString parses an Identifier from its hex representation.
func IdentifierFromHexString(s string) (Identifier, error) {
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return EmptyIdentifier, ierrors.Wrap(err, "failed to decode identifier hex string")
	}

	id, _, err := IdentifierFromBytes(decoded)

	return id, err
}

// MustIdentifierFromHexString parses an Identifier from its hex representation
// and panics on malformed input.
func MustIdentifierFromHexString(s string) Identifier {
	id, err := IdentifierFromHexString(s)
	if err != nil {
		panic(err)
	}

	return id
}

// RandomIdentifier returns a random Identifier (test helper material, never
// used on a deterministic code path).
func RandomIdentifier() Identifier {
	var id Identifier
	if _, err := rand.Read(id[:]); err != nil {
		panic(err)
	}

	return id
}

// Bytes returns the serialized identifier.
func (i Identifier) Bytes() ([]byte, error) {
	return i[:], nil
}

// Compare orders identifiers by their unsigned big-endian integer value.
func (i Identifier) Compare(other Identifier) int {
	return bytes.Compare(i[:], other[:])
}

// IsEmpty reports whether the identifier is the zero value.
func (i Identifier) IsEmpty() bool {
	return i == EmptyIdentifier
}

func (i Identifier) String() string {
	return hex.EncodeToString(i[:])
}

// AccountID identifies an account in the state tree.
type AccountID = Identifier

// AccountIDFromBytes parses an AccountID from a byte slice.
func AccountIDFromBytes(b []byte) (AccountID, int, error) {
	return IdentifierFromBytes(b)
}
