// Package quality extracts the exchange-rate ordering key that is embedded in
// an offer book directory identifier. Competing offers live under directory
// keys that share a common base and differ only in the rate portion, so
// iterating a book in key order visits offers from the best effective rate to
// the worst.
package quality

import (
	"encoding/binary"

	"github.com/veritasledger/veritas-core/pkg/core/types"
)

// rateOffset is the byte offset of the rate portion inside a book directory
// identifier: the trailing 8 bytes of the 256-bit key.
const rateOffset = types.IdentifierLength - 8

// FromIdentifier returns the rate embedded in the given identifier, read as a
// big-endian unsigned 64-bit integer from its trailing 8 bytes. It is a pure
// function with no state.
func FromIdentifier(id types.Identifier) uint64 {
	return binary.BigEndian.Uint64(id[rateOffset:])
}

// WithRate returns a copy of base with its rate portion replaced by the given
// rate, yielding the directory key of a book page at that rate.
func WithRate(base types.Identifier, rate uint64) types.Identifier {
	result := base
	binary.BigEndian.PutUint64(result[rateOffset:], rate)

	return result
}

// Base returns the identifier with its rate portion zeroed, the common prefix
// shared by all pages of one book.
func Base(id types.Identifier) types.Identifier {
	return WithRate(id, 0)
}
