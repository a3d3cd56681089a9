package quality_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/quality"
)

func TestFromIdentifier(t *testing.T) {
	id := types.MustIdentifierFromHexString("D2DC44E5DC189318DB36EF87D2104CDF0A0FE3A4B698BEEE55038D7EA4C68000")

	require.Equal(t, uint64(6125895493223874560), quality.FromIdentifier(id))
}

func TestWithRateRoundtrip(t *testing.T) {
	base := types.IdentifierFromData([]byte("book base"))

	keyed := quality.WithRate(base, 123456789)
	require.Equal(t, uint64(123456789), quality.FromIdentifier(keyed))

	// the base portion is untouched by embedding a rate
	require.Equal(t, quality.Base(keyed), quality.Base(base))

	// zeroing the rate recovers the base of any page of the same book
	other := quality.WithRate(base, 987654321)
	require.Equal(t, quality.Base(keyed), quality.Base(other))
}
