package integrity

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/justnobody/nobody-mesh/mesh/types"
)

func fee(s string) *string { return &s }

func TestVerifyRelayRejectsEmptyPath(t *testing.T) {
	for _, path := range [][]string{nil, {}} {
		err := VerifyRelay(&types.PrivacyIntent{IntentType: "trade", RelayPath: path, RelayFee: fee("1 SOL")})
		require.True(t, xerrors.Is(err, ErrEmptyRelayPath))
	}
}

func TestVerifyRelayFeeOnlyWarns(t *testing.T) {
	fees := []*string{nil, fee("0.005 SOL"), fee("2 NEAR"), fee("12 USD"), fee(""), fee("garbage")}
	for _, f := range fees {
		pi := &types.PrivacyIntent{IntentType: "trade", RelayPath: []string{"origin"}, RelayFee: f}
		require.NoError(t, VerifyRelay(pi))
	}
}

func TestFeeRecognized(t *testing.T) {
	require.True(t, FeeRecognized("0.005 SOL"))
	require.True(t, FeeRecognized("NEAR:3"))
	require.False(t, FeeRecognized("5 usd"))
	require.False(t, FeeRecognized(""))
}
