package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	in := decimal.RequireFromString("102500.005")
	require.Equal(t, "102500.01", Round(in).StringFixed(2))

	in = decimal.RequireFromString("102500.004")
	require.Equal(t, "102500.00", Round(in).StringFixed(2))
}

func TestEpsilonIsOneMinorUnit(t *testing.T) {
	require.Equal(t, "0.01", Epsilon.String())
	require.Equal(t, "0.01", FromMinorUnits(1).String())
	require.Equal(t, "1550.00", FromMinorUnits(155000).StringFixed(2))
}
