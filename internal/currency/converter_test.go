package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		from, to string
		want     float64
	}{
		{"identity", 1234.56, "USD", "USD", 1234.56},
		{"to usd", 1295, "KES", "USD", 10},
		{"from usd", 100, "USD", "EUR", 92},
		{"cross rate", 92, "EUR", "GBP", 79},
		{"rounds to cents", 10, "ZAR", "USD", 0.54},
		{"lowercase codes", 100, "usd", "cad", 136},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.amount, tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToAndFromUSD(t *testing.T) {
	usd, err := ToUSD(15800, "NGN")
	require.NoError(t, err)
	assert.Equal(t, 10.0, usd)

	aud, err := FromUSD(10, "AUD")
	require.NoError(t, err)
	assert.Equal(t, 15.2, aud)
}

func TestUnsupportedCurrency(t *testing.T) {
	_, err := Convert(1, "USD", "XYZ")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)

	_, err = Rate("BTC")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestSupported(t *testing.T) {
	assert.Equal(t, []string{"AUD", "CAD", "EUR", "GBP", "KES", "NGN", "USD", "ZAR"}, Supported())
}
