package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromBRLString(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCents int64
		wantErr   bool
	}{
		{"thousands and decimals", "R$ 1.234,56", 123456, false},
		{"no symbol", "1.500,00", 150000, false},
		{"plain decimal", "99,90", 9990, false},
		{"integer", "50", 5000, false},
		{"negative", "-230,50", -23050, false},
		{"garbage", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewFromBRLString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCents, m.Amount())
			assert.Equal(t, BRL, m.Currency())
		})
	}
}

func TestAddMismatchedCurrencies(t *testing.T) {
	brl := New(1000, BRL)
	usd := New(1000, USD)

	_, err := brl.Add(usd)
	require.Error(t, err)

	sum, err := brl.Add(New(500, BRL))
	require.NoError(t, err)
	assert.Equal(t, int64(1500), sum.Amount())
}

func TestDecimalRoundTrip(t *testing.T) {
	m := NewFromDecimal(decimal.RequireFromString("1234.56"), BRL)
	assert.Equal(t, int64(123456), m.Amount())
	assert.True(t, m.Decimal().Equal(decimal.RequireFromString("1234.56")))
}

func TestNegativeHelpers(t *testing.T) {
	m := New(-500, BRL)
	assert.True(t, m.IsNegative())
	assert.Equal(t, int64(500), m.Abs().Amount())
	assert.False(t, Zero(BRL).IsNegative())
}
