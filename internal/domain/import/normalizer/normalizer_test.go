package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"slash full year", "05/01/2026", "2026-01-05", false},
		{"dash full year", "05-01-2026", "2026-01-05", false},
		{"two digit year", "05/01/26", "2026-01-05", false},
		{"iso passthrough", "2026-01-05", "2026-01-05", false},
		{"surrounding spaces", " 05/01/2026 ", "2026-01-05", false},
		{"day overflow", "32/01/2026", "", true},
		{"month overflow", "05/13/2026", "", true},
		{"calendar overflow", "31/02/2026", "", true},
		{"garbage", "amanhã", "", true},
		{"empty", "", "", true},
		{"missing part", "05/2026", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnparseableDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ISODate(got))
		})
	}
}

func TestParseDateUsesUTC(t *testing.T) {
	got, err := ParseDate("05/01/2026")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"plain decimal", "1500,00", 150000, false},
		{"thousands separator", "1.234,56", 123456, false},
		{"currency prefix", "R$ 1.500,00", 150000, false},
		{"negative", "-42,10", -4210, false},
		{"negative with currency", "R$ -42,10", -4210, false},
		{"parenthesized negative", "(42,10)", -4210, false},
		{"no decimals", "1500", 150000, false},
		{"non-breaking space", "R$ 1.500,00", 150000, false},
		{"zero", "0,00", 0, false},
		{"empty", "", 0, true},
		{"only sign", "-", 0, true},
		{"garbage", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmountOrZero(t *testing.T) {
	assert.Equal(t, int64(-4210), AmountOrZero("-42,10"))
	assert.Equal(t, int64(0), AmountOrZero("abc"))
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "PIX RECEBIDO JOAO", CleanDescription("  PIX   RECEBIDO\tJOAO "))
	assert.Equal(t, "", CleanDescription("   "))
}
