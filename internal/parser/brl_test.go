package parser

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBRL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"R$ 45.000,00", "45000"},
		{"R$ 1.234.567,89", "1234567.89"},
		{"R$ 98.765,43", "98765.43"},
		{"R$ 950,5", "950.5"},
		{"12.000", "12000"},
		{" 7,25 ", "7.25"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseBRL(tt.in)
			require.True(t, ok)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseBRL_Exact(t *testing.T) {
	got, ok := ParseBRL("R$ 45.000,00")
	require.True(t, ok)
	assert.Equal(t, 45000.00, got.InexactFloat64())
}

func TestParseBRL_Invalid(t *testing.T) {
	for _, in := range []string{"abc", "N/D", "", "R$", "   ", "R$ 1,2,3", "US$ 10,00", "R$ 1e999", "1E5", "R$ 1,5e3"} {
		_, ok := ParseBRL(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestParseBRL_HugeAmountStaysFinite(t *testing.T) {
	in := "R$ 1" + strings.Repeat("0", 400) + ",00"
	_, ok := ParseBRL(in)
	assert.False(t, ok)
}
