package parser

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const brlSymbol = "R$"

// ParseBRL converts a FIPE price string into an amount.
//
// Only the pt-BR layout is understood: "R$ 45.000,00" -> 45000.00, with '.'
// as thousands separator and ',' as decimal separator. Anything that does not
// reduce to a plain finite number ("N/D", "", "R$", "1e999") is rejected.
func ParseBRL(value string) (decimal.Decimal, bool) {
	// Drop every kind of whitespace, including the NBSP used by pt-BR formatters
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)

	cleaned = strings.Replace(cleaned, brlSymbol, "", 1)
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.Replace(cleaned, ",", ".", 1)

	// FIPE never sends exponent notation
	if cleaned == "" || strings.ContainsAny(cleaned, "eE") {
		return decimal.Decimal{}, false
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}

	if f := amount.InexactFloat64(); math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Decimal{}, false
	}

	return amount, true
}
