// Package format renders ledger values for people: pt-BR currency with
// parenthesized negatives, percentages and per-level row classes.
package format

import (
	"strings"

	"github.com/shopspring/decimal"

	"consolida/internal/core"
)

// Money formats d with two decimals, "." thousands and "," decimal separator.
// Negative values are wrapped in parentheses: -1234.5 -> "(1.234,50)".
func Money(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := group(d.Abs().StringFixed(2))
	if neg && s != "0,00" {
		return "(" + s + ")"
	}
	return s
}

// MoneyWithSymbol prefixes Money with "R$ ".
func MoneyWithSymbol(d decimal.Decimal) string {
	return "R$ " + Money(d)
}

// Percent formats p with one decimal and a "%" suffix: 50 -> "50,0%".
func Percent(p decimal.Decimal) string {
	s := group(p.Abs().StringFixed(1))
	if p.IsNegative() && s != "0,0" {
		s = "-" + s
	}
	return s + "%"
}

// SignClass returns "pos", "neg" or "zero" for styling.
func SignClass(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return "pos"
	case -1:
		return "neg"
	default:
		return "zero"
	}
}

// LevelClass returns the CSS class used for a hierarchy level row.
func LevelClass(l core.Level) string {
	switch l {
	case core.LevelResult:
		return "lvl-result"
	case core.LevelGroup:
		return "lvl-group"
	case core.LevelSubtotal:
		return "lvl-subtotal"
	default:
		return "lvl-leaf"
	}
}

// group turns "1234567.89" into "1.234.567,89".
func group(fixed string) string {
	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}
