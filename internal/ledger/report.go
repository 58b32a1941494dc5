package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"consolida/internal/core"
)

// Mode selects the summary column of a report.
type Mode string

const (
	ModeAccumulated Mode = "accumulated"
	ModeAverage     Mode = "average"
)

// ParseMode accepts the English and Portuguese column names.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "accumulated", "acumulado", "sum", "total":
		return ModeAccumulated, nil
	case "average", "média", "media", "mean", "avg":
		return ModeAverage, nil
	}
	return "", fmt.Errorf("unknown summary mode %q", s)
}

// Label is the column header for the mode.
func (m Mode) Label() string {
	if m == ModeAverage {
		return "AVERAGE"
	}
	return "ACCUMULATED"
}

// Summary returns the row's value for the mode.
func (r Row) Summary(m Mode) decimal.Decimal {
	if m == ModeAverage {
		return r.Average
	}
	return r.Accumulated
}

// FilterLevels returns a matrix holding only rows at the given levels, in the
// original order. No levels keeps every row. Values are shared, not copied.
func (m *Matrix) FilterLevels(levels ...core.Level) *Matrix {
	out := &Matrix{
		Periods:   m.Periods,
		Unmatched: m.Unmatched,
		Tree:      m.Tree,
		index:     make(map[string]int),
	}
	keep := make(map[core.Level]bool, len(levels))
	for _, l := range levels {
		keep[l] = true
	}
	for _, r := range m.Rows {
		if len(levels) > 0 && !keep[r.Account.Level] {
			continue
		}
		out.index[r.Account.Code] = len(out.Rows)
		out.Rows = append(out.Rows, r)
	}
	return out
}

var hundred = decimal.NewFromInt(100)

// Delta compares b against a. percent is delta / |a| * 100, and zero when a
// is zero.
func Delta(a, b decimal.Decimal) (delta, percent decimal.Decimal) {
	delta = b.Sub(a)
	if a.IsZero() {
		return delta, decimal.Zero
	}
	return delta, delta.Div(a.Abs()).Mul(hundred)
}

type (
	// ComparisonRow holds one account's accumulated values for two years.
	ComparisonRow struct {
		Account core.Account
		A       decimal.Decimal
		B       decimal.Decimal
		Delta   decimal.Decimal
		Percent decimal.Decimal
	}

	// Comparison is the year-over-year report.
	Comparison struct {
		YearA int
		YearB int
		Rows  []ComparisonRow
	}
)

// CompareYears pairs the accumulated values of two matrices built from the
// same chart. Accounts missing from b compare against zero.
func CompareYears(yearA int, a *Matrix, yearB int, b *Matrix) *Comparison {
	c := &Comparison{YearA: yearA, YearB: yearB, Rows: make([]ComparisonRow, 0, len(a.Rows))}
	for _, ra := range a.Rows {
		vb := decimal.Zero
		if rb, ok := b.Row(ra.Account.Code); ok {
			vb = rb.Accumulated
		}
		d, pct := Delta(ra.Accumulated, vb)
		c.Rows = append(c.Rows, ComparisonRow{
			Account: ra.Account,
			A:       ra.Accumulated,
			B:       vb,
			Delta:   d,
			Percent: pct,
		})
	}
	return c
}

// FilterLevels keeps only rows at the given levels.
func (c *Comparison) FilterLevels(levels ...core.Level) *Comparison {
	if len(levels) == 0 {
		return c
	}
	keep := make(map[core.Level]bool, len(levels))
	for _, l := range levels {
		keep[l] = true
	}
	out := &Comparison{YearA: c.YearA, YearB: c.YearB}
	for _, r := range c.Rows {
		if keep[r.Account.Level] {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Row returns the comparison row for code.
func (c *Comparison) Row(code string) (ComparisonRow, bool) {
	for _, r := range c.Rows {
		if r.Account.Code == code {
			return r, true
		}
	}
	return ComparisonRow{}, false
}
