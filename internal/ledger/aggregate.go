package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"consolida/internal/core"
)

type (
	// Row is one account of the matrix with a value per period column.
	Row struct {
		Account     core.Account
		Values      []decimal.Decimal
		Accumulated decimal.Decimal
		Average     decimal.Decimal
	}

	// Matrix is the account by period result of one aggregation. It is
	// rebuilt on every request and never persisted.
	Matrix struct {
		Periods []core.Period
		Rows    []Row
		// Unmatched sums entries whose code is not a level-4 account, per code.
		// They contribute to no row.
		Unmatched map[string]decimal.Decimal
		Tree      TreeDiagnostics

		index map[string]int
	}
)

// Aggregate rolls entries up the tree for each period, in the order given.
// Level 4 takes the leaf totals, levels 3 and 2 sum their level-4
// descendants and level 1 sums every level-2 row.
func Aggregate(tree *Tree, byPeriod map[core.Period][]core.Entry, periods []core.Period) *Matrix {
	m := &Matrix{
		Periods:   append([]core.Period(nil), periods...),
		Rows:      make([]Row, len(tree.accounts)),
		Unmatched: make(map[string]decimal.Decimal),
		Tree:      tree.Diagnostics(),
		index:     make(map[string]int, len(tree.accounts)),
	}
	for i, a := range tree.accounts {
		m.Rows[i] = Row{Account: a, Values: make([]decimal.Decimal, len(periods))}
		m.index[a.Code] = i
	}

	for col, p := range periods {
		totals := leafTotals(byPeriod[p])
		for code, v := range totals {
			if !tree.IsLeaf(code) {
				m.Unmatched[code] = m.Unmatched[code].Add(v)
			}
		}

		for _, i := range tree.byLevel[core.LevelLeaf] {
			m.Rows[i].Values[col] = totals[tree.accounts[i].Code]
		}
		for _, lvl := range []core.Level{core.LevelSubtotal, core.LevelGroup} {
			for _, i := range tree.byLevel[lvl] {
				sum := decimal.Zero
				for _, leaf := range tree.leaves[tree.accounts[i].Code] {
					sum = sum.Add(m.Rows[leaf].Values[col])
				}
				m.Rows[i].Values[col] = sum
			}
		}
		net := decimal.Zero
		for _, i := range tree.byLevel[core.LevelGroup] {
			net = net.Add(m.Rows[i].Values[col])
		}
		for _, i := range tree.byLevel[core.LevelResult] {
			m.Rows[i].Values[col] = net
		}
	}

	n := decimal.NewFromInt(int64(len(periods)))
	for i := range m.Rows {
		acc := decimal.Zero
		for _, v := range m.Rows[i].Values {
			acc = acc.Add(v)
		}
		m.Rows[i].Accumulated = acc
		if len(periods) > 0 {
			m.Rows[i].Average = acc.Div(n)
		}
	}
	return m
}

func leafTotals(entries []core.Entry) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, e := range entries {
		totals[e.LeafCode] = totals[e.LeafCode].Add(e.Amount)
	}
	return totals
}

// Row returns the row for code.
func (m *Matrix) Row(code string) (Row, bool) {
	i, ok := m.index[code]
	if !ok {
		return Row{}, false
	}
	return m.Rows[i], true
}

// Value returns the cell for code in period p.
func (m *Matrix) Value(code string, p core.Period) (decimal.Decimal, bool) {
	r, ok := m.Row(code)
	if !ok {
		return decimal.Zero, false
	}
	for col, q := range m.Periods {
		if q == p {
			return r.Values[col], true
		}
	}
	return decimal.Zero, false
}

// Empty reports whether the matrix has no period columns.
func (m *Matrix) Empty() bool {
	return len(m.Periods) == 0
}

// UnmatchedCodes returns the unmatched codes sorted.
func (m *Matrix) UnmatchedCodes() []string {
	out := make([]string, 0, len(m.Unmatched))
	for c := range m.Unmatched {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// NetResult returns the accumulated value of the first level-1 row, or the
// sum of level-2 rows when the chart has no level-1 account.
func (m *Matrix) NetResult() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range m.Rows {
		switch r.Account.Level {
		case core.LevelResult:
			return r.Accumulated
		case core.LevelGroup:
			sum = sum.Add(r.Accumulated)
		}
	}
	return sum
}
