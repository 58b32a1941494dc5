package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"consolida/internal/core"
)

type (
	// AccountAmount pairs an account with one summary value.
	AccountAmount struct {
		Account core.Account
		Amount  decimal.Decimal
	}

	// FlowPoint splits one period's leaf activity into inflow and outflow.
	FlowPoint struct {
		Period  core.Period
		Revenue decimal.Decimal
		Expense decimal.Decimal // absolute value
		Net     decimal.Decimal
	}
)

// TopExpenses returns up to n level-4 accounts with the most negative
// accumulated value. n <= 0 returns all of them.
func TopExpenses(m *Matrix, n int) []AccountAmount {
	var out []AccountAmount
	for _, r := range m.Rows {
		if r.Account.Level == core.LevelLeaf && r.Accumulated.IsNegative() {
			out = append(out, AccountAmount{Account: r.Account, Amount: r.Accumulated})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c < 0
		}
		return out[i].Account.Code < out[j].Account.Code
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RevenueVsExpense sums positive and negative level-4 cells per period.
func RevenueVsExpense(m *Matrix) []FlowPoint {
	out := make([]FlowPoint, len(m.Periods))
	for col, p := range m.Periods {
		fp := FlowPoint{Period: p, Revenue: decimal.Zero, Expense: decimal.Zero}
		for _, r := range m.Rows {
			if r.Account.Level != core.LevelLeaf {
				continue
			}
			v := r.Values[col]
			if v.IsPositive() {
				fp.Revenue = fp.Revenue.Add(v)
			} else {
				fp.Expense = fp.Expense.Add(v.Neg())
			}
		}
		fp.Net = fp.Revenue.Sub(fp.Expense)
		out[col] = fp
	}
	return out
}

// GroupBreakdown returns the level-2 rows with their accumulated values, the
// composition shown next to the net result.
func GroupBreakdown(m *Matrix) []AccountAmount {
	var out []AccountAmount
	for _, r := range m.Rows {
		if r.Account.Level == core.LevelGroup {
			out = append(out, AccountAmount{Account: r.Account, Amount: r.Accumulated})
		}
	}
	return out
}
