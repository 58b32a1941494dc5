package ledger

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"consolida/internal/core"
)

func dashboardMatrix() *Matrix {
	rows := append(scenarioChart(),
		core.AccountRow{Code: "02.01.002", Description: "Benefits", Level: "4"},
		core.AccountRow{Code: "02.01.003", Description: "Training", Level: "4"},
	)
	jan, feb := period(2026, time.January), period(2026, time.February)
	return Aggregate(NewTree(rows), map[core.Period][]core.Entry{
		jan: {entry("01.01.001", "1000"), entry("02.01.001", "-450"), entry("02.01.002", "-50")},
		feb: {entry("01.01.001", "800"), entry("02.01.002", "-400"), entry("02.01.003", "-10")},
	}, []core.Period{jan, feb})
}

func TestTopExpenses(t *testing.T) {
	top := TopExpenses(dashboardMatrix(), 2)
	assert.Equal(t, 2, len(top))
	// Tied at -450: ordered by code.
	assert.Equal(t, "02.01.001", top[0].Account.Code)
	assert.Equal(t, "02.01.002", top[1].Account.Code)
	assertDec(t, "-450", top[1].Amount)

	assert.Equal(t, 3, len(TopExpenses(dashboardMatrix(), 0)))
}

func TestRevenueVsExpense(t *testing.T) {
	pts := RevenueVsExpense(dashboardMatrix())
	assert.Equal(t, 2, len(pts))
	assertDec(t, "1000", pts[0].Revenue)
	assertDec(t, "500", pts[0].Expense)
	assertDec(t, "500", pts[0].Net)
	assertDec(t, "390", pts[1].Net)
}

func TestGroupBreakdown(t *testing.T) {
	groups := GroupBreakdown(dashboardMatrix())
	assert.Equal(t, 2, len(groups))
	assertDec(t, "1800", groups[0].Amount)
	assertDec(t, "-910", groups[1].Amount)
}
