package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"consolida/internal/core"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// scenarioChart is the seven-account chart used across tests.
func scenarioChart() []core.AccountRow {
	return []core.AccountRow{
		{Code: "00", Description: "Net Result", Level: "1"},
		{Code: "01", Description: "Revenue", Level: "2"},
		{Code: "01.01", Description: "Sales", Level: "3"},
		{Code: "01.01.001", Description: "Product A", Level: "4"},
		{Code: "02", Description: "Expense", Level: "2"},
		{Code: "02.01", Description: "Payroll", Level: "3"},
		{Code: "02.01.001", Description: "Salaries", Level: "4"},
	}
}

func entry(code, amount string) core.Entry {
	return core.Entry{LeafCode: code, Amount: dec(amount)}
}

func period(year int, month time.Month) core.Period {
	return core.Period{Year: year, Month: month}
}

type fakeSource struct {
	periods map[string][]core.PeriodRow
	err     error
}

func (f *fakeSource) GetPeriod(_ context.Context, key string) ([]core.PeriodRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	rows, ok := f.periods[key]
	if !ok {
		return nil, core.ErrPeriodNotFound
	}
	return rows, nil
}
