package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"consolida/internal/core"
)

func TestLoadPeriodCoercesAndNormalizes(t *testing.T) {
	src := &fakeSource{periods: map[string][]core.PeriodRow{
		"January_2026": {
			{LeafCode: "01.01.001 Product A", Amount: "1000", CostCenter: "Shop"},
			{LeafCode: "01/02/2001", Amount: "-400", CostCenter: "Office"},
			{LeafCode: "02.01.001", Amount: "not a number", CostCenter: "Office"},
		},
	}}
	l := NewLoader(src, core.NamingEnglish, 2, nil)

	entries, err := l.LoadPeriod(context.Background(), period(2026, time.January), Filter{})
	assert.NoError(t, err)
	assert.Equal(t, 3, len(entries))
	assert.Equal(t, "01.01.001", entries[0].LeafCode)
	assert.Equal(t, "02.01.001", entries[1].LeafCode)
	assertDec(t, "-400", entries[1].Amount)
	assertDec(t, "0", entries[2].Amount)
}

func TestLoadPeriodFilters(t *testing.T) {
	rows := []core.PeriodRow{
		{LeafCode: "01.01.001", Amount: "10", CostCenter: "Shop"},
		{LeafCode: "01.01.001", Amount: "20", CostCenter: "office "},
		{LeafCode: "01.01.001", Amount: "40", CostCenter: "Office", Memo: "Baixa VINCULADA ref 12"},
	}
	sum := func(f Filter) decimal.Decimal {
		total := decimal.Zero
		for _, e := range Entries(rows, f) {
			total = total.Add(e.Amount)
		}
		return total
	}

	assertDec(t, "70", sum(Filter{}))
	assertDec(t, "70", sum(Filter{CostCenters: []string{"Shop", "Todos"}}))
	assertDec(t, "70", sum(Filter{CostCenters: []string{"*"}}))
	assertDec(t, "60", sum(Filter{CostCenters: []string{"OFFICE"}}))
	assertDec(t, "20", sum(Filter{CostCenters: []string{"Office"}, ExcludeMemo: "vinculada"}))
	assertDec(t, "30", sum(Filter{ExcludeMemo: "Vinculada"}))
}

func TestLoadPeriodsCollectsMissing(t *testing.T) {
	src := &fakeSource{periods: map[string][]core.PeriodRow{
		"Janeiro_2026": {{LeafCode: "01.01.001", Amount: "5"}},
	}}
	l := NewLoader(src, core.NamingPortuguese, 4, nil)
	jan, feb, mar := period(2026, time.January), period(2026, time.February), period(2026, time.March)

	got, missing, err := l.LoadPeriods(context.Background(), []core.Period{mar, jan, feb}, Filter{})
	assert.NoError(t, err)
	assert.Equal(t, []core.Period{feb, mar}, missing)
	assert.Equal(t, 1, len(got))
	assert.Equal(t, 1, len(got[jan]))
}

func TestLoadPeriodReadsEitherNaming(t *testing.T) {
	src := &fakeSource{periods: map[string][]core.PeriodRow{
		"Janeiro_2026":   {{LeafCode: "01.01.001", Amount: "1000"}},
		"February_2026":  {{LeafCode: "01.01.001", Amount: "7"}},
		"Fevereiro_2026": {{LeafCode: "01.01.001", Amount: "9"}},
	}}
	l := NewLoader(src, core.NamingEnglish, 2, nil)
	jan, feb := period(2026, time.January), period(2026, time.February)

	got, missing, err := l.LoadPeriods(context.Background(), []core.Period{jan, feb}, Filter{})
	assert.NoError(t, err)
	assert.Equal(t, 0, len(missing))
	assertDec(t, "1000", got[jan][0].Amount)
	// The configured naming wins when both containers exist.
	assertDec(t, "7", got[feb][0].Amount)
}

func TestLoadPeriodsPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	l := NewLoader(&fakeSource{err: boom}, core.NamingEnglish, 1, nil)
	_, _, err := l.LoadPeriods(context.Background(), []core.Period{period(2026, time.January)}, Filter{})
	assert.True(t, errors.Is(err, boom))
}

func TestDerive(t *testing.T) {
	tx := core.Transaction{
		AccountRef: " 02.01.001 Salaries ",
		Flow:       core.FlowPayment,
		Amount:     dec("500"),
		CostCenter: " Office ",
	}
	e, ok := Derive(tx, DeriveOptions{})
	assert.True(t, ok)
	assert.Equal(t, "02.01.001", e.LeafCode)
	assertDec(t, "-500", e.Amount)
	assert.Equal(t, "Office", e.CostCenter)

	tx.Flow = core.FlowReceipt
	e, _ = Derive(tx, DeriveOptions{})
	assertDec(t, "500", e.Amount)

	tx.Memo = "vinculada"
	_, ok = Derive(tx, DeriveOptions{ExcludeMemo: "VINCULADA"})
	assert.False(t, ok)

	_, ok = Derive(core.Transaction{}, DeriveOptions{})
	assert.False(t, ok)
}

func TestCostCenters(t *testing.T) {
	src := &fakeSource{periods: map[string][]core.PeriodRow{
		"January_2026":  {{LeafCode: "01.01.001", Amount: "1", CostCenter: "Shop"}, {LeafCode: "01.01.001", Amount: "1"}},
		"February_2026": {{LeafCode: "01.01.001", Amount: "1", CostCenter: " Office"}, {LeafCode: "01.01.001", Amount: "1", CostCenter: "Shop"}},
	}}
	l := NewLoader(src, core.NamingEnglish, 2, nil)
	got, err := l.CostCenters(context.Background(), []core.Period{period(2026, time.January), period(2026, time.February), period(2026, time.March)})
	assert.NoError(t, err)
	assert.Equal(t, []string{"Office", "Shop"}, got)
}
