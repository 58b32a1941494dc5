package ledger

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"consolida/internal/core"
)

func TestAggregateScenario(t *testing.T) {
	jan := period(2026, time.January)
	tree := NewTree(scenarioChart())
	m := Aggregate(tree, map[core.Period][]core.Entry{
		jan: {entry("01.01.001", "1000"), entry("02.01.001", "-400")},
	}, []core.Period{jan})

	want := map[string]string{
		"01.01.001": "1000", "02.01.001": "-400",
		"01.01": "1000", "02.01": "-400",
		"01": "1000", "02": "-400",
		"00": "600",
	}
	for code, v := range want {
		got, ok := m.Value(code, jan)
		assert.True(t, ok, code)
		assertDec(t, v, got, code)
	}
	assertDec(t, "600", m.NetResult())
	assert.Equal(t, 0, len(m.Unmatched))
}

func TestAggregateProperties(t *testing.T) {
	periods := []core.Period{period(2026, time.January), period(2026, time.February), period(2026, time.March)}
	rows := append(scenarioChart(),
		core.AccountRow{Code: "01.01.002", Description: "Product B", Level: "4"},
		core.AccountRow{Code: "01.02", Description: "Services", Level: "3"},
		core.AccountRow{Code: "02.02", Description: "Rent", Level: "3"},
		core.AccountRow{Code: "02.02.001", Description: "Office", Level: "4"},
	)
	tree := NewTree(rows)
	m := Aggregate(tree, map[core.Period][]core.Entry{
		periods[0]: {entry("01.01.001", "100"), entry("01.01.002", "50.25"), entry("02.02.001", "-75")},
		periods[1]: {entry("02.01.001", "-300"), entry("02.01.001", "-20")},
		periods[2]: {entry("01.01.002", "12.75")},
	}, periods)

	for col, p := range periods {
		net := decimal.Zero
		for _, r := range m.Rows {
			switch r.Account.Level {
			case core.LevelGroup:
				net = net.Add(r.Values[col])
				fallthrough
			case core.LevelSubtotal:
				sum := decimal.Zero
				for _, leaf := range m.Rows {
					if leaf.Account.Level == core.LevelLeaf && core.HasAncestor(leaf.Account.Code, r.Account.Code) {
						sum = sum.Add(leaf.Values[col])
					}
				}
				assertDec(t, sum.String(), r.Values[col], r.Account.Code, p)
			}
		}
		v, _ := m.Value("00", p)
		assertDec(t, net.String(), v, p)
	}

	n := decimal.NewFromInt(int64(len(periods)))
	for _, r := range m.Rows {
		acc := decimal.Zero
		for _, v := range r.Values {
			acc = acc.Add(v)
		}
		assertDec(t, acc.String(), r.Accumulated, r.Account.Code)
		assertDec(t, acc.Div(n).String(), r.Average, r.Account.Code)
	}

	// A level-3 account without children is zero, not absent.
	services, ok := m.Row("01.02")
	assert.True(t, ok)
	assertDec(t, "0", services.Accumulated)
}

func TestAggregateMissingLeafIsZero(t *testing.T) {
	jan := period(2026, time.January)
	m := Aggregate(NewTree(scenarioChart()), map[core.Period][]core.Entry{}, []core.Period{jan})
	for _, r := range m.Rows {
		assertDec(t, "0", r.Values[0], r.Account.Code)
	}
}

func TestAggregateUnmatchedAndOrphans(t *testing.T) {
	jan := period(2026, time.January)
	rows := append(scenarioChart(), core.AccountRow{Code: "02.07.001", Description: "Orphan", Level: "4"})
	tree := NewTree(rows)
	m := Aggregate(tree, map[core.Period][]core.Entry{
		jan: {entry("02.07.001", "-10"), entry("99.99.999", "5"), entry("02.01", "7")},
	}, []core.Period{jan})

	assert.Equal(t, []string{"02.07.001"}, m.Tree.Orphans)
	assert.Equal(t, []string{"02.01", "99.99.999"}, m.UnmatchedCodes())
	assertDec(t, "5", m.Unmatched["99.99.999"])

	// The orphan still reaches its level-2 ancestor and the net result.
	v, _ := m.Value("02", jan)
	assertDec(t, "-10", v)
	v, _ = m.Value("02.01", jan)
	assertDec(t, "0", v)
	v, _ = m.Value("00", jan)
	assertDec(t, "-10", v)
}

func TestAggregateNoPeriods(t *testing.T) {
	m := Aggregate(NewTree(scenarioChart()), nil, nil)
	assert.True(t, m.Empty())
	for _, r := range m.Rows {
		assert.True(t, r.Average.IsZero())
		assert.Equal(t, 0, len(r.Values))
	}
}

func TestAggregateDeterministic(t *testing.T) {
	periods := []core.Period{period(2025, time.December), period(2026, time.January)}
	in := map[core.Period][]core.Entry{
		periods[0]: {entry("01.01.001", "1.10"), entry("02.01.001", "-0.10")},
		periods[1]: {entry("02.01.001", "-3"), entry("01.01.001", "4")},
	}
	tree := NewTree(scenarioChart())
	a := Aggregate(tree, in, periods)
	b := Aggregate(tree, in, periods)
	for i := range a.Rows {
		assert.Equal(t, a.Rows[i].Account, b.Rows[i].Account)
		assert.True(t, a.Rows[i].Accumulated.Equal(b.Rows[i].Accumulated))
	}
}
