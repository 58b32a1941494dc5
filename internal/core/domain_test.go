package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"4", LevelLeaf, true},
		{" 2 ", LevelGroup, true},
		{"3.0", LevelSubtotal, true},
		{"1,0", LevelResult, true},
		{"5", 0, false},
		{"0", 0, false},
		{"x", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidLevel) {
			t.Fatalf("%q expected ErrInvalidLevel, got %v", tc.in, err)
		}
	}
}

func TestAccountRowToAccount(t *testing.T) {
	a, err := AccountRow{Code: "2.1", Description: "  Payroll   costs ", Level: "3"}.ToAccount()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Code != "02.10" || a.Description != "Payroll costs" || a.Level != LevelSubtotal {
		t.Fatalf("unexpected account: %+v", a)
	}
	if a.ParentCode() != "02" {
		t.Fatalf("expected parent 02, got %q", a.ParentCode())
	}
	if _, err := (AccountRow{Code: " ", Level: "4"}).ToAccount(); !errors.Is(err, ErrEmptyCode) {
		t.Fatalf("expected ErrEmptyCode, got %v", err)
	}
}

func TestHasAncestor(t *testing.T) {
	if !HasAncestor("02.01.001", "02") || !HasAncestor("02.01.001", "02.01") {
		t.Fatal("expected dot-prefixed ancestors to match")
	}
	if HasAncestor("020.01", "02") {
		t.Fatal("02 must not match 020")
	}
	if HasAncestor("02", "02") || HasAncestor("02", "") {
		t.Fatal("a code is not its own ancestor")
	}
}

func TestPeriodKeys(t *testing.T) {
	p, err := NewPeriod(2026, time.March)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Key(NamingEnglish); got != "March_2026" {
		t.Fatalf("got %q", got)
	}
	if got := p.Key(NamingPortuguese); got != "Março_2026" {
		t.Fatalf("got %q", got)
	}
	for _, key := range []string{"March_2026", "março_2026", "MARÇO_2026"} {
		got, err := ParsePeriodKey(key)
		if err != nil || got != p {
			t.Fatalf("%q parsed to %+v (err=%v)", key, got, err)
		}
	}
	for _, key := range []string{"Base", "March", "_2026", "03_2026", "Marchy_2026", "March_20x6"} {
		if _, err := ParsePeriodKey(key); !errors.Is(err, ErrInvalidPeriod) {
			t.Fatalf("%q expected ErrInvalidPeriod, got %v", key, err)
		}
	}
}

func TestParseMonth(t *testing.T) {
	cases := map[string]time.Month{
		"1": time.January, "12": time.December, "feb": time.February,
		"Fevereiro": time.February, "dez": time.December, "SEP": time.September,
	}
	for in, want := range cases {
		got, err := ParseMonth(in)
		if err != nil || got != want {
			t.Fatalf("%q expected %s, got %s (err=%v)", in, want, got, err)
		}
	}
	if _, err := ParseMonth("13"); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestPeriodOrdering(t *testing.T) {
	a := Period{Year: 2025, Month: time.December}
	b := Period{Year: 2026, Month: time.January}
	if !a.Before(b) || b.Before(a) {
		t.Fatal("expected 2025-12 before 2026-01")
	}
	if !b.Contains(time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)) || b.Contains(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("Contains mismatch")
	}
}

func TestSignRule(t *testing.T) {
	amount := decimal.NewFromInt(500)
	pay := Transaction{AccountRef: "02.01.001 Salaries", Flow: ParseFlowType(" p "), Amount: amount}
	rec := Transaction{AccountRef: "01.01.001", Flow: ParseFlowType("R"), Amount: amount}
	if !pay.SignedAmount().Equal(decimal.NewFromInt(-500)) {
		t.Fatalf("payment: got %s", pay.SignedAmount())
	}
	if !rec.SignedAmount().Equal(amount) {
		t.Fatalf("receipt: got %s", rec.SignedAmount())
	}
	if pay.LeafRef() != "02.01.001" {
		t.Fatalf("leaf ref: got %q", pay.LeafRef())
	}
	if ParseFlowType("Pagamento") != FlowReceipt {
		t.Fatal("only the exact token P is a payment")
	}
}

func TestErrorsEnumerate(t *testing.T) {
	err := error(&IntegrityError{Period: Period{Year: 2026, Month: 1}, Missing: []string{"09.09.999", "09.09.998"}})
	var ie *IntegrityError
	if !errors.As(err, &ie) || len(ie.Missing) != 2 {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	want := "period 2026-01 references 2 unknown account(s): 09.09.999, 09.09.998"
	if err.Error() != want {
		t.Fatalf("got %q", err.Error())
	}
}
