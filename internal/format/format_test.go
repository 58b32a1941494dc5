package format

import (
	"testing"

	"github.com/shopspring/decimal"

	"consolida/internal/core"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0,00"},
		{"1", "1,00"},
		{"12.3", "12,30"},
		{"999.999", "1.000,00"},
		{"1234.56", "1.234,56"},
		{"1234567.8", "1.234.567,80"},
		{"-1234.56", "(1.234,56)"},
		{"-0.001", "0,00"},
		{"-100", "(100,00)"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Money(decimal.RequireFromString(tt.in))
			if got != tt.want {
				t.Errorf("Money(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMoneyWithSymbol(t *testing.T) {
	if got := MoneyWithSymbol(decimal.NewFromInt(-5)); got != "R$ (5,00)" {
		t.Errorf("MoneyWithSymbol(-5) = %q", got)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"50", "50,0%"},
		{"-12.34", "-12,3%"},
		{"0", "0,0%"},
		{"1500", "1.500,0%"},
	}
	for _, tt := range tests {
		if got := Percent(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("Percent(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClasses(t *testing.T) {
	if SignClass(decimal.NewFromInt(-1)) != "neg" || SignClass(decimal.Zero) != "zero" || SignClass(decimal.NewFromInt(2)) != "pos" {
		t.Error("SignClass mismatch")
	}
	if LevelClass(core.LevelResult) != "lvl-result" || LevelClass(core.LevelLeaf) != "lvl-leaf" {
		t.Error("LevelClass mismatch")
	}
}
