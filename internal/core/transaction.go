package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FlowType classifies a ledger row as outgoing payment or incoming receipt.
type FlowType int

const (
	FlowReceipt FlowType = iota
	FlowPayment
)

// ParseFlowType maps the export's flow column. Only "P" (any case, trimmed)
// is a payment; anything else is a receipt.
func ParseFlowType(s string) FlowType {
	if strings.EqualFold(strings.TrimSpace(s), "P") {
		return FlowPayment
	}
	return FlowReceipt
}

func (f FlowType) String() string {
	if f == FlowPayment {
		return "P"
	}
	return "R"
}

// Sign applies the flow convention: payments are negative.
func (f FlowType) Sign(amount decimal.Decimal) decimal.Decimal {
	if f == FlowPayment {
		return amount.Neg()
	}
	return amount
}

type (
	// Transaction is one raw row of an uploaded ledger export.
	Transaction struct {
		Row        int // 1-based data row in the source file
		AccountRef string
		Flow       FlowType
		Amount     decimal.Decimal
		Date       time.Time // zero when the export has no date column
		DateRaw    string    // unparseable date cell; Date stays zero
		Memo       string
		CostCenter string
	}

	// Entry is the derived, signed posting carried into aggregation.
	Entry struct {
		LeafCode   string
		Amount     decimal.Decimal
		CostCenter string
		Memo       string
	}

	// PeriodRow is an entry as stored: raw cell text, coerced on load.
	PeriodRow struct {
		LeafCode   string
		Amount     string
		CostCenter string
		Memo       string
	}
)

// LeafRef returns the first whitespace-delimited token of the account
// reference, which is the leaf account code.
func (t Transaction) LeafRef() string {
	return FirstToken(t.AccountRef)
}

// SignedAmount is -Amount for payments and Amount for receipts.
func (t Transaction) SignedAmount() decimal.Decimal {
	return t.Flow.Sign(t.Amount)
}

// Row converts the entry into its store representation.
func (e Entry) Row() PeriodRow {
	return PeriodRow{
		LeafCode:   e.LeafCode,
		Amount:     e.Amount.String(),
		CostCenter: e.CostCenter,
		Memo:       e.Memo,
	}
}

// FirstToken returns the first whitespace-delimited token of s.
func FirstToken(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// ContainsFold reports whether substr is within s, ignoring case. An empty
// substr never matches.
func ContainsFold(s, substr string) bool {
	substr = strings.TrimSpace(substr)
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
