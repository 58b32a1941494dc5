package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrPeriodNotFound = errors.New("period not found")
	ErrInvalidPeriod  = errors.New("invalid period")
	ErrInvalidMonth   = errors.New("invalid month")
	ErrInvalidLevel   = errors.New("invalid account level")
	ErrEmptyCode      = errors.New("empty account code")
	ErrEmptyUpload    = errors.New("upload has no rows")
	ErrInvalidAmount  = errors.New("invalid amount")
)

// IntegrityError rejects a period write that references account codes absent
// from the chart of accounts.
type IntegrityError struct {
	Period  Period
	Missing []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("period %s references %d unknown account(s): %s",
		e.Period, len(e.Missing), strings.Join(e.Missing, ", "))
}

// BadDate is a row whose date lies outside the declared period or could not
// be read at all. Raw is set only in the second case.
type BadDate struct {
	Row  int
	Date time.Time
	Raw  string
}

// Format renders the offending date with layout, or the raw cell quoted when
// it never parsed.
func (b BadDate) Format(layout string) string {
	if b.Raw != "" {
		return fmt.Sprintf("unreadable %q", b.Raw)
	}
	return b.Date.Format(layout)
}

// PeriodBoundsError rejects a period write containing rows dated outside the
// selected month.
type PeriodBoundsError struct {
	Period Period
	Rows   []BadDate
}

func (e *PeriodBoundsError) Error() string {
	parts := make([]string, 0, len(e.Rows))
	for _, r := range e.Rows {
		parts = append(parts, fmt.Sprintf("row %d (%s)", r.Row, r.Format("2006-01-02")))
	}
	return fmt.Sprintf("%d row(s) outside period %s: %s", len(e.Rows), e.Period, strings.Join(parts, ", "))
}
