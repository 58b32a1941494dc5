package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Naming selects the month names used in period keys.
type Naming string

const (
	NamingEnglish    Naming = "en"
	NamingPortuguese Naming = "pt"
)

var monthNames = map[Naming][12]string{
	NamingEnglish: {"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"},
	NamingPortuguese: {"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
		"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro"},
}

// Valid reports whether n is a known naming.
func (n Naming) Valid() bool {
	_, ok := monthNames[n]
	return ok
}

// MonthName returns the month name for n, falling back to English.
func MonthName(m time.Month, n Naming) string {
	names, ok := monthNames[n]
	if !ok {
		names = monthNames[NamingEnglish]
	}
	if m < time.January || m > time.December {
		return ""
	}
	return names[m-1]
}

// ParseMonth accepts a month number ("1", "01"), a full month name in any
// supported naming, or its first three letters.
func ParseMonth(s string) (time.Month, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidMonth, n)
		}
		return time.Month(n), nil
	}
	for _, names := range monthNames {
		for i, name := range names {
			if strings.EqualFold(s, name) {
				return time.Month(i + 1), nil
			}
		}
	}
	if r := []rune(s); len(r) == 3 {
		for _, names := range monthNames {
			for i, name := range names {
				if strings.EqualFold(s, string([]rune(name)[:3])) {
					return time.Month(i + 1), nil
				}
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
}

// Period identifies one monthly ledger upload.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod validates and builds a period.
func NewPeriod(year int, month time.Month) (Period, error) {
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month)
	}
	if p.Year < 1900 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	return nil
}

// Key returns the store container name, e.g. "January_2026".
func (p Period) Key(n Naming) string {
	return MonthName(p.Month, n) + "_" + strconv.Itoa(p.Year)
}

// String returns "2026-01".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Before orders periods chronologically.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Contains reports whether t falls inside the period's calendar month.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// ParsePeriodKey parses "{Month}_{Year}" in any supported naming.
func ParsePeriodKey(key string) (Period, error) {
	key = strings.TrimSpace(key)
	i := strings.LastIndexByte(key, '_')
	if i <= 0 || i == len(key)-1 {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	year, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	name := key[:i]
	// Numeric months are not valid keys.
	if _, err := strconv.Atoi(name); err == nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	month, err := ParseMonth(name)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	return NewPeriod(year, month)
}
