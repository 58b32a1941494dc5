// Package http provides HTTP server and handler implementations.
//
// This file turns query strings and form values into service requests.
// List parameters may repeat (year=2025&year=2026) or be comma separated
// (year=2025,2026); both forms can be mixed.

package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"consolida/internal/core"
	"consolida/internal/ledger"
	"consolida/internal/services"
)

// listValues splits every value of key on commas and drops blanks.
func listValues(values url.Values, key string) []string {
	var out []string
	for _, v := range values[key] {
		for _, part := range strings.Split(v, ",") {
			if part = sanitizeInput(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseYears reads the year list; an empty list means every year.
func ParseYears(values url.Values, key string) ([]int, error) {
	raw := listValues(values, key)
	years := make([]int, 0, len(raw))
	for _, s := range raw {
		y, err := strconv.Atoi(s)
		if err != nil || y < 1900 || y > 9999 {
			return nil, fmt.Errorf("%w: year %q", core.ErrInvalidPeriod, s)
		}
		years = append(years, y)
	}
	return years, nil
}

// ParseMonths accepts month numbers and English or Portuguese names.
func ParseMonths(values url.Values) ([]time.Month, error) {
	raw := listValues(values, "month")
	months := make([]time.Month, 0, len(raw))
	for _, s := range raw {
		m, err := core.ParseMonth(s)
		if err != nil {
			return nil, err
		}
		months = append(months, m)
	}
	return months, nil
}

// ParseLevels reads hierarchy levels 1 to 4.
func ParseLevels(values url.Values) ([]core.Level, error) {
	raw := listValues(values, "level")
	levels := make([]core.Level, 0, len(raw))
	for _, s := range raw {
		l, err := core.ParseLevel(s)
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, nil
}

// ParseReportRequest builds a report request from query parameters:
// year, month, cost_center, level and mode.
func ParseReportRequest(values url.Values) (services.ReportRequest, error) {
	var req services.ReportRequest
	var err error
	if req.Years, err = ParseYears(values, "year"); err != nil {
		return req, err
	}
	if req.Months, err = ParseMonths(values); err != nil {
		return req, err
	}
	if req.Levels, err = ParseLevels(values); err != nil {
		return req, err
	}
	if req.Mode, err = ledger.ParseMode(values.Get("mode")); err != nil {
		return req, err
	}
	req.CostCenters = listValues(values, "cost_center")
	return req, nil
}

// ParseCompareRequest requires year_a and year_b; months, cost centers and
// levels are read as for a report.
func ParseCompareRequest(values url.Values) (services.CompareRequest, error) {
	var req services.CompareRequest
	a, err := ParseYears(values, "year_a")
	if err != nil {
		return req, err
	}
	b, err := ParseYears(values, "year_b")
	if err != nil {
		return req, err
	}
	if len(a) != 1 || len(b) != 1 {
		return req, fmt.Errorf("%w: year_a and year_b must each name one year", core.ErrInvalidPeriod)
	}
	req.YearA, req.YearB = a[0], b[0]
	if req.Months, err = ParseMonths(values); err != nil {
		return req, err
	}
	if req.Levels, err = ParseLevels(values); err != nil {
		return req, err
	}
	req.CostCenters = listValues(values, "cost_center")
	return req, nil
}

// ParseUploadPeriod reads the single year and month an upload is declared
// for.
func ParseUploadPeriod(values url.Values) (core.Period, error) {
	ys := strings.TrimSpace(values.Get("year"))
	ms := strings.TrimSpace(values.Get("month"))
	if ys == "" || ms == "" {
		return core.Period{}, fmt.Errorf("%w: year and month are required", core.ErrInvalidPeriod)
	}
	year, err := strconv.Atoi(ys)
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: year %q", core.ErrInvalidPeriod, ys)
	}
	month, err := core.ParseMonth(ms)
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: %v", core.ErrInvalidPeriod, err)
	}
	return core.NewPeriod(year, month)
}

// ParseTop reads the dashboard's top-N size, defaulting to def and capped
// at 50.
func ParseTop(values url.Values, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(values.Get("top")))
	if err != nil || n <= 0 {
		return def
	}
	if n > 50 {
		return 50
	}
	return n
}
