package ledger

import (
	"sort"
	"time"

	"consolida/internal/core"
)

// AvailablePeriods parses container names into periods, ignoring anything
// that is not a "{Month}_{Year}" key (the chart sheet, scratch tabs).
// The result is chronological and free of duplicates.
func AvailablePeriods(keys []string) []core.Period {
	seen := make(map[core.Period]struct{}, len(keys))
	out := make([]core.Period, 0, len(keys))
	for _, k := range keys {
		p, err := core.ParsePeriodKey(k)
		if err != nil {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// AvailableYears lists the years with at least one period, ascending.
func AvailableYears(keys []string) []int {
	var years []int
	for _, p := range AvailablePeriods(keys) {
		if len(years) == 0 || years[len(years)-1] != p.Year {
			years = append(years, p.Year)
		}
	}
	return years
}

// AvailableMonths lists the months stored for year, in calendar order.
func AvailableMonths(keys []string, year int) []time.Month {
	var months []time.Month
	for _, p := range AvailablePeriods(keys) {
		if p.Year == year {
			months = append(months, p.Month)
		}
	}
	return months
}

// ResolvePeriods intersects the requested years and months with the stored
// periods. An empty years or months list selects every value. The result is
// ordered by year, then calendar month, whatever the request order. An empty
// result means no data for the selection and is not an error.
func ResolvePeriods(years []int, months []time.Month, available []string) []core.Period {
	wantYear := make(map[int]bool, len(years))
	for _, y := range years {
		wantYear[y] = true
	}
	wantMonth := make(map[time.Month]bool, len(months))
	for _, m := range months {
		wantMonth[m] = true
	}

	out := []core.Period{}
	for _, p := range AvailablePeriods(available) {
		if len(years) > 0 && !wantYear[p.Year] {
			continue
		}
		if len(months) > 0 && !wantMonth[p.Month] {
			continue
		}
		out = append(out, p)
	}
	return out
}
