package http

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"consolida/internal/core"
	"consolida/internal/ledger"
	"consolida/internal/log"
	"consolida/internal/services"
)

// JSON shapes. Amounts are decimal strings so no precision is lost.
type (
	apiPeriod struct {
		Key   string `json:"key"`
		Year  int    `json:"year"`
		Month int    `json:"month"`
		Label string `json:"label"`
	}

	apiRow struct {
		Code        string            `json:"code"`
		Description string            `json:"description"`
		Level       int               `json:"level"`
		Values      []decimal.Decimal `json:"values"`
		Accumulated decimal.Decimal   `json:"accumulated"`
		Average     decimal.Decimal   `json:"average"`
	}

	apiReport struct {
		Mode       ledger.Mode                `json:"mode"`
		Periods    []apiPeriod                `json:"periods"`
		Rows       []apiRow                   `json:"rows"`
		Net        decimal.Decimal            `json:"net"`
		Unmatched  map[string]decimal.Decimal `json:"unmatched,omitempty"`
		Missing    []apiPeriod                `json:"missing,omitempty"`
		Duplicates []string                   `json:"duplicates,omitempty"`
		Orphans    []string                   `json:"orphans,omitempty"`
	}

	apiComparisonRow struct {
		Code        string          `json:"code"`
		Description string          `json:"description"`
		Level       int             `json:"level"`
		A           decimal.Decimal `json:"a"`
		B           decimal.Decimal `json:"b"`
		Delta       decimal.Decimal `json:"delta"`
		Percent     decimal.Decimal `json:"percent"`
	}

	apiComparison struct {
		YearA int                `json:"year_a"`
		YearB int                `json:"year_b"`
		Rows  []apiComparisonRow `json:"rows"`
	}

	apiAmount struct {
		Code        string          `json:"code"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
	}

	apiFlow struct {
		Period  apiPeriod       `json:"period"`
		Revenue decimal.Decimal `json:"revenue"`
		Expense decimal.Decimal `json:"expense"`
		Net     decimal.Decimal `json:"net"`
	}

	apiDashboard struct {
		Net         decimal.Decimal `json:"net"`
		Flow        []apiFlow       `json:"flow"`
		Groups      []apiAmount     `json:"groups"`
		TopExpenses []apiAmount     `json:"top_expenses"`
	}
)

func (s *Server) apiPeriod(p core.Period) apiPeriod {
	return apiPeriod{Key: p.Key(s.naming), Year: p.Year, Month: int(p.Month), Label: periodLabel(p, s.naming)}
}

func (s *Server) apiReport(rep *services.Report) apiReport {
	m := rep.Matrix
	out := apiReport{
		Mode:       rep.Mode,
		Periods:    make([]apiPeriod, 0, len(m.Periods)),
		Rows:       make([]apiRow, 0, len(m.Rows)),
		Net:        m.NetResult(),
		Unmatched:  m.Unmatched,
		Duplicates: m.Tree.Duplicates,
		Orphans:    m.Tree.Orphans,
	}
	for _, p := range m.Periods {
		out.Periods = append(out.Periods, s.apiPeriod(p))
	}
	for _, p := range rep.Missing {
		out.Missing = append(out.Missing, s.apiPeriod(p))
	}
	for _, r := range m.Rows {
		out.Rows = append(out.Rows, apiRow{
			Code:        r.Account.Code,
			Description: r.Account.Description,
			Level:       int(r.Account.Level),
			Values:      r.Values,
			Accumulated: r.Accumulated,
			Average:     r.Average,
		})
	}
	return out
}

func amounts(in []ledger.AccountAmount) []apiAmount {
	out := make([]apiAmount, 0, len(in))
	for _, a := range in {
		out = append(out, apiAmount{Code: a.Account.Code, Description: a.Account.Description, Amount: a.Amount})
	}
	return out
}

// apiFailure writes the JSON error for a report-side failure. No data is a
// 404 so clients can tell it apart from a broken store.
func apiFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrNoData) {
		writeJSON(w, http.StatusNotFound, apiError{Error: noDataMessage})
		return
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "API request failed", log.FieldError, err)
	writeJSON(w, http.StatusBadGateway, apiError{Error: "store unavailable"})
}

func (s *Server) handleAPIPeriods(w http.ResponseWriter, r *http.Request) {
	keys, err := s.reports.PeriodKeys(r.Context())
	if err != nil {
		apiFailure(w, r, err)
		return
	}
	periods := ledger.AvailablePeriods(keys)
	out := make([]apiPeriod, 0, len(periods))
	for _, p := range periods {
		out = append(out, s.apiPeriod(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"years":   ledger.AvailableYears(keys),
		"periods": out,
	})
}

func (s *Server) handleAPICostCenters(w http.ResponseWriter, r *http.Request) {
	years, err := ParseYears(r.URL.Query(), "year")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	centers, err := s.reports.CostCenters(r.Context(), years)
	if err != nil {
		apiFailure(w, r, err)
		return
	}
	if centers == nil {
		centers = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cost_centers": centers})
}

func (s *Server) handleAPIReport(w http.ResponseWriter, r *http.Request) {
	req, err := ParseReportRequest(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	rep, err := s.reports.Build(r.Context(), req)
	if err != nil {
		apiFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.apiReport(rep))
}

func (s *Server) handleAPICompare(w http.ResponseWriter, r *http.Request) {
	req, err := ParseCompareRequest(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	cmp, err := s.reports.Compare(r.Context(), req)
	if err != nil {
		apiFailure(w, r, err)
		return
	}
	out := apiComparison{YearA: cmp.YearA, YearB: cmp.YearB, Rows: make([]apiComparisonRow, 0, len(cmp.Rows))}
	for _, row := range cmp.Rows {
		out.Rows = append(out.Rows, apiComparisonRow{
			Code:        row.Account.Code,
			Description: row.Account.Description,
			Level:       int(row.Account.Level),
			A:           row.A,
			B:           row.B,
			Delta:       row.Delta,
			Percent:     row.Percent,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := ParseReportRequest(q)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	dash, err := s.reports.Dashboard(r.Context(), req, ParseTop(q, 10))
	if err != nil {
		apiFailure(w, r, err)
		return
	}
	out := apiDashboard{
		Net:         dash.Net,
		Flow:        make([]apiFlow, 0, len(dash.Flow)),
		Groups:      amounts(dash.Groups),
		TopExpenses: amounts(dash.TopExpenses),
	}
	for _, f := range dash.Flow {
		out.Flow = append(out.Flow, apiFlow{Period: s.apiPeriod(f.Period), Revenue: f.Revenue, Expense: f.Expense, Net: f.Net})
	}
	writeJSON(w, http.StatusOK, out)
}
