package http

import (
	"errors"
	"net/http"
	"strings"

	"consolida/internal/ledger"
	"consolida/internal/log"
	"consolida/internal/services"
)

const noDataMessage = "No data for the selected periods."

type reportPage struct {
	page
	Report *services.Report
}

type comparePage struct {
	page
	YearA      []yearOption
	YearB      []yearOption
	Comparison *ledger.Comparison
}

type dashboardPage struct {
	page
	Dashboard *services.Dashboard
	// Scale is the largest absolute group or flow value, for bar widths.
	Scale float64
}

// reportFailure maps a report error onto the page. ErrNoData is a normal
// outcome and keeps the 200 status.
func reportFailure(p *page, err error) int {
	if errors.Is(err, services.ErrNoData) {
		p.Info = noDataMessage
		return http.StatusOK
	}
	p.Error = "Could not build the report: " + err.Error()
	return http.StatusBadGateway
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := reportPage{page: s.basePage("Report", "report")}

	req, err := ParseReportRequest(r.URL.Query())
	if err != nil {
		data.Error = err.Error()
		s.withChoices(ctx, &data.page, nil)
		s.render(w, r, http.StatusBadRequest, s.pageOrFragment(r, "report.html"), data)
		return
	}
	s.fillSelection(&data.page, req)
	s.withChoices(ctx, &data.page, req.Years)

	status := http.StatusOK
	rep, err := s.reports.Build(ctx, req)
	if err != nil {
		status = reportFailure(&data.page, err)
		if status != http.StatusOK {
			log.FromContext(ctx).ErrorContext(ctx, "Report failed", log.FieldError, err, log.FieldOperation, log.OpAggregate)
		}
	}
	data.Report = rep
	s.render(w, r, status, s.pageOrFragment(r, "report.html"), data)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := comparePage{page: s.basePage("Year over year", "compare")}
	q := r.URL.Query()

	s.withChoices(ctx, &data.page, nil)
	years := make([]int, 0, len(data.Years))
	for _, y := range data.Years {
		years = append(years, y.Year)
	}

	// An empty form shows the picker, preselecting the two latest years.
	if q.Get("year_a") == "" && q.Get("year_b") == "" {
		var a, b []int
		if n := len(years); n >= 2 {
			a, b = years[n-2:n-1], years[n-1:]
		}
		data.YearA, data.YearB = yearOptions(years, a), yearOptions(years, b)
		s.render(w, r, http.StatusOK, "compare.html", data)
		return
	}

	req, err := ParseCompareRequest(q)
	if err != nil {
		data.Error = err.Error()
		data.YearA, data.YearB = yearOptions(years, nil), yearOptions(years, nil)
		s.render(w, r, http.StatusBadRequest, s.pageOrFragment(r, "compare.html"), data)
		return
	}
	data.YearA = yearOptions(years, []int{req.YearA})
	data.YearB = yearOptions(years, []int{req.YearB})
	data.Months = monthOptions(req.Months, s.naming)
	data.Levels = levelOptions(req.Levels)
	data.Selected = req.CostCenters

	status := http.StatusOK
	cmp, err := s.reports.Compare(ctx, req)
	if err != nil {
		status = reportFailure(&data.page, err)
		if status != http.StatusOK {
			log.FromContext(ctx).ErrorContext(ctx, "Comparison failed", log.FieldError, err)
		}
	}
	data.Comparison = cmp
	s.render(w, r, status, s.pageOrFragment(r, "compare.html"), data)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := dashboardPage{page: s.basePage("Dashboard", "dashboard")}
	q := r.URL.Query()

	req, err := ParseReportRequest(q)
	if err != nil {
		data.Error = err.Error()
		s.withChoices(ctx, &data.page, nil)
		s.render(w, r, http.StatusBadRequest, "dashboard.html", data)
		return
	}
	s.fillSelection(&data.page, req)
	s.withChoices(ctx, &data.page, req.Years)

	status := http.StatusOK
	dash, err := s.reports.Dashboard(ctx, req, ParseTop(q, 10))
	if err != nil {
		status = reportFailure(&data.page, err)
		if status != http.StatusOK {
			log.FromContext(ctx).ErrorContext(ctx, "Dashboard failed", log.FieldError, err)
		}
	} else {
		data.Dashboard = dash
		data.Scale = dashboardScale(dash)
	}
	s.render(w, r, status, "dashboard.html", data)
}

func (s *Server) fillSelection(p *page, req services.ReportRequest) {
	p.Months = monthOptions(req.Months, s.naming)
	p.Levels = levelOptions(req.Levels)
	p.Mode = req.Mode
	p.Selected = req.CostCenters
}

// pageOrFragment picks the table fragment for HTMX swaps and the full page
// otherwise. report.html defines "report_table", and so on.
func (s *Server) pageOrFragment(r *http.Request, name string) string {
	if isHTMX(r) {
		return strings.TrimSuffix(name, ".html") + "_table"
	}
	return name
}

func dashboardScale(d *services.Dashboard) float64 {
	max := 0.0
	for _, g := range d.Groups {
		if v := g.Amount.Abs().InexactFloat64(); v > max {
			max = v
		}
	}
	for _, f := range d.Flow {
		for _, v := range []float64{f.Revenue.InexactFloat64(), f.Expense.InexactFloat64()} {
			if v > max {
				max = v
			}
		}
	}
	return max
}
