package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"consolida/internal/backend"
	"consolida/internal/core"
	"consolida/internal/ledger"
	"consolida/internal/log"
)

// page carries what the shared layout and the selection form need.
type page struct {
	Title       string
	Active      string
	Version     string
	Years       []yearOption
	Months      []monthOption
	Levels      []levelOption
	Mode        ledger.Mode
	CostCenters []string
	Selected    []string
	Error       string
	Info        string
}

// yearPeriods groups stored periods under their year for the index page.
type yearPeriods struct {
	Year    int
	Periods []core.Period
}

type indexPage struct {
	page
	Stored      []yearPeriods
	UploadYear  int
	UploadMonth []monthOption
}

func (s *Server) basePage(title, active string) page {
	return page{
		Title:   title,
		Active:  active,
		Version: s.version,
		Months:  monthOptions(nil, s.naming),
		Levels:  levelOptions(nil),
		Mode:    ledger.ModeAccumulated,
	}
}

// withChoices fills the pickers from the store. Failures are logged and
// leave the pickers empty; the page still renders.
func (s *Server) withChoices(ctx context.Context, p *page, years []int) {
	available, err := s.reports.Years(ctx)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Could not list years", log.FieldError, err)
		return
	}
	p.Years = yearOptions(available, years)
	centers, err := s.reports.CostCenters(ctx, years)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Could not list cost centers", log.FieldError, err)
		return
	}
	p.CostCenters = centers
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now()
	data := indexPage{
		page:        s.basePage("Consolidation", "index"),
		UploadYear:  now.Year(),
		UploadMonth: monthOptions([]time.Month{now.Month()}, s.naming),
	}

	keys, err := s.reports.PeriodKeys(ctx)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Period list error", log.FieldError, err)
		data.Error = "Could not read the stored periods."
	}
	for _, p := range ledger.AvailablePeriods(keys) {
		if n := len(data.Stored); n == 0 || data.Stored[n-1].Year != p.Year {
			data.Stored = append(data.Stored, yearPeriods{Year: p.Year})
		}
		last := &data.Stored[len(data.Stored)-1]
		last.Periods = append(last.Periods, p)
	}
	if err == nil {
		s.withChoices(ctx, &data.page, nil)
	}
	s.render(w, r, http.StatusOK, "index.html", data)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"version":   s.version,
	})
}

// handleReady checks templates and the store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]string{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.pingStore(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) pingStore(ctx context.Context) error {
	switch st := s.store.(type) {
	case nil:
		return fmt.Errorf("not configured")
	case backend.Pinger:
		return st.Ping(ctx)
	default:
		_, err := st.ListPeriods(ctx)
		return err
	}
}

// handleMetrics writes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.limiter.GetMetrics()
	secMetrics := s.detector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("uploads_stored_total", "counter", "Periods stored through upload", s.uploadsOK.Load())
	metric("uploads_rejected_total", "counter", "Uploads rejected by validation", s.uploadsDenied.Load())
	metric("rate_limit_rejections_total", "counter", "Requests rejected by the rate limiter", limitMetrics.Rejected)
	metric("rate_limit_clients", "gauge", "Clients tracked by the rate limiter", limitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests flagged as suspicious", secMetrics.SuspiciousRequests)
	metric("blocked_requests_total", "counter", "Suspicious requests rejected", secMetrics.BlockedRequests)
	metric("uptime_seconds", "gauge", "Process uptime in seconds", int64(time.Since(s.started).Seconds()))
}
