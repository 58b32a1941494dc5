package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"consolida/internal/cache"
	"consolida/internal/core"
	"consolida/internal/ledger"
	"consolida/internal/log"
	"consolida/internal/sheets"
)

// ErrNoData means the selection resolved to no stored period. Callers show it
// as an informational message.
var ErrNoData = errors.New("no data for the selected periods")

const (
	periodsKey = "periods"
	chartKey   = "chart"
)

// ReportReader is the read side a report needs.
type ReportReader interface {
	sheets.AccountReader
	sheets.PeriodReader
	sheets.PeriodLister
}

// ReportConfig tunes the report service.
type ReportConfig struct {
	Naming           core.Naming
	ExcludeMemo      string
	FetchConcurrency int
	StoreTimeout     time.Duration
	CacheTTL         time.Duration
}

type (
	// ReportRequest selects periods, rows and the summary column.
	ReportRequest struct {
		Years       []int
		Months      []time.Month
		CostCenters []string
		Levels      []core.Level
		Mode        ledger.Mode
	}

	// Report is an aggregated matrix plus what was asked and what was missing.
	Report struct {
		Request ReportRequest
		Mode    ledger.Mode
		Matrix  *ledger.Matrix
		// Missing lists resolved periods whose container vanished between
		// listing and loading.
		Missing []core.Period
	}

	// CompareRequest selects two years over the same months.
	CompareRequest struct {
		YearA       int
		YearB       int
		Months      []time.Month
		CostCenters []string
		Levels      []core.Level
	}

	// Dashboard holds the chart series built from one matrix.
	Dashboard struct {
		Report      *Report
		Net         decimal.Decimal
		Flow        []ledger.FlowPoint
		Groups      []ledger.AccountAmount
		TopExpenses []ledger.AccountAmount
	}
)

// ReportService resolves periods, loads entries and aggregates them against
// the chart of accounts.
type ReportService struct {
	store   ReportReader
	loader  *ledger.Loader
	cfg     ReportConfig
	logger  *log.Logger
	periods *cache.LRUCache[[]string]
	charts  *cache.LRUCache[*ledger.Tree]
	centers *cache.LRUCache[[]string]
}

func NewReportService(store ReportReader, cfg ReportConfig, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Discard()
	}
	if !cfg.Naming.Valid() {
		cfg.Naming = core.NamingEnglish
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &ReportService{
		store:   store,
		loader:  ledger.NewLoader(store, cfg.Naming, cfg.FetchConcurrency, logger),
		cfg:     cfg,
		logger:  logger.WithComponent(log.ComponentReport),
		periods: cache.NewLRUCache[[]string](1, cfg.CacheTTL),
		charts:  cache.NewLRUCache[*ledger.Tree](1, cfg.CacheTTL),
		centers: cache.NewLRUCache[[]string](64, cfg.CacheTTL),
	}
}

// Caches exposes the service caches for periodic cleanup.
func (s *ReportService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.periods, s.charts, s.centers}
}

// InvalidatePeriods drops cached period keys and cost centers after a write.
func (s *ReportService) InvalidatePeriods() {
	s.periods.Purge()
	s.centers.Purge()
}

// InvalidateChart drops the cached chart of accounts.
func (s *ReportService) InvalidateChart() {
	s.charts.Purge()
}

func (s *ReportService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// PeriodKeys returns the stored container names, cached for the TTL.
func (s *ReportService) PeriodKeys(ctx context.Context) ([]string, error) {
	return cache.GetOrLoad[[]string](s.periods, periodsKey, func() ([]string, error) {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		keys, err := s.store.ListPeriods(ctx)
		if err != nil {
			return nil, fmt.Errorf("list periods: %w", err)
		}
		return keys, nil
	})
}

// Years lists years with stored data.
func (s *ReportService) Years(ctx context.Context) ([]int, error) {
	keys, err := s.PeriodKeys(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.AvailableYears(keys), nil
}

// Months lists the stored months of year.
func (s *ReportService) Months(ctx context.Context, year int) ([]time.Month, error) {
	keys, err := s.PeriodKeys(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.AvailableMonths(keys, year), nil
}

// Chart returns the chart of accounts tree, cached for the TTL.
func (s *ReportService) Chart(ctx context.Context) (*ledger.Tree, error) {
	return cache.GetOrLoad[*ledger.Tree](s.charts, chartKey, func() (*ledger.Tree, error) {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		rows, err := s.store.GetAccounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("read chart of accounts: %w", err)
		}
		tree := ledger.NewTree(rows)
		s.logDiagnostics(ctx, tree.Diagnostics())
		return tree, nil
	})
}

// CostCenters returns the distinct cost centers of the given years, or of
// every stored year when none are given.
func (s *ReportService) CostCenters(ctx context.Context, years []int) ([]string, error) {
	keys, err := s.PeriodKeys(ctx)
	if err != nil {
		return nil, err
	}
	periods := ledger.ResolvePeriods(years, nil, keys)
	return cache.GetOrLoad[[]string](s.centers, yearsKey(years), func() ([]string, error) {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		return s.loader.CostCenters(ctx, periods)
	})
}

// Build runs the report pipeline. An empty selection returns ErrNoData.
func (s *ReportService) Build(ctx context.Context, req ReportRequest) (*Report, error) {
	mode := req.Mode
	if mode == "" {
		mode = ledger.ModeAccumulated
	}
	matrix, missing, err := s.matrix(ctx, req.Years, req.Months, req.CostCenters)
	if err != nil {
		return nil, err
	}
	return &Report{
		Request: req,
		Mode:    mode,
		Matrix:  matrix.FilterLevels(req.Levels...),
		Missing: missing,
	}, nil
}

// Compare builds the same months for two years and pairs their accumulated
// values. It fails with ErrNoData only when neither year has data.
func (s *ReportService) Compare(ctx context.Context, req CompareRequest) (*ledger.Comparison, error) {
	a, _, errA := s.matrix(ctx, []int{req.YearA}, req.Months, req.CostCenters)
	b, _, errB := s.matrix(ctx, []int{req.YearB}, req.Months, req.CostCenters)
	switch {
	case errA != nil && !errors.Is(errA, ErrNoData):
		return nil, errA
	case errB != nil && !errors.Is(errB, ErrNoData):
		return nil, errB
	case errA != nil && errB != nil:
		return nil, ErrNoData
	}

	if a == nil || b == nil {
		tree, err := s.Chart(ctx)
		if err != nil {
			return nil, err
		}
		empty := ledger.Aggregate(tree, nil, nil)
		if a == nil {
			a = empty
		}
		if b == nil {
			b = empty
		}
	}
	return ledger.CompareYears(req.YearA, a, req.YearB, b).FilterLevels(req.Levels...), nil
}

// Dashboard builds a full-level report and derives the chart series.
func (s *ReportService) Dashboard(ctx context.Context, req ReportRequest, top int) (*Dashboard, error) {
	levels := req.Levels
	req.Levels = nil
	rep, err := s.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{
		Net:         rep.Matrix.NetResult(),
		Flow:        ledger.RevenueVsExpense(rep.Matrix),
		Groups:      ledger.GroupBreakdown(rep.Matrix),
		TopExpenses: ledger.TopExpenses(rep.Matrix, top),
	}
	rep.Request.Levels = levels
	rep.Matrix = rep.Matrix.FilterLevels(levels...)
	d.Report = rep
	return d, nil
}

func (s *ReportService) matrix(ctx context.Context, years []int, months []time.Month, centers []string) (*ledger.Matrix, []core.Period, error) {
	keys, err := s.PeriodKeys(ctx)
	if err != nil {
		return nil, nil, err
	}
	periods := ledger.ResolvePeriods(years, months, keys)
	if len(periods) == 0 {
		s.logger.InfoContext(ctx, "Selection has no stored periods",
			"years", years, "months", months)
		return nil, nil, ErrNoData
	}

	tree, err := s.Chart(ctx)
	if err != nil {
		return nil, nil, err
	}

	filter := ledger.Filter{CostCenters: centers, ExcludeMemo: s.cfg.ExcludeMemo}
	lctx, cancel := s.withTimeout(ctx)
	defer cancel()
	byPeriod, missing, err := s.loader.LoadPeriods(lctx, periods, filter)
	if err != nil {
		return nil, nil, err
	}
	if len(missing) > 0 {
		// Stale period list; drop it so the next request relists.
		s.periods.Purge()
		periods = present(periods, missing)
		if len(periods) == 0 {
			return nil, missing, ErrNoData
		}
	}

	m := ledger.Aggregate(tree, byPeriod, periods)
	if codes := m.UnmatchedCodes(); len(codes) > 0 {
		s.logger.WarnContext(ctx, "Entries reference unknown accounts",
			log.FieldCount, len(codes),
			log.FieldAccountCode, strings.Join(codes, ","))
	}
	s.logger.DebugContext(ctx, "Report aggregated",
		log.FieldOperation, log.OpAggregate,
		log.FieldCount, len(periods),
		log.FieldRows, len(m.Rows))
	return m, missing, nil
}

func (s *ReportService) logDiagnostics(ctx context.Context, d ledger.TreeDiagnostics) {
	for _, code := range d.Duplicates {
		s.logger.WarnContext(ctx, "Duplicate account code ignored", log.FieldAccountCode, code)
	}
	for _, code := range d.Orphans {
		s.logger.WarnContext(ctx, "Account has no parent in chart", log.FieldAccountCode, code)
	}
	for _, r := range d.Skipped {
		s.logger.WarnContext(ctx, "Chart row skipped", log.FieldAccountCode, r.Code, "level", r.Level)
	}
}

// present returns periods minus missing, keeping order.
func present(periods, missing []core.Period) []core.Period {
	gone := make(map[core.Period]bool, len(missing))
	for _, p := range missing {
		gone[p] = true
	}
	out := make([]core.Period, 0, len(periods))
	for _, p := range periods {
		if !gone[p] {
			out = append(out, p)
		}
	}
	return out
}

func yearsKey(years []int) string {
	if len(years) == 0 {
		return "*"
	}
	sorted := append([]int(nil), years...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, y := range sorted {
		parts[i] = strconv.Itoa(y)
	}
	return strings.Join(parts, ",")
}
