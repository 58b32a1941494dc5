package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"consolida/internal/core"
	"consolida/internal/log"
)

// PeriodSource reads the stored rows of one period container.
type PeriodSource interface {
	GetPeriod(ctx context.Context, key string) ([]core.PeriodRow, error)
}

// selectAll are cost-center filter values meaning "no filter".
var selectAll = map[string]struct{}{"*": {}, "all": {}, "todos": {}, "todas": {}}

// Filter narrows the rows carried into aggregation.
type Filter struct {
	// CostCenters keeps only rows tagged with one of these centers, compared
	// case-insensitively. Empty or containing a select-all value keeps all.
	CostCenters []string
	// ExcludeMemo drops rows whose memo contains this marker, ignoring case.
	ExcludeMemo string
}

// AllCostCenters reports whether the cost-center filter is a pass-through.
func (f Filter) AllCostCenters() bool {
	if len(f.CostCenters) == 0 {
		return true
	}
	for _, c := range f.CostCenters {
		if _, ok := selectAll[strings.ToLower(strings.TrimSpace(c))]; ok {
			return true
		}
	}
	return false
}

func (f Filter) keepCostCenter(cc string) bool {
	if f.AllCostCenters() {
		return true
	}
	cc = strings.TrimSpace(cc)
	for _, want := range f.CostCenters {
		if strings.EqualFold(strings.TrimSpace(want), cc) {
			return true
		}
	}
	return false
}

func (f Filter) excluded(memo string) bool {
	return core.ContainsFold(memo, f.ExcludeMemo)
}

// Loader fetches period rows and turns them into entries.
type Loader struct {
	source      PeriodSource
	naming      core.Naming
	concurrency int
	logger      *log.Logger
}

// NewLoader builds a loader. concurrency bounds parallel period fetches.
func NewLoader(source PeriodSource, naming core.Naming, concurrency int, logger *log.Logger) *Loader {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Loader{
		source:      source,
		naming:      naming,
		concurrency: concurrency,
		logger:      logger.WithComponent(log.ComponentLedger),
	}
}

// LoadPeriod reads one period container. The key in the configured naming is
// tried first, then the other language, so workbooks written under either
// naming stay readable. A missing container yields core.ErrPeriodNotFound.
// Unparseable amounts count as zero.
func (l *Loader) LoadPeriod(ctx context.Context, p core.Period, f Filter) ([]core.Entry, error) {
	var err error
	for _, key := range l.keys(p) {
		var rows []core.PeriodRow
		rows, err = l.source.GetPeriod(ctx, key)
		switch {
		case err == nil:
			return Entries(rows, f), nil
		case !errors.Is(err, core.ErrPeriodNotFound):
			return nil, fmt.Errorf("load period %s: %w", key, err)
		}
	}
	return nil, err
}

func (l *Loader) keys(p core.Period) []string {
	keys := []string{p.Key(l.naming)}
	for _, n := range []core.Naming{core.NamingEnglish, core.NamingPortuguese} {
		if k := p.Key(n); k != keys[0] {
			keys = append(keys, k)
		}
	}
	return keys
}

// Entries converts stored rows, applying the memo and cost-center filters.
func Entries(rows []core.PeriodRow, f Filter) []core.Entry {
	out := make([]core.Entry, 0, len(rows))
	for _, r := range rows {
		if f.excluded(r.Memo) || !f.keepCostCenter(r.CostCenter) {
			continue
		}
		out = append(out, core.Entry{
			LeafCode:   core.NormalizeCode(core.FirstToken(r.LeafCode), core.LevelLeaf),
			Amount:     core.CoerceAmount(r.Amount),
			CostCenter: strings.TrimSpace(r.CostCenter),
			Memo:       r.Memo,
		})
	}
	return out
}

// LoadPeriods fetches every period concurrently. Periods without a container
// are returned in missing rather than as an error.
func (l *Loader) LoadPeriods(ctx context.Context, periods []core.Period, f Filter) (map[core.Period][]core.Entry, []core.Period, error) {
	var (
		mu      sync.Mutex
		out     = make(map[core.Period][]core.Entry, len(periods))
		missing []core.Period
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, p := range periods {
		g.Go(func() error {
			entries, err := l.LoadPeriod(gctx, p, f)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, core.ErrPeriodNotFound):
				l.logger.InfoContext(gctx, "Period has no data", log.FieldPeriodKey, p.Key(l.naming))
				missing = append(missing, p)
				return nil
			case err != nil:
				return err
			}
			out[p] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].Before(missing[j]) })
	return out, missing, nil
}

// DeriveOptions controls how upload rows become entries.
type DeriveOptions struct {
	ExcludeMemo string
}

// Derive converts one uploaded transaction into a signed entry. It reports
// false for rows dropped by the memo marker and for blank rows.
func Derive(tx core.Transaction, opts DeriveOptions) (core.Entry, bool) {
	if core.ContainsFold(tx.Memo, opts.ExcludeMemo) {
		return core.Entry{}, false
	}
	ref := tx.LeafRef()
	if ref == "" && tx.Amount.IsZero() {
		return core.Entry{}, false
	}
	return core.Entry{
		LeafCode:   core.NormalizeCode(ref, core.LevelLeaf),
		Amount:     tx.SignedAmount(),
		CostCenter: strings.TrimSpace(tx.CostCenter),
		Memo:       strings.TrimSpace(tx.Memo),
	}, true
}

// CostCenters returns the distinct cost-center tags found in periods, sorted.
func (l *Loader) CostCenters(ctx context.Context, periods []core.Period) ([]string, error) {
	byPeriod, _, err := l.LoadPeriods(ctx, periods, Filter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, entries := range byPeriod {
		for _, e := range entries {
			if e.CostCenter != "" {
				seen[e.CostCenter] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}
