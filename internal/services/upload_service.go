package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"consolida/internal/adapters"
	"consolida/internal/core"
	"consolida/internal/ledger"
	"consolida/internal/log"
	"consolida/internal/sheets"
)

// UploadStore is the store side an upload touches.
type UploadStore interface {
	sheets.AccountReader
	sheets.AccountWriter
	sheets.PeriodWriter
}

// Invalidator drops cached reads after a write.
type Invalidator interface {
	InvalidatePeriods()
	InvalidateChart()
}

type (
	// UploadRequest is one parsed export destined for a period.
	UploadRequest struct {
		Period       core.Period
		Transactions []core.Transaction
		UploadID     string
	}

	// UploadResult summarizes a stored upload.
	UploadResult struct {
		UploadID string
		Period   core.Period
		Key      string
		Rows     int
		Dropped  int
		Net      decimal.Decimal
	}
)

// UploadService validates uploads against the chart and writes them to the
// period container. A rejected upload writes nothing.
type UploadService struct {
	store       UploadStore
	invalidator Invalidator
	naming      core.Naming
	excludeMemo string
	timeout     time.Duration
	logger      *log.Logger
	audit       *log.StructuredLogger
}

func NewUploadService(store UploadStore, invalidator Invalidator, naming core.Naming, excludeMemo string, timeout time.Duration, logger *log.Logger) *UploadService {
	if logger == nil {
		logger = log.Discard()
	}
	if !naming.Valid() {
		naming = core.NamingEnglish
	}
	return &UploadService{
		store:       store,
		invalidator: invalidator,
		naming:      naming,
		excludeMemo: excludeMemo,
		timeout:     timeout,
		logger:      logger.WithComponent(log.ComponentUpload),
		audit:       log.NewStructuredLogger(logger),
	}
}

func (s *UploadService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Upload checks date bounds, derives signed entries, rejects codes absent
// from the chart and replaces the period container.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := req.Period.Validate(); err != nil {
		return nil, err
	}
	if len(req.Transactions) == 0 {
		return nil, core.ErrEmptyUpload
	}
	if req.UploadID == "" {
		req.UploadID = uuid.NewString()
	}
	key := req.Period.Key(s.naming)
	logger := s.logger.With(log.FieldUploadID, req.UploadID, log.FieldPeriodKey, key)

	if err := CheckBounds(req.Period, req.Transactions); err != nil {
		logger.WarnContext(ctx, "Upload rejected: rows outside period", log.FieldError, err)
		return nil, err
	}

	opts := ledger.DeriveOptions{ExcludeMemo: s.excludeMemo}
	entries := make([]core.Entry, 0, len(req.Transactions))
	for _, tx := range req.Transactions {
		if e, ok := ledger.Derive(tx, opts); ok {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return nil, core.ErrEmptyUpload
	}

	tree, err := s.chart(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(entries))
	for i, e := range entries {
		codes[i] = e.LeafCode
	}
	if missing := tree.MissingLeaves(codes); len(missing) > 0 {
		ierr := &core.IntegrityError{Period: req.Period, Missing: missing}
		logger.WarnContext(ctx, "Upload rejected: unknown accounts", log.FieldCount, len(missing))
		return nil, ierr
	}

	rows := make([]core.PeriodRow, len(entries))
	net := decimal.Zero
	for i, e := range entries {
		rows[i] = e.Row()
		net = net.Add(e.Amount)
	}

	wctx, cancel := s.withTimeout(adapters.WithUploadID(ctx, req.UploadID))
	defer cancel()
	if err := s.store.PutPeriod(wctx, key, rows); err != nil {
		s.audit.LogError(ctx, "Period write failed", err, log.ComponentUpload, log.OpUpload,
			log.NewFields().WithPeriod(key, len(rows)))
		return nil, fmt.Errorf("store period %s: %w", key, err)
	}
	if s.invalidator != nil {
		s.invalidator.InvalidatePeriods()
	}

	s.audit.LogPeriodStored(ctx, key, len(rows), req.UploadID)

	return &UploadResult{
		UploadID: req.UploadID,
		Period:   req.Period,
		Key:      key,
		Rows:     len(rows),
		Dropped:  len(req.Transactions) - len(rows),
		Net:      net,
	}, nil
}

// ImportAccounts replaces the chart of accounts. Rows that would not form a
// usable tree are reported back, not written.
func (s *UploadService) ImportAccounts(ctx context.Context, rows []core.AccountRow) (ledger.TreeDiagnostics, error) {
	tree := ledger.NewTree(rows)
	diag := tree.Diagnostics()
	if tree.Len() == 0 {
		return diag, fmt.Errorf("import accounts: %w", core.ErrEmptyUpload)
	}

	normalized := make([]core.AccountRow, 0, tree.Len())
	for _, a := range tree.Accounts() {
		normalized = append(normalized, a.Row())
	}

	uploadID := uuid.NewString()
	wctx, cancel := s.withTimeout(adapters.WithUploadID(ctx, uploadID))
	defer cancel()
	if err := s.store.ReplaceAccounts(wctx, normalized); err != nil {
		return diag, fmt.Errorf("replace accounts: %w", err)
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateChart()
	}

	s.logger.InfoContext(ctx, "Chart of accounts replaced",
		log.FieldOperation, log.OpReplace,
		log.FieldUploadID, uploadID,
		log.FieldRows, len(normalized),
		"duplicates", len(diag.Duplicates),
		"skipped", len(diag.Skipped))
	return diag, nil
}

func (s *UploadService) chart(ctx context.Context) (*ledger.Tree, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.store.GetAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chart of accounts: %w", err)
	}
	return ledger.NewTree(rows), nil
}

// CheckBounds rejects dated rows outside the period's month and rows whose
// date cell could not be parsed. Rows with an empty date cell pass.
func CheckBounds(p core.Period, txs []core.Transaction) error {
	var bad []core.BadDate
	for _, tx := range txs {
		switch {
		case tx.DateRaw != "":
			bad = append(bad, core.BadDate{Row: tx.Row, Raw: tx.DateRaw})
		case tx.Date.IsZero() || p.Contains(tx.Date):
		default:
			bad = append(bad, core.BadDate{Row: tx.Row, Date: tx.Date})
		}
	}
	if len(bad) > 0 {
		return &core.PeriodBoundsError{Period: p, Rows: bad}
	}
	return nil
}
