package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"consolida/internal/core"
	"consolida/internal/sheets/memory"
)

type countingInvalidator struct {
	periods, charts int
}

func (c *countingInvalidator) InvalidatePeriods() { c.periods++ }
func (c *countingInvalidator) InvalidateChart()   { c.charts++ }

func tx(row int, ref string, flow core.FlowType, amount string, date time.Time) core.Transaction {
	return core.Transaction{
		Row:        row,
		AccountRef: ref,
		Flow:       flow,
		Amount:     decimal.RequireFromString(amount),
		Date:       date,
	}
}

func jan(day int) time.Time {
	return time.Date(2026, time.January, day, 0, 0, 0, 0, time.UTC)
}

func TestUploadService_Upload(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.DemoChart())
	inv := &countingInvalidator{}
	svc := NewUploadService(store, inv, core.NamingEnglish, "IGNORE", time.Second, nil)

	period, _ := core.NewPeriod(2026, time.January)
	res, err := svc.Upload(ctx, UploadRequest{
		Period: period,
		Transactions: []core.Transaction{
			tx(1, "01.01.001 Product A", core.FlowReceipt, "1000", jan(5)),
			tx(2, "02.01.001 Salaries", core.FlowPayment, "400", jan(28)),
			{Row: 3, AccountRef: "02.01.001", Flow: core.FlowPayment, Amount: decimal.NewFromInt(10), Memo: "ignore me"},
		},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Key != "January_2026" || res.Rows != 2 || res.Dropped != 1 {
		t.Errorf("result = %+v", res)
	}
	if !res.Net.Equal(decimal.NewFromInt(600)) {
		t.Errorf("Net = %s, want 600", res.Net)
	}
	if res.UploadID == "" {
		t.Error("UploadID should be generated")
	}
	if inv.periods != 1 {
		t.Errorf("period cache invalidations = %d, want 1", inv.periods)
	}

	rows, err := store.GetPeriod(ctx, "January_2026")
	if err != nil {
		t.Fatalf("GetPeriod() error = %v", err)
	}
	if len(rows) != 2 || rows[1].LeafCode != "02.01.001" || rows[1].Amount != "-400" {
		t.Errorf("stored rows = %+v", rows)
	}
}

func TestUploadService_Rejections(t *testing.T) {
	ctx := context.Background()
	period, _ := core.NewPeriod(2026, time.January)

	t.Run("unknown accounts", func(t *testing.T) {
		store := memory.New(memory.DemoChart())
		svc := NewUploadService(store, nil, core.NamingEnglish, "", 0, nil)
		_, err := svc.Upload(ctx, UploadRequest{Period: period, Transactions: []core.Transaction{
			tx(1, "09.09.009", core.FlowReceipt, "1", time.Time{}),
			tx(2, "01.01.001", core.FlowReceipt, "1", time.Time{}),
			tx(3, "09.09.009", core.FlowReceipt, "1", time.Time{}),
			tx(4, "01.01", core.FlowReceipt, "1", time.Time{}),
		}})
		var ierr *core.IntegrityError
		if !errors.As(err, &ierr) {
			t.Fatalf("error = %v, want IntegrityError", err)
		}
		if len(ierr.Missing) != 2 || ierr.Missing[0] != "01.01" || ierr.Missing[1] != "09.09.009" {
			t.Errorf("Missing = %v", ierr.Missing)
		}
		if _, err := store.GetPeriod(ctx, "January_2026"); !errors.Is(err, core.ErrPeriodNotFound) {
			t.Error("rejected upload must not write")
		}
	})

	t.Run("dates outside period", func(t *testing.T) {
		store := memory.New(memory.DemoChart())
		svc := NewUploadService(store, nil, core.NamingEnglish, "", 0, nil)
		_, err := svc.Upload(ctx, UploadRequest{Period: period, Transactions: []core.Transaction{
			tx(1, "01.01.001", core.FlowReceipt, "1", jan(31)),
			tx(2, "01.01.001", core.FlowReceipt, "1", time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)),
		}})
		var berr *core.PeriodBoundsError
		if !errors.As(err, &berr) {
			t.Fatalf("error = %v, want PeriodBoundsError", err)
		}
		if len(berr.Rows) != 1 || berr.Rows[0].Row != 2 {
			t.Errorf("bad rows = %+v", berr.Rows)
		}
		if _, err := store.GetPeriod(ctx, "January_2026"); !errors.Is(err, core.ErrPeriodNotFound) {
			t.Error("rejected upload must not write")
		}
	})

	t.Run("unreadable dates", func(t *testing.T) {
		store := memory.New(memory.DemoChart())
		svc := NewUploadService(store, nil, core.NamingEnglish, "", 0, nil)
		us := tx(2, "01.01.001", core.FlowReceipt, "500", time.Time{})
		us.DateRaw = "03/15/2026"
		slashed := tx(3, "02.01.001", core.FlowPayment, "100", time.Time{})
		slashed.DateRaw = "2026/03/20"
		_, err := svc.Upload(ctx, UploadRequest{Period: period, Transactions: []core.Transaction{
			tx(1, "01.01.001", core.FlowReceipt, "200", jan(10)),
			us,
			slashed,
			tx(4, "01.01.001", core.FlowReceipt, "1", time.Time{}),
		}})
		var berr *core.PeriodBoundsError
		if !errors.As(err, &berr) {
			t.Fatalf("error = %v, want PeriodBoundsError", err)
		}
		if len(berr.Rows) != 2 || berr.Rows[0].Row != 2 || berr.Rows[1].Raw != "2026/03/20" {
			t.Errorf("bad rows = %+v", berr.Rows)
		}
		if _, err := store.GetPeriod(ctx, "January_2026"); !errors.Is(err, core.ErrPeriodNotFound) {
			t.Error("rejected upload must not write")
		}
	})

	t.Run("empty", func(t *testing.T) {
		svc := NewUploadService(memory.New(memory.DemoChart()), nil, core.NamingEnglish, "", 0, nil)
		if _, err := svc.Upload(ctx, UploadRequest{Period: period}); !errors.Is(err, core.ErrEmptyUpload) {
			t.Errorf("error = %v, want ErrEmptyUpload", err)
		}
	})

	t.Run("invalid period", func(t *testing.T) {
		svc := NewUploadService(memory.New(memory.DemoChart()), nil, core.NamingEnglish, "", 0, nil)
		_, err := svc.Upload(ctx, UploadRequest{Period: core.Period{Year: 2026, Month: 13}, Transactions: []core.Transaction{tx(1, "01.01.001", core.FlowReceipt, "1", time.Time{})}})
		if !errors.Is(err, core.ErrInvalidPeriod) {
			t.Errorf("error = %v, want ErrInvalidPeriod", err)
		}
	})
}

func TestUploadService_PortugueseKeys(t *testing.T) {
	store := memory.New(memory.DemoChart())
	svc := NewUploadService(store, nil, core.NamingPortuguese, "", 0, nil)
	period, _ := core.NewPeriod(2026, time.March)
	res, err := svc.Upload(context.Background(), UploadRequest{Period: period, UploadID: "fixed",
		Transactions: []core.Transaction{tx(1, "01.01.001", core.FlowReceipt, "5", time.Time{})}})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Key != "Março_2026" || res.UploadID != "fixed" {
		t.Errorf("result = %+v", res)
	}
}

func TestUploadService_ImportAccounts(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	inv := &countingInvalidator{}
	svc := NewUploadService(store, inv, core.NamingEnglish, "", 0, nil)

	diag, err := svc.ImportAccounts(ctx, []core.AccountRow{
		{Code: "00", Description: "Result", Level: "1"},
		{Code: "01", Description: "Revenue", Level: "2"},
		{Code: "01.01", Description: "Sales", Level: "3"},
		{Code: "1/1/2001", Description: "Product   A", Level: "4.0"},
		{Code: "01.01.001", Description: "Duplicate", Level: "4"},
		{Code: "??", Description: "Bad", Level: "x"},
	})
	if err != nil {
		t.Fatalf("ImportAccounts() error = %v", err)
	}
	if len(diag.Duplicates) != 1 || len(diag.Skipped) != 1 {
		t.Errorf("diagnostics = %+v", diag)
	}
	rows, _ := store.GetAccounts(ctx)
	if len(rows) != 4 || rows[3].Code != "01.01.001" || rows[3].Description != "Product A" || rows[3].Level != "4" {
		t.Errorf("stored chart = %+v", rows)
	}
	if inv.charts != 1 {
		t.Errorf("chart invalidations = %d, want 1", inv.charts)
	}

	if _, err := svc.ImportAccounts(ctx, nil); !errors.Is(err, core.ErrEmptyUpload) {
		t.Errorf("empty import error = %v, want ErrEmptyUpload", err)
	}
}

func TestCheckBounds(t *testing.T) {
	period, _ := core.NewPeriod(2026, time.January)
	if err := CheckBounds(period, []core.Transaction{{Row: 1}, {Row: 2, Date: jan(1)}}); err != nil {
		t.Errorf("CheckBounds() = %v, want nil", err)
	}
}
