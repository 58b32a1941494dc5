package worker

import (
	"context"
	"errors"
	"testing"

	"consolida/internal/amqp"
	"consolida/internal/core"
	"consolida/internal/sheets/memory"
	"consolida/internal/storage"
)

type fakeSource struct {
	*memory.Store
	version   int64
	bumpOnGet bool
	synced    map[string]int64
	errored   []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		Store:   memory.New(memory.DemoChart()),
		version: 3,
		synced:  map[string]int64{},
	}
}

func (f *fakeSource) Version(_ context.Context, _ string) (int64, error) {
	return f.version, nil
}

func (f *fakeSource) GetPeriod(ctx context.Context, key string) ([]core.PeriodRow, error) {
	rows, err := f.Store.GetPeriod(ctx, key)
	if f.bumpOnGet {
		f.version++
	}
	return rows, err
}

func (f *fakeSource) MarkSynced(_ context.Context, name string, version int64) error {
	if version != f.version {
		return storage.ErrVersionChanged
	}
	f.synced[name] = version
	return nil
}

func (f *fakeSource) MarkSyncError(_ context.Context, name string) error {
	f.errored = append(f.errored, name)
	return nil
}

type failingTarget struct{}

func (failingTarget) ReplaceAccounts(context.Context, []core.AccountRow) error {
	return errors.New("sheets down")
}

func (failingTarget) PutPeriod(context.Context, string, []core.PeriodRow) error {
	return errors.New("sheets down")
}

func TestSyncPeriod(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	rows := []core.PeriodRow{{LeafCode: "01.01.001", Amount: "100"}}
	if err := src.Store.PutPeriod(ctx, "January_2026", rows); err != nil {
		t.Fatalf("seed: %v", err)
	}
	target := memory.New(nil)

	w := NewSyncWorker(src, target, nil)
	msg := amqp.NewSyncMessage(storage.KindPeriod, "January_2026", 3, "u1")
	if err := w.HandleSyncMessage(ctx, msg); err != nil {
		t.Fatalf("HandleSyncMessage() error = %v", err)
	}

	got, err := target.GetPeriod(ctx, "January_2026")
	if err != nil || len(got) != 1 || got[0].Amount != "100" {
		t.Fatalf("target period = %+v, %v", got, err)
	}
	if src.synced["January_2026"] != 3 {
		t.Errorf("synced = %v, want version 3", src.synced)
	}
}

func TestSyncAccounts(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	target := memory.New(nil)

	w := NewSyncWorker(src, target, nil)
	if err := w.Sync(ctx, storage.KindAccounts, storage.AccountsContainer); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	got, _ := target.GetAccounts(ctx)
	if len(got) != len(memory.DemoChart()) {
		t.Errorf("target accounts = %d, want %d", len(got), len(memory.DemoChart()))
	}
}

func TestSyncVersionChangedStaysPending(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.bumpOnGet = true
	_ = src.Store.PutPeriod(ctx, "May_2026", []core.PeriodRow{{LeafCode: "x", Amount: "1"}})

	w := NewSyncWorker(src, memory.New(nil), nil)
	if err := w.Sync(ctx, storage.KindPeriod, "May_2026"); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if _, ok := src.synced["May_2026"]; ok {
		t.Error("container rewritten during sync must stay pending")
	}
}

func TestSyncFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("target failure marks error", func(t *testing.T) {
		src := newFakeSource()
		_ = src.Store.PutPeriod(ctx, "June_2026", nil)
		w := NewSyncWorker(src, failingTarget{}, nil)
		if err := w.Sync(ctx, storage.KindPeriod, "June_2026"); err == nil {
			t.Fatal("expected error")
		}
		if len(src.errored) != 1 || src.errored[0] != "June_2026" {
			t.Errorf("errored = %v", src.errored)
		}
	})

	t.Run("missing period", func(t *testing.T) {
		src := newFakeSource()
		w := NewSyncWorker(src, memory.New(nil), nil)
		err := w.Sync(ctx, storage.KindPeriod, "July_2026")
		if !errors.Is(err, core.ErrPeriodNotFound) {
			t.Errorf("error = %v, want ErrPeriodNotFound", err)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		w := NewSyncWorker(newFakeSource(), memory.New(nil), nil)
		if err := w.Sync(ctx, "bogus", "x"); err == nil {
			t.Error("expected error for unknown kind")
		}
	})
}
