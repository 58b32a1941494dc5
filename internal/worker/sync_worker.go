package worker

import (
	"context"
	"errors"
	"fmt"

	"consolida/internal/amqp"
	"consolida/internal/core"
	"consolida/internal/log"
	"consolida/internal/sheets"
	"consolida/internal/storage"
)

// Source is the local store holding the authoritative copy of each container.
type Source interface {
	sheets.AccountReader
	sheets.PeriodReader
	Version(ctx context.Context, name string) (int64, error)
	MarkSynced(ctx context.Context, name string, version int64) error
	MarkSyncError(ctx context.Context, name string) error
}

// Target receives mirrored containers.
type Target interface {
	sheets.AccountWriter
	sheets.PeriodWriter
}

// SyncWorker mirrors chart and period containers from SQLite to the sheet
// store.
type SyncWorker struct {
	source Source
	target Target
	logger *log.Logger
}

func NewSyncWorker(source Source, target Target, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		source: source,
		target: target,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage processes one sync notification from AMQP. Messages
// older than the stored version still copy the current content.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		"kind", msg.Kind,
		"name", msg.Name,
		"version", msg.Version,
		log.FieldUploadID, msg.UploadID)
	return w.Sync(ctx, msg.Kind, msg.Name)
}

// Sync copies the named container and marks the version it read as synced.
// A write that lands meanwhile bumps the version, so the container stays
// pending and is picked up again.
func (w *SyncWorker) Sync(ctx context.Context, kind, name string) error {
	version, err := w.source.Version(ctx, name)
	if err != nil {
		return fmt.Errorf("read version of %s: %w", name, err)
	}

	var rows int
	switch kind {
	case storage.KindAccounts:
		rows, err = w.syncAccounts(ctx)
	case storage.KindPeriod:
		rows, err = w.syncPeriod(ctx, name)
	default:
		return fmt.Errorf("unknown container kind %q", kind)
	}
	if err != nil {
		if markErr := w.source.MarkSyncError(ctx, name); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", "name", name, log.FieldError, markErr)
		}
		return err
	}

	if err := w.source.MarkSynced(ctx, name, version); err != nil {
		if errors.Is(err, storage.ErrVersionChanged) {
			w.logger.InfoContext(ctx, "Container changed during sync, leaving pending", "name", name)
			return nil
		}
		w.logger.ErrorContext(ctx, "Failed to mark as synced", "name", name, log.FieldError, err)
		return nil
	}

	w.logger.InfoContext(ctx, "Container synced",
		log.FieldOperation, log.OpSync,
		"kind", kind,
		"name", name,
		"version", version,
		log.FieldRows, rows)
	return nil
}

func (w *SyncWorker) syncAccounts(ctx context.Context) (int, error) {
	rows, err := w.source.GetAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("read accounts: %w", err)
	}
	if err := w.target.ReplaceAccounts(ctx, rows); err != nil {
		return 0, fmt.Errorf("write accounts: %w", err)
	}
	return len(rows), nil
}

func (w *SyncWorker) syncPeriod(ctx context.Context, name string) (int, error) {
	rows, err := w.source.GetPeriod(ctx, name)
	if err != nil {
		if errors.Is(err, core.ErrPeriodNotFound) {
			return 0, fmt.Errorf("period %s vanished: %w", name, err)
		}
		return 0, fmt.Errorf("read period %s: %w", name, err)
	}
	if err := w.target.PutPeriod(ctx, name, rows); err != nil {
		return 0, fmt.Errorf("write period %s: %w", name, err)
	}
	return len(rows), nil
}
