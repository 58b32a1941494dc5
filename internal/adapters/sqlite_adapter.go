package adapters

import (
	"context"

	"github.com/google/uuid"

	"consolida/internal/amqp"
	"consolida/internal/core"
	"consolida/internal/log"
	ports "consolida/internal/sheets"
	"consolida/internal/storage"
)

var _ ports.Store = (*SQLiteAdapter)(nil)

// Publisher announces that a container changed.
type Publisher interface {
	PublishSync(ctx context.Context, msg *amqp.SyncMessage) error
}

// Repository is the subset of storage.SQLiteRepository the adapter drives.
type Repository interface {
	ports.AccountReader
	ports.PeriodReader
	ports.PeriodLister
	ReplaceAccountsVersioned(ctx context.Context, rows []core.AccountRow, uploadID string) (int64, error)
	PutPeriodVersioned(ctx context.Context, key string, rows []core.PeriodRow, uploadID string) (int64, error)
}

// SQLiteAdapter makes SQLite the system of record and publishes a sync
// message after every write so the worker can mirror it to Google Sheets.
// Reads never leave the database.
type SQLiteAdapter struct {
	repo      Repository
	publisher Publisher
	logger    *log.Logger
}

// NewSQLiteAdapter wires the repository and an optional publisher. Without a
// publisher, writes stay pending for the polling sync processor.
func NewSQLiteAdapter(repo Repository, publisher Publisher, logger *log.Logger) *SQLiteAdapter {
	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteAdapter{repo: repo, publisher: publisher, logger: logger.WithComponent(log.ComponentStorage)}
}

func (a *SQLiteAdapter) GetAccounts(ctx context.Context) ([]core.AccountRow, error) {
	return a.repo.GetAccounts(ctx)
}

func (a *SQLiteAdapter) ReplaceAccounts(ctx context.Context, rows []core.AccountRow) error {
	uploadID := UploadIDFrom(ctx)
	version, err := a.repo.ReplaceAccountsVersioned(ctx, rows, uploadID)
	if err != nil {
		return err
	}
	a.publish(ctx, amqp.NewSyncMessage(amqp.KindAccounts, storage.AccountsContainer, version, uploadID))
	return nil
}

func (a *SQLiteAdapter) GetPeriod(ctx context.Context, key string) ([]core.PeriodRow, error) {
	return a.repo.GetPeriod(ctx, key)
}

func (a *SQLiteAdapter) PutPeriod(ctx context.Context, key string, rows []core.PeriodRow) error {
	uploadID := UploadIDFrom(ctx)
	version, err := a.repo.PutPeriodVersioned(ctx, key, rows, uploadID)
	if err != nil {
		return err
	}
	a.publish(ctx, amqp.NewSyncMessage(amqp.KindPeriod, key, version, uploadID))
	return nil
}

func (a *SQLiteAdapter) ListPeriods(ctx context.Context) ([]string, error) {
	return a.repo.ListPeriods(ctx)
}

// publish failures are logged only: the write is committed and the sync
// processor retries pending containers.
func (a *SQLiteAdapter) publish(ctx context.Context, msg *amqp.SyncMessage) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.PublishSync(ctx, msg); err != nil {
		a.logger.WarnContext(ctx, "Sync message not published, left for polling",
			log.FieldPeriodKey, msg.Name, log.FieldError, err)
	}
}

type uploadIDKey struct{}

// WithUploadID tags ctx with the upload that triggered a write.
func WithUploadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, uploadIDKey{}, id)
}

// UploadIDFrom returns the upload ID on ctx, or a fresh one.
func UploadIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(uploadIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
