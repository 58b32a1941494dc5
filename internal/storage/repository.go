package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"consolida/internal/core"
	"consolida/internal/log"

	_ "modernc.org/sqlite"
)

// Container kinds.
const (
	KindAccounts = "accounts"
	KindPeriod   = "period"
)

// AccountsContainer is the container name of the chart of accounts.
const AccountsContainer = "accounts"

// Sync states of a container.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

// ErrVersionChanged means a container was rewritten after the version being
// marked as synced was read.
var ErrVersionChanged = errors.New("container version changed")

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

// PendingSync identifies a container whose latest version has not been
// mirrored yet.
type PendingSync struct {
	Name      string
	Kind      string
	Version   int64
	UploadID  string
	UpdatedAt time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY between goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) GetAccounts(ctx context.Context) ([]core.AccountRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code, description, level FROM accounts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.AccountRow
	for rows.Next() {
		var a core.AccountRow
		if err := rows.Scan(&a.Code, &a.Description, &a.Level); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ReplaceAccounts(ctx context.Context, rows []core.AccountRow) error {
	_, err := r.ReplaceAccountsVersioned(ctx, rows, "")
	return err
}

// ReplaceAccountsVersioned replaces the chart and returns its new version.
func (r *SQLiteRepository) ReplaceAccountsVersioned(ctx context.Context, rows []core.AccountRow, uploadID string) (int64, error) {
	var version int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
			return fmt.Errorf("clear accounts: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO accounts (position, code, description, level) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare account insert: %w", err)
		}
		defer stmt.Close()
		for i, a := range rows {
			if _, err := stmt.ExecContext(ctx, i, a.Code, a.Description, a.Level); err != nil {
				return fmt.Errorf("insert account %s: %w", a.Code, err)
			}
		}
		version, err = touch(ctx, tx, AccountsContainer, KindAccounts, uploadID)
		return err
	})
	if err != nil {
		return 0, err
	}
	r.logger.InfoContext(ctx, "Accounts replaced", log.FieldCount, len(rows), "version", version)
	return version, nil
}

// GetPeriod returns core.ErrPeriodNotFound when the period was never written.
func (r *SQLiteRepository) GetPeriod(ctx context.Context, key string) ([]core.PeriodRow, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM containers WHERE name = ? AND kind = ?`, key, KindPeriod).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrPeriodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup period %s: %w", key, err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT leaf_code, amount, cost_center, memo FROM period_rows WHERE period_key = ? ORDER BY position`, key)
	if err != nil {
		return nil, fmt.Errorf("query period %s: %w", key, err)
	}
	defer rows.Close()

	out := []core.PeriodRow{}
	for rows.Next() {
		var p core.PeriodRow
		if err := rows.Scan(&p.LeafCode, &p.Amount, &p.CostCenter, &p.Memo); err != nil {
			return nil, fmt.Errorf("scan period row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) PutPeriod(ctx context.Context, key string, rows []core.PeriodRow) error {
	_, err := r.PutPeriodVersioned(ctx, key, rows, "")
	return err
}

// PutPeriodVersioned replaces a period's rows in one transaction and returns
// the container's new version.
func (r *SQLiteRepository) PutPeriodVersioned(ctx context.Context, key string, rows []core.PeriodRow, uploadID string) (int64, error) {
	var version int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		version, err = touch(ctx, tx, key, KindPeriod, uploadID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM period_rows WHERE period_key = ?`, key); err != nil {
			return fmt.Errorf("clear period %s: %w", key, err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO period_rows (period_key, position, leaf_code, amount, cost_center, memo) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare period insert: %w", err)
		}
		defer stmt.Close()
		for i, p := range rows {
			if _, err := stmt.ExecContext(ctx, key, i, p.LeafCode, p.Amount, p.CostCenter, p.Memo); err != nil {
				return fmt.Errorf("insert period row %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.logger.InfoContext(ctx, "Period saved to SQLite", log.FieldPeriodKey, key, log.FieldRows, len(rows), "version", version)
	return version, nil
}

func (r *SQLiteRepository) ListPeriods(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM containers WHERE kind = ? ORDER BY name`, KindPeriod)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan period name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Version returns the current version of a container, 0 if unknown.
func (r *SQLiteRepository) Version(ctx context.Context, name string) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, `SELECT version FROM containers WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get version %s: %w", name, err)
	}
	return v, nil
}

// GetPendingSync returns containers not yet mirrored, oldest first.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, kind, version, upload_id, updated_at FROM containers
		 WHERE sync_status != ? ORDER BY updated_at, name LIMIT ?`, SyncDone, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	defer rows.Close()

	var out []PendingSync
	for rows.Next() {
		var (
			p       PendingSync
			updated string
		)
		if err := rows.Scan(&p.Name, &p.Kind, &p.Version, &p.UploadID, &updated); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		p.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced records a successful mirror of version. A newer write since then
// keeps the container pending and yields ErrVersionChanged.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, name string, version int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE containers SET sync_status = ?, synced_at = ? WHERE name = ? AND version = ?`,
		SyncDone, now(), name, version)
	if err != nil {
		return fmt.Errorf("mark synced %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mark synced %s v%d: %w", name, version, ErrVersionChanged)
	}
	r.logger.InfoContext(ctx, "Container marked as synced", log.FieldPeriodKey, name, "version", version)
	return nil
}

// MarkSyncError flags a container whose mirror failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE containers SET sync_status = ? WHERE name = ?`, SyncError, name)
	if err != nil {
		return fmt.Errorf("mark sync error %s: %w", name, err)
	}
	r.logger.WarnContext(ctx, "Container marked with sync error", log.FieldPeriodKey, name)
	return nil
}

// touch upserts the container record, bumping its version.
func touch(ctx context.Context, tx *sql.Tx, name, kind, uploadID string) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO containers (name, kind, version, upload_id, updated_at, sync_status)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			version = version + 1,
			upload_id = excluded.upload_id,
			updated_at = excluded.updated_at,
			sync_status = excluded.sync_status`,
		name, kind, uploadID, now(), SyncPending)
	if err != nil {
		return 0, fmt.Errorf("touch container %s: %w", name, err)
	}
	var v int64
	if err := tx.QueryRowContext(ctx, `SELECT version FROM containers WHERE name = ?`, name).Scan(&v); err != nil {
		return 0, fmt.Errorf("read version %s: %w", name, err)
	}
	return v, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}
