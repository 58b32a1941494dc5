package sheets

import (
	"context"

	"consolida/internal/core"
)

// Ports for outbound adapters. A store keeps the chart of accounts in one
// container and each period's rows in a container named by its key.
type (
	AccountReader interface {
		// GetAccounts returns chart rows in store order; columns are positional.
		GetAccounts(ctx context.Context) ([]core.AccountRow, error)
	}

	AccountWriter interface {
		// ReplaceAccounts overwrites the whole chart.
		ReplaceAccounts(ctx context.Context, rows []core.AccountRow) error
	}

	PeriodReader interface {
		// GetPeriod returns core.ErrPeriodNotFound when no container exists.
		GetPeriod(ctx context.Context, key string) ([]core.PeriodRow, error)
	}

	PeriodWriter interface {
		// PutPeriod clears and rewrites the container, creating it if absent.
		PutPeriod(ctx context.Context, key string, rows []core.PeriodRow) error
	}

	PeriodLister interface {
		// ListPeriods returns every container name that may hold a period.
		ListPeriods(ctx context.Context) ([]string, error)
	}

	// Store is the full repository a backend provides.
	Store interface {
		AccountReader
		AccountWriter
		PeriodReader
		PeriodWriter
		PeriodLister
	}
)
