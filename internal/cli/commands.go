package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"consolida/internal/backend"
	"consolida/internal/config"
	"consolida/internal/core"
	"consolida/internal/ledger"
	"consolida/internal/log"
	"consolida/internal/services"
	"consolida/internal/upload"
)

// Version is set at build time.
var Version = "dev"

// app is what every subcommand runs against.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	naming  core.Naming
	store   *backend.BackendResult
	reports *services.ReportService
	uploads *services.UploadService
}

type rootOptions struct {
	envFile  string
	backend  string
	logLevel string
}

// NewRootCommand builds the consolidactl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	root := &cobra.Command{
		Use:   "consolidactl",
		Short: "Consolidate monthly ledger uploads into a chart-of-accounts report",
		Long: `consolidactl reads the chart of accounts and the monthly period
containers from the configured store and prints consolidated reports.

Example Usage:
  consolidactl periods
  consolidactl report --year 2026 --month jan --month feb --mode average
  consolidactl compare --year-a 2025 --year-b 2026 --level 1 --level 2
  consolidactl upload --year 2026 --month 3 export.xlsx
  consolidactl accounts import chart.xlsx`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return a.open(cmd.Context(), cmd.ErrOrStderr(), opts)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file loaded before reading the environment")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "Override DATA_BACKEND (memory, sheets, sqlite)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL")

	root.AddCommand(
		newPeriodsCommand(a),
		newReportCommand(a),
		newCompareCommand(a),
		newUploadCommand(a),
		newCostCentersCommand(a),
		newAccountsCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) open(ctx context.Context, logOut io.Writer, opts *rootOptions) error {
	if opts.envFile != "" {
		LoadEnvFile(opts.envFile)
	}
	cfg := config.Load()
	if opts.backend != "" {
		cfg.DataBackend = opts.backend
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lcfg := log.DefaultConfig()
	lcfg.Level = log.ParseLevel(cfg.LogLevel)
	lcfg.Output = logOut
	lcfg.Component = log.ComponentCLI
	a.logger = log.New(lcfg)
	a.cfg = cfg
	a.naming = core.Naming(cfg.MonthNames)

	if ctx == nil {
		ctx = context.Background()
	}
	store, err := OpenBackend(ctx, a.logger, cfg)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	a.store = store
	a.reports = services.NewReportService(store.Backend, services.ReportConfig{
		Naming:           a.naming,
		ExcludeMemo:      cfg.ExcludeMemoMarker,
		FetchConcurrency: cfg.FetchConcurrency,
		StoreTimeout:     cfg.StoreTimeout,
		CacheTTL:         cfg.CacheTTL,
	}, a.logger)
	a.uploads = services.NewUploadService(store.Backend, a.reports, a.naming, cfg.ExcludeMemoMarker, cfg.StoreTimeout, a.logger)
	return nil
}

func (a *app) close() error {
	if a.store == nil || a.store.Cleanup == nil {
		return nil
	}
	return a.store.Cleanup()
}

type selection struct {
	years       []int
	months      []string
	costCenters []string
	levels      []int
}

func (s *selection) bind(cmd *cobra.Command, withYears bool) {
	if withYears {
		cmd.Flags().IntSliceVar(&s.years, "year", nil, "Year to include (repeatable, default all)")
	}
	cmd.Flags().StringSliceVar(&s.months, "month", nil, "Month number or name to include (repeatable, default all)")
	cmd.Flags().StringSliceVar(&s.costCenters, "cost-center", nil, "Cost center to include (repeatable, default all)")
	cmd.Flags().IntSliceVar(&s.levels, "level", nil, "Hierarchy level to show, 1-4 (repeatable, default all)")
}

func (s *selection) parse() ([]time.Month, []core.Level, error) {
	months, err := parseMonths(s.months)
	if err != nil {
		return nil, nil, err
	}
	levels := make([]core.Level, 0, len(s.levels))
	for _, l := range s.levels {
		lvl := core.Level(l)
		if !lvl.Valid() {
			return nil, nil, fmt.Errorf("%w: %d", core.ErrInvalidLevel, l)
		}
		levels = append(levels, lvl)
	}
	return months, levels, nil
}

func parseMonths(in []string) ([]time.Month, error) {
	out := make([]time.Month, 0, len(in))
	for _, s := range in {
		m, err := core.ParseMonth(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func noData(w io.Writer, err error) error {
	if errors.Is(err, services.ErrNoData) {
		_, werr := fmt.Fprintln(w, infoStyle.Render("No data for the selected periods."))
		return werr
	}
	return err
}

func newPeriodsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "periods",
		Short: "List stored periods by year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := a.reports.PeriodKeys(cmd.Context())
			if err != nil {
				return err
			}
			return RenderPeriods(cmd.OutOrStdout(), ledger.AvailablePeriods(keys), a.naming)
		},
	}
}

func newReportCommand(a *app) *cobra.Command {
	var (
		sel  selection
		mode string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the consolidated matrix for the selected periods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			months, levels, err := sel.parse()
			if err != nil {
				return err
			}
			m, err := ledger.ParseMode(mode)
			if err != nil {
				return err
			}
			rep, err := a.reports.Build(cmd.Context(), services.ReportRequest{
				Years:       sel.years,
				Months:      months,
				CostCenters: sel.costCenters,
				Levels:      levels,
				Mode:        m,
			})
			if err != nil {
				return noData(cmd.OutOrStdout(), err)
			}
			return RenderReport(cmd.OutOrStdout(), rep, a.naming)
		},
	}
	sel.bind(cmd, true)
	cmd.Flags().StringVar(&mode, "mode", "accumulated", "Summary column: accumulated or average")
	return cmd
}

func newCompareCommand(a *app) *cobra.Command {
	var (
		sel          selection
		yearA, yearB int
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare accumulated values of two years over the same months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			months, levels, err := sel.parse()
			if err != nil {
				return err
			}
			cmp, err := a.reports.Compare(cmd.Context(), services.CompareRequest{
				YearA:       yearA,
				YearB:       yearB,
				Months:      months,
				CostCenters: sel.costCenters,
				Levels:      levels,
			})
			if err != nil {
				return noData(cmd.OutOrStdout(), err)
			}
			return RenderComparison(cmd.OutOrStdout(), cmp)
		},
	}
	sel.bind(cmd, false)
	cmd.Flags().IntVar(&yearA, "year-a", 0, "Base year")
	cmd.Flags().IntVar(&yearB, "year-b", 0, "Compared year")
	_ = cmd.MarkFlagRequired("year-a")
	_ = cmd.MarkFlagRequired("year-b")
	return cmd
}

func newUploadCommand(a *app) *cobra.Command {
	var (
		year  int
		month string
	)
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Validate a ledger export and store it as a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseMonth(month)
			if err != nil {
				return err
			}
			period, err := core.NewPeriod(year, m)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			cols := a.cfg.UploadColumns
			parser := upload.NewParser(upload.Columns{
				Account:    cols.Account,
				Flow:       cols.Flow,
				Amount:     cols.Amount,
				Date:       cols.Date,
				Memo:       cols.Memo,
				CostCenter: cols.CostCenter,
			})
			txs, err := parser.Parse(f, args[0])
			if err != nil {
				return err
			}
			res, err := a.uploads.Upload(cmd.Context(), services.UploadRequest{Period: period, Transactions: txs})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n",
				headerStyle.Render("Stored"), res.Key, netLine(res.Rows, res.Net))
			return err
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Period year")
	cmd.Flags().StringVar(&month, "month", "", "Period month (number or name)")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func newCostCentersCommand(a *app) *cobra.Command {
	var years []int
	cmd := &cobra.Command{
		Use:   "cost-centers",
		Short: "List the cost centers found in stored periods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			centers, err := a.reports.CostCenters(cmd.Context(), years)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(centers, "\n"))
			return err
		},
	}
	cmd.Flags().IntSliceVar(&years, "year", nil, "Year to scan (repeatable, default all)")
	return cmd
}

func newAccountsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect or replace the chart of accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tree, err := a.reports.Chart(cmd.Context())
			if err != nil {
				return err
			}
			return RenderAccounts(cmd.OutOrStdout(), tree)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Replace the chart of accounts from a YAML, XLSX or CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := upload.ParseAccounts(f, args[0])
			if err != nil {
				return err
			}
			diag, err := a.uploads.ImportAccounts(cmd.Context(), rows)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "%s %d account row(s)\n", headerStyle.Render("Imported"), len(rows)-len(diag.Duplicates)-len(diag.Skipped)); err != nil {
				return err
			}
			for _, code := range diag.Duplicates {
				fmt.Fprintln(out, warnStyle.Render("Duplicate code ignored: "+code))
			}
			for _, code := range diag.Orphans {
				fmt.Fprintln(out, warnStyle.Render("Account without parent: "+code))
			}
			for _, r := range diag.Skipped {
				fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("Skipped %q: invalid level %q", r.Code, r.Level)))
			}
			return nil
		},
	})
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "consolidactl", Version)
			return err
		},
	}
}
