package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"consolida/internal/core"
	"consolida/internal/log"
	ports "consolida/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultAccountsSheet = "Base"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	accountsSheet string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.Store = (*Client)(nil)

// Options configures a Client. Credentials are a service account JSON key.
type Options struct {
	SpreadsheetID   string
	AccountsSheet   string
	CredentialsJSON []byte
	Logger          *log.Logger
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if len(opts.CredentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	accounts := strings.TrimSpace(opts.AccountsSheet)
	if accounts == "" {
		accounts = defaultAccountsSheet
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(opts.CredentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "accounts_sheet", accounts)

	return &Client{
		svc:           svc,
		spreadsheetID: id,
		accountsSheet: accounts,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

// NewFromEnv reads GOOGLE_SPREADSHEET_ID, ACCOUNTS_SHEET_NAME and the service
// account from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, logger *log.Logger) (*Client, error) {
	creds, err := CredentialsFromEnv()
	if err != nil {
		return nil, err
	}
	return New(ctx, Options{
		SpreadsheetID:   os.Getenv("GOOGLE_SPREADSHEET_ID"),
		AccountsSheet:   os.Getenv("ACCOUNTS_SHEET_NAME"),
		CredentialsJSON: creds,
		Logger:          logger,
	})
}

// CredentialsFromEnv resolves the service account key from the environment.
func CredentialsFromEnv() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

func (c *Client) GetAccounts(ctx context.Context) ([]core.AccountRow, error) {
	rng := a1(c.accountsSheet, "A:C")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseAccountRows(resp.Values), nil
}

func (c *Client) ReplaceAccounts(ctx context.Context, rows []core.AccountRow) error {
	return c.replace(ctx, c.accountsSheet, "A:C", accountValues(rows))
}

// GetPeriod reads a period worksheet. A worksheet that does not exist makes
// the API reject the range, which maps to core.ErrPeriodNotFound.
func (c *Client) GetPeriod(ctx context.Context, key string) ([]core.PeriodRow, error) {
	rng := a1(key, "A:Z")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		if isMissingRange(err) {
			return nil, core.ErrPeriodNotFound
		}
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rows, err := parsePeriodRows(resp.Values)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	return rows, nil
}

func (c *Client) PutPeriod(ctx context.Context, key string, rows []core.PeriodRow) error {
	return c.replace(ctx, key, "A:Z", periodValues(rows))
}

// ListPeriods returns every worksheet title except the chart sheet.
func (c *Client) ListPeriods(ctx context.Context) ([]string, error) {
	titles, err := c.sheetTitles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if t != c.accountsSheet {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *Client) sheetTitles(ctx context.Context) ([]string, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	out := make([]string, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			out = append(out, s.Properties.Title)
		}
	}
	return out, nil
}

// replace creates the worksheet when needed, clears cols and writes values
// from A1.
func (c *Client) replace(ctx context.Context, sheet, cols string, values [][]any) error {
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return err
	}
	clearRng := a1(sheet, cols)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRng, err)
	}
	rng := a1(sheet, "A1")
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	c.logger.InfoContext(ctx, "Worksheet replaced", log.FieldPeriodKey, sheet, log.FieldRows, len(values)-1)
	return nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	titles, err := c.sheetTitles(ctx)
	if err != nil {
		return err
	}
	for _, t := range titles {
		if t == title {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	c.logger.InfoContext(ctx, "Worksheet created", log.FieldPeriodKey, title)
	return nil
}
