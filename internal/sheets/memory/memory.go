package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"consolida/internal/core"
	ports "consolida/internal/sheets"
)

var _ ports.Store = (*Store)(nil)

// SeedFile is the file NewFromFiles looks for in the seed directory.
const SeedFile = "seed.yaml"

type Store struct {
	mu       sync.Mutex
	accounts []core.AccountRow
	periods  map[string][]core.PeriodRow
}

func New(accounts []core.AccountRow) *Store {
	return &Store{
		accounts: append([]core.AccountRow(nil), accounts...),
		periods:  make(map[string][]core.PeriodRow),
	}
}

type (
	seed struct {
		Accounts []seedAccount            `yaml:"accounts"`
		Periods  map[string][]seedPosting `yaml:"periods"`
	}
	seedAccount struct {
		Code        string `yaml:"code"`
		Description string `yaml:"description"`
		Level       string `yaml:"level"`
	}
	seedPosting struct {
		Code       string `yaml:"code"`
		Amount     string `yaml:"amount"`
		CostCenter string `yaml:"cost_center"`
		Memo       string `yaml:"memo"`
	}
)

// NewFromFiles seeds the store from base/seed.yaml, falling back to a small
// demo chart when the file is absent.
func NewFromFiles(base string) (*Store, error) {
	data, err := os.ReadFile(filepath.Join(base, SeedFile))
	if os.IsNotExist(err) {
		return New(DemoChart()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return NewFromYAML(data)
}

// NewFromYAML seeds the store from a YAML document with "accounts" and
// optional "periods" keys.
func NewFromYAML(data []byte) (*Store, error) {
	var sd seed
	if err := yaml.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	rows := make([]core.AccountRow, 0, len(sd.Accounts))
	for _, a := range sd.Accounts {
		rows = append(rows, core.AccountRow{Code: a.Code, Description: a.Description, Level: a.Level})
	}
	s := New(rows)
	for key, postings := range sd.Periods {
		pr := make([]core.PeriodRow, 0, len(postings))
		for _, p := range postings {
			pr = append(pr, core.PeriodRow{LeafCode: p.Code, Amount: p.Amount, CostCenter: p.CostCenter, Memo: p.Memo})
		}
		s.periods[key] = pr
	}
	return s, nil
}

// DemoChart is the chart used when no seed is provided.
func DemoChart() []core.AccountRow {
	return []core.AccountRow{
		{Code: "00", Description: "Net Result", Level: "1"},
		{Code: "01", Description: "Revenue", Level: "2"},
		{Code: "01.01", Description: "Sales", Level: "3"},
		{Code: "01.01.001", Description: "Product A", Level: "4"},
		{Code: "02", Description: "Expense", Level: "2"},
		{Code: "02.01", Description: "Payroll", Level: "3"},
		{Code: "02.01.001", Description: "Salaries", Level: "4"},
	}
}

func (s *Store) GetAccounts(_ context.Context) ([]core.AccountRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.AccountRow(nil), s.accounts...), nil
}

func (s *Store) ReplaceAccounts(_ context.Context, rows []core.AccountRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append([]core.AccountRow(nil), rows...)
	return nil
}

func (s *Store) GetPeriod(_ context.Context, key string) ([]core.PeriodRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.periods[key]
	if !ok {
		return nil, core.ErrPeriodNotFound
	}
	return append([]core.PeriodRow(nil), rows...), nil
}

func (s *Store) PutPeriod(_ context.Context, key string, rows []core.PeriodRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[key] = append([]core.PeriodRow(nil), rows...)
	return nil
}

// ListPeriods returns period keys sorted by name.
func (s *Store) ListPeriods(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.periods))
	for k := range s.periods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
