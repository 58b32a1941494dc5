package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"consolida/internal/config"
	"consolida/internal/core"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sheets without id", Config{Type: SheetsBackend, CredentialsJSON: []byte("{}")}, true},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x"}, true},
		{"invalid type", Config{Type: "bogus"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("nil config should fail")
	}

	keyFile := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(keyFile, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := FromAppConfig(&config.Config{
		DataBackend:              "sheets",
		GoogleSpreadsheetID:      "sheet",
		GoogleServiceAccountFile: keyFile,
		AccountsSheetName:        "Base",
	})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SheetsBackend || string(cfg.CredentialsJSON) != `{"type":"service_account"}` || cfg.AccountsSheetName != "Base" {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	rows, err := res.Backend.GetAccounts(context.Background())
	if err != nil || len(rows) == 0 {
		t.Errorf("demo chart expected, got %v, %v", rows, err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "consolida.db")
	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: dbPath})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Cleanup()

	pinger, ok := res.Backend.(Pinger)
	if !ok {
		t.Fatal("sqlite backend should implement Pinger")
	}
	if err := pinger.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	if err := res.Backend.PutPeriod(ctx, "January_2026", []core.PeriodRow{{LeafCode: "01.01.001", Amount: "1"}}); err != nil {
		t.Fatalf("PutPeriod() error = %v", err)
	}
	keys, _ := res.Backend.ListPeriods(ctx)
	if len(keys) != 1 || keys[0] != "January_2026" {
		t.Errorf("ListPeriods() = %v", keys)
	}
}
