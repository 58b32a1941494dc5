package google

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestParseAccountRowsDropsHeader(t *testing.T) {
	values := [][]any{
		{"Conta", "Descrição", "Nivel"},
		{"00", "Resultado", 1.0},
		{"1", "Receitas", "2"},
		{},
		{"01/01/2001", "Produto A", 4.0},
	}
	rows := parseAccountRows(values)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Level != "1" || rows[1].Code != "1" || rows[2].Code != "01/01/2001" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	// Headerless sheets keep the first row.
	rows = parseAccountRows([][]any{{"00", "Net", "1"}})
	if len(rows) != 1 {
		t.Fatalf("expected headerless row kept, got %+v", rows)
	}
}

func TestParsePeriodRowsCurrentLayout(t *testing.T) {
	values := [][]any{
		periodHeader,
		{"01.01.001", "1000", "Shop", ""},
		{"02.01.001", -400.5, "", "Vinculada"},
		{"", "9"},
		{"02.01.001"},
	}
	rows, err := parsePeriodRows(values)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1].Amount != "-400.5" || rows[1].Memo != "Vinculada" {
		t.Fatalf("unexpected row: %+v", rows[1])
	}
	if rows[2].Amount != "" {
		t.Fatalf("short rows pad with blanks: %+v", rows[2])
	}
}

func TestParsePeriodRowsLegacyLayout(t *testing.T) {
	values := [][]any{
		{"Data", "C. Resultado", "Pag/Rec", "Valor Baixado", "Centro de Custo", "Conta_ID", "Valor_Final"},
		{"05/01/2026", "01.01.001 Produto A", "R", "1.000,00", "Loja", "01.01.001", "1000"},
	}
	rows, err := parsePeriodRows(values)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 1 || rows[0].LeafCode != "01.01.001" || rows[0].Amount != "1000" || rows[0].CostCenter != "Loja" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestParsePeriodRowsUnexpectedHeader(t *testing.T) {
	if _, err := parsePeriodRows([][]any{{"foo", "bar"}}); err == nil {
		t.Fatal("expected header error")
	}
	rows, err := parsePeriodRows(nil)
	if err != nil || len(rows) != 0 {
		t.Fatalf("empty sheet should yield no rows: %v %v", rows, err)
	}
}

func TestIsMissingRange(t *testing.T) {
	missing := &googleapi.Error{Code: http.StatusBadRequest, Message: "Unable to parse range: 'March_2026'!A:Z"}
	if !isMissingRange(fmt.Errorf("wrapped: %w", missing)) {
		t.Fatal("expected missing range")
	}
	if isMissingRange(&googleapi.Error{Code: http.StatusForbidden, Message: "denied"}) {
		t.Fatal("403 is not a missing range")
	}
	if isMissingRange(errors.New("Unable to parse range")) {
		t.Fatal("plain errors are not API errors")
	}
}

func TestA1QuotesTitles(t *testing.T) {
	if got := a1("Março_2026", "A:Z"); got != "'Março_2026'!A:Z" {
		t.Fatalf("got %q", got)
	}
	if got := a1("Bob's", "A1"); got != "'Bob''s'!A1" {
		t.Fatalf("got %q", got)
	}
}

func TestPeriodValuesRoundTrip(t *testing.T) {
	rows, err := parsePeriodRows(periodValues(nil))
	if err != nil || len(rows) != 0 {
		t.Fatalf("header-only sheet: %v %v", rows, err)
	}
}
