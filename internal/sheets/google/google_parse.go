package google

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"

	"consolida/internal/core"
)

// Header written to period worksheets.
var periodHeader = []any{"Code", "Amount", "CostCenter", "Memo"}

// Header aliases, normalized with headerKey. The Portuguese names are those
// of workbooks produced by the earlier spreadsheet tool.
var (
	codeHeaders       = []string{"code", "conta_id", "conta", "account"}
	amountHeaders     = []string{"amount", "valor_final", "valor"}
	costCenterHeaders = []string{"costcenter", "cost_center", "centro_de_custo", "centro_custo", "c._custo"}
	memoHeaders       = []string{"memo", "histórico", "historico", "observação", "observacao"}
)

// a1 quotes the sheet title for A1 notation.
func a1(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

// isMissingRange reports whether err is the API rejecting a range whose
// worksheet does not exist.
func isMissingRange(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusBadRequest {
		return false
	}
	return strings.Contains(gerr.Message, "Unable to parse range")
}

// parseAccountRows maps the first three columns positionally. A first row
// whose level cell is not a level is a header and is dropped.
func parseAccountRows(values [][]any) []core.AccountRow {
	out := make([]core.AccountRow, 0, len(values))
	for i, raw := range values {
		row := toStrings(raw)
		r := core.AccountRow{
			Code:        safeGet(row, 0),
			Description: safeGet(row, 1),
			Level:       safeGet(row, 2),
		}
		if i == 0 {
			if _, err := core.ParseLevel(r.Level); err != nil {
				continue
			}
		}
		if r.Code == "" && r.Description == "" && r.Level == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func accountValues(rows []core.AccountRow) [][]any {
	out := make([][]any, 0, len(rows)+1)
	out = append(out, []any{"Code", "Description", "Level"})
	for _, r := range rows {
		out = append(out, []any{r.Code, r.Description, r.Level})
	}
	return out
}

// parsePeriodRows locates columns by header so that worksheets with extra
// columns remain readable.
func parsePeriodRows(values [][]any) ([]core.PeriodRow, error) {
	if len(values) == 0 {
		return []core.PeriodRow{}, nil
	}
	headers := toStrings(values[0])
	colCode := indexOf(headers, codeHeaders...)
	colAmount := indexOf(headers, amountHeaders...)
	if colCode == -1 || colAmount == -1 {
		return nil, fmt.Errorf("unexpected period header: got %v", headers)
	}
	colCC := indexOf(headers, costCenterHeaders...)
	colMemo := indexOf(headers, memoHeaders...)

	out := make([]core.PeriodRow, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := toStrings(raw)
		code := safeGet(row, colCode)
		if code == "" {
			continue
		}
		out = append(out, core.PeriodRow{
			LeafCode:   code,
			Amount:     safeGet(row, colAmount),
			CostCenter: safeGet(row, colCC),
			Memo:       safeGet(row, colMemo),
		})
	}
	return out, nil
}

func periodValues(rows []core.PeriodRow) [][]any {
	out := make([][]any, 0, len(rows)+1)
	out = append(out, periodHeader)
	for _, r := range rows {
		out = append(out, []any{r.LeafCode, r.Amount, r.CostCenter, r.Memo})
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch t := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func headerKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "_"))
}

// indexOf returns the first column whose header matches any name.
func indexOf(headers []string, names ...string) int {
	for _, name := range names {
		for i, h := range headers {
			if headerKey(h) == name {
				return i
			}
		}
	}
	return -1
}

func safeGet(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
