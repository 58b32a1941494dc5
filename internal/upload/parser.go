// Package upload reads ledger exports (XLSX or CSV) into raw transactions.
package upload

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"consolida/internal/core"
)

// Format of an uploaded file.
type Format int

const (
	FormatUnknown Format = iota
	FormatXLSX
	FormatCSV
)

func (f Format) String() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatCSV:
		return "csv"
	default:
		return "unknown"
	}
}

// headerScanRows bounds how far down the sheet the header row is searched.
const headerScanRows = 10

var (
	ErrUnsupportedFormat = errors.New("unsupported upload format")

	zipMagic = []byte("PK\x03\x04")
	utf8BOM  = []byte("\xef\xbb\xbf")
)

// Columns names the header of each column read from the export. Account,
// Flow and Amount are required; the rest are optional.
type Columns struct {
	Account    string
	Flow       string
	Amount     string
	Date       string
	Memo       string
	CostCenter string
}

// DefaultColumns matches the ERP export the tool was built around.
func DefaultColumns() Columns {
	return Columns{
		Account:    "C. Resultado",
		Flow:       "Pag/Rec",
		Amount:     "Valor Baixado",
		Date:       "Data Baixa",
		Memo:       "Histórico",
		CostCenter: "Centro de Custo",
	}
}

// MissingColumnsError reports required headers absent from the file.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required column(s): " + strings.Join(e.Columns, ", ")
}

// Parser converts export files into transactions.
type Parser struct {
	cols Columns
}

func NewParser(cols Columns) *Parser {
	def := DefaultColumns()
	if strings.TrimSpace(cols.Account) == "" {
		cols.Account = def.Account
	}
	if strings.TrimSpace(cols.Flow) == "" {
		cols.Flow = def.Flow
	}
	if strings.TrimSpace(cols.Amount) == "" {
		cols.Amount = def.Amount
	}
	return &Parser{cols: cols}
}

// DetectFormat decides by extension first, then by the zip signature.
func DetectFormat(filename string, head []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv", ".txt":
		return FormatCSV
	}
	if bytes.HasPrefix(head, zipMagic) {
		return FormatXLSX
	}
	if len(head) > 0 {
		return FormatCSV
	}
	return FormatUnknown
}

// Parse reads r as the format implied by filename and content.
func (p *Parser) Parse(r io.Reader, filename string) ([]core.Transaction, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(4)
	switch DetectFormat(filename, head) {
	case FormatXLSX:
		return p.ParseXLSX(br)
	case FormatCSV:
		return p.ParseCSV(br)
	default:
		return nil, core.ErrEmptyUpload
	}
}

// ParseXLSX reads the first worksheet of a workbook.
func (p *Parser) ParseXLSX(r io.Reader) ([]core.Transaction, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, core.ErrEmptyUpload
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return p.transactions(rows, func(s string) (time.Time, bool) {
		if serial, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			t, err := excelize.ExcelDateToTime(serial, false)
			return t, err == nil
		}
		return parseDate(s)
	})
}

// ParseCSV reads a delimited file. The delimiter is sniffed from the header
// line among ';', ',' and tab.
func (p *Parser) ParseCSV(r io.Reader) ([]core.Transaction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, core.ErrEmptyUpload
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return p.transactions(rows, parseDate)
}

type columnIndex struct {
	account, flow, amount, date, memo, costCenter int
}

func (p *Parser) locate(header []string) (columnIndex, []string) {
	idx := columnIndex{
		account:    find(header, p.cols.Account),
		flow:       find(header, p.cols.Flow),
		amount:     find(header, p.cols.Amount),
		date:       find(header, p.cols.Date),
		memo:       find(header, p.cols.Memo),
		costCenter: find(header, p.cols.CostCenter),
	}
	var missing []string
	if idx.account < 0 {
		missing = append(missing, p.cols.Account)
	}
	if idx.flow < 0 {
		missing = append(missing, p.cols.Flow)
	}
	if idx.amount < 0 {
		missing = append(missing, p.cols.Amount)
	}
	return idx, missing
}

func (p *Parser) transactions(rows [][]string, date func(string) (time.Time, bool)) ([]core.Transaction, error) {
	headerAt := -1
	var (
		idx     columnIndex
		missing []string
	)
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		idx, missing = p.locate(rows[i])
		if len(missing) == 0 {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		if len(rows) == 0 {
			return nil, core.ErrEmptyUpload
		}
		_, missing = p.locate(rows[0])
		return nil, &MissingColumnsError{Columns: missing}
	}

	var out []core.Transaction
	for i, row := range rows[headerAt+1:] {
		if blank(row) {
			continue
		}
		tx := core.Transaction{
			Row:        i + 1,
			AccountRef: strings.TrimSpace(cell(row, idx.account)),
			Flow:       core.ParseFlowType(cell(row, idx.flow)),
			Amount:     core.CoerceAmount(cell(row, idx.amount)),
			Memo:       strings.TrimSpace(cell(row, idx.memo)),
			CostCenter: strings.TrimSpace(cell(row, idx.costCenter)),
		}
		if raw := strings.TrimSpace(cell(row, idx.date)); raw != "" {
			if t, ok := date(raw); ok {
				tx.Date = t
			} else {
				tx.DateRaw = raw
			}
		}
		out = append(out, tx)
	}
	if len(out) == 0 {
		return nil, core.ErrEmptyUpload
	}
	return out, nil
}

var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"02/01/06",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"02-01-2006",
	time.RFC3339,
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sniffDelimiter(data []byte) rune {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	best, count := ',', bytes.Count(line, []byte(","))
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > count {
			best, count = d, n
		}
	}
	return best
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func find(header []string, name string) int {
	if strings.TrimSpace(name) == "" {
		return -1
	}
	want := normalizeHeader(name)
	for i, h := range header {
		if normalizeHeader(h) == want {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
