package upload

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"consolida/internal/core"
)

type accountDoc struct {
	Accounts []struct {
		Code        string `yaml:"code"`
		Description string `yaml:"description"`
		Level       string `yaml:"level"`
	} `yaml:"accounts"`
}

// ParseAccounts reads a chart of accounts from YAML ("accounts" list of
// code/description/level), XLSX or CSV. Spreadsheet columns are positional:
// code, description, level. A first row whose level cell is not a level is
// taken as a header.
func ParseAccounts(r io.Reader, filename string) ([]core.AccountRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		var doc accountDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse accounts yaml: %w", err)
		}
		out := make([]core.AccountRow, 0, len(doc.Accounts))
		for _, a := range doc.Accounts {
			out = append(out, core.AccountRow{Code: a.Code, Description: a.Description, Level: a.Level})
		}
		if len(out) == 0 {
			return nil, core.ErrEmptyUpload
		}
		return out, nil
	default:
		if DetectFormat(filename, data) == FormatXLSX {
			rows, err = xlsxRows(data)
		} else {
			rows, err = csvRows(data)
		}
		if err != nil {
			return nil, err
		}
	}

	out := make([]core.AccountRow, 0, len(rows))
	for i, row := range rows {
		if blank(row) {
			continue
		}
		ar := core.AccountRow{Code: cell(row, 0), Description: cell(row, 1), Level: cell(row, 2)}
		if i == 0 {
			if _, err := core.ParseLevel(ar.Level); err != nil {
				continue
			}
		}
		out = append(out, ar)
	}
	if len(out) == 0 {
		return nil, core.ErrEmptyUpload
	}
	return out, nil
}

func xlsxRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	// Formatted values keep codes such as "01.10" intact.
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read accounts sheet: %w", err)
	}
	return rows, nil
}

func csvRows(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse accounts csv: %w", err)
	}
	return rows, nil
}
