// Package leadimport parses lead source files (CSV or XLSX) into profile
// references for bulk lead creation.
package leadimport

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// profileColumns are header names recognized as the profile reference
// column, in priority order.
var profileColumns = []string{"linkedin_url", "linkedin", "profile_url", "profile", "url"}

// ReadFile parses the file at path and returns the profile references it
// contains. CSV and XLSX are supported; the format is chosen by extension.
// Files may carry a header row naming the profile column, or be a bare
// single-column list of profile URLs. Blank and duplicate rows are dropped.
func ReadFile(path string) ([]string, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, eris.Errorf("leadimport: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("leadimport: %s is empty", path)
	}

	col, start := profileColumn(rows[0])
	if col < 0 {
		return nil, eris.Errorf("leadimport: no profile column found in %s", path)
	}

	refs := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows[start:] {
		if col >= len(row) {
			continue
		}
		ref := strings.TrimSpace(row[col])
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}

	if len(refs) == 0 {
		return nil, eris.Errorf("leadimport: no profile references found in %s", path)
	}

	zap.L().Info("lead file parsed",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
		zap.Int("profiles", len(refs)))
	return refs, nil
}

// profileColumn inspects the first row and returns the profile column index
// and the index of the first data row. A first row that already looks like a
// profile URL means there is no header.
func profileColumn(first []string) (col, start int) {
	for _, cell := range first {
		if strings.Contains(cell, "linkedin.com/in/") {
			return indexOf(first, cell), 0
		}
	}
	for _, name := range profileColumns {
		for i, cell := range first {
			normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(cell)), " ", "_")
			if normalized == name {
				return i, 1
			}
		}
	}
	return -1, 0
}

func indexOf(row []string, value string) int {
	for i, cell := range row {
		if cell == value {
			return i
		}
	}
	return 0
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "leadimport: open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "leadimport: read %s", path)
		}
		rows = append(rows, record)
	}
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "leadimport: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("leadimport: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
