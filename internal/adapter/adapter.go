// Package adapter reads the canonical planning tables from CSV directories,
// XLSX workbooks and JSON documents, and writes plan tables back out.
package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/netplan/internal/domain"
)

// Load reads an input from path: a directory of CSV files, an .xlsx
// workbook or a .json document.
func Load(path string) (*domain.Input, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadCSVDir(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return LoadWorkbook(path)
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input %s: %w", path, err)
		}
		defer f.Close()
		return DecodeJSON(f)
	}
	return nil, fmt.Errorf("unsupported input %s: expected a directory, .xlsx or .json", path)
}

// toRecords turns a header row and data rows into records. Header names are
// trimmed and lower-cased; blank rows are skipped and short rows padded.
func toRecords(header []string, rows [][]string) []domain.Record {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		rec := make(domain.Record, len(cols))
		for i, col := range cols {
			if col == "" {
				continue
			}
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = nil
			}
		}
		out = append(out, rec)
	}
	return out
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
