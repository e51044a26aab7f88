package adapter

import (
	"fmt"
	"io"
	"strings"

	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/xuri/excelize/v2"
)

// LoadWorkbook reads an XLSX file whose sheets are named after the tables.
func LoadWorkbook(path string) (*domain.Input, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file %s: %w", path, err)
	}
	defer f.Close()
	return readWorkbook(f)
}

// ReadWorkbook reads a workbook from r.
func ReadWorkbook(r io.Reader) (*domain.Input, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()
	return readWorkbook(f)
}

func readWorkbook(f *excelize.File) (*domain.Input, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}

	in := &domain.Input{}
	var found int
	for _, sheet := range sheets {
		table := strings.ToLower(strings.TrimSpace(sheet))
		if in.Table(table) != nil || !isTable(table) {
			continue
		}
		records, err := readSheet(f, sheet)
		if err != nil {
			return nil, err
		}
		in.SetTable(table, records)
		found++
	}
	if found == 0 {
		return nil, fmt.Errorf("xlsx has no sheet named after a planning table (%s)", strings.Join(domain.TableNames(), ", "))
	}
	return in, nil
}

func readSheet(f *excelize.File, sheet string) ([]domain.Record, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var header []string
	var data [][]string
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row from sheet %s: %w", sheet, err)
		}
		if header == nil {
			if isBlank(record) {
				continue
			}
			header = record
			continue
		}
		data = append(data, record)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("error iterating rows in sheet %s: %w", sheet, err)
	}
	return toRecords(header, data), nil
}

func isTable(name string) bool {
	for _, t := range domain.TableNames() {
		if t == name {
			return true
		}
	}
	return false
}
