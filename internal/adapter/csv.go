package adapter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andresuchdata/netplan/internal/domain"
)

// ReadCSV reads one table. The first row is the header.
func ReadCSV(r io.Reader) ([]domain.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return toRecords(rows[0], rows[1:]), nil
}

// LoadCSVDir reads <table>.csv for every canonical table in dir. Missing
// files leave their table empty; a directory without any of them is an error.
func LoadCSVDir(dir string) (*domain.Input, error) {
	in := &domain.Input{}
	var found int
	for _, table := range domain.TableNames() {
		path := filepath.Join(dir, table+".csv")
		records, err := readCSVFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		in.SetTable(table, records)
		found++
	}
	if found == 0 {
		return nil, fmt.Errorf("no planning tables found in %s", dir)
	}
	return in, nil
}

func readCSVFile(path string) ([]domain.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
