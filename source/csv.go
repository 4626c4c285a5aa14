// Package source streams rows from header-delimited tabular source files.
// Files are read one row at a time; a source may be arbitrarily large and
// is never buffered whole.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"nhs-data-pipeline/models"
)

// RowSource is anything that yields raw rows until io.EOF. The pipeline
// consumes this interface so tests can feed rows without touching disk.
type RowSource interface {
	Next() (models.RawRow, error)
}

// CSVReader streams a UTF-8 CSV file with a fixed header row.
type CSVReader struct {
	file   *os.File
	csv    *csv.Reader
	header []string
}

// Open opens the file and reads its header. Failure to open or to read the
// header is a configuration error: the run must abort before any writes.
func Open(path string) (*CSVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %q: %w", path, err)
	}

	r := csv.NewReader(f)
	r.ReuseRecord = false

	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("source: read header of %q: %w", path, err)
	}

	return &CSVReader{file: f, csv: r, header: header}, nil
}

// Header returns the column names in file order.
func (r *CSVReader) Header() []string {
	return r.header
}

// Next materializes the next row as a column→cell map. It returns io.EOF
// when the file is exhausted. A row with the wrong field count is returned
// as an error for the caller to count; the reader stays usable.
func (r *CSVReader) Next() (models.RawRow, error) {
	fields, err := r.csv.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("source: read row: %w", err)
	}

	row := make(models.RawRow, len(r.header))
	for i, name := range r.header {
		if i < len(fields) {
			row[name] = fields[i]
		}
	}
	return row, nil
}

// Close releases the underlying file.
func (r *CSVReader) Close() error {
	return r.file.Close()
}
