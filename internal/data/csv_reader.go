package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

type CSVReader struct {
	filename string
	comma    rune
}

func NewCSVReader(filename string) *CSVReader {
	return &CSVReader{filename: filename, comma: ','}
}

// LoadData reads the whole file. The header row names the columns.
func (cr *CSVReader) LoadData() (*Dataset, error) {
	file, err := os.Open(cr.filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ds, err := Read(file, cr.comma)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cr.filename, err)
	}
	return ds, nil
}

func Read(r io.Reader, comma rune) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}

	headers := make([]string, len(records[0]))
	for j, h := range records[0] {
		headers[j] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return NewDataset(headers, records[1:])
}

// Load reads a comma-separated file with a header row.
func Load(path string) (*Dataset, error) {
	return NewCSVReader(path).LoadData()
}
