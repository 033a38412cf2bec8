package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// CSVReader reads delimited text exports. The delimiter (comma, semicolon or
// tab) is picked from the header line.
type CSVReader struct{}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Format returns the reader name.
func (p *CSVReader) Format() string { return "csv" }

// Read parses the first line as headers and every non-blank line after it as a row.
func (p *CSVReader) Read(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("reading CSV: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("reading CSV: %w", err)
	}
	return tableFromRecords(records), nil
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

// tableFromRecords zips string records with the trimmed header line.
func tableFromRecords(records [][]string) Table {
	if len(records) == 0 {
		return Table{}
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var rows []model.RawRow
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		rows = append(rows, model.RowFromStrings(headers, rec))
	}
	return Table{Headers: headers, Rows: rows}
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
