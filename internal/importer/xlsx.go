package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// XLSXReader reads the first worksheet of an Excel workbook.
type XLSXReader struct{}

// Format returns the reader name.
func (p *XLSXReader) Format() string { return "xlsx" }

// Read returns the first sheet's header row and data rows. Cells whose
// displayed value is numeric become number cells; everything else (dates
// included) keeps its displayed text.
func (p *XLSXReader) Read(r io.Reader) (Table, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("opening workbook: %w", err)
	}
	defer xl.Close()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, nil
	}
	sheet := sheets[0]

	shown, err := xl.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	raw, err := xl.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	if len(shown) == 0 {
		return Table{}, nil
	}

	headers := make([]string, len(shown[0]))
	for i, h := range shown[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var rows []model.RawRow
	for i, rec := range shown[1:] {
		if blank(rec) {
			continue
		}
		var rawRec []string
		if i+1 < len(raw) {
			rawRec = raw[i+1]
		}
		row := model.RowFromStrings(headers, rec)
		for j, h := range headers {
			if h == "" || j >= len(rec) || j >= len(rawRec) {
				continue
			}
			if n, ok := numericCell(rec[j], rawRec[j]); ok {
				row[h] = model.Number(n)
			}
		}
		rows = append(rows, row)
	}
	return Table{Headers: headers, Rows: rows}, nil
}

// numericCell reports a number when both the displayed and the stored value parse as one.
func numericCell(shown, raw string) (decimal.Decimal, bool) {
	shown = strings.ReplaceAll(strings.TrimSpace(shown), ",", "")
	if _, err := decimal.NewFromString(shown); err != nil {
		return decimal.Zero, false
	}
	n, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, false
	}
	return n, true
}
