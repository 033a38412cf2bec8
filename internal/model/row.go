package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cell is a single scalar value from a statement row: either text or a number.
type Cell struct {
	text     string
	number   decimal.Decimal
	isNumber bool
}

// Text returns a text cell.
func Text(s string) Cell { return Cell{text: s} }

// Number returns a numeric cell.
func Number(d decimal.Decimal) Cell { return Cell{number: d, isNumber: true} }

// IsNumber reports whether the cell holds a number.
func (c Cell) IsNumber() bool { return c.isNumber }

// Decimal returns the numeric value. Zero for text cells.
func (c Cell) Decimal() decimal.Decimal { return c.number }

// String returns the cell as text. Numbers are rendered without trailing zeros.
func (c Cell) String() string {
	if c.isNumber {
		return c.number.String()
	}
	return c.text
}

// MarshalJSON writes numbers as JSON numbers and text as JSON strings.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.isNumber {
		return []byte(c.number.String()), nil
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON accepts a JSON string, number, boolean or null.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Cell{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding cell: %w", err)
		}
		*c = Text(s)
	case bytes.Equal(data, []byte("true")) || bytes.Equal(data, []byte("false")):
		*c = Text(string(data))
	default:
		d, err := decimal.NewFromString(string(data))
		if err != nil {
			return fmt.Errorf("decoding cell %s: %w", data, err)
		}
		*c = Number(d)
	}
	return nil
}

// RawRow maps source column names to cell values for one input record.
type RawRow map[string]Cell

// Get returns the cell for column and whether the column is present.
func (r RawRow) Get(column string) (Cell, bool) {
	c, ok := r[column]
	return c, ok
}

// Text returns the trimmed text of column, or "" when the column is absent.
func (r RawRow) Text(column string) string {
	c, ok := r[column]
	if !ok {
		return ""
	}
	return strings.TrimSpace(c.String())
}

// RowFromStrings builds a RawRow by zipping headers with record values.
// Missing trailing values become empty text cells.
func RowFromStrings(headers, record []string) RawRow {
	row := make(RawRow, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		v := ""
		if i < len(record) {
			v = record[i]
		}
		row[h] = Text(v)
	}
	return row
}
