// Package journal stores imported transactions as monthly CSV journals
// under <root>/YYYY/MM/journal.csv.
package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// Header is the CSV header for journal.csv.
const Header = "entry_id,date,kind,label,amount,currency,jar,account,method,valeur,quantite_crypto,taux_usd_eur,adresse_crypto,compte_destination,type,original_amount,original_currency,conversion_rate,notes"

const (
	numFields     = 19
	dateFormat    = "2006-01-02"
	colEntryID    = 0
	colDate       = 1
	colKind       = 2
	colLabel      = 3
	colAmount     = 4
	colCurrency   = 5
	colJar        = 6
	colAccount    = 7
	colMethod     = 8
	colValeur     = 9
	colQuantite   = 10
	colTaux       = 11
	colAdresse    = 12
	colCompteDest = 13
	colType       = 14
	colOrigAmount = 15
	colOrigCurr   = 16
	colRate       = 17
	colNotes      = 18
)

// Entry is a single row in journal.csv.
type Entry struct {
	ID       string
	Date     time.Time
	Kind     model.Kind
	Label    string // description for spending, source for revenue
	Amount   decimal.Decimal
	Currency string

	Jar     model.Jar // spending only
	Account string    // spending only

	Method            string // revenue only
	Valeur            string
	QuantiteCrypto    string
	TauxUSDEUR        string
	AdresseCrypto     string
	CompteDestination string
	Type              string

	OriginalAmount   decimal.Decimal // zero when not converted
	OriginalCurrency string
	ConversionRate   *decimal.Decimal
	Notes            string // semicolon-separated
}

// NewEntry builds an Entry from a reviewed transaction.
func NewEntry(entryID string, tx model.Transaction) (Entry, error) {
	date, err := time.Parse(dateFormat, tx.Date)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing date %q: %w", tx.Date, err)
	}

	e := Entry{
		ID:               entryID,
		Date:             date,
		Kind:             tx.Kind(),
		Label:            tx.Label(),
		Amount:           tx.LedgerAmount(),
		Currency:         tx.Currency,
		OriginalCurrency: tx.OriginalCurrency,
		ConversionRate:   tx.ConversionRate,
	}
	if tx.Converted() {
		e.OriginalAmount = tx.OriginalAmount
	}

	var notes []string
	if tx.ConversionNote != nil {
		notes = append(notes, *tx.ConversionNote)
	}
	if tx.DuplicateNote != nil {
		notes = append(notes, *tx.DuplicateNote)
	}
	e.Notes = strings.Join(notes, "; ")

	if s := tx.Spending; s != nil {
		e.Jar = s.SuggestedJar
		e.Account = s.SuggestedAccount
	}
	if r := tx.Revenue; r != nil {
		e.Method = r.SuggestedMethod
		e.Valeur = r.Valeur
		e.QuantiteCrypto = r.QuantiteCrypto
		e.TauxUSDEUR = r.TauxUSDEUR
		e.AdresseCrypto = r.AdresseCrypto
		e.CompteDestination = r.CompteDestination
		e.Type = r.Type
	}
	return e, nil
}

// ReadEntries reads all entries from a journal.csv reader.
func ReadEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteEntries writes entries to a journal.csv writer (including header).
func WriteEntries(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// AppendEntries appends entries to an existing journal.csv writer (no header).
func AppendEntries(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	return cw.Error()
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colEntryID] = e.ID
	row[colDate] = e.Date.Format(dateFormat)
	row[colKind] = string(e.Kind)
	row[colLabel] = e.Label
	row[colAmount] = e.Amount.StringFixed(2)
	row[colCurrency] = e.Currency
	row[colJar] = string(e.Jar)
	row[colAccount] = e.Account
	row[colMethod] = e.Method
	row[colValeur] = e.Valeur
	row[colQuantite] = e.QuantiteCrypto
	row[colTaux] = e.TauxUSDEUR
	row[colAdresse] = e.AdresseCrypto
	row[colCompteDest] = e.CompteDestination
	row[colType] = e.Type

	if e.OriginalCurrency != "" {
		row[colOrigAmount] = e.OriginalAmount.StringFixed(2)
	}
	row[colOrigCurr] = e.OriginalCurrency
	if e.ConversionRate != nil {
		row[colRate] = e.ConversionRate.String()
	}
	row[colNotes] = e.Notes

	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	kind, err := model.ParseKind(record[colKind])
	if err != nil {
		return Entry{}, err
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	var original decimal.Decimal
	if record[colOrigAmount] != "" {
		original, err = decimal.NewFromString(record[colOrigAmount])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing original_amount %q: %w", record[colOrigAmount], err)
		}
	}

	var rate *decimal.Decimal
	if record[colRate] != "" {
		r, err := decimal.NewFromString(record[colRate])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing conversion_rate %q: %w", record[colRate], err)
		}
		rate = &r
	}

	return Entry{
		ID:                record[colEntryID],
		Date:              date,
		Kind:              kind,
		Label:             record[colLabel],
		Amount:            amount,
		Currency:          record[colCurrency],
		Jar:               model.Jar(record[colJar]),
		Account:           record[colAccount],
		Method:            record[colMethod],
		Valeur:            record[colValeur],
		QuantiteCrypto:    record[colQuantite],
		TauxUSDEUR:        record[colTaux],
		AdresseCrypto:     record[colAdresse],
		CompteDestination: record[colCompteDest],
		Type:              record[colType],
		OriginalAmount:    original,
		OriginalCurrency:  record[colOrigCurr],
		ConversionRate:    rate,
		Notes:             record[colNotes],
	}, nil
}
