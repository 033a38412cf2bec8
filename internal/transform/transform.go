// Package transform builds transactions from raw statement rows and a column mapping.
package transform

import (
	"errors"
	"fmt"

	"github.com/cleared-dev/stmtimport/internal/amount"
	"github.com/cleared-dev/stmtimport/internal/category"
	"github.com/cleared-dev/stmtimport/internal/datenorm"
	"github.com/cleared-dev/stmtimport/internal/mapping"
	"github.com/cleared-dev/stmtimport/internal/model"
)

// FallbackAccount labels transactions when neither a column nor an account name is available.
const FallbackAccount = "Imported"

// ErrMissingMapping is matched by every MappingError.
var ErrMissingMapping = errors.New("missing required column mapping")

// MappingError reports a required target with no source column mapped to it.
type MappingError struct {
	Kind    model.Kind
	Targets []string // any one of these would satisfy the requirement
}

func (e *MappingError) Error() string {
	if len(e.Targets) == 1 {
		return fmt.Sprintf("%s import: no column mapped to %s", e.Kind, e.Targets[0])
	}
	return fmt.Sprintf("%s import: no column mapped to %s or %s", e.Kind, e.Targets[0], e.Targets[1])
}

// Is makes errors.Is(err, ErrMissingMapping) hold.
func (e *MappingError) Is(target error) bool { return target == ErrMissingMapping }

// Drop reasons reported for rejected rows.
const (
	ReasonEmptyDate        = "empty date"
	ReasonNonPositive      = "amount is not positive"
	ReasonEmptyDescription = "empty description"
	ReasonEmptySource      = "empty source"
)

// Drop describes a row rejected by the acceptance filter.
type Drop struct {
	Row    int    `json:"row"` // zero-based index into the input rows
	Reason string `json:"reason"`
}

// Report is the transform output plus diagnostics for dropped rows.
type Report struct {
	Transactions []model.Transaction
	Dropped      []Drop
	// Loose counts kept rows whose amount fell back to the loose parser.
	Loose int
}

// Transform maps rows to transactions of the given kind. Rows that fail the
// acceptance filter are dropped silently; use Run for the drop report.
func Transform(rows []model.RawRow, mappings []model.ColumnMapping, account string, kind model.Kind) ([]model.Transaction, error) {
	rep, err := Run(rows, mappings, account, kind)
	if err != nil {
		return nil, err
	}
	return rep.Transactions, nil
}

// Run is Transform with a report of every dropped row.
func Run(rows []model.RawRow, mappings []model.ColumnMapping, account string, kind model.Kind) (Report, error) {
	b, err := newBuilder(mappings, account, kind)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Transactions: make([]model.Transaction, 0, len(rows))}
	for i, row := range rows {
		tx, strict := b.build(row)
		if reason := reject(tx); reason != "" {
			rep.Dropped = append(rep.Dropped, Drop{Row: i, Reason: reason})
			continue
		}
		if !strict {
			rep.Loose++
		}
		rep.Transactions = append(rep.Transactions, tx)
	}
	return rep, nil
}

// builder holds the resolved target -> source column lookup for one run.
type builder struct {
	kind    model.Kind
	account string
	cols    map[string]string
}

func newBuilder(mappings []model.ColumnMapping, account string, kind model.Kind) (*builder, error) {
	if kind != model.KindSpending && kind != model.KindRevenue {
		return nil, fmt.Errorf("unknown transaction kind %q", kind)
	}
	cols := mapping.Index(mappings)

	if _, ok := cols[model.TargetDate]; !ok {
		return nil, &MappingError{Kind: kind, Targets: []string{model.TargetDate}}
	}
	amountTarget := model.TargetAmount
	if kind == model.KindRevenue {
		amountTarget = model.TargetMontant
	}
	if _, ok := cols[amountTarget]; !ok {
		return nil, &MappingError{Kind: kind, Targets: []string{amountTarget}}
	}
	if kind == model.KindSpending && !has(cols, model.TargetDescription) && !has(cols, model.TargetSource) {
		return nil, &MappingError{Kind: kind, Targets: []string{model.TargetDescription, model.TargetSource}}
	}

	return &builder{kind: kind, account: account, cols: cols}, nil
}

func has(cols map[string]string, target string) bool {
	_, ok := cols[target]
	return ok
}

// text returns the trimmed cell for target, or "" when unmapped or absent.
func (b *builder) text(row model.RawRow, target string) string {
	src, ok := b.cols[target]
	if !ok {
		return ""
	}
	return row.Text(src)
}

func (b *builder) cell(row model.RawRow, target string) model.Cell {
	src, ok := b.cols[target]
	if !ok {
		return model.Text("")
	}
	c, ok := row.Get(src)
	if !ok {
		return model.Text("")
	}
	return c
}

// label is the description column, else the source column.
func (b *builder) label(row model.RawRow) string {
	if s := b.text(row, model.TargetDescription); s != "" {
		return s
	}
	return b.text(row, model.TargetSource)
}

func (b *builder) accountOr(value string) string {
	if value != "" {
		return value
	}
	if b.account != "" {
		return b.account
	}
	return FallbackAccount
}

func (b *builder) build(row model.RawRow) (model.Transaction, bool) {
	date := datenorm.Normalize(b.text(row, model.TargetDate))

	hint := b.text(row, model.TargetCurrency)
	if hint == "" {
		hint = b.text(row, model.TargetValeur)
	}

	if b.kind == model.KindRevenue {
		amt := amount.Parse(b.cell(row, model.TargetMontant), hint)
		return model.NewRevenue(date, amt.Amount, amt.Currency, model.Revenue{
			SuggestedSource:   b.accountOr(b.label(row)),
			SuggestedMethod:   b.text(row, model.TargetMethode),
			Valeur:            b.text(row, model.TargetValeur),
			QuantiteCrypto:    b.text(row, model.TargetQuantiteCrypto),
			TauxUSDEUR:        b.text(row, model.TargetTauxUSDEUR),
			AdresseCrypto:     b.text(row, model.TargetAdresseCrypto),
			CompteDestination: b.text(row, model.TargetCompteDestination),
			Type:              b.text(row, model.TargetType),
		}), amt.Strict
	}

	amt := amount.Parse(b.cell(row, model.TargetAmount), hint)
	desc := b.label(row)
	return model.NewSpending(date, amt.Amount, amt.Currency, model.Spending{
		Description:      desc,
		SuggestedJar:     category.Classify(desc),
		SuggestedAccount: b.accountOr(b.text(row, model.TargetAccount)),
	}), amt.Strict
}

func reject(tx model.Transaction) string {
	switch {
	case tx.Date == "":
		return ReasonEmptyDate
	case !tx.Amount.IsPositive():
		return ReasonNonPositive
	case tx.Revenue != nil && tx.Revenue.SuggestedSource == "":
		return ReasonEmptySource
	case tx.Spending != nil && tx.Spending.Description == "":
		return ReasonEmptyDescription
	}
	return ""
}
