// Package review runs the normalization pipeline and holds the reviewed batch
// until the user imports it.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cleared-dev/stmtimport/internal/datenorm"
	"github.com/cleared-dev/stmtimport/internal/dedup"
	"github.com/cleared-dev/stmtimport/internal/fxrate"
	"github.com/cleared-dev/stmtimport/internal/logger"
	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/transform"
)

var (
	// ErrImportFailed wraps any sink failure. The session is left intact for a retry.
	ErrImportFailed = errors.New("import failed")
	// ErrDuplicateNotSelectable is returned when selecting a transaction flagged as duplicate.
	ErrDuplicateNotSelectable = errors.New("duplicate transactions cannot be selected")
	// ErrNothingSelected is returned by Import when no transaction is selected.
	ErrNothingSelected = errors.New("no transactions selected")
	// ErrNotImportable is returned by Import when a selected transaction cannot
	// be written to a ledger. Nothing is sent to the sink.
	ErrNotImportable = errors.New("selected transactions cannot be imported")
)

// Problem reports why tx cannot be written to a ledger, or "" when it can.
// Dates the normalizer did not recognize and amounts below one cent are kept
// in review but refused at import.
func Problem(tx model.Transaction) string {
	if _, err := time.Parse(datenorm.Layout, tx.Date); err != nil {
		return fmt.Sprintf("date %q is not YYYY-MM-DD", tx.Date)
	}
	if !tx.LedgerAmount().IsPositive() {
		return fmt.Sprintf("amount %s rounds to zero", tx.Amount)
	}
	return ""
}

// Sink persists imported transactions.
type Sink interface {
	Import(ctx context.Context, txns []model.Transaction, kind model.Kind) error
}

// Input is one pipeline invocation.
type Input struct {
	Rows     []model.RawRow
	Mappings []model.ColumnMapping
	Account  string
	Kind     model.Kind
}

// Pipeline chains transform, conversion and duplicate reconciliation.
type Pipeline struct {
	converter  *fxrate.Converter
	reconciler *dedup.Reconciler
}

// NewPipeline creates a Pipeline.
func NewPipeline(converter *fxrate.Converter, reconciler *dedup.Reconciler) *Pipeline {
	return &Pipeline{converter: converter, reconciler: reconciler}
}

// Run executes transform -> convert -> reconcile in strict sequence and returns
// a Session with selection derived from the duplicate verdicts. Only a missing
// required mapping (or an invalid kind) is an error.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Session, error) {
	log := logger.FromContext(ctx).With().Str("kind", string(in.Kind)).Logger()

	rep, err := transform.Run(in.Rows, in.Mappings, in.Account, in.Kind)
	if err != nil {
		return nil, fmt.Errorf("transforming rows: %w", err)
	}
	log.Info().
		Int("rows", len(in.Rows)).
		Int("kept", len(rep.Transactions)).
		Int("dropped", len(rep.Dropped)).
		Msg("rows transformed")

	txns := p.converter.ConvertAll(ctx, rep.Transactions)
	txns = p.reconciler.Reconcile(ctx, txns, in.Kind)
	dedup.DeriveSelection(txns)

	return &Session{
		kind:    in.Kind,
		txns:    txns,
		dropped: rep.Dropped,
		loose:   rep.Loose,
	}, nil
}

// Session is a batch under review.
type Session struct {
	kind    model.Kind
	txns    []model.Transaction
	dropped []transform.Drop
	loose   int
	done    bool
}

// NewSession wraps already-prepared transactions (e.g. sent back by a client)
// for selection and import. Duplicates are forced to unselected.
func NewSession(kind model.Kind, txns []model.Transaction) *Session {
	s := &Session{kind: kind, txns: txns}
	for i := range s.txns {
		if s.txns[i].Duplicate() {
			s.txns[i].Selected = false
		}
	}
	return s
}

// Kind returns the batch kind.
func (s *Session) Kind() model.Kind { return s.kind }

// Transactions returns a copy of the batch.
func (s *Session) Transactions() []model.Transaction {
	out := make([]model.Transaction, len(s.txns))
	for i, tx := range s.txns {
		out[i] = tx.Clone()
	}
	return out
}

// Dropped returns the rows removed by the transform filter.
func (s *Session) Dropped() []transform.Drop { return s.dropped }

// Imported reports whether Import has succeeded.
func (s *Session) Imported() bool { return s.done }

// Summary counts the batch for display and the run log.
type Summary struct {
	Total              int `json:"total"`
	Selected           int `json:"selected"`
	Duplicates         int `json:"duplicates"`
	Dropped            int `json:"dropped"`
	LooseAmounts       int `json:"looseAmounts"`
	ConversionFailures int `json:"conversionFailures"`
	Unimportable       int `json:"unimportable"`
}

// Summary returns the current counts.
func (s *Session) Summary() Summary {
	sum := Summary{Total: len(s.txns), Dropped: len(s.dropped), LooseAmounts: s.loose}
	for _, tx := range s.txns {
		if tx.Selected {
			sum.Selected++
		}
		if tx.Duplicate() {
			sum.Duplicates++
		}
		if tx.Converted() && tx.ConversionRate == nil {
			sum.ConversionFailures++
		}
		if Problem(tx) != "" {
			sum.Unimportable++
		}
	}
	return sum
}

func (s *Session) at(i int) (*model.Transaction, error) {
	if i < 0 || i >= len(s.txns) {
		return nil, fmt.Errorf("transaction %d out of range (0..%d)", i, len(s.txns)-1)
	}
	return &s.txns[i], nil
}

// SetSelected toggles user intent for transaction i. Duplicates cannot be selected.
func (s *Session) SetSelected(i int, selected bool) error {
	tx, err := s.at(i)
	if err != nil {
		return err
	}
	if selected && tx.Duplicate() {
		return fmt.Errorf("transaction %d: %w", i, ErrDuplicateNotSelectable)
	}
	tx.Selected = selected
	return nil
}

// SelectAll selects every non-duplicate transaction, or clears all selections.
func (s *Session) SelectAll(selected bool) {
	for i := range s.txns {
		s.txns[i].Selected = selected && !s.txns[i].Duplicate()
	}
}

// Edit overwrites the user-editable fields of transaction i with those of edited:
// date, amount, currency and the variant fields. Selection, duplicate verdict
// and conversion provenance are kept.
func (s *Session) Edit(i int, edited model.Transaction) error {
	tx, err := s.at(i)
	if err != nil {
		return err
	}
	if edited.Kind() != s.kind {
		return fmt.Errorf("transaction %d: cannot change kind from %s to %s", i, s.kind, edited.Kind())
	}
	date, err := datenorm.Parse(edited.Date)
	if err != nil {
		return fmt.Errorf("transaction %d: %w", i, err)
	}
	if !edited.Amount.IsPositive() {
		return fmt.Errorf("transaction %d: amount must be positive", i)
	}
	if edited.Spending != nil && edited.Spending.Description == "" {
		return fmt.Errorf("transaction %d: description is required", i)
	}
	if edited.Spending != nil && !edited.Spending.SuggestedJar.Valid() {
		return fmt.Errorf("transaction %d: unknown jar %q", i, edited.Spending.SuggestedJar)
	}

	e := edited.Clone()
	tx.Date = date.Format(datenorm.Layout)
	tx.Amount = e.Amount
	tx.Currency = e.Currency
	tx.Spending = e.Spending
	tx.Revenue = e.Revenue
	return nil
}

// Selected returns the transactions that would be imported: selected and not duplicate.
func (s *Session) Selected() []model.Transaction {
	var out []model.Transaction
	for _, tx := range s.txns {
		if tx.Selected && !tx.Duplicate() {
			out = append(out, tx.Clone())
		}
	}
	return out
}

// Import sends the selected subset to sink in a single call. On failure the
// session is unchanged and Import may be called again.
func (s *Session) Import(ctx context.Context, sink Sink) (int, error) {
	selected := s.Selected()
	if len(selected) == 0 {
		return 0, ErrNothingSelected
	}

	var problems []string
	for i, tx := range s.txns {
		if !tx.Selected || tx.Duplicate() {
			continue
		}
		if p := Problem(tx); p != "" {
			problems = append(problems, fmt.Sprintf("transaction %d: %s", i, p))
		}
	}
	if len(problems) > 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotImportable, strings.Join(problems, "; "))
	}
	if err := sink.Import(ctx, selected, s.kind); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Int("selected", len(selected)).Msg("import failed")
		return 0, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	s.done = true
	return len(selected), nil
}
