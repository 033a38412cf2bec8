package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/stmtimport/internal/dedup"
	"github.com/cleared-dev/stmtimport/internal/fxrate"
	"github.com/cleared-dev/stmtimport/internal/logger"
	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/transform"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func identity(targets ...string) []model.ColumnMapping {
	ms := make([]model.ColumnMapping, len(targets))
	for i, t := range targets {
		ms[i] = model.ColumnMapping{Source: t, Target: t, Confidence: 1}
	}
	return ms
}

func row(kv ...string) model.RawRow {
	r := make(model.RawRow)
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i]] = model.Text(kv[i+1])
	}
	return r
}

// services starts a fake rate service (USD->EUR 0.92 on any date) and a duplicate
// service that flags any transaction whose label is in dupLabels.
func services(t *testing.T, dupLabels ...string) (*fxrate.Client, *dedup.Client) {
	t.Helper()
	rates := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") != "USD" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"rates":{"EUR":0.92}}`)
	}))
	t.Cleanup(rates.Close)

	dups := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Transactions []map[string]any `json:"transactions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, tx := range req.Transactions {
			label, _ := tx["description"].(string)
			if label == "" {
				label, _ = tx["suggestedSource"].(string)
			}
			tx["isDuplicate"] = false
			tx["duplicateNote"] = nil
			for _, d := range dupLabels {
				if d == label {
					tx["isDuplicate"] = true
					tx["duplicateNote"] = "same date and amount already in ledger"
				}
			}
		}
		_ = json.NewEncoder(w).Encode(req)
	}))
	t.Cleanup(dups.Close)

	return fxrate.NewClient(rates.URL, time.Second), dedup.NewClient(dups.URL, "", time.Second)
}

func newPipeline(t *testing.T, dupLabels ...string) *Pipeline {
	rates, dups := services(t, dupLabels...)
	return NewPipeline(fxrate.NewConverter(rates, 1), dedup.NewReconciler(dups))
}

type recordingSink struct {
	calls [][]model.Transaction
	kinds []model.Kind
	err   error
}

func (s *recordingSink) Import(_ context.Context, txns []model.Transaction, kind model.Kind) error {
	s.calls = append(s.calls, txns)
	s.kinds = append(s.kinds, kind)
	return s.err
}

func TestRun_SpendingScenario(t *testing.T) {
	p := newPipeline(t)
	s, err := p.Run(context.Background(), Input{
		Rows: []model.RawRow{row(
			"Date", "21 November 2025 , 02:37am",
			"Description", "Carrefour Paris",
			"Amount", "45.90 EUR",
		)},
		Mappings: identity("Date", "Description", "Amount"),
		Account:  "Revolut",
		Kind:     model.KindSpending,
	})
	require.NoError(t, err)

	txns := s.Transactions()
	require.Len(t, txns, 1)
	tx := txns[0]
	assert.Equal(t, "2025-11-21", tx.Date)
	assert.Equal(t, "Carrefour Paris", tx.Description())
	assert.Equal(t, "45.90", tx.Amount.StringFixed(2))
	assert.Equal(t, "EUR", tx.Currency)
	assert.Equal(t, model.JarNEC, tx.Spending.SuggestedJar)
	assert.Equal(t, "Revolut", tx.Spending.SuggestedAccount)
	assert.True(t, tx.ConversionRate.Equal(decimal.NewFromInt(1)))
	assert.False(t, tx.Duplicate())
	assert.True(t, tx.Selected)
}

func TestRun_RevenueScenario(t *testing.T) {
	p := newPipeline(t)
	s, err := p.Run(context.Background(), Input{
		Rows:     []model.RawRow{row("Date", "2025-11-21", "Source", "ACME", "Montant", "100.00 USD")},
		Mappings: identity("Date", "Source", "Montant"),
		Kind:     model.KindRevenue,
	})
	require.NoError(t, err)

	txns := s.Transactions()
	require.Len(t, txns, 1)
	tx := txns[0]
	assert.Equal(t, "92.00", tx.Amount.StringFixed(2))
	assert.Equal(t, "EUR", tx.Currency)
	assert.Equal(t, "100.00", tx.OriginalAmount.StringFixed(2))
	assert.Equal(t, "USD", tx.OriginalCurrency)
	assert.True(t, tx.ConversionRate.Equal(dec("0.92")))
	assert.Equal(t, "ACME", tx.Label())
	assert.Empty(t, tx.Description())
}

func TestRun_MissingMappingHalts(t *testing.T) {
	p := newPipeline(t)
	s, err := p.Run(context.Background(), Input{
		Rows:     []model.RawRow{row("Description", "x", "Amount", "1.00")},
		Mappings: identity("Description", "Amount"),
		Kind:     model.KindSpending,
	})
	assert.Nil(t, s)
	assert.ErrorIs(t, err, transform.ErrMissingMapping)
}

func TestRun_DuplicatesUnselected(t *testing.T) {
	p := newPipeline(t, "Netflix")
	s, err := p.Run(context.Background(), Input{
		Rows: []model.RawRow{
			row("Date", "2025-01-01", "Description", "Lidl", "Amount", "12.00"),
			row("Date", "2025-01-02", "Description", "Netflix", "Amount", "9.99"),
			row("Date", "", "Description", "dropped", "Amount", "9.99"),
		},
		Mappings: identity("Date", "Description", "Amount"),
		Kind:     model.KindSpending,
	})
	require.NoError(t, err)

	txns := s.Transactions()
	require.Len(t, txns, 2)
	assert.True(t, txns[0].Selected)
	assert.False(t, txns[1].Selected)
	assert.True(t, txns[1].Duplicate())

	sum := s.Summary()
	assert.Equal(t, Summary{Total: 2, Selected: 1, Duplicates: 1, Dropped: 1}, sum)

	err = s.SetSelected(1, true)
	assert.ErrorIs(t, err, ErrDuplicateNotSelectable)
	assert.False(t, s.Transactions()[1].Selected)

	s.SelectAll(true)
	assert.Len(t, s.Selected(), 1)
}

func TestRun_DegradedServicesStillProgress(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	p := NewPipeline(
		fxrate.NewConverter(fxrate.NewClient(down.URL, time.Second), 2),
		dedup.NewReconciler(dedup.NewClient(down.URL, "", time.Second)),
	)
	s, err := p.Run(context.Background(), Input{
		Rows:     []model.RawRow{row("Date", "2025-01-01", "Description", "Amazon", "Amount", "30.00 USD")},
		Mappings: identity("Date", "Description", "Amount"),
		Kind:     model.KindSpending,
	})
	require.NoError(t, err)

	tx := s.Transactions()[0]
	assert.Equal(t, "USD", tx.Currency)
	assert.Nil(t, tx.ConversionRate)
	require.NotNil(t, tx.ConversionNote)
	assert.True(t, tx.Selected)
	assert.Equal(t, 1, s.Summary().ConversionFailures)
}

func TestSession_EditAndImport(t *testing.T) {
	s := NewSession(model.KindSpending, []model.Transaction{
		model.NewSpending("2025-01-01", dec("10"), "EUR", model.Spending{Description: "a", SuggestedJar: model.JarNEC}),
		model.NewSpending("2025-01-02", dec("20"), "EUR", model.Spending{Description: "b", SuggestedJar: model.JarNEC}),
	})
	s.SelectAll(true)

	edited := model.NewSpending("2025-01-03", dec("21"), "EUR", model.Spending{Description: "b (fixed)", SuggestedJar: model.JarFFA, SuggestedAccount: "Visa"})
	require.NoError(t, s.Edit(1, edited))
	require.NoError(t, s.SetSelected(0, false))

	sink := &recordingSink{}
	n, err := s.Import(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sink.calls, 1)
	require.Len(t, sink.calls[0], 1)
	assert.Equal(t, "b (fixed)", sink.calls[0][0].Description())
	assert.Equal(t, model.JarFFA, sink.calls[0][0].Spending.SuggestedJar)
	assert.Equal(t, model.KindSpending, sink.kinds[0])
	assert.True(t, s.Imported())
}

func TestSession_EditValidation(t *testing.T) {
	s := NewSession(model.KindSpending, []model.Transaction{
		model.NewSpending("2025-01-01", dec("10"), "EUR", model.Spending{Description: "a", SuggestedJar: model.JarNEC}),
	})
	assert.Error(t, s.Edit(5, s.Transactions()[0]))
	assert.Error(t, s.Edit(0, model.NewRevenue("2025-01-01", dec("1"), "EUR", model.Revenue{SuggestedSource: "x"})))
	assert.Error(t, s.Edit(0, model.NewSpending("", dec("1"), "EUR", model.Spending{Description: "a", SuggestedJar: model.JarNEC})))
	assert.Error(t, s.Edit(0, model.NewSpending("2025-01-01", dec("0"), "EUR", model.Spending{Description: "a", SuggestedJar: model.JarNEC})))
	assert.Error(t, s.Edit(0, model.NewSpending("2025-01-01", dec("1"), "EUR", model.Spending{Description: "", SuggestedJar: model.JarNEC})))
	assert.Error(t, s.Edit(0, model.NewSpending("2025-01-01", dec("1"), "EUR", model.Spending{Description: "a", SuggestedJar: "FUN"})))
	assert.Equal(t, "a", s.Transactions()[0].Description())
}

func TestSession_EditKeepsVerdictAndProvenance(t *testing.T) {
	yes := true
	note := "dup"
	rate := dec("0.9")
	tx := model.NewSpending("2025-01-01", dec("9"), "EUR", model.Spending{Description: "a", SuggestedJar: model.JarNEC})
	tx.IsDuplicate = &yes
	tx.DuplicateNote = &note
	tx.OriginalAmount = dec("10")
	tx.OriginalCurrency = "USD"
	tx.ConversionRate = &rate

	s := NewSession(model.KindSpending, []model.Transaction{tx})
	require.NoError(t, s.Edit(0, model.NewSpending("2025-01-01", dec("9.5"), "EUR", model.Spending{Description: "a2", SuggestedJar: model.JarNEC})))

	got := s.Transactions()[0]
	assert.True(t, got.Duplicate())
	assert.False(t, got.Selected)
	assert.Equal(t, "USD", got.OriginalCurrency)
	assert.Equal(t, "a2", got.Description())
}

func TestSession_ImportFailurePreservesState(t *testing.T) {
	s := NewSession(model.KindRevenue, []model.Transaction{
		model.NewRevenue("2025-01-01", dec("10"), "EUR", model.Revenue{SuggestedSource: "ACME"}),
	})
	s.SelectAll(true)

	sink := &recordingSink{err: errors.New("ledger locked")}
	_, err := s.Import(context.Background(), sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImportFailed)
	assert.Contains(t, err.Error(), "ledger locked")
	assert.False(t, s.Imported())
	assert.Len(t, s.Selected(), 1)

	sink.err = nil
	n, err := s.Import(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, sink.calls, 2)
}

func TestSession_ImportNothingSelected(t *testing.T) {
	s := NewSession(model.KindSpending, nil)
	_, err := s.Import(context.Background(), &recordingSink{})
	assert.ErrorIs(t, err, ErrNothingSelected)
}

func TestNewSession_ForcesDuplicatesUnselected(t *testing.T) {
	yes := true
	tx := model.NewSpending("2025-01-01", dec("10"), "EUR", model.Spending{Description: "a", SuggestedJar: model.JarNEC})
	tx.IsDuplicate = &yes
	tx.Selected = true

	s := NewSession(model.KindSpending, []model.Transaction{tx})
	assert.False(t, s.Transactions()[0].Selected)
	assert.Empty(t, s.Selected())
}

func TestSession_ImportRefusesUnledgerableRows(t *testing.T) {
	s := NewSession(model.KindSpending, []model.Transaction{
		model.NewSpending("2025-12-01", dec("10.00"), "EUR", model.Spending{Description: "ok", SuggestedJar: model.JarNEC}),
		model.NewSpending("5/12/2025", dec("12.00"), "EUR", model.Spending{Description: "odd date", SuggestedJar: model.JarNEC}),
		model.NewSpending("2025-12-02", dec("0.004"), "EUR", model.Spending{Description: "sub-cent", SuggestedJar: model.JarNEC}),
	})
	s.SelectAll(true)
	assert.Equal(t, 2, s.Summary().Unimportable)
	assert.Contains(t, Problem(s.Transactions()[1]), "not YYYY-MM-DD")
	assert.Contains(t, Problem(s.Transactions()[2]), "rounds to zero")
	assert.Empty(t, Problem(s.Transactions()[0]))

	sink := &recordingSink{}
	_, err := s.Import(context.Background(), sink)
	require.ErrorIs(t, err, ErrNotImportable)
	assert.Contains(t, err.Error(), "transaction 1")
	assert.Contains(t, err.Error(), "transaction 2")
	assert.Empty(t, sink.calls)
	assert.False(t, s.Imported())

	fixed := s.Transactions()[1]
	fixed.Date = "05/12/2025"
	require.NoError(t, s.Edit(1, fixed))
	assert.Equal(t, "2025-12-05", s.Transactions()[1].Date)
	require.NoError(t, s.SetSelected(2, false))

	n, err := s.Import(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sink.calls, 1)
}

func TestSession_EditRejectsUnknownDate(t *testing.T) {
	s := NewSession(model.KindSpending, []model.Transaction{
		model.NewSpending("2025-01-01", dec("10"), "EUR", model.Spending{Description: "a", SuggestedJar: model.JarNEC}),
	})
	err := s.Edit(0, model.NewSpending("sometime", dec("10"), "EUR", model.Spending{Description: "a", SuggestedJar: model.JarNEC}))
	assert.ErrorContains(t, err, "parsing date")
	assert.Equal(t, "2025-01-01", s.Transactions()[0].Date)
}

func TestSession_ImportErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewWithOptions(logger.Options{Format: logger.FormatJSON, Out: &buf})
	require.NoError(t, err)
	ctx := logger.WithContext(context.Background(), log)

	s := NewSession(model.KindSpending, []model.Transaction{
		model.NewSpending("2025-01-01", dec("10"), "EUR", model.Spending{Description: "a", SuggestedJar: model.JarNEC}),
	})
	s.SelectAll(true)
	_, err = s.Import(ctx, &recordingSink{err: errors.New("disk full")})
	require.ErrorIs(t, err, ErrImportFailed)
	assert.Contains(t, buf.String(), `"message":"import failed"`)
	assert.Contains(t, buf.String(), "disk full")
}

func TestRun_ThousandsSeparatorKeepsMagnitude(t *testing.T) {
	p := newPipeline(t)
	s, err := p.Run(context.Background(), Input{
		Rows:     []model.RawRow{row("Date", "2025-11-21", "Source", "ACME", "Montant", "1,234,567 USD")},
		Mappings: identity("Date", "Source", "Montant"),
		Kind:     model.KindRevenue,
	})
	require.NoError(t, err)

	txns := s.Transactions()
	require.Len(t, txns, 1)
	// The loose path does not read embedded codes, so the amount stays in EUR.
	assert.Equal(t, "1234567", txns[0].Amount.String())
	assert.Equal(t, "EUR", txns[0].Currency)
}
