package fxrate

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/stmtimport/internal/logger"
	"github.com/cleared-dev/stmtimport/internal/model"
)

// Converter rewrites non-EUR transactions into EUR, recording provenance.
type Converter struct {
	rates       RateSource
	concurrency int
}

// NewConverter creates a Converter. concurrency < 1 means sequential.
func NewConverter(rates RateSource, concurrency int) *Converter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Converter{rates: rates, concurrency: concurrency}
}

// ConvertAll converts txns in place and returns them in the same order.
// A failed lookup leaves that transaction unconverted with a nil rate and a
// warning note; it never aborts the batch.
func (c *Converter) ConvertAll(ctx context.Context, txns []model.Transaction) []model.Transaction {
	log := logger.FromContext(ctx)

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i := range txns {
		g.Go(func() error {
			c.convert(ctx, &txns[i])
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, tx := range txns {
		if tx.ConversionRate == nil {
			failed++
		}
	}
	if failed > 0 {
		log.Warn().Int("failed", failed).Int("total", len(txns)).Msg("currency conversion degraded")
	}
	return txns
}

func (c *Converter) convert(ctx context.Context, tx *model.Transaction) {
	tx.OriginalAmount = tx.Amount
	tx.OriginalCurrency = tx.Currency

	if tx.Currency == model.BaseCurrency {
		one := decimal.NewFromInt(1)
		tx.ConversionRate = &one
		tx.ConversionNote = nil
		return
	}

	rate, err := c.rates.Rate(ctx, tx.Date, tx.Currency, model.BaseCurrency)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Debug().Err(err).
			Str("date", tx.Date).
			Str("currency", tx.Currency).
			Msg("rate lookup failed")
		note := fmt.Sprintf("Conversion failed: amount kept in %s (%v)", tx.Currency, err)
		tx.ConversionRate = nil
		tx.ConversionNote = &note
		return
	}

	converted := tx.Amount.Mul(rate).Round(2)
	note := fmt.Sprintf("Converted from %s %s at %s %s/%s on %s",
		tx.Amount.StringFixed(2), tx.Currency, rate.String(), tx.Currency, model.BaseCurrency, tx.Date)
	tx.Amount = converted
	tx.Currency = model.BaseCurrency
	tx.ConversionRate = &rate
	tx.ConversionNote = &note
}
