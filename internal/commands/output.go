package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/review"
)

func printMappings(w io.Writer, mappings []model.ColumnMapping) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTARGET\tCONFIDENCE")
	for _, m := range mappings {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\n", m.Source, m.Target, m.Confidence)
	}
	return tw.Flush()
}

// printReview writes one line per transaction. Duplicates are marked "D",
// rows a ledger would refuse "?", failed conversions "!" and selected rows "x".
func printReview(w io.Writer, sess *review.Session) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if sess.Kind() == model.KindRevenue {
		fmt.Fprintln(tw, "#\tSEL\tDATE\tSOURCE\tAMOUNT\tCUR\tMETHOD\tORIGINAL\tNOTE")
	} else {
		fmt.Fprintln(tw, "#\tSEL\tDATE\tDESCRIPTION\tAMOUNT\tCUR\tJAR\tORIGINAL\tNOTE")
	}

	for i, tx := range sess.Transactions() {
		extra := ""
		if tx.Spending != nil {
			extra = string(tx.Spending.SuggestedJar)
		} else if tx.Revenue != nil {
			extra = tx.Revenue.SuggestedMethod
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i, mark(tx), tx.Date, tx.Label(), tx.Amount.StringFixed(2), tx.Currency, extra, original(tx), note(tx))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := sess.Summary()
	_, err := fmt.Fprintf(w, "\n%d transactions, %d selected, %d duplicates, %d rows dropped, %d loose amounts, %d conversion failures, %d not importable\n",
		s.Total, s.Selected, s.Duplicates, s.Dropped, s.LooseAmounts, s.ConversionFailures, s.Unimportable)
	return err
}

func mark(tx model.Transaction) string {
	switch {
	case tx.Duplicate():
		return "D"
	case review.Problem(tx) != "":
		return "?"
	case tx.Converted() && tx.ConversionRate == nil:
		return "!"
	case tx.Selected:
		return "x"
	}
	return ""
}

func original(tx model.Transaction) string {
	if tx.OriginalCurrency == "" || tx.OriginalCurrency == tx.Currency {
		return ""
	}
	return tx.OriginalAmount.StringFixed(2) + " " + tx.OriginalCurrency
}

func note(tx model.Transaction) string {
	if tx.DuplicateNote != nil {
		return *tx.DuplicateNote
	}
	if p := review.Problem(tx); p != "" {
		return p
	}
	if tx.ConversionNote != nil {
		return *tx.ConversionNote
	}
	return ""
}
