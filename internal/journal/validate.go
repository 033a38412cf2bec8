package journal

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/stmtimport/internal/id"
	"github.com/cleared-dev/stmtimport/internal/model"
)

// ValidationError describes a single rule violation.
type ValidationError struct {
	Rule        int
	EntryID     string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("rule %d [%s]: %s", e.Rule, e.EntryID, e.Description)
}

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateEntries enforces the journal rules on the entries of one month.
func ValidateEntries(entries []Entry, year, month int) []ValidationError {
	var errs []ValidationError
	add := func(rule int, entryID, format string, args ...any) {
		errs = append(errs, ValidationError{Rule: rule, EntryID: entryID, Description: fmt.Sprintf(format, args...)})
	}

	hundred := decimal.NewFromInt(100)
	for _, e := range entries {
		// Rule 1: positive amount with at most 2 decimal places.
		if !e.Amount.IsPositive() {
			add(1, e.ID, "amount %s must be positive", e.Amount)
		} else if !e.Amount.Mul(hundred).Equal(e.Amount.Mul(hundred).Floor()) {
			add(1, e.ID, "amount %s has more than 2 decimal places", e.Amount)
		}

		// Rule 2: date within month.
		if e.Date.Year() != year || int(e.Date.Month()) != month {
			add(2, e.ID, "date %s not in %04d-%02d", e.Date.Format(dateFormat), year, month)
		}

		// Rule 3: three-letter currency code.
		if !currencyCode.MatchString(e.Currency) {
			add(3, e.ID, "invalid currency %q", e.Currency)
		}

		// Rule 4: non-empty label.
		if e.Label == "" {
			add(4, e.ID, "label is empty")
		}

		// Rule 5: spending entries carry a known jar.
		if e.Kind == model.KindSpending && !e.Jar.Valid() {
			add(5, e.ID, "unknown jar %q", e.Jar)
		}
	}

	// Rule 6: IDs belong to the month, unique, contiguous 1..N.
	seqSeen := make(map[int]bool)
	for _, e := range entries {
		y, m, seq, err := id.ParseEntryID(e.ID)
		if err != nil {
			add(6, e.ID, "invalid entry ID: %v", err)
			continue
		}
		if y != year || m != month {
			add(6, e.ID, "entry ID not in %04d-%02d", year, month)
		}
		if seqSeen[seq] {
			add(6, e.ID, "duplicate sequence %d", seq)
		}
		seqSeen[seq] = true
	}
	for i := 1; i <= len(seqSeen); i++ {
		if !seqSeen[i] {
			add(6, fmt.Sprintf("seq %d", i), "missing sequence %d in 1..%d", i, len(seqSeen))
		}
	}

	return errs
}
