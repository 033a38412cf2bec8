// Package amount extracts a non-negative magnitude and a currency code from a statement cell.
package amount

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// DefaultCurrency applies when neither a hint nor an embedded code is present.
const DefaultCurrency = model.BaseCurrency

// Currencies is the allowlist of codes recognized inside an amount string.
var Currencies = []string{"EUR", "USD", "AUD", "GBP", "CAD", "CHF", "THB", "CNY", "JPY"}

// strictPattern: signed decimal, comma thousands separators, exactly two decimals,
// optional whitespace-separated currency code from the allowlist.
var strictPattern = regexp.MustCompile(`^([+-]?\d{1,3}(?:,?\d{3})*\.\d{2})(?:\s+(` + strings.Join(Currencies, "|") + `))?$`)

var leadingNumber = regexp.MustCompile(`^-?(?:\d+(?:\.\d*)?|\.\d+)`)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// Result is a parsed amount.
type Result struct {
	Amount   decimal.Decimal // always >= 0
	Currency string
	// Strict is true when the string matched the strict pattern (or the cell was numeric).
	Strict bool
}

// Parse reads raw using hint as the currency when it is a 3-letter code.
// Unparseable input yields a zero amount rather than an error.
func Parse(raw model.Cell, hint string) Result {
	currency := DefaultCurrency
	if h := strings.ToUpper(strings.TrimSpace(hint)); currencyCode.MatchString(h) {
		currency = h
	}

	if raw.IsNumber() {
		return Result{Amount: raw.Decimal().Abs(), Currency: currency, Strict: true}
	}

	s := strings.TrimSpace(raw.String())
	if m := strictPattern.FindStringSubmatch(s); m != nil {
		d, err := decimal.NewFromString(strings.TrimPrefix(strings.ReplaceAll(m[1], ",", ""), "+"))
		if err == nil {
			if m[2] != "" {
				currency = m[2]
			}
			return Result{Amount: d.Abs(), Currency: currency, Strict: true}
		}
	}

	return Result{Amount: loose(s), Currency: currency}
}

// loose strips everything except digits, dots, minus signs and commas, then
// reads the leading number. A comma is the decimal separator only when there is
// no dot and the last comma is followed by one or two trailing digits ("12,50");
// otherwise commas are thousands separators and dropped ("1,234,567").
func loose(s string) decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '.' || r == '-' || r == ',' {
			return r
		}
		return -1
	}, s)
	if decimalComma(cleaned) {
		i := strings.LastIndex(cleaned, ",")
		cleaned = strings.ReplaceAll(cleaned[:i], ",", "") + "." + cleaned[i+1:]
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	num := leadingNumber.FindString(cleaned)
	if num == "" || num == "-" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(num, "."))
	if err != nil {
		return decimal.Zero
	}
	return d.Abs()
}

func decimalComma(s string) bool {
	if strings.Contains(s, ".") {
		return false
	}
	i := strings.LastIndex(s, ",")
	if i < 0 {
		return false
	}
	frac := s[i+1:]
	if len(frac) < 1 || len(frac) > 2 {
		return false
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
