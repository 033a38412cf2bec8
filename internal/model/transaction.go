package model

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the currency every transaction is converted to.
const BaseCurrency = "EUR"

// Spending holds the fields only a spending transaction carries.
type Spending struct {
	Description      string
	SuggestedJar     Jar
	SuggestedAccount string
}

// Revenue holds the fields only a revenue transaction carries.
// The crypto and rate fields are passed through verbatim from the statement.
type Revenue struct {
	SuggestedSource   string
	SuggestedMethod   string
	Valeur            string
	QuantiteCrypto    string
	TauxUSDEUR        string
	AdresseCrypto     string
	CompteDestination string
	Type              string
}

// Provenance records how Amount/Currency were derived by currency conversion.
// ConversionRate is nil when conversion failed; ConversionNote is nil when no note applies.
type Provenance struct {
	OriginalAmount   decimal.Decimal
	OriginalCurrency string
	ConversionRate   *decimal.Decimal
	ConversionNote   *string
}

// Transaction is a normalized statement line. Exactly one of Spending or Revenue is set.
type Transaction struct {
	Date     string // YYYY-MM-DD
	Amount   decimal.Decimal
	Currency string
	Selected bool

	IsDuplicate   *bool // nil until duplicate detection ran
	DuplicateNote *string

	Provenance

	Spending *Spending
	Revenue  *Revenue
}

// NewSpending returns a spending transaction.
func NewSpending(date string, amount decimal.Decimal, currency string, s Spending) Transaction {
	return Transaction{Date: date, Amount: amount, Currency: currency, Spending: &s}
}

// NewRevenue returns a revenue transaction.
func NewRevenue(date string, amount decimal.Decimal, currency string, r Revenue) Transaction {
	return Transaction{Date: date, Amount: amount, Currency: currency, Revenue: &r}
}

// Kind returns the transaction variant.
func (t Transaction) Kind() Kind {
	if t.Revenue != nil {
		return KindRevenue
	}
	return KindSpending
}

// Description is the spending description; always empty for revenue.
func (t Transaction) Description() string {
	if t.Spending != nil {
		return t.Spending.Description
	}
	return ""
}

// Label is the display text: the description for spending, the source for revenue.
func (t Transaction) Label() string {
	if t.Revenue != nil {
		return t.Revenue.SuggestedSource
	}
	return t.Description()
}

// Duplicate reports whether duplicate detection flagged the transaction.
func (t Transaction) Duplicate() bool {
	return t.IsDuplicate != nil && *t.IsDuplicate
}

// LedgerAmount is the amount as ledgers store it, rounded to cents.
func (t Transaction) LedgerAmount() decimal.Decimal {
	return t.Amount.Round(2)
}

// Converted reports whether the currency converter stamped provenance.
func (t Transaction) Converted() bool {
	return t.OriginalCurrency != ""
}

// Clone returns a deep copy so edits do not leak between copies.
func (t Transaction) Clone() Transaction {
	c := t
	if t.IsDuplicate != nil {
		v := *t.IsDuplicate
		c.IsDuplicate = &v
	}
	if t.DuplicateNote != nil {
		v := *t.DuplicateNote
		c.DuplicateNote = &v
	}
	if t.ConversionRate != nil {
		v := *t.ConversionRate
		c.ConversionRate = &v
	}
	if t.ConversionNote != nil {
		v := *t.ConversionNote
		c.ConversionNote = &v
	}
	if t.Spending != nil {
		v := *t.Spending
		c.Spending = &v
	}
	if t.Revenue != nil {
		v := *t.Revenue
		c.Revenue = &v
	}
	return c
}

// commonJSON is the flat camelCase prefix shared by both variants.
type commonJSON struct {
	Kind             Kind         `json:"kind"`
	Date             string       `json:"date"`
	Description      string       `json:"description"`
	Amount           json.Number  `json:"amount"`
	Currency         string       `json:"currency"`
	Selected         bool         `json:"selected"`
	IsDuplicate      *bool        `json:"isDuplicate,omitempty"`
	DuplicateNote    *string      `json:"duplicateNote"`
	OriginalAmount   *json.Number `json:"originalAmount,omitempty"`
	OriginalCurrency string       `json:"originalCurrency,omitempty"`
	ConversionRate   *json.Number `json:"conversionRate"`
	ConversionNote   *string      `json:"conversionNote"`
}

type spendingJSON struct {
	SuggestedJar     Jar    `json:"suggestedJar"`
	SuggestedAccount string `json:"suggestedAccount"`
}

type revenueJSON struct {
	SuggestedSource   string `json:"suggestedSource"`
	SuggestedMethod   string `json:"suggestedMethod"`
	Valeur            string `json:"valeur"`
	QuantiteCrypto    string `json:"quantiteCrypto"`
	TauxUSDEUR        string `json:"tauxUSDEUR"`
	AdresseCrypto     string `json:"adresseCrypto"`
	CompteDestination string `json:"compteDestination"`
	Type              string `json:"type"`
}

type anyJSON struct {
	commonJSON
	spendingJSON
	revenueJSON
}

// MarshalJSON writes the flat record used by the review UI and the duplicate service.
func (t Transaction) MarshalJSON() ([]byte, error) {
	c := commonJSON{
		Kind:             t.Kind(),
		Date:             t.Date,
		Description:      t.Description(),
		Amount:           json.Number(t.Amount.String()),
		Currency:         t.Currency,
		Selected:         t.Selected,
		IsDuplicate:      t.IsDuplicate,
		DuplicateNote:    t.DuplicateNote,
		OriginalCurrency: t.OriginalCurrency,
		ConversionNote:   t.ConversionNote,
	}
	if t.Converted() {
		n := json.Number(t.OriginalAmount.String())
		c.OriginalAmount = &n
	}
	if t.ConversionRate != nil {
		n := json.Number(t.ConversionRate.String())
		c.ConversionRate = &n
	}

	if t.Revenue != nil {
		r := t.Revenue
		return json.Marshal(struct {
			commonJSON
			revenueJSON
		}{c, revenueJSON{
			SuggestedSource:   r.SuggestedSource,
			SuggestedMethod:   r.SuggestedMethod,
			Valeur:            r.Valeur,
			QuantiteCrypto:    r.QuantiteCrypto,
			TauxUSDEUR:        r.TauxUSDEUR,
			AdresseCrypto:     r.AdresseCrypto,
			CompteDestination: r.CompteDestination,
			Type:              r.Type,
		}})
	}

	var s Spending
	if t.Spending != nil {
		s = *t.Spending
	}
	return json.Marshal(struct {
		commonJSON
		spendingJSON
	}{c, spendingJSON{SuggestedJar: s.SuggestedJar, SuggestedAccount: s.SuggestedAccount}})
}

// UnmarshalJSON reads the flat record. The variant comes from the "kind" field,
// or is inferred from the variant-specific fields when "kind" is absent.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	tx, err := UnmarshalTransaction(data, "")
	if err != nil {
		return err
	}
	*t = tx
	return nil
}

// UnmarshalTransaction decodes a flat record as the given kind.
// An empty kind falls back to the record's own "kind" field, then to inference.
func UnmarshalTransaction(data []byte, kind Kind) (Transaction, error) {
	var w anyJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return Transaction{}, fmt.Errorf("decoding transaction: %w", err)
	}
	if kind == "" {
		kind = w.Kind
	}
	if kind == "" {
		kind = w.inferKind()
	}

	amount, err := decimalFromNumber(w.Amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("decoding amount: %w", err)
	}

	t := Transaction{
		Date:          w.Date,
		Amount:        amount,
		Currency:      w.Currency,
		Selected:      w.Selected,
		IsDuplicate:   w.IsDuplicate,
		DuplicateNote: w.DuplicateNote,
		Provenance: Provenance{
			OriginalCurrency: w.OriginalCurrency,
			ConversionNote:   w.ConversionNote,
		},
	}
	if w.OriginalAmount != nil {
		if t.OriginalAmount, err = decimalFromNumber(*w.OriginalAmount); err != nil {
			return Transaction{}, fmt.Errorf("decoding originalAmount: %w", err)
		}
	}
	if w.ConversionRate != nil {
		rate, err := decimalFromNumber(*w.ConversionRate)
		if err != nil {
			return Transaction{}, fmt.Errorf("decoding conversionRate: %w", err)
		}
		t.ConversionRate = &rate
	}

	switch kind {
	case KindRevenue:
		t.Revenue = &Revenue{
			SuggestedSource:   w.SuggestedSource,
			SuggestedMethod:   w.SuggestedMethod,
			Valeur:            w.Valeur,
			QuantiteCrypto:    w.QuantiteCrypto,
			TauxUSDEUR:        w.TauxUSDEUR,
			AdresseCrypto:     w.AdresseCrypto,
			CompteDestination: w.CompteDestination,
			Type:              w.Type,
		}
	default:
		t.Spending = &Spending{
			Description:      w.Description,
			SuggestedJar:     w.SuggestedJar,
			SuggestedAccount: w.SuggestedAccount,
		}
	}
	return t, nil
}

func (w anyJSON) inferKind() Kind {
	if w.Description != "" || w.SuggestedJar != "" || w.SuggestedAccount != "" {
		return KindSpending
	}
	if w.SuggestedSource != "" {
		return KindRevenue
	}
	return KindSpending
}

func decimalFromNumber(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(string(n))
}
