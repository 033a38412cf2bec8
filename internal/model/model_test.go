package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_JSON(t *testing.T) {
	var row RawRow
	require.NoError(t, json.Unmarshal([]byte(`{"Date":"21/11/2025","Amount":45.9,"Flag":true,"Empty":null}`), &row))

	assert.Equal(t, "21/11/2025", row.Text("Date"))
	amt, ok := row.Get("Amount")
	require.True(t, ok)
	assert.True(t, amt.IsNumber())
	assert.True(t, amt.Decimal().Equal(decimal.RequireFromString("45.9")))
	assert.Equal(t, "true", row.Text("Flag"))
	assert.Equal(t, "", row.Text("Empty"))
	assert.Equal(t, "", row.Text("Missing"))

	out, err := json.Marshal(RawRow{"a": Number(decimal.RequireFromString("1.5")), "b": Text("x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":"x"}`, string(out))
}

func TestRowFromStrings(t *testing.T) {
	row := RowFromStrings([]string{"Date", "", "Amount"}, []string{" 2025-01-01 ", "skip"})
	assert.Equal(t, "2025-01-01", row.Text("Date"))
	_, ok := row.Get("")
	assert.False(t, ok)
	c, ok := row.Get("Amount")
	assert.True(t, ok)
	assert.Equal(t, "", c.String())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("revenue")
	require.NoError(t, err)
	assert.Equal(t, KindRevenue, k)

	_, err = ParseKind("transfer")
	assert.Error(t, err)
}

func TestJarValid(t *testing.T) {
	for _, j := range Jars {
		assert.True(t, j.Valid(), j)
	}
	assert.False(t, Jar("nec").Valid())
}

func TestTransaction_MarshalSpending(t *testing.T) {
	rate := decimal.RequireFromString("1")
	no := false
	tx := NewSpending("2025-11-21", decimal.RequireFromString("45.90"), "EUR", Spending{
		Description: "Carrefour", SuggestedJar: JarNEC, SuggestedAccount: "Revolut",
	})
	tx.Selected = true
	tx.IsDuplicate = &no
	tx.OriginalAmount = decimal.RequireFromString("45.90")
	tx.OriginalCurrency = "EUR"
	tx.ConversionRate = &rate

	data, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind":"spending","date":"2025-11-21","description":"Carrefour","amount":45.9,"currency":"EUR",
		"selected":true,"isDuplicate":false,"duplicateNote":null,
		"originalAmount":45.9,"originalCurrency":"EUR","conversionRate":1,"conversionNote":null,
		"suggestedJar":"NEC","suggestedAccount":"Revolut"
	}`, string(data))
}

func TestTransaction_RoundTripRevenue(t *testing.T) {
	note := "Conversion failed: amount kept in USD"
	tx := NewRevenue("2025-11-21", decimal.RequireFromString("100"), "USD", Revenue{
		SuggestedSource: "ACME", SuggestedMethod: "wire", QuantiteCrypto: "0.5", Type: "salary",
	})
	tx.OriginalAmount = decimal.RequireFromString("100")
	tx.OriginalCurrency = "USD"
	tx.ConversionNote = &note

	data, err := json.Marshal(tx)
	require.NoError(t, err)

	var got Transaction
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, KindRevenue, got.Kind())
	assert.Equal(t, "ACME", got.Label())
	assert.Equal(t, "0.5", got.Revenue.QuantiteCrypto)
	assert.Equal(t, "salary", got.Revenue.Type)
	assert.Nil(t, got.ConversionRate)
	require.NotNil(t, got.ConversionNote)
	assert.Equal(t, note, *got.ConversionNote)
	assert.True(t, got.Amount.Equal(tx.Amount))
}

func TestUnmarshalTransaction_Kind(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind Kind
		want Kind
	}{
		{"explicit argument wins", `{"kind":"spending","suggestedSource":"x","amount":1}`, KindRevenue, KindRevenue},
		{"record kind", `{"kind":"revenue","amount":"2.5"}`, "", KindRevenue},
		{"inferred revenue", `{"suggestedSource":"ACME","amount":1}`, "", KindRevenue},
		{"inferred spending", `{"description":"Lidl","amount":1}`, "", KindSpending},
		{"default spending", `{"amount":1}`, "", KindSpending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := UnmarshalTransaction([]byte(tt.data), tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tx.Kind())
		})
	}
}

func TestUnmarshalTransaction_BadAmount(t *testing.T) {
	_, err := UnmarshalTransaction([]byte(`{"amount":"abc"}`), KindSpending)
	assert.Error(t, err)
}

func TestTransaction_Clone(t *testing.T) {
	yes := true
	tx := NewSpending("2025-01-01", decimal.NewFromInt(1), "EUR", Spending{Description: "a"})
	tx.IsDuplicate = &yes

	c := tx.Clone()
	c.Spending.Description = "b"
	*c.IsDuplicate = false

	assert.Equal(t, "a", tx.Description())
	assert.True(t, tx.Duplicate())
	assert.False(t, tx.Converted())
}

func TestColumnMapping_Ignored(t *testing.T) {
	assert.True(t, ColumnMapping{Source: "x", Target: TargetIgnore}.Ignored())
	assert.False(t, ColumnMapping{Source: "x", Target: TargetDate}.Ignored())
	assert.True(t, IsTarget(TargetMontant))
	assert.False(t, IsTarget("nope"))
}
