// Package mapping proposes and edits source-column to target-field mappings.
package mapping

import (
	"strings"
	"unicode"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// Confidence levels assigned by Suggest.
const (
	ConfidenceExact   = 1.0
	ConfidenceSynonym = 0.9
	ConfidencePartial = 0.6
	ConfidenceNone    = 0.0
)

// synonyms lists normalized header spellings per target, most specific first.
var synonyms = map[string][]string{
	model.TargetDate:              {"date", "transactiondate", "dateoperation", "bookingdate", "completeddate", "starteddate", "datetime", "day"},
	model.TargetDescription:       {"description", "libelle", "label", "details", "memo", "narrative", "merchant", "payee", "commercant"},
	model.TargetSource:            {"source", "payer", "from", "emetteur", "sender", "counterparty", "client"},
	model.TargetAmount:            {"amount", "montant", "debit", "value", "total", "sum"},
	model.TargetMontant:           {"montant", "amount", "credit", "total", "sum"},
	model.TargetCurrency:          {"currency", "devise", "ccy", "curr"},
	model.TargetValeur:            {"valeur", "currency", "devise"},
	model.TargetAccount:           {"account", "compte", "card", "wallet"},
	model.TargetMethode:           {"methode", "method", "paymentmethod", "moyen", "moyendepaiement"},
	model.TargetQuantiteCrypto:    {"quantitecrypto", "quantite", "quantity", "qty"},
	model.TargetTauxUSDEUR:        {"tauxusdeur", "usdeur", "taux", "rate", "exchangerate"},
	model.TargetAdresseCrypto:     {"adressecrypto", "adresse", "address", "walletaddress"},
	model.TargetCompteDestination: {"comptedestination", "destination", "toaccount"},
	model.TargetType:              {"type", "transactiontype", "kind"},
}

// targetsFor lists the targets offered for a kind, in priority order.
func targetsFor(kind model.Kind) []string {
	if kind == model.KindRevenue {
		return []string{
			model.TargetDate, model.TargetMontant, model.TargetSource, model.TargetDescription,
			model.TargetValeur, model.TargetMethode, model.TargetQuantiteCrypto, model.TargetTauxUSDEUR,
			model.TargetAdresseCrypto, model.TargetCompteDestination, model.TargetType,
		}
	}
	return []string{
		model.TargetDate, model.TargetAmount, model.TargetDescription, model.TargetSource,
		model.TargetCurrency, model.TargetAccount,
	}
}

// Suggest proposes one mapping per header. Each target is assigned to at most
// one header; unmatched headers map to ignore with zero confidence.
func Suggest(headers []string, kind model.Kind) []model.ColumnMapping {
	out := make([]model.ColumnMapping, len(headers))
	owner := make(map[string]int)

	for i, h := range headers {
		target, conf := best(h, kind)
		out[i] = model.ColumnMapping{Source: h, Target: model.TargetIgnore, Confidence: ConfidenceNone}
		if target == "" {
			continue
		}
		if j, taken := owner[target]; taken {
			if out[j].Confidence >= conf {
				continue
			}
			out[j].Target = model.TargetIgnore
			out[j].Confidence = ConfidenceNone
		}
		owner[target] = i
		out[i].Target = target
		out[i].Confidence = conf
	}
	return out
}

func best(header string, kind model.Kind) (string, float64) {
	h := normalize(header)
	if h == "" {
		return "", ConfidenceNone
	}

	var target string
	conf := ConfidenceNone
	for _, t := range targetsFor(kind) {
		c := score(h, t)
		if c > conf {
			target, conf = t, c
		}
	}
	return target, conf
}

func score(h, target string) float64 {
	if h == normalize(target) {
		return ConfidenceExact
	}
	best := ConfidenceNone
	for _, syn := range synonyms[target] {
		switch {
		case h == syn:
			return ConfidenceSynonym
		case len(syn) >= 4 && strings.Contains(h, syn):
			best = ConfidencePartial
		}
	}
	return best
}

// normalize lower-cases and drops everything but letters and digits, folding
// the accented letters common in French statements.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case 'é', 'è', 'ê', 'ë':
			r = 'e'
		case 'à', 'â':
			r = 'a'
		case 'î', 'ï':
			r = 'i'
		case 'ô':
			r = 'o'
		case 'ù', 'û':
			r = 'u'
		case 'ç':
			r = 'c'
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
