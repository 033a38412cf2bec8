// Package category suggests a budget jar for a spending description.
package category

import (
	"strings"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// Default is returned when no keyword matches.
const Default = model.JarNEC

// Rule maps a jar to the lower-case keywords that select it.
type Rule struct {
	Jar      model.Jar `json:"jar"`
	Keywords []string  `json:"keywords"`
}

// rules is evaluated in order; the first rule with a matching keyword wins.
var rules = []Rule{
	{Jar: model.JarNEC, Keywords: []string{
		"carrefour", "lidl", "aldi", "auchan", "leclerc", "intermarche", "intermarché", "monoprix",
		"franprix", "supermarket", "supermarché", "grocery", "boulangerie", "pharmacie", "pharmacy",
		"loyer", "rent", "edf", "engie", "electricity", "électricité", "insurance", "assurance",
		"sncf", "ratp", "navigo", "uber", "fuel", "carburant", "essence", "station",
		"orange", "sfr", "bouygues", "free mobile", "internet", "mutuelle", "doctor", "médecin",
	}},
	{Jar: model.JarPLAY, Keywords: []string{
		"netflix", "spotify", "deezer", "disney", "prime video", "youtube premium", "steam",
		"playstation", "xbox", "nintendo", "cinema", "cinéma", "concert", "restaurant", "bar ",
		"pub ", "mcdonald", "burger", "pizza", "starbucks", "airbnb", "booking.com", "hotel",
	}},
	{Jar: model.JarEDUC, Keywords: []string{
		"udemy", "coursera", "edx", "masterclass", "skillshare", "formation", "training",
		"school", "école", "university", "université", "tuition", "book", "livre", "kindle",
		"audible", "fnac",
	}},
	{Jar: model.JarGIFT, Keywords: []string{
		"gift", "cadeau", "donation", "charity", "croix-rouge", "red cross", "unicef",
		"leetchi", "fleurs", "flowers",
	}},
}

// Rules returns a copy of the ordered keyword table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = Rule{Jar: r.Jar, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// Classify returns the jar of the first rule whose keyword occurs in description.
func Classify(description string) model.Jar {
	text := strings.ToLower(description)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				return r.Jar
			}
		}
	}
	return Default
}
