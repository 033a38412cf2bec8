package model

import "fmt"

// Kind discriminates spending and revenue transactions.
type Kind string

const (
	KindSpending Kind = "spending"
	KindRevenue  Kind = "revenue"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSpending, KindRevenue:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown transaction kind %q (want spending or revenue)", s)
	}
}

// Jar is a budget category bucket for spending.
type Jar string

const (
	JarNEC  Jar = "NEC"
	JarPLAY Jar = "PLAY"
	JarEDUC Jar = "EDUC"
	JarGIFT Jar = "GIFT"
	JarFFA  Jar = "FFA"
	JarLTSS Jar = "LTSS"
)

// Jars lists every valid jar.
var Jars = []Jar{JarNEC, JarPLAY, JarEDUC, JarGIFT, JarFFA, JarLTSS}

// Valid reports whether j is one of the known jars.
func (j Jar) Valid() bool {
	for _, v := range Jars {
		if v == j {
			return true
		}
	}
	return false
}
