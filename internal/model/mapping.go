package model

// Target field names a source column can be mapped to.
const (
	TargetDate              = "Date"
	TargetDescription       = "Description"
	TargetSource            = "Source"
	TargetAmount            = "Amount"
	TargetMontant           = "Montant"
	TargetCurrency          = "Currency"
	TargetValeur            = "Valeur"
	TargetAccount           = "Account"
	TargetMethode           = "Methode"
	TargetQuantiteCrypto    = "QuantiteCrypto"
	TargetTauxUSDEUR        = "TauxUSDEUR"
	TargetAdresseCrypto     = "AdresseCrypto"
	TargetCompteDestination = "CompteDestination"
	TargetType              = "Type"

	// TargetIgnore marks a source column that is not imported.
	TargetIgnore = "ignore"
)

// Targets lists every known target field in display order.
var Targets = []string{
	TargetDate,
	TargetDescription,
	TargetSource,
	TargetAmount,
	TargetMontant,
	TargetCurrency,
	TargetValeur,
	TargetAccount,
	TargetMethode,
	TargetQuantiteCrypto,
	TargetTauxUSDEUR,
	TargetAdresseCrypto,
	TargetCompteDestination,
	TargetType,
}

// IsTarget reports whether name is a known target field or the ignore sentinel.
func IsTarget(name string) bool {
	if name == TargetIgnore {
		return true
	}
	for _, t := range Targets {
		if t == name {
			return true
		}
	}
	return false
}

// ColumnMapping associates a detected source column with a target field.
// Confidence is in [0,1]; exactly 1 means an exact or forced match.
type ColumnMapping struct {
	Source     string  `json:"sourceColumn" yaml:"source"`
	Target     string  `json:"targetColumn" yaml:"target"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Ignored reports whether the column is excluded from the import.
func (m ColumnMapping) Ignored() bool { return m.Target == TargetIgnore }
