package model

import "strings"

// BudgetLine is one labelled phase of a budget breakdown.
type BudgetLine struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// BudgetEstimate is derived from the free-text budget field of an offer.
// When Available is false no numbers could be read and the offer falls back
// to custom pricing.
type BudgetEstimate struct {
	Available bool         `json:"available"`
	Lower     float64      `json:"lower"`
	Upper     float64      `json:"upper"`
	Average   float64      `json:"average"`
	Breakdown []BudgetLine `json:"breakdown,omitempty"`
}

// Package is the offer package selected in the form.
type Package string

const (
	PackageUnspecified      Package = ""
	PackageAIKickstart      Package = "ai_kickstart"
	PackageAIRevisjon       Package = "ai_revisjon"
	PackageCustomAutomation Package = "skreddersydd_automasjon"
	PackageOther            Package = "annen"
)

var packageLabels = map[Package]string{
	PackageAIKickstart:      "AI Kickstart",
	PackageAIRevisjon:       "AI Revisjon",
	PackageCustomAutomation: "Skreddersydd automasjon",
	PackageOther:            "Annen",
}

// ParsePackage maps a form code to a Package; unknown codes become PackageUnspecified.
func ParsePackage(code string) Package {
	p := Package(strings.ToLower(strings.TrimSpace(code)))
	if _, ok := packageLabels[p]; ok {
		return p
	}
	return PackageUnspecified
}

// Label returns the display label, "Ikke spesifisert" for unknown packages.
func (p Package) Label() string {
	if l, ok := packageLabels[p]; ok {
		return l
	}
	return "Ikke spesifisert"
}

// ContractType is the kind of agreement a contract request asks for.
type ContractType string

const (
	ContractService     ContractType = "tjeneste"
	ContractSale        ContractType = "salg"
	ContractConsultancy ContractType = "konsulent"
	ContractLicense     ContractType = "lisens"
	ContractPartnership ContractType = "partnerskap"
)

var contractPurposes = map[ContractType]string{
	ContractService:     "levering av tjenester",
	ContractSale:        "salg av produkter",
	ContractConsultancy: "konsulentoppdrag",
	ContractLicense:     "lisensiering av teknologi",
	ContractPartnership: "strategisk partnerskap",
}

// Purpose returns the purpose clause for the contract type, or the generic
// "forretningsavtale" for types outside the known set.
func (c ContractType) Purpose() string {
	if p, ok := contractPurposes[ContractType(strings.ToLower(string(c)))]; ok {
		return p
	}
	return "forretningsavtale"
}
