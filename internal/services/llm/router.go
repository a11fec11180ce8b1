package llm

import (
	"strings"

	"github.com/ternarybob/nuntius/internal/models"
)

// Body lengths, in bytes, that bump a filing up a tier regardless of its
// item codes. Long filings bury their material terms.
const (
	longBodyBytes  = 20_000
	shortBodyBytes = 2_000
)

// Item codes that force a tier. 8-K item codes follow the SEC numbering:
// 1.03 bankruptcy, 2.01 completed acquisition, 4.01 auditor change,
// 4.02 non-reliance, 5.01 change in control.
var criticalItems = map[string]struct{}{
	"1.03": {},
	"2.01": {},
	"4.01": {},
	"4.02": {},
	"5.01": {},
}

// 1.01 material agreements and 1.02 terminations carry deal terms worth a
// stronger model.
var complexItems = map[string]struct{}{
	"1.01": {},
	"1.02": {},
	"2.03": {},
}

// Offering and registration forms get the top model: dilution math hides in
// the body text.
var complexForms = map[string]struct{}{
	"S-1":    {},
	"S-3":    {},
	"424B5":  {},
	"424B4":  {},
	"F-1":    {},
	"8-K/A":  {},
	"10-K":   {},
	"10-Q":   {},
	"DEF14A": {},
}

// RouteTier picks the analysis tier for a filing from its item codes, form
// type and body length. Explicitly tiered documents keep their tier.
func RouteTier(doc *models.SECDoc) models.AnalysisTier {
	if doc.Tier != "" {
		return doc.Tier
	}

	for _, code := range doc.ItemCodes {
		if _, ok := criticalItems[code]; ok {
			return models.TierCritical
		}
	}
	for _, code := range doc.ItemCodes {
		if _, ok := complexItems[code]; ok {
			return models.TierComplex
		}
	}
	if _, ok := complexForms[strings.ToUpper(doc.FormType)]; ok {
		return models.TierComplex
	}
	if len(doc.Body) > longBodyBytes {
		return models.TierComplex
	}
	if len(doc.Body) < shortBodyBytes {
		return models.TierSimple
	}
	return models.TierMedium
}

// modelClass collapses the four tiers onto the three configured models.
func modelClass(tier models.AnalysisTier) string {
	switch tier {
	case models.TierComplex, models.TierCritical:
		return "top"
	case models.TierMedium:
		return "medium"
	default:
		return "simple"
	}
}
