package router

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// FuzzyCutoff is the minimum similarity ratio of a fuzzy column match.
const FuzzyCutoff = 0.6

// paramAliases maps common user phrasings to columns.
var paramAliases = map[string]string{
	"appraisal":        "appraisal_review_required",
	"appraisals":       "number_of_appraisals",
	"buydown":          "temp_buydown_allowed",
	"citizenship":      "citizenship",
	"condo":            "non_warrantable_condos_allowed",
	"condos":           "non_warrantable_condos_allowed",
	"credit":           "borrower_credit_score",
	"credit_score":     "borrower_credit_score",
	"debt_to_income":   "dti",
	"docs":             "income",
	"documentation":    "income",
	"fico":             "borrower_credit_score",
	"first_time_buyer": "first_time_homebuyer",
	"gift":             "gifts_for_down_payment",
	"gifts":            "gifts_for_down_payment",
	"interest_only":    "interest_only_period",
	"io":               "interest_only_period",
	"loan_size":        "loan_amount",
	"loan_to_value":    "ltv",
	"prepay":           "prepayment_penalty",
	"reserve":          "reserves",
	"state":            "property_state",
	"states":           "property_state",
	"transaction":      "transaction_type",
}

func normalizeParamName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	return strings.Trim(name, "_")
}

// MapParamName maps a parameter name onto one of columns: exact match,
// then the alias table, then the closest fuzzy match at or above
// FuzzyCutoff. It returns "" when nothing fits.
func MapParamName(name string, columns []string) string {
	key := normalizeParamName(name)
	if key == "" {
		return ""
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	if known[key] {
		return key
	}
	if alias, ok := paramAliases[key]; ok && known[alias] {
		return alias
	}
	return closestMatch(key, columns)
}

func closestMatch(word string, candidates []string) string {
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	target := strings.Split(word, "")
	best, bestRatio := "", 0.0
	for _, c := range sorted {
		m := difflib.NewMatcher(strings.Split(c, ""), target)
		if m.RealQuickRatio() < FuzzyCutoff || m.QuickRatio() < FuzzyCutoff {
			continue
		}
		if ratio := m.Ratio(); ratio >= FuzzyCutoff && ratio > bestRatio {
			best, bestRatio = c, ratio
		}
	}
	return best
}
