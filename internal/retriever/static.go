package retriever

import (
	"strings"

	"github.com/pysugar/loanpilot/internal/textnorm"
)

// Mapping ties user phrasings to a column.
type Mapping struct {
	Terms  []string
	Column string
}

// Hand-written mappings used when embeddings are unavailable.
var staticMappings = []Mapping{
	{Terms: []string{"appraisal transfer"}, Column: "appraisal_transfer_allowed"},
	{Terms: []string{"appraisal review"}, Column: "appraisal_review_required"},
	{Terms: []string{"credit score"}, Column: "borrower_credit_score"},
	{Terms: []string{"loan amount"}, Column: "loan_amount"},
	{Terms: []string{"DTI", "debt to income"}, Column: "dti"},
	{Terms: []string{"LTV", "loan to value"}, Column: "ltv"},
}

// StaticMappings returns a copy of the fallback mappings.
func StaticMappings() []Mapping {
	out := make([]Mapping, len(staticMappings))
	for i, m := range staticMappings {
		out[i] = Mapping{Terms: append([]string(nil), m.Terms...), Column: m.Column}
	}
	return out
}

// FormatMapping renders m as a prompt line.
func FormatMapping(m Mapping) string {
	quoted := make([]string, len(m.Terms))
	for i, term := range m.Terms {
		quoted[i] = `"` + term + `"`
	}
	return "  * " + strings.Join(quoted, ", ") + ` → "` + m.Column + `"`
}

// FormatResult renders a retrieved descriptor as a prompt line with its
// first three common terms.
func FormatResult(r Result) string {
	terms := r.CommonTerms
	if len(terms) > 3 {
		terms = terms[:3]
	}
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + term + `"`
	}
	line := "  * " + strings.Join(quoted, ", ")
	if r.AttributeGroup != "" {
		line += " (" + r.AttributeGroup + ")"
	}
	return line + " → " + r.ColumnName
}

// StaticLookup returns the columns whose mapped terms occur in query, in
// mapping order.
func StaticLookup(query string) []string {
	padded := " " + strings.Join(textnorm.Words(query), " ") + " "
	var columns []string
	for _, m := range staticMappings {
		for _, term := range m.Terms {
			needle := " " + strings.Join(textnorm.Words(term), " ") + " "
			if strings.Contains(padded, needle) {
				columns = append(columns, m.Column)
				break
			}
		}
	}
	return columns
}
