package rewriter

import (
	"strings"

	"github.com/pysugar/loanpilot/internal/retriever"
)

// BuildPrompt renders the rewrite instructions for query.
func BuildPrompt(query string, patterns []string, relevant []retriever.Result) string {
	var sb strings.Builder
	sb.WriteString("You are a query rewriter for a loan program database system.\n\n")
	sb.WriteString("Your task: Rewrite the user's natural language query to match ONE of the available script patterns below. ")
	sb.WriteString("Output ONLY the rewritten query with no explanation.\n\n")
	sb.WriteString("Available script patterns:\n")
	for _, p := range patterns {
		sb.WriteString("- " + p + "\n")
	}
	sb.WriteString(`
Guidelines:
- Identify the user's intent (find parameter, show programs, match borrowers, etc.)
- Extract key entities: parameter names, program names, servicer names
- Match to the most appropriate script pattern
- CRITICAL: Parameter name must come IMMEDIATELY after "Find" - use format "Find {param_name} across programs"
- When user asks "What are the X" or "What is the X" where X looks like a parameter name, rewrite to "Find X across programs"
- Use exact database column names (with underscores)
`)
	if len(relevant) > 0 {
		sb.WriteString("- Map these common terms to the correct database column names:\n")
		for _, r := range relevant {
			sb.WriteString(retriever.FormatResult(r) + "\n")
		}
	} else {
		sb.WriteString("- Map common terms to database column names:\n")
		for _, m := range retriever.StaticMappings() {
			sb.WriteString(retriever.FormatMapping(m) + "\n")
		}
	}
	sb.WriteString(`
Examples:
User query: "What is the loan amount range allowed"
Rewritten: Find loan_amount across programs

User query: "What is the max dti limit?"
Rewritten: Find dti across programs

User query: "What are the conditions for allowing appraisal transfer?"
Rewritten: Find appraisal_transfer_allowed across programs

User query: "Tell me about credit score requirements across all programs"
Rewritten: Find borrower_credit_score across programs

User query: "Can you show me what PRMG/Prime Connect supports"
Rewritten: Find all parameters for PRMG/Prime Connect

Now rewrite this query:
User query: `)
	sb.WriteString(query)
	sb.WriteString("\nRewritten:")
	return sb.String()
}
