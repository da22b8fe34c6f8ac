package router

import (
	"strings"

	"github.com/pysugar/loanpilot/internal/retriever"
)

// Marker is the optional leading character of a query.
const Marker = "^"

// StripMarker removes a leading marker and surrounding whitespace.
func StripMarker(query string) string {
	query = strings.TrimSpace(query)
	return strings.TrimSpace(strings.TrimPrefix(query, Marker))
}

// AddMarker renders query for display with a leading marker.
func AddMarker(query string) string {
	return Marker + " " + StripMarker(query)
}

// Selection is the programs and servicers already chosen by the user.
type Selection struct {
	Programs  []string `json:"programs,omitempty"`
	Servicers []string `json:"servicers,omitempty"`
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return len(s.Programs) == 0 && len(s.Servicers) == 0
}

func (s Selection) contextMessage() string {
	var parts []string
	if len(s.Programs) > 0 {
		parts = append(parts, "Selected programs: "+joinComma(s.Programs))
	}
	if len(s.Servicers) > 0 {
		parts = append(parts, "Servicers: "+joinComma(s.Servicers))
	}
	if len(parts) == 0 {
		return "No programs selected"
	}
	return strings.Join(parts, "\n")
}

func joinComma(items []string) string {
	return strings.Join(items, ", ")
}

// SystemPrompt builds the routing instructions. When retrieved is non-empty
// its descriptors replace the static phrase mappings.
func SystemPrompt(columns []string, sel Selection, retrieved []retriever.Result) string {
	var sb strings.Builder
	sb.WriteString("You are an expert at routing loan program queries to the correct database script.\n\n")
	if len(retrieved) > 0 {
		sb.WriteString("Database Schema - Most relevant parameter columns for this query:\n")
	} else {
		sb.WriteString("Database Schema - Available parameter columns:\n")
	}
	sb.WriteString(joinComma(columns))
	sb.WriteString("\n\nUser Context:\n")
	sb.WriteString(sel.contextMessage())
	sb.WriteString(`

Your task:
1. Understand what the user is asking about
2. Map natural language to the correct database column name
3. Choose the appropriate script tool with correct parameters
4. If programs are selected, use them in selected_programs parameter

Common parameter mappings:
`)
	if len(retrieved) > 0 {
		for _, r := range retrieved {
			sb.WriteString(retriever.FormatResult(r))
			sb.WriteByte('\n')
		}
	} else {
		for _, m := range retriever.StaticMappings() {
			sb.WriteString(retriever.FormatMapping(m))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
