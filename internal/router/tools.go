package router

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/pysugar/loanpilot/internal/db"
	"github.com/pysugar/loanpilot/internal/llm"
	"github.com/pysugar/loanpilot/internal/scripts"
)

// Servicers accepted by the tool schemas.
const (
	ServicerPrime      = "Prime"
	ServicerLoanStream = "LoanStream"
)

// FindParamInput is the input of find_param_across_programs.
type FindParamInput struct {
	ParamName        string   `json:"param_name" jsonschema_description:"Database column name"`
	LoanServicer     string   `json:"loan_servicer" jsonschema:"enum=Prime,enum=LoanStream" jsonschema_description:"Loan servicer name (Prime or LoanStream)"`
	SelectedPrograms []string `json:"selected_programs,omitempty" jsonschema_description:"List of selected program names to query"`
}

// ShowProgramInput is the input of show_program_parameters.
type ShowProgramInput struct {
	ProgramName  string `json:"program_name" jsonschema_description:"Full program name (e.g. 'PRMG/Prime Connect')"`
	LoanServicer string `json:"loan_servicer" jsonschema:"enum=Prime,enum=LoanStream" jsonschema_description:"Loan servicer (Prime or LoanStream)"`
}

// MatchProgramsInput is the input of match_programs. Every criterion is
// optional.
type MatchProgramsInput struct {
	BorrowerCreditScore string `json:"borrower_credit_score,omitempty"`
	LoanAmount          string `json:"loan_amount,omitempty"`
	LTV                 string `json:"ltv,omitempty"`
	DTI                 string `json:"dti,omitempty"`
	TransactionType     string `json:"transaction_type,omitempty"`
	Occupancy           string `json:"occupancy,omitempty"`
}

type toolSpec struct {
	name        string
	description string
	input       any
}

var toolSpecs = []toolSpec{
	{
		name:        db.ScriptFindParam,
		description: "Query a specific parameter across multiple programs. Use when user asks about a parameter (citizenship, appraisal, reserves, etc.) with selected programs.",
		input:       &FindParamInput{},
	},
	{
		name:        db.ScriptShowProgram,
		description: "Show all parameters for a specific program. Use when user asks about all parameters for ONE program.",
		input:       &ShowProgramInput{},
	},
	{
		name:        db.ScriptMatchPrograms,
		description: "Find matching programs based on borrower profile (credit score, loan amount, LTV, DTI, etc.)",
		input:       &MatchProgramsInput{},
	},
}

// servicerScripts are the scripts whose input carries loan_servicer.
var servicerScripts = map[string]bool{
	db.ScriptFindParam:        true,
	db.ScriptShowProgram:      true,
	db.ScriptServicerPrograms: true,
	db.ScriptProgramParameter: true,
}

// ToolNames returns the names of the tools offered to the model.
func ToolNames() []string {
	names := make([]string, len(toolSpecs))
	for i, spec := range toolSpecs {
		names[i] = spec.name
	}
	return names
}

func reflectSchema(v any) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(v)
	s.Version = ""
	return s
}

// BuildTools reflects the tool schemas and restricts param_name to columns.
func BuildTools(columns []string) ([]llm.Tool, error) {
	tools := make([]llm.Tool, 0, len(toolSpecs))
	for _, spec := range toolSpecs {
		schema := reflectSchema(spec.input)
		if prop, ok := schema.Properties.Get(scripts.ParamName); ok && len(columns) > 0 {
			prop.Enum = make([]any, len(columns))
			for i, c := range columns {
				prop.Enum[i] = c
			}
			prop.Description = "Database column name. Available: " + joinComma(columns)
		}
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("marshal %s schema: %w", spec.name, err)
		}
		tools = append(tools, llm.Tool{
			Name:        spec.name,
			Description: spec.description,
			InputSchema: raw,
		})
	}
	return tools, nil
}
