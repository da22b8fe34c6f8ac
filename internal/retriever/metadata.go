package retriever

import "github.com/pysugar/loanpilot/internal/db/models"

// FromMetadata converts stored parameter metadata into descriptors, keeping
// their order.
func FromMetadata(metadata []models.ParameterMetadata) []Parameter {
	params := make([]Parameter, len(metadata))
	for i, m := range metadata {
		params[i] = Parameter{
			ColumnName:     m.ColumnName,
			DisplayName:    m.DisplayName,
			AttributeGroup: m.AttributeGroup,
			PossibleValues: m.PossibleValues,
			CommonTerms:    m.CommonTerms,
			Description:    m.Description,
		}
	}
	return params
}
