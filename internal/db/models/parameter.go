package models

// ParameterMetadata describes one attribute column of the programs table.
type ParameterMetadata struct {
	ColumnName     string   `gorm:"primaryKey" json:"column_name" yaml:"column_name"`
	DisplayName    string   `json:"display_name" yaml:"display_name"`
	AttributeGroup string   `gorm:"index" json:"attribute_group" yaml:"attribute_group"`
	PossibleValues []string `gorm:"serializer:json" json:"possible_values,omitempty" yaml:"possible_values"`
	CommonTerms    []string `gorm:"serializer:json" json:"common_terms" yaml:"common_terms"`
	Description    string   `json:"description" yaml:"description"`
}

func (ParameterMetadata) TableName() string {
	return "parameter_metadata"
}
