package db

import (
	"fmt"

	"github.com/pysugar/loanpilot/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Registered script names.
const (
	ScriptFindParam        = "find_param_across_programs"
	ScriptShowProgram      = "show_program_parameters"
	ScriptMatchPrograms    = "match_programs"
	ScriptServicerPrograms = "show_servicer_programs"
	ScriptProgramParameter = "get_program_parameter"
)

var defaultScripts = []models.Script{
	{
		Name:        ScriptFindParam,
		Description: "Find the value of a specific parameter across loan programs",
		Prompt:      "Find parameter value across programs",
		ToolExposed: true,
	},
	{
		Name:        ScriptShowProgram,
		Description: "Show all parameters and their values for a specific program",
		Prompt:      "Find all parameters for a given program",
		ToolExposed: true,
	},
	{
		Name:        ScriptMatchPrograms,
		Description: "Match loan programs against borrower criteria",
		Prompt:      "Match programs for borrower criteria",
		ToolExposed: true,
	},
	{
		Name:        ScriptServicerPrograms,
		Description: "List the programs offered by a loan servicer",
		Prompt:      "Show programs for loan servicer",
	},
	{
		Name:        ScriptProgramParameter,
		Description: "Get the value of one parameter for one program",
		Prompt:      "Get parameter value for a program",
	},
}

// DefaultScripts returns the built-in script registry rows.
func DefaultScripts() []models.Script {
	return append([]models.Script(nil), defaultScripts...)
}

// ensureScripts upserts the built-in registry rows.
func ensureScripts(db *gorm.DB) error {
	scripts := DefaultScripts()
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "prompt", "tool_exposed", "updated_at"}),
	}).Create(&scripts).Error
	if err != nil {
		return fmt.Errorf("seed scripts: %w", err)
	}
	return nil
}

// ListScripts returns registered scripts ordered by name.
func ListScripts(db *gorm.DB) ([]models.Script, error) {
	var scripts []models.Script
	if err := db.Order("name").Find(&scripts).Error; err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	return scripts, nil
}

// GetScript returns the script registered under name.
func GetScript(db *gorm.DB, name string) (*models.Script, error) {
	var script models.Script
	if err := db.Where("name = ?", name).First(&script).Error; err != nil {
		return nil, fmt.Errorf("script %q: %w", name, err)
	}
	return &script, nil
}

// CountScripts returns the number of registered scripts.
func CountScripts(db *gorm.DB) (int64, error) {
	var count int64
	if err := db.Model(&models.Script{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count scripts: %w", err)
	}
	return count, nil
}
