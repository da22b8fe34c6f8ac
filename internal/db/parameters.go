package db

import (
	_ "embed"
	"fmt"
	"log"

	"github.com/pysugar/loanpilot/internal/db/models"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed seed/parameters.yaml
var parameterSeed []byte

type parameterSeedFile struct {
	Parameters []models.ParameterMetadata `yaml:"parameters"`
}

// DefaultParameters returns the built-in parameter descriptors.
func DefaultParameters() ([]models.ParameterMetadata, error) {
	var seed parameterSeedFile
	if err := yaml.Unmarshal(parameterSeed, &seed); err != nil {
		return nil, fmt.Errorf("parse parameter seed: %w", err)
	}
	for i, p := range seed.Parameters {
		if err := ValidateColumnName(p.ColumnName); err != nil {
			return nil, fmt.Errorf("parameter seed entry %d: %w", i, err)
		}
	}
	return seed.Parameters, nil
}

// ensureParameterMetadata seeds the metadata table when it is empty.
func ensureParameterMetadata(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.ParameterMetadata{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count parameter metadata: %w", err)
	}
	if count > 0 {
		return nil
	}

	params, err := DefaultParameters()
	if err != nil {
		return err
	}
	if err := db.Create(&params).Error; err != nil {
		return fmt.Errorf("seed parameter metadata: %w", err)
	}
	log.Printf("✅ Seeded %d parameter descriptors", len(params))
	return nil
}

// ListParameters returns every descriptor ordered by column name.
func ListParameters(db *gorm.DB) ([]models.ParameterMetadata, error) {
	var params []models.ParameterMetadata
	if err := db.Order("column_name").Find(&params).Error; err != nil {
		return nil, fmt.Errorf("list parameters: %w", err)
	}
	return params, nil
}

// GetParameter returns the descriptor of column.
func GetParameter(db *gorm.DB, column string) (*models.ParameterMetadata, error) {
	var p models.ParameterMetadata
	if err := db.Where("column_name = ?", column).First(&p).Error; err != nil {
		return nil, fmt.Errorf("parameter %q: %w", column, err)
	}
	return &p, nil
}

// DisplayNames maps column names to display names.
func DisplayNames(db *gorm.DB) (map[string]string, error) {
	params, err := ListParameters(db)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(params))
	for _, p := range params {
		names[p.ColumnName] = p.DisplayName
	}
	return names, nil
}
