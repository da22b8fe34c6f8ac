package db

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed seed/programs.yaml
var sampleProgramSeed []byte

// ProgramSeed is a YAML document of program rows.
type ProgramSeed struct {
	Programs []ProgramSeedEntry `yaml:"programs"`
}

// ProgramSeedEntry is one program row. Attribute keys are column names.
type ProgramSeedEntry struct {
	Servicer   string            `yaml:"servicer"`
	Program    string            `yaml:"program"`
	Attributes map[string]string `yaml:"attributes"`
}

// ParseProgramSeed decodes and validates a program seed document.
func ParseProgramSeed(data []byte) (*ProgramSeed, error) {
	var seed ProgramSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse program seed: %w", err)
	}
	seen := make(map[string]bool, len(seed.Programs))
	for i, entry := range seed.Programs {
		if strings.TrimSpace(entry.Servicer) == "" || strings.TrimSpace(entry.Program) == "" {
			return nil, fmt.Errorf("program seed entry %d: servicer and program are required", i)
		}
		key := strings.ToLower(entry.Servicer + "\x00" + entry.Program)
		if seen[key] {
			return nil, fmt.Errorf("program seed entry %d: duplicate program %s (%s)", i, entry.Program, entry.Servicer)
		}
		seen[key] = true
	}
	return &seed, nil
}

// LoadProgramSeed reads a program seed file.
func LoadProgramSeed(path string) (*ProgramSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program seed %q: %w", path, err)
	}
	return ParseProgramSeed(data)
}

// SampleProgramSeed returns the built-in demo programs.
func SampleProgramSeed() (*ProgramSeed, error) {
	return ParseProgramSeed(sampleProgramSeed)
}

// ApplyProgramSeed replaces the listed programs in one transaction.
// Attribute keys that are not programs columns are rejected.
func ApplyProgramSeed(db *gorm.DB, seed *ProgramSeed) (int, error) {
	columns, err := AttributeColumns(db)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	for i, entry := range seed.Programs {
		for key := range entry.Attributes {
			if !known[key] {
				return 0, fmt.Errorf("program seed entry %d (%s): %w: %q", i, entry.Program, ErrUnknownColumn, key)
			}
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range seed.Programs {
			keys := make([]string, 0, len(entry.Attributes))
			for key := range entry.Attributes {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			cols := []string{quoteIdent(ServicerColumn), quoteIdent(ProgramColumn)}
			args := []any{strings.TrimSpace(entry.Servicer), strings.TrimSpace(entry.Program)}
			for _, key := range keys {
				cols = append(cols, quoteIdent(key))
				args = append(args, entry.Attributes[key])
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
			stmt := "INSERT OR REPLACE INTO " + quoteIdent(ProgramsTable) +
				" (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders + ")"
			if err := tx.Exec(stmt, args...).Error; err != nil {
				return fmt.Errorf("upsert %s (%s): %w", entry.Program, entry.Servicer, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Printf("✅ Applied %d programs", len(seed.Programs))
	return len(seed.Programs), nil
}
