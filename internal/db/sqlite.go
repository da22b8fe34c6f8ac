package db

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/pysugar/loanpilot/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Open opens the SQLite database without migrating it. SQL logging is
// enabled with LOANPILOT_DEBUG_SQL=1.
func Open(dbPath string) (*gorm.DB, error) {
	level := logger.Silent
	if os.Getenv("LOANPILOT_DEBUG_SQL") == "1" {
		level = logger.Info
	}
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		// history rows are written from background goroutines
		dsn += "?_pragma=busy_timeout(5000)"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", dbPath, err)
	}
	return db, nil
}

// InitDB opens the database, runs migrations and seeds parameter metadata,
// the script registry, the programs table and the API key.
func InitDB(dbPath string) (*gorm.DB, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.Config{},
		&models.ParameterMetadata{},
		&models.Script{},
		&models.QueryLog{},
	); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	if err := ensureParameterMetadata(db); err != nil {
		return nil, err
	}
	if err := ensureScripts(db); err != nil {
		return nil, err
	}
	params, err := ListParameters(db)
	if err != nil {
		return nil, err
	}
	columns := make([]string, 0, len(params))
	for _, p := range params {
		columns = append(columns, p.ColumnName)
	}
	if err := EnsureProgramsTable(db, columns); err != nil {
		return nil, err
	}

	ensureAPIKey(db)
	return db, nil
}

func newAPIKey() string {
	keyBytes := make([]byte, 16)
	rand.Read(keyBytes)
	return "sk-" + hex.EncodeToString(keyBytes)
}

// ensureAPIKey generates the client API key on first run.
func ensureAPIKey(db *gorm.DB) {
	var config models.Config
	if err := db.Where("key = ?", models.ConfigKeyAPIKey).First(&config).Error; err == nil {
		return
	}
	apiKey := newAPIKey()
	db.Create(&models.Config{Key: models.ConfigKeyAPIKey, Value: apiKey})
	log.Printf("🔑 Generated new API key: %s", apiKey)
}

// GetAPIKey retrieves the client API key.
func GetAPIKey(db *gorm.DB) string {
	var config models.Config
	db.Where("key = ?", models.ConfigKeyAPIKey).First(&config)
	return config.Value
}

// RegenerateAPIKey replaces the client API key.
func RegenerateAPIKey(db *gorm.DB) string {
	apiKey := newAPIKey()
	db.Model(&models.Config{}).Where("key = ?", models.ConfigKeyAPIKey).Update("value", apiKey)
	log.Printf("🔑 Regenerated API key: %s", MaskAPIKey(apiKey))
	return apiKey
}

// GetSetting returns a value from the configs table and whether it exists.
func GetSetting(db *gorm.DB, key string) (string, bool) {
	var config models.Config
	if err := db.Where("key = ?", key).First(&config).Error; err != nil {
		return "", false
	}
	return config.Value, true
}

// SetSetting inserts or replaces a value in the configs table.
func SetSetting(db *gorm.DB, key, value string) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.Config{Key: key, Value: value}).Error
}

// MaskAPIKey keeps the prefix and the last four characters of a key.
func MaskAPIKey(apiKey string) string {
	if len(apiKey) <= 10 {
		return "***"
	}
	return apiKey[:6] + strings.Repeat("*", len(apiKey)-10) + apiKey[len(apiKey)-4:]
}
