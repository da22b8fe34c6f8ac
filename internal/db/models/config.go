package models

import "time"

// Keys of the configs table.
const (
	ConfigKeyAPIKey         = "api_key"
	ConfigKeyHistoryEnabled = "history_enabled"
)

// Config is one persisted setting: the client API key or the query
// history toggle.
type Config struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
