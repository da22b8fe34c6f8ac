package models

import "time"

// Script registers a named query routine. Prompt is a natural-language
// pattern used as a matching hint; ToolExposed marks routines offered to
// the LLM as tools.
type Script struct {
	Name        string    `gorm:"primaryKey" json:"name"`
	Description string    `json:"description"`
	Prompt      string    `json:"prompt"`
	ToolExposed bool      `json:"tool_exposed"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

func (Script) TableName() string {
	return "scripts"
}
