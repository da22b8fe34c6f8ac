package models

// QueryLog records one executed query for the history view.
type QueryLog struct {
	ID         string  `gorm:"primaryKey" json:"id"`
	RequestID  string  `json:"request_id,omitempty"`
	Timestamp  int64   `gorm:"index" json:"timestamp"`
	Query      string  `json:"query"`
	Source     string  `gorm:"index" json:"source"` // llm, keyword or direct
	ScriptName string  `gorm:"index" json:"script_name,omitempty"`
	Parameters string  `gorm:"type:text" json:"parameters,omitempty"`
	Model      string  `gorm:"index" json:"model,omitempty"`
	Confidence float64 `json:"confidence"`
	Success    bool    `gorm:"index" json:"success"`
	Duration   int64   `json:"duration"` // milliseconds
	Error      string  `json:"error,omitempty"`
	Results    string  `gorm:"type:text" json:"results,omitempty"`
}

// QueryStats holds aggregated statistics for query logs.
type QueryStats struct {
	TotalQueries int64 `json:"total_queries"`
	SuccessCount int64 `json:"success_count"`
	ErrorCount   int64 `json:"error_count"`
	LLMRouted    int64 `json:"llm_routed"`
	Fallbacks    int64 `json:"fallbacks"`
}
