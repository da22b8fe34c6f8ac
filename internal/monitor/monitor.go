package monitor

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/loanpilot/internal/db"
	"github.com/pysugar/loanpilot/internal/db/models"
	"gorm.io/gorm"
)

const (
	// MaxResultsSize limits stored result text to 64KB
	MaxResultsSize = 64 * 1024
	// MaxMemoryLogs limits in-memory log cache
	MaxMemoryLogs = 100

	SourceLLM     = "llm"
	SourceKeyword = "keyword"
	SourceDirect  = "direct"
)

// QueryMonitor keeps the history of executed queries and their statistics.
type QueryMonitor struct {
	db      *gorm.DB
	enabled atomic.Bool

	// In-memory cache for recent logs (thread-safe)
	recentLogs []models.QueryLog
	logsMu     sync.RWMutex

	// In-memory stats (updated atomically)
	totalQueries atomic.Int64
	successCount atomic.Int64
	errorCount   atomic.Int64
	llmRouted    atomic.Int64
	fallbacks    atomic.Int64

	pending sync.WaitGroup
}

// NewQueryMonitor creates a QueryMonitor. Recording starts enabled unless
// it was switched off in an earlier run.
func NewQueryMonitor(database *gorm.DB) *QueryMonitor {
	qm := &QueryMonitor{
		db:         database,
		recentLogs: make([]models.QueryLog, 0, MaxMemoryLogs),
	}

	if err := database.AutoMigrate(&models.QueryLog{}, &models.Config{}); err != nil {
		log.Printf("[Monitor] Failed to migrate history tables: %v", err)
	}

	qm.loadStatsFromDB()
	enabled, ok := db.GetSetting(database, models.ConfigKeyHistoryEnabled)
	qm.enabled.Store(!ok || enabled != "false")
	return qm
}

// SetEnabled enables or disables query logging
func (qm *QueryMonitor) SetEnabled(enabled bool) {
	qm.enabled.Store(enabled)
	if err := db.SetSetting(qm.db, models.ConfigKeyHistoryEnabled, strconv.FormatBool(enabled)); err != nil {
		log.Printf("[Monitor] Failed to persist history toggle: %v", err)
	}
	log.Printf("[Monitor] Query history %s", map[bool]string{true: "enabled", false: "disabled"}[enabled])
}

// IsEnabled returns whether logging is enabled
func (qm *QueryMonitor) IsEnabled() bool {
	return qm.enabled.Load()
}

// Record stores one query log (async, non-blocking).
func (qm *QueryMonitor) Record(entry models.QueryLog) {
	if !qm.IsEnabled() {
		return
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}
	if len(entry.Results) > MaxResultsSize {
		entry.Results = entry.Results[:MaxResultsSize] + "...[truncated]"
	}

	qm.totalQueries.Add(1)
	if entry.Success {
		qm.successCount.Add(1)
	} else {
		qm.errorCount.Add(1)
	}
	switch entry.Source {
	case SourceLLM:
		qm.llmRouted.Add(1)
	case SourceKeyword:
		qm.fallbacks.Add(1)
	}

	qm.logsMu.Lock()
	qm.recentLogs = append([]models.QueryLog{entry}, qm.recentLogs...)
	if len(qm.recentLogs) > MaxMemoryLogs {
		qm.recentLogs = qm.recentLogs[:MaxMemoryLogs]
	}
	qm.logsMu.Unlock()

	qm.pending.Add(1)
	go func(entry models.QueryLog) {
		defer qm.pending.Done()
		if err := qm.db.Create(&entry).Error; err != nil {
			log.Printf("[Monitor] Failed to save query log: %v", err)
		}
	}(entry)
}

// Wait blocks until every pending database write has finished.
func (qm *QueryMonitor) Wait() {
	qm.pending.Wait()
}

// Recent returns up to limit logs from the in-memory cache, newest first.
func (qm *QueryMonitor) Recent(limit int) []models.QueryLog {
	qm.logsMu.RLock()
	defer qm.logsMu.RUnlock()
	if limit <= 0 || limit > len(qm.recentLogs) {
		limit = len(qm.recentLogs)
	}
	return append([]models.QueryLog(nil), qm.recentLogs[:limit]...)
}

// GetLogs returns recent query logs with optional time filter
func (qm *QueryMonitor) GetLogs(limit int, sinceMinutes int) []models.QueryLog {
	if limit <= 0 {
		limit = 100
	}

	var logs []models.QueryLog
	query := qm.db.Order("timestamp DESC").Limit(limit)
	if sinceMinutes > 0 {
		sinceTime := time.Now().Add(-time.Duration(sinceMinutes) * time.Minute).UnixMilli()
		query = query.Where("timestamp >= ?", sinceTime)
	}

	if err := query.Find(&logs).Error; err != nil {
		log.Printf("[Monitor] Failed to get logs from DB: %v", err)
		return qm.Recent(limit)
	}
	return logs
}

// GetLogsWithPagination returns logs with pagination support for history view
func (qm *QueryMonitor) GetLogsWithPagination(page, pageSize int, search string) ([]models.QueryLog, int64) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	var logs []models.QueryLog
	var total int64

	query := qm.db.Model(&models.QueryLog{})
	if search != "" {
		searchPattern := "%" + search + "%"
		query = query.Where("query LIKE ? OR script_name LIKE ? OR model LIKE ? OR error LIKE ?",
			searchPattern, searchPattern, searchPattern, searchPattern)
	}

	query.Count(&total)

	offset := (page - 1) * pageSize
	if err := query.Order("timestamp DESC").Offset(offset).Limit(pageSize).Find(&logs).Error; err != nil {
		log.Printf("[Monitor] Failed to get logs with pagination: %v", err)
		return nil, 0
	}
	return logs, total
}

// GetStats returns aggregated query statistics
func (qm *QueryMonitor) GetStats() models.QueryStats {
	return models.QueryStats{
		TotalQueries: qm.totalQueries.Load(),
		SuccessCount: qm.successCount.Load(),
		ErrorCount:   qm.errorCount.Load(),
		LLMRouted:    qm.llmRouted.Load(),
		Fallbacks:    qm.fallbacks.Load(),
	}
}

// Clear clears all logs from memory and database
func (qm *QueryMonitor) Clear() error {
	qm.Wait()

	qm.logsMu.Lock()
	qm.recentLogs = qm.recentLogs[:0]
	qm.logsMu.Unlock()

	qm.totalQueries.Store(0)
	qm.successCount.Store(0)
	qm.errorCount.Store(0)
	qm.llmRouted.Store(0)
	qm.fallbacks.Store(0)

	if err := qm.db.Exec("DELETE FROM query_logs").Error; err != nil {
		log.Printf("[Monitor] Failed to clear logs: %v", err)
		return err
	}

	log.Printf("[Monitor] All query logs cleared")
	return nil
}

// loadStatsFromDB loads initial statistics from database
func (qm *QueryMonitor) loadStatsFromDB() {
	var total, success, errors, routed, fallbacks int64

	qm.db.Model(&models.QueryLog{}).Count(&total)
	qm.db.Model(&models.QueryLog{}).Where("success = ?", true).Count(&success)
	qm.db.Model(&models.QueryLog{}).Where("success = ?", false).Count(&errors)
	qm.db.Model(&models.QueryLog{}).Where("source = ?", SourceLLM).Count(&routed)
	qm.db.Model(&models.QueryLog{}).Where("source = ?", SourceKeyword).Count(&fallbacks)

	qm.totalQueries.Store(total)
	qm.successCount.Store(success)
	qm.errorCount.Store(errors)
	qm.llmRouted.Store(routed)
	qm.fallbacks.Store(fallbacks)

	log.Printf("[Monitor] Loaded stats: total=%d, success=%d, errors=%d", total, success, errors)
}
