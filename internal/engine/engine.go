// Package engine runs natural-language queries end to end: routing, the
// keyword fallback, script execution and history recording.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pysugar/loanpilot/internal/db"
	"github.com/pysugar/loanpilot/internal/db/models"
	"github.com/pysugar/loanpilot/internal/llm/registry"
	"github.com/pysugar/loanpilot/internal/logging"
	"github.com/pysugar/loanpilot/internal/monitor"
	"github.com/pysugar/loanpilot/internal/retriever"
	"github.com/pysugar/loanpilot/internal/rewriter"
	"github.com/pysugar/loanpilot/internal/router"
	"github.com/pysugar/loanpilot/internal/scripts"
	"github.com/pysugar/loanpilot/internal/selector"
	"gorm.io/gorm"
)

// ErrUnknownTier is returned for a tier without a selector.
var ErrUnknownTier = errors.New("no selector for tier")

// Recorder receives one history entry per executed query.
type Recorder interface {
	Record(entry models.QueryLog)
}

// Result is the envelope returned for every query.
type Result struct {
	Success    bool            `json:"success"`
	Query      string          `json:"query"`
	Results    string          `json:"results"`
	Stdout     string          `json:"stdout,omitempty"`
	Decision   router.Decision `json:"decision"`
	Rewritten  string          `json:"rewritten,omitempty"`
	ExecutedAt time.Time       `json:"executedAt"`
	DurationMs int64           `json:"durationMs"`
}

// Health describes whether queries can be served.
type Health struct {
	Available          bool   `json:"available"`
	DBPath             string `json:"dbPath"`
	ScriptCount        int64  `json:"scriptCount"`
	LLMAvailable       bool   `json:"llmAvailable"`
	RetrieverAvailable bool   `json:"retrieverAvailable"`
	Error              string `json:"error,omitempty"`
}

// ScriptInfo is one registered script.
type ScriptInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// ProgramDetail is the headline view of one program.
type ProgramDetail struct {
	db.ProgramRef
	Summary     string             `json:"programSummary,omitempty"`
	CreditScore string             `json:"borrowerCreditScore,omitempty"`
	LoanAmount  string             `json:"loanAmount,omitempty"`
	LTV         string             `json:"ltv,omitempty"`
	DTI         string             `json:"dti,omitempty"`
	Metrics     scripts.KeyMetrics `json:"keyMetrics"`
}

// Components are the collaborators of an Engine. Router and Executor are
// required; the rest are optional.
type Components struct {
	DB        *gorm.DB
	DBPath    string
	Router    *router.Router
	Rewriter  *rewriter.Rewriter
	Executor  *scripts.Executor
	Retriever *retriever.Retriever
	Selectors map[registry.Tier]*selector.Selector
	Recorder  Recorder
}

// Engine serializes queries: the selectors behind the router and the
// rewriter keep unsynchronized bookkeeping, so at most one query runs at a
// time.
type Engine struct {
	mu sync.Mutex

	db        *gorm.DB
	dbPath    string
	router    *router.Router
	rewriter  *rewriter.Rewriter
	executor  *scripts.Executor
	retriever *retriever.Retriever
	selectors map[registry.Tier]*selector.Selector
	recorder  Recorder
	now       func() time.Time
}

// New creates an Engine.
func New(c Components) *Engine {
	return &Engine{
		db:        c.DB,
		dbPath:    c.DBPath,
		router:    c.Router,
		rewriter:  c.Rewriter,
		executor:  c.Executor,
		retriever: c.Retriever,
		selectors: c.Selectors,
		recorder:  c.Recorder,
		now:       time.Now,
	}
}

// DB returns the attribute store.
func (e *Engine) DB() *gorm.DB {
	return e.db
}

// Retriever returns the parameter retriever, which may be unavailable.
func (e *Engine) Retriever() *retriever.Retriever {
	return e.retriever
}

// SelectionFromPrograms builds a selection from program references. The
// servicers keep the order of their first appearance.
func SelectionFromPrograms(refs []db.ProgramRef) router.Selection {
	var sel router.Selection
	seen := map[string]bool{}
	for _, ref := range refs {
		if name := strings.TrimSpace(ref.Program); name != "" {
			sel.Programs = append(sel.Programs, name)
		}
		servicer := strings.TrimSpace(ref.Servicer)
		if servicer != "" && !seen[servicer] {
			seen[servicer] = true
			sel.Servicers = append(sel.Servicers, servicer)
		}
	}
	return sel
}

// ExecuteQuery routes query, falls back to keyword matching when the model
// picks nothing, runs the chosen script and records the outcome.
func (e *Engine) ExecuteQuery(ctx context.Context, query string, sel router.Selection) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, requestID := logging.EnsureRequestID(ctx)
	start := e.now()
	res := Result{Query: router.AddMarker(query)}
	log.Printf("🔍 [Engine] %s Executing query: %s", requestID, res.Query)
	if !sel.Empty() {
		log.Printf("📌 [Engine] %s Context: programs=%v servicers=%v", requestID, sel.Programs, sel.Servicers)
	}

	var trace strings.Builder
	decision, rewritten := e.resolve(ctx, router.StripMarker(query), sel, &trace)
	res.Decision = decision
	res.Rewritten = rewritten

	if !decision.Matched() {
		res.Results = "Error: " + decision.Error + "\n"
	} else {
		var out bytes.Buffer
		report := e.executor.Execute(ctx, decision.ScriptName, decision.Parameters, &out)
		res.Success = report.Success()
		res.Results = out.String()
		if !res.Success && res.Results == "" {
			res.Results = "Query execution failed"
		}
	}
	res.Stdout = strings.TrimSpace(trace.String())
	e.finish(ctx, &res, start, sourceOf(decision))

	if res.Success {
		log.Printf("✅ [Engine] %s Query executed successfully (%dms)", requestID, res.DurationMs)
	} else {
		log.Printf("❌ [Engine] %s Query execution failed: %s", requestID,
			logging.TruncateLog(strings.TrimSpace(res.Results), 200))
	}
	return res
}

// Route returns the decision ExecuteQuery would act on without running it.
func (e *Engine) Route(ctx context.Context, query string, sel router.Selection) (router.Decision, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, _ = logging.EnsureRequestID(ctx)
	var trace strings.Builder
	return e.resolve(ctx, router.StripMarker(query), sel, &trace)
}

// ExecuteScript runs one script with explicit parameters.
func (e *Engine) ExecuteScript(ctx context.Context, name string, params scripts.Params) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, _ = logging.EnsureRequestID(ctx)
	start := e.now()
	if params == nil {
		params = scripts.Params{}
	}
	var out bytes.Buffer
	report := e.executor.Execute(ctx, name, params, &out)
	res := Result{
		Success: report.Success(),
		Query:   name,
		Results: out.String(),
		Decision: router.Decision{
			ScriptName: name,
			Parameters: params,
			Confidence: 1,
			Source:     monitor.SourceDirect,
		},
	}
	e.finish(ctx, &res, start, monitor.SourceDirect)
	return res
}

// resolve asks the router first and the keyword matcher second. The
// keyword matcher sees the rewritten query when a rewrite is available.
// It returns the decision and the rewritten query, if any.
func (e *Engine) resolve(ctx context.Context, query string, sel router.Selection, trace *strings.Builder) (router.Decision, string) {
	decision := e.router.Route(ctx, query, sel)
	if decision.Matched() {
		fmt.Fprintf(trace, "✓ Selected script: %s (model %s)\n", decision.ScriptName, decision.Model)
		fmt.Fprintf(trace, "✓ Script parameters: %s\n", paramsJSON(decision.Parameters))
		return decision, ""
	}
	routeErr := decision.Error
	log.Printf("⚠️ [Engine] Model routing produced no script: %s", routeErr)

	patterns, err := e.patterns()
	if err != nil {
		log.Printf("❌ [Engine] Failed to load script patterns: %v", err)
		return decision, ""
	}

	matchQuery, rewritten := query, ""
	if e.rewriter != nil && e.rewriter.Available() {
		prompts := make([]string, len(patterns))
		for i, p := range patterns {
			prompts[i] = p.Prompt
		}
		if r, ok := e.rewriter.Rewrite(ctx, query, prompts); ok {
			matchQuery, rewritten = r, r
			fmt.Fprintf(trace, "✓ Rewritten query: %s\n", r)
		}
	}

	fallback := router.Fallback(matchQuery, patterns, e.router.Columns(), sel)
	if rewritten != "" && !fallback.Matched() {
		fallback = router.Fallback(query, patterns, e.router.Columns(), sel)
	}
	if !fallback.Matched() {
		if routeErr == "" {
			routeErr = fallback.Error
		}
		fallback.Error = routeErr
		fallback.Model = decision.Model
		return fallback, rewritten
	}
	fmt.Fprintf(trace, "✓ Keyword match: %s (score %.2f)\n", fallback.ScriptName, fallback.Confidence)
	fmt.Fprintf(trace, "✓ Script parameters: %s\n", paramsJSON(fallback.Parameters))
	return fallback, rewritten
}

func (e *Engine) patterns() ([]router.Pattern, error) {
	registered, err := db.ListScripts(e.db)
	if err != nil {
		return nil, err
	}
	patterns := make([]router.Pattern, 0, len(registered))
	for _, s := range registered {
		if s.Prompt == "" {
			continue
		}
		patterns = append(patterns, router.Pattern{Name: s.Name, Prompt: s.Prompt})
	}
	return patterns, nil
}

func (e *Engine) finish(ctx context.Context, res *Result, start time.Time, source string) {
	end := e.now()
	res.ExecutedAt = end.UTC()
	res.DurationMs = end.Sub(start).Milliseconds()
	if e.recorder == nil {
		return
	}

	entry := models.QueryLog{
		RequestID:  logging.GetRequestID(ctx),
		Timestamp:  end.UnixMilli(),
		Query:      res.Query,
		Source:     source,
		ScriptName: res.Decision.ScriptName,
		Parameters: paramsJSON(res.Decision.Parameters),
		Model:      res.Decision.Model,
		Confidence: res.Decision.Confidence,
		Success:    res.Success,
		Duration:   res.DurationMs,
		Results:    res.Results,
	}
	if !res.Success {
		entry.Error = res.Decision.Error
		if entry.Error == "" {
			entry.Error = strings.TrimSpace(res.Results)
		}
	}
	e.recorder.Record(entry)
}

// sourceOf attributes unmatched queries to the keyword matcher, the last
// stage they went through.
func sourceOf(d router.Decision) string {
	if d.Source != "" {
		return d.Source
	}
	return router.SourceKeyword
}

func paramsJSON(p scripts.Params) string {
	if len(p) == 0 {
		return "{}"
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// CheckHealth reports whether the database is reachable and scripts are
// registered.
func (e *Engine) CheckHealth() Health {
	h := Health{
		DBPath:             e.dbPath,
		LLMAvailable:       e.router != nil && e.router.Available(),
		RetrieverAvailable: e.retriever.Available(),
	}
	count, err := db.CountScripts(e.db)
	if err != nil {
		log.Printf("❌ [Engine] Health check failed: %v", err)
		h.Error = err.Error()
		return h
	}
	h.ScriptCount = count
	h.Available = e.executor != nil && count > 0
	return h
}

// Scripts lists the registered scripts ordered by name.
func (e *Engine) Scripts() ([]ScriptInfo, error) {
	registered, err := db.ListScripts(e.db)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	infos := make([]ScriptInfo, len(registered))
	for i, s := range registered {
		infos[i] = ScriptInfo{Name: s.Name, Description: s.Description, Prompt: s.Prompt}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// ProgramDetails returns headline values and parsed key metrics of the
// named programs, or of every program of servicer when programs is empty.
// Unknown names are skipped.
func (e *Engine) ProgramDetails(servicer string, programs []string) ([]ProgramDetail, error) {
	rows, err := db.ListProgramDetails(e.db, servicer, programs)
	if err != nil {
		return nil, err
	}
	details := make([]ProgramDetail, len(rows))
	for i, p := range rows {
		details[i] = ProgramDetail{
			ProgramRef:  p.ProgramRef,
			Summary:     p.Value(scripts.ParamSummary),
			CreditScore: p.Value(scripts.ParamCreditScore),
			LoanAmount:  p.Value(scripts.ParamLoanAmount),
			LTV:         p.Value(scripts.ParamLTV),
			DTI:         p.Value(scripts.ParamDTI),
			Metrics:     scripts.ExtractKeyMetrics(p.Attributes),
		}
	}
	log.Printf("✓ [Engine] Fetched details for %d programs", len(details))
	return details, nil
}

// ProgramParameter returns one value of one program.
func (e *Engine) ProgramParameter(servicer, program, param string) (string, error) {
	column := param
	if mapped := router.MapParamName(param, e.router.Columns()); mapped != "" {
		column = mapped
	}
	return db.ProgramValueOf(e.db, servicer, program, column)
}

// ModelStatus returns the selector state of every configured tier in tier
// order.
func (e *Engine) ModelStatus() []selector.Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	var statuses []selector.Status
	for _, tier := range registry.Tiers() {
		if s, ok := e.selectors[tier]; ok {
			statuses = append(statuses, s.Status())
		}
	}
	return statuses
}

// ProbeTier verifies a working model of tier with a test call.
func (e *Engine) ProbeTier(ctx context.Context, tier registry.Tier) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.selectors[tier]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
	return s.GetWorkingModel(ctx, true)
}
