// Package router turns a natural-language query into a routing decision:
// a script name, its parameters and a confidence. The model picks one of
// the tools built in this package; the keyword matcher covers the cases
// where no model is available or none was chosen.
package router

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/pysugar/loanpilot/internal/llm"
	"github.com/pysugar/loanpilot/internal/logging"
	"github.com/pysugar/loanpilot/internal/retriever"
	"github.com/pysugar/loanpilot/internal/scripts"
)

const (
	// ToolConfidence is reported for every decision taken by the model.
	ToolConfidence = 0.95

	maxTokens = 1024

	// Decision sources.
	SourceLLM     = "llm"
	SourceKeyword = "keyword"

	errNoCredential = "Anthropic API not available (missing API key)"
	errNoMatch      = "No matching script found"
)

// Caller issues a request with model fallback.
type Caller interface {
	CallWithFallback(ctx context.Context, req llm.MessageRequest) (*llm.MessageResponse, string, error)
}

// ParameterSource narrows the column vocabulary for a query.
type ParameterSource interface {
	Available() bool
	Retrieve(ctx context.Context, query string, k int) []retriever.Result
}

// Decision is the outcome of routing one query. An empty ScriptName means
// no script matched and Error says why.
type Decision struct {
	ScriptName          string         `json:"script_name"`
	Parameters          scripts.Params `json:"parameters"`
	Confidence          float64        `json:"confidence"`
	Source              string         `json:"source,omitempty"`
	Model               string         `json:"model,omitempty"`
	RetrievedParameters []string       `json:"retrieved_parameters,omitempty"`
	Error               string         `json:"error,omitempty"`
}

// Matched reports whether a script was chosen.
func (d Decision) Matched() bool {
	return d.ScriptName != ""
}

func noMatch(reason string) Decision {
	return Decision{Parameters: scripts.Params{}, Error: reason}
}

// Router routes queries through the model. A nil Caller means no
// credential is configured.
type Router struct {
	caller  Caller
	columns []string
	source  ParameterSource
	topK    int
}

// Option configures a Router.
type Option func(*Router)

// WithRetriever narrows the prompt and the param_name enum to the k
// descriptors most relevant to each query.
func WithRetriever(source ParameterSource, k int) Option {
	return func(r *Router) {
		r.source = source
		r.topK = k
	}
}

// New creates a Router over the attribute columns of the programs table.
func New(caller Caller, columns []string, opts ...Option) *Router {
	r := &Router{
		caller:  caller,
		columns: append([]string(nil), columns...),
		topK:    retriever.DefaultTopK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether a model can be called.
func (r *Router) Available() bool {
	return r.caller != nil
}

// Columns returns the full column vocabulary.
func (r *Router) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Route asks the model to pick a tool for query. It never returns an
// error: failures are reported in Decision.Error with zero confidence.
func (r *Router) Route(ctx context.Context, query string, sel Selection) Decision {
	query = StripMarker(query)
	if r.caller == nil {
		return noMatch(errNoCredential)
	}

	columns, retrieved := r.narrow(ctx, query)
	tools, err := BuildTools(columns)
	if err != nil {
		return noMatch(err.Error())
	}

	req := llm.MessageRequest{
		MaxTokens:   maxTokens,
		Temperature: llm.Float64(0),
		System:      SystemPrompt(columns, sel, retrieved),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "Query: " + query}},
		Tools:       tools,
	}
	resp, model, err := r.caller.CallWithFallback(ctx, req)
	if err != nil {
		log.Printf("❌ [Router] %s Query routing failed: %v", logging.GetRequestID(ctx), err)
		d := noMatch(err.Error())
		d.Model = model
		return d
	}

	block, ok := resp.FirstToolUse()
	if !ok {
		d := noMatch(errNoMatch)
		d.Model = model
		return d
	}

	raw := map[string]any{}
	if len(block.Input) > 0 {
		if err := json.Unmarshal(block.Input, &raw); err != nil {
			d := noMatch("decode tool input: " + err.Error())
			d.Model = model
			return d
		}
	}

	d := Decision{
		ScriptName: block.Name,
		Parameters: scripts.NormalizeParams(raw),
		Confidence: ToolConfidence,
		Source:     SourceLLM,
		Model:      model,
	}
	for _, res := range retrieved {
		d.RetrievedParameters = append(d.RetrievedParameters, res.ColumnName)
	}
	r.mapParamName(d.Parameters)
	Backfill(&d, sel)
	log.Printf("✅ [Router] Model %s selected %s %s", model, d.ScriptName,
		logging.TruncateLog(paramsString(d.Parameters), 200))
	return d
}

// narrow returns the columns offered to the model and the descriptors
// retrieved for query, if any.
func (r *Router) narrow(ctx context.Context, query string) ([]string, []retriever.Result) {
	if r.source == nil || !r.source.Available() {
		return r.columns, nil
	}
	known := make(map[string]bool, len(r.columns))
	for _, c := range r.columns {
		known[c] = true
	}
	var columns []string
	var retrieved []retriever.Result
	for _, res := range r.source.Retrieve(ctx, query, r.topK) {
		if !known[res.ColumnName] {
			continue
		}
		columns = append(columns, res.ColumnName)
		retrieved = append(retrieved, res)
	}
	if len(columns) == 0 {
		return r.columns, nil
	}
	return columns, retrieved
}

func (r *Router) mapParamName(params scripts.Params) {
	name := params.String(scripts.ParamName)
	if name == "" {
		return
	}
	if column := MapParamName(name, r.columns); column != "" {
		params[scripts.ParamName] = column
	}
}

// Backfill fills parameters the decision lacks from the selection.
// Values already present always win. Selected programs are added when
// absent; the servicer is filled only for scripts that take one, from the
// first selected servicer or else from a known program prefix.
func Backfill(d *Decision, sel Selection) {
	if d.Parameters == nil {
		d.Parameters = scripts.Params{}
	}
	if len(sel.Programs) > 0 && !d.Parameters.Has(scripts.ParamSelectedPrograms) {
		d.Parameters[scripts.ParamSelectedPrograms] = append([]string(nil), sel.Programs...)
	}
	if !servicerScripts[d.ScriptName] || d.Parameters.Has(scripts.ParamServicer) {
		return
	}
	if len(sel.Servicers) > 0 && strings.TrimSpace(sel.Servicers[0]) != "" {
		d.Parameters[scripts.ParamServicer] = strings.TrimSpace(sel.Servicers[0])
		return
	}
	for _, program := range sel.Programs {
		if servicer := ServicerForProgram(program); servicer != "" {
			d.Parameters[scripts.ParamServicer] = servicer
			return
		}
	}
}

// ServicerForProgram infers the servicer from a program name prefix.
func ServicerForProgram(program string) string {
	program = strings.TrimSpace(program)
	switch {
	case strings.HasPrefix(strings.ToUpper(program), "PRMG/"):
		return ServicerPrime
	case strings.HasPrefix(strings.ToLower(program), "loanstream"):
		return ServicerLoanStream
	}
	return ""
}

func paramsString(p scripts.Params) string {
	raw, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(raw)
}
