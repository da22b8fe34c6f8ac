package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pysugar/loanpilot/internal/config"
	"github.com/pysugar/loanpilot/internal/db"
	"github.com/pysugar/loanpilot/internal/embedding"
	"github.com/pysugar/loanpilot/internal/llm"
	"github.com/pysugar/loanpilot/internal/llm/llmtest"
	"github.com/pysugar/loanpilot/internal/llm/registry"
	"github.com/pysugar/loanpilot/internal/monitor"
	"github.com/pysugar/loanpilot/internal/router"
	"github.com/pysugar/loanpilot/internal/scripts"
	"github.com/pysugar/loanpilot/internal/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModels = `tiers:
  fast: [fast-model]
  balanced: [balanced-model, balanced-backup]
  powerful: [powerful-model]
`

const primeDTI = `PARAMETER: DTI (dti)
SERVICER: Prime
================================================================================
PRMG/Jumbo Advantage: 43%
PRMG/Plus Connect: 45%
PRMG/Prime Connect: 50%
================================================================================
Total: 3 programs
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	modelsFile := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(modelsFile, []byte(testModels), 0o600))
	return &config.Config{
		DBPath:       filepath.Join(dir, "loanpilot.db"),
		ModelsFile:   modelsFile,
		RouterTier:   registry.Balanced,
		RewriterTier: registry.Fast,
		RAGTopK:      8,
	}
}

// newStack bootstraps an engine over the sample programs. A nil client
// leaves model routing disabled.
func newStack(t *testing.T, client llm.Client, opts ...BootstrapOption) *Stack {
	t.Helper()
	opts = append([]BootstrapOption{WithEmbedder(nil)}, opts...)
	if client != nil {
		opts = append(opts, WithLLMClient(client))
	}
	stack, err := Bootstrap(context.Background(), testConfig(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		stack.Close()
	})

	seed, err := db.SampleProgramSeed()
	require.NoError(t, err)
	_, err = db.ApplyProgramSeed(stack.DB, seed)
	require.NoError(t, err)
	return stack
}

func TestExecuteQuery_ModelRouting(t *testing.T) {
	client := llmtest.New().On("balanced-model", llmtest.ToolUse(db.ScriptFindParam, map[string]any{
		"param_name":    "dti",
		"loan_servicer": "Prime",
	}))
	stack := newStack(t, client)

	res := stack.Engine.ExecuteQuery(context.Background(), "max dti", router.Selection{})

	require.True(t, res.Success, res.Results)
	assert.Equal(t, "^ max dti", res.Query)
	assert.Equal(t, primeDTI, res.Results)
	assert.Equal(t, router.SourceLLM, res.Decision.Source)
	assert.Equal(t, "balanced-model", res.Decision.Model)
	assert.Equal(t, router.ToolConfidence, res.Decision.Confidence)
	assert.Contains(t, res.Stdout, "Selected script: find_param_across_programs")
	assert.Empty(t, res.Rewritten)
	assert.False(t, res.ExecutedAt.IsZero())

	require.Len(t, client.Requests(), 1)
	assert.Equal(t, "Query: max dti", client.Requests()[0].Messages[0].Content)

	stack.Monitor.Wait()
	stats := stack.Monitor.GetStats()
	assert.EqualValues(t, 1, stats.TotalQueries)
	assert.EqualValues(t, 1, stats.LLMRouted)
	logs := stack.Monitor.GetLogs(10, 0)
	require.Len(t, logs, 1)
	assert.Equal(t, db.ScriptFindParam, logs[0].ScriptName)
	assert.JSONEq(t, `{"param_name":"dti","loan_servicer":"Prime"}`, logs[0].Parameters)
	assert.NotEmpty(t, logs[0].RequestID)
}

func TestExecuteQuery_SelectionBackfill(t *testing.T) {
	client := llmtest.New().On("balanced-model", llmtest.ToolUse(db.ScriptFindParam, map[string]any{
		"param_name": "dti",
	}))
	stack := newStack(t, client)
	sel := SelectionFromPrograms([]db.ProgramRef{{Servicer: "Prime", Program: "PRMG/Prime Connect"}})

	res := stack.Engine.ExecuteQuery(context.Background(), "^ dti", sel)

	require.True(t, res.Success, res.Results)
	assert.Equal(t, "Prime", res.Decision.Parameters.String(scripts.ParamServicer))
	assert.Equal(t, []string{"PRMG/Prime Connect"}, res.Decision.Parameters.Strings(scripts.ParamSelectedPrograms))
	assert.Contains(t, res.Results, "SELECTED PROGRAMS: PRMG/Prime Connect")
	assert.Contains(t, res.Results, "Total: 1 programs")
}

func TestExecuteQuery_KeywordFallbackWithoutCredential(t *testing.T) {
	stack := newStack(t, nil)

	res := stack.Engine.ExecuteQuery(context.Background(), "Find dti across programs", router.Selection{})

	require.True(t, res.Success, res.Results)
	assert.Equal(t, router.SourceKeyword, res.Decision.Source)
	assert.Equal(t, db.ScriptFindParam, res.Decision.ScriptName)
	assert.Equal(t, primeDTI, res.Results)
	assert.Contains(t, res.Stdout, "Keyword match: find_param_across_programs")

	stack.Monitor.Wait()
	assert.EqualValues(t, 1, stack.Monitor.GetStats().Fallbacks)
}

func TestExecuteQuery_NoMatchReportsRoutingError(t *testing.T) {
	stack := newStack(t, nil)

	res := stack.Engine.ExecuteQuery(context.Background(), "what is the weather today", router.Selection{})

	assert.False(t, res.Success)
	assert.Equal(t, "Error: Anthropic API not available (missing API key)\n", res.Results)
	assert.False(t, res.Decision.Matched())

	stack.Monitor.Wait()
	logs := stack.Monitor.GetLogs(10, 0)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	assert.Equal(t, "Anthropic API not available (missing API key)", logs[0].Error)
}

func TestExecuteQuery_RewriteFeedsKeywordFallback(t *testing.T) {
	client := llmtest.New().
		On("balanced-model", llmtest.Text("I am not sure which tool fits.")).
		On("fast-model", llmtest.Text("Find dti across programs"))
	stack := newStack(t, client)

	res := stack.Engine.ExecuteQuery(context.Background(), "how high can the debt ratio go", router.Selection{})

	require.True(t, res.Success, res.Results)
	assert.Equal(t, "Find dti across programs", res.Rewritten)
	assert.Equal(t, router.SourceKeyword, res.Decision.Source)
	assert.Equal(t, "dti", res.Decision.Parameters.String(scripts.ParamName))
	assert.Equal(t, []string{"balanced-model", "fast-model"}, client.Models())
}

func TestRoute_DoesNotExecute(t *testing.T) {
	stack := newStack(t, nil)

	d, rewritten := stack.Engine.Route(context.Background(), "^ Show programs for loan servicer LoanStream", router.Selection{})

	assert.Equal(t, db.ScriptServicerPrograms, d.ScriptName)
	assert.Equal(t, router.ServicerLoanStream, d.Parameters.String(scripts.ParamServicer))
	assert.Empty(t, rewritten)
	stack.Monitor.Wait()
	assert.EqualValues(t, 0, stack.Monitor.GetStats().TotalQueries)
}

func TestExecuteScript(t *testing.T) {
	stack := newStack(t, nil)

	res := stack.Engine.ExecuteScript(context.Background(), db.ScriptProgramParameter, scripts.Params{
		scripts.ParamServicer: "Prime",
		scripts.ParamProgram:  "PRMG/Prime Connect",
		scripts.ParamName:     "reserves",
	})

	require.True(t, res.Success, res.Results)
	assert.Equal(t, "PARAMETER: Reserves (reserves)\nPROGRAM: PRMG/Prime Connect (Prime)\nVALUE: 6 months\n", res.Results)
	assert.Equal(t, monitor.SourceDirect, res.Decision.Source)

	missing := stack.Engine.ExecuteScript(context.Background(), "drop_everything", nil)
	assert.False(t, missing.Success)
	assert.Equal(t, "Error: Script 'drop_everything' not found in database\n", missing.Results)
}

func TestCheckHealthAndScripts(t *testing.T) {
	stack := newStack(t, llmtest.New())

	h := stack.Engine.CheckHealth()
	assert.True(t, h.Available)
	assert.EqualValues(t, 5, h.ScriptCount)
	assert.True(t, h.LLMAvailable)
	assert.False(t, h.RetrieverAvailable)
	assert.Empty(t, h.Error)

	infos, err := stack.Engine.Scripts()
	require.NoError(t, err)
	names := make([]string, len(infos))
	for i, s := range infos {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		db.ScriptFindParam,
		db.ScriptProgramParameter,
		db.ScriptMatchPrograms,
		db.ScriptShowProgram,
		db.ScriptServicerPrograms,
	}, names)
}

func TestBootstrapWithHashEmbedder(t *testing.T) {
	stack := newStack(t, nil, WithEmbedder(embedding.NewHash(0)))

	assert.True(t, stack.Engine.CheckHealth().RetrieverAvailable)
	assert.NotEmpty(t, stack.Engine.Retriever().Retrieve(context.Background(), "debt to income ratio", 3))
}

func TestProgramDetails(t *testing.T) {
	stack := newStack(t, nil)

	details, err := stack.Engine.ProgramDetails("Prime", []string{"PRMG/Prime Connect", "PRMG/Missing"})
	require.NoError(t, err)
	require.Len(t, details, 1)

	d := details[0]
	assert.Equal(t, "PRMG/Prime Connect", d.Program)
	assert.Equal(t, "Full documentation conforming-plus program", d.Summary)
	assert.Equal(t, "50%", d.DTI)
	assert.EqualValues(t, 3_000_000, d.Metrics.MaxLoanAmount)
	assert.EqualValues(t, 100_000, d.Metrics.MinLoanAmount)
	assert.Equal(t, 660, d.Metrics.MinCreditScore)
	assert.Equal(t, 90.0, d.Metrics.MaxLTV)
	assert.Equal(t, 50.0, d.Metrics.MaxDTI)
}

func TestProgramParameter(t *testing.T) {
	stack := newStack(t, nil)

	value, err := stack.Engine.ProgramParameter("Prime", "PRMG/Prime Connect", "fico")
	require.NoError(t, err)
	assert.Equal(t, "660 minimum", value)

	_, err = stack.Engine.ProgramParameter("Prime", "PRMG/Nothing", "dti")
	assert.ErrorIs(t, err, db.ErrProgramNotFound)
}

func TestModelStatusAndProbe(t *testing.T) {
	client := llmtest.New().
		On("fast-model", llmtest.Fail(&llm.APIError{StatusCode: 404, Type: "not_found_error", Message: "model: fast-model"})).
		On("balanced-model", llmtest.Text("ok"))
	stack := newStack(t, client)

	model, err := stack.Engine.ProbeTier(context.Background(), registry.Balanced)
	require.NoError(t, err)
	assert.Equal(t, "balanced-model", model)

	_, err = stack.Engine.ProbeTier(context.Background(), registry.Fast)
	assert.ErrorIs(t, err, selector.ErrChainExhausted)

	statuses := stack.Engine.ModelStatus()
	require.Len(t, statuses, 3)
	assert.Equal(t, registry.Fast, statuses[0].Tier)
	assert.Equal(t, []string{"fast-model"}, statuses[0].FailedModels)
	assert.Equal(t, "balanced-model", statuses[1].SuccessfulModel)
	assert.Equal(t, []string{"balanced-model", "balanced-backup"}, statuses[1].Chain)
}

func TestProbeWithoutCredential(t *testing.T) {
	stack := newStack(t, nil)

	_, err := stack.Engine.ProbeTier(context.Background(), registry.Fast)
	assert.True(t, errors.Is(err, ErrUnknownTier))
	assert.Empty(t, stack.Engine.ModelStatus())
}

func TestSelectionFromPrograms(t *testing.T) {
	sel := SelectionFromPrograms([]db.ProgramRef{
		{Servicer: "LoanStream", Program: "LoanStream Core"},
		{Servicer: "Prime", Program: "PRMG/Prime Connect"},
		{Servicer: "LoanStream", Program: "LoanStream DSCR"},
		{Servicer: " ", Program: ""},
	})
	assert.Equal(t, []string{"LoanStream Core", "PRMG/Prime Connect", "LoanStream DSCR"}, sel.Programs)
	assert.Equal(t, []string{"LoanStream", "Prime"}, sel.Servicers)
}
