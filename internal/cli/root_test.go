package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/pysugar/loanpilot/internal/db"
	"github.com/pysugar/loanpilot/internal/scripts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	want := []string{"ask", "route", "params", "models", "scripts", "seed", "version"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	for _, flag := range []string{"db", "env-file", "verbose", "format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestAskCommand_Flags(t *testing.T) {
	cmd := NewAskCommand(&RootOptions{})

	flag := cmd.Flags().Lookup("program")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
}

func TestParseSelection(t *testing.T) {
	sel, err := parseSelection([]string{"Prime:PRMG/Prime Connect", "LoanStream DSCR"})
	require.NoError(t, err)
	assert.Equal(t, []string{"PRMG/Prime Connect", "LoanStream DSCR"}, sel.Programs)
	assert.Equal(t, []string{"Prime", "LoanStream"}, sel.Servicers)

	_, err = parseSelection([]string{"Prime:"})
	assert.Error(t, err)
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{
		"loan_servicer=Prime",
		"selected_programs=A",
		"selected_programs=B",
	})
	require.NoError(t, err)
	assert.Equal(t, "Prime", params.String(scripts.ParamServicer))
	assert.Equal(t, []string{"A", "B"}, params.Strings(scripts.ParamSelectedPrograms))

	_, err = parseParams([]string{"no-equals"})
	assert.Error(t, err)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"version", "--format", "yaml"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// run executes the root command against a database in a temp dir with
// model routing and retrieval disabled.
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ANTHROPIC_AUTH_TOKEN", "")
	t.Setenv("EMBEDDING_PROVIDER", "none")

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", dbPath, "--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seededDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "loanpilot.db")
	out, err := run(t, dbPath, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded ")
	return dbPath
}

func TestAsk_KeywordFallback(t *testing.T) {
	dbPath := seededDB(t)

	out, err := run(t, dbPath, "ask", "Find", "dti", "across", "programs")
	require.NoError(t, err)
	assert.Contains(t, out, "PARAMETER: DTI (dti)")
	assert.Contains(t, out, "PRMG/Prime Connect: 50%")
}

func TestAsk_NoMatchFails(t *testing.T) {
	dbPath := seededDB(t)

	out, err := run(t, dbPath, "ask", "what is the weather today")
	assert.ErrorIs(t, err, ErrQueryFailed)
	assert.Contains(t, out, "Error:")
}

func TestRoute_JSON(t *testing.T) {
	dbPath := seededDB(t)

	out, err := run(t, dbPath, "--format", "json", "route", "Find dti across programs")
	require.NoError(t, err)

	var resp struct {
		Decision struct {
			ScriptName string `json:"script_name"`
			Source     string `json:"source"`
		} `json:"decision"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, db.ScriptFindParam, resp.Decision.ScriptName)
	assert.Equal(t, "keyword", resp.Decision.Source)
}

func TestScriptsRun(t *testing.T) {
	dbPath := seededDB(t)

	out, err := run(t, dbPath, "scripts", "run", db.ScriptServicerPrograms, "--param", "loan_servicer=LoanStream")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 2 programs")

	_, err = run(t, dbPath, "scripts", "run", "no_such_script")
	assert.ErrorIs(t, err, ErrQueryFailed)
}

func TestScriptsList(t *testing.T) {
	dbPath := seededDB(t)

	out, err := run(t, dbPath, "scripts")
	require.NoError(t, err)
	assert.Contains(t, out, db.ScriptProgramParameter)
	assert.Contains(t, out, db.ScriptFindParam)
}

func TestParams_StaticFallback(t *testing.T) {
	dbPath := seededDB(t)

	out, err := run(t, dbPath, "params")
	require.NoError(t, err)
	assert.Contains(t, out, "COLUMN")
	assert.Contains(t, out, "dti")

	out, err = run(t, dbPath, "params", "debt to income limits")
	require.NoError(t, err)
	assert.Contains(t, out, "Retrieval unavailable")
	assert.Contains(t, out, "  dti")
}

func TestModels_WithoutCredential(t *testing.T) {
	dbPath := seededDB(t)

	out, err := run(t, dbPath, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "Model routing disabled")
	assert.Contains(t, out, "balanced:")
}
