package scripts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeParams(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"param_name": "dti",
		"borrower_credit_score": 720,
		"ltv": 79.5,
		"selected_programs": ["PRMG/Prime Connect", null, "LoanStream Core"],
		"occupancy": null
	}`), &raw))

	p := NormalizeParams(raw)

	assert.Equal(t, "dti", p.String(ParamName))
	assert.Equal(t, "720", p.String(ParamCreditScore))
	assert.Equal(t, "79.5", p.String(ParamLTV))
	assert.Equal(t, []string{"PRMG/Prime Connect", "LoanStream Core"}, p.Strings(ParamSelectedPrograms))
	assert.False(t, p.Has(ParamOccupancy))
	assert.Equal(t, []string{"borrower_credit_score", "ltv", "param_name", "selected_programs"}, p.Keys())
}

func TestParamsAccessors(t *testing.T) {
	p := Params{
		ParamServicer:         "  Prime ",
		ParamSelectedPrograms: []string{" ", "PRMG/Plus Connect"},
		ParamProgram:          "",
	}

	assert.Equal(t, "Prime", p.String(ParamServicer))
	assert.Equal(t, []string{"Prime"}, p.Strings(ParamServicer))
	assert.Equal(t, []string{"PRMG/Plus Connect"}, p.Strings(ParamSelectedPrograms))
	assert.False(t, p.Has(ParamProgram))
	assert.Empty(t, p.String("missing"))
}

func TestParamsClone(t *testing.T) {
	p := Params{ParamSelectedPrograms: []string{"A"}}
	c := p.Clone()
	c[ParamSelectedPrograms].([]string)[0] = "B"

	assert.Equal(t, []string{"A"}, p.Strings(ParamSelectedPrograms))
}
