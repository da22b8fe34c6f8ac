package scripts

import (
	"testing"

	"github.com/pysugar/loanpilot/internal/db"
	"github.com/stretchr/testify/assert"
)

func TestAmountRange(t *testing.T) {
	tests := []struct {
		in     string
		lo, hi int64
		ok     bool
	}{
		{"$100,000 - $3,000,000", 100_000, 3_000_000, true},
		{"Up to $1.5M", 1_500_000, 1_500_000, true},
		{"$75k minimum", 75_000, 75_000, true},
		{"24 months", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lo, hi, ok := AmountRange(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := map[string]int64{
		"500000":   500_000,
		"$500,000": 500_000,
		"500k":     500_000,
		"1.2M":     1_200_000,
	}
	for in, want := range tests {
		got, ok := ParseAmount(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseAmount("lots")
	assert.False(t, ok)
}

func TestPercentParsing(t *testing.T) {
	v, ok := MaxPercent("Up to 90% purchase, 80% cash-out")
	assert.True(t, ok)
	assert.Equal(t, 90.0, v)

	v, ok = ParsePercent("43")
	assert.True(t, ok)
	assert.Equal(t, 43.0, v)

	v, ok = ParsePercent("49.5%")
	assert.True(t, ok)
	assert.Equal(t, 49.5, v)

	_, ok = ParsePercent("high")
	assert.False(t, ok)
}

func TestMinCreditScore(t *testing.T) {
	score, ok := MinCreditScore("660 minimum, 700 for cash-out")
	assert.True(t, ok)
	assert.Equal(t, 660, score)

	_, ok = MinCreditScore("Not required")
	assert.False(t, ok)
}

func TestExtractKeyMetrics(t *testing.T) {
	m := ExtractKeyMetrics(map[string]string{
		"loan_amount":           "$766,551 - $4,000,000",
		"borrower_credit_score": "720",
		"ltv":                   "80%",
		"dti":                   "43%",
	})
	assert.Equal(t, KeyMetrics{
		MinLoanAmount:  766_551,
		MaxLoanAmount:  4_000_000,
		MinCreditScore: 720,
		MaxLTV:         80,
		MaxDTI:         43,
	}, m)
	assert.Equal(t, KeyMetrics{}, ExtractKeyMetrics(nil))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "$1,500,000", FormatAmount(1_500_000))
	assert.Equal(t, "$950", FormatAmount(950))
	assert.Equal(t, "45%", FormatPercent(45))
	assert.Equal(t, "49.5%", FormatPercent(49.5))
}

func TestCriteriaExclusions(t *testing.T) {
	program := &db.Program{Attributes: map[string]string{
		"transaction_type": "Purchase, Cash Out Refinance",
		"occupancy":        "Primary Residence, Second Home",
	}}

	tests := []struct {
		name     string
		criteria Criteria
		excluded bool
	}{
		{"cash-out spelled differently", Criteria{TransactionType: "cashout refi"}, false},
		{"rate term not offered", Criteria{TransactionType: "rate/term refinance"}, true},
		{"vacation home", Criteria{Occupancy: "vacation home"}, false},
		{"rental", Criteria{Occupancy: "rental property"}, true},
		{"missing limits never exclude", Criteria{CreditScore: 500, DTI: 70}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.excluded, len(tt.criteria.Exclusions(program)) > 0)
		})
	}
}

func TestParseCriteria(t *testing.T) {
	c, err := ParseCriteria(Params{ParamCreditScore: "720", ParamLoanAmount: "$650,000", ParamLTV: "75%"})
	assert.NoError(t, err)
	assert.Equal(t, Criteria{CreditScore: 720, LoanAmount: 650_000, LTV: 75}, c)

	_, err = ParseCriteria(Params{ParamCreditScore: "excellent"})
	assert.Error(t, err)

	c, err = ParseCriteria(Params{})
	assert.NoError(t, err)
	assert.True(t, c.Empty())
}
