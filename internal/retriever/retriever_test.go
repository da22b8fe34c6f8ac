package retriever

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/pysugar/loanpilot/internal/textnorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vocabEmbedder counts vocabulary words, one axis per word.
type vocabEmbedder struct {
	vocab []string
	fail  bool
	calls int
}

func (v *vocabEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	v.calls++
	if v.fail {
		return nil, errors.New("backend down")
	}
	vec := make([]float64, len(v.vocab))
	for _, w := range textnorm.Words(text) {
		for i, term := range v.vocab {
			if w == term {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func testParameters() []Parameter {
	return []Parameter{
		{
			ColumnName:     "dti",
			DisplayName:    "DTI",
			AttributeGroup: "financial",
			CommonTerms:    []string{"debt to income", "debt ratio"},
			Description:    "Maximum debt-to-income ratio allowed",
		},
		{
			ColumnName:     "ltv",
			DisplayName:    "LTV",
			AttributeGroup: "financial",
			CommonTerms:    []string{"loan to value"},
			Description:    "Maximum loan-to-value ratio",
		},
		{
			ColumnName:     "borrower_credit_score",
			DisplayName:    "Borrower Credit Score",
			AttributeGroup: "credit",
			CommonTerms:    []string{"credit score", "fico"},
			Description:    "Minimum credit score for primary borrower",
		},
		{
			ColumnName:     "appraisal_transfer_allowed",
			DisplayName:    "Appraisal Transfer Allowed",
			AttributeGroup: "appraisal",
			PossibleValues: []string{"Yes", "No"},
			CommonTerms:    []string{"appraisal transfer"},
			Description:    "Whether appraisal transfers are permitted",
		},
	}
}

func newVocab() *vocabEmbedder {
	return &vocabEmbedder{vocab: []string{"dti", "debt", "ltv", "value", "credit", "fico", "appraisal", "transfer"}}
}

func TestEmbeddingText(t *testing.T) {
	got := EmbeddingText(testParameters()[3])
	want := "Appraisal Transfer Allowed. Whether appraisal transfers are permitted Category: appraisal. " +
		"Possible values: Yes, No. Common terms: appraisal transfer. Column: appraisal_transfer_allowed"
	assert.Equal(t, want, got)

	bare := EmbeddingText(Parameter{ColumnName: "x", DisplayName: "X"})
	assert.Equal(t, "X. Common terms: . Column: x", bare)
}

func TestRetrieveRanksByDescendingSimilarity(t *testing.T) {
	r := New(context.Background(), newVocab(), testParameters())
	require.True(t, r.Available())

	results := r.Retrieve(context.Background(), "What is the max dti limit?", 2)
	require.Len(t, results, 2)
	assert.Equal(t, "dti", results[0].ColumnName)
	assert.Greater(t, results[0].Score, 0.0)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestRetrieveKBounds(t *testing.T) {
	r := New(context.Background(), newVocab(), testParameters())

	assert.Len(t, r.Retrieve(context.Background(), "credit score", 100), 4)
	assert.Len(t, r.Retrieve(context.Background(), "credit score", 0), 4, "default K is capped by parameter count")

	results := r.Retrieve(context.Background(), "fico credit", 3)
	require.Len(t, results, 3)
	assert.Equal(t, "borrower_credit_score", results[0].ColumnName)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestRetrieveIsStable(t *testing.T) {
	r := New(context.Background(), newVocab(), testParameters())
	first := r.Retrieve(context.Background(), "appraisal transfer rules", 4)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, r.Retrieve(context.Background(), "appraisal transfer rules", 4))
	}
}

func TestUnavailableRetrieverReturnsEmpty(t *testing.T) {
	e := newVocab()
	e.fail = true
	r := New(context.Background(), e, testParameters())

	assert.False(t, r.Available())
	assert.Error(t, r.Err())
	results := r.Retrieve(context.Background(), "max dti", 8)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	nilEmbedder := New(context.Background(), nil, testParameters())
	assert.False(t, nilEmbedder.Available())
	assert.Empty(t, nilEmbedder.Retrieve(context.Background(), "max dti", 8))

	var nilRetriever *Retriever
	assert.False(t, nilRetriever.Available())
	assert.Empty(t, nilRetriever.Retrieve(context.Background(), "max dti", 8))
}

func TestRetrieveQueryEmbedFailure(t *testing.T) {
	e := newVocab()
	r := New(context.Background(), e, testParameters())
	require.True(t, r.Available())

	e.fail = true
	assert.Empty(t, r.Retrieve(context.Background(), "max dti", 8))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-12)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.Zero(t, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Zero(t, CosineSimilarity([]float64{1}, []float64{1, 1}))
	assert.InDelta(t, 1/math.Sqrt(2), CosineSimilarity([]float64{1, 1}, []float64{1, 0}), 1e-12)
}

func TestTopKTiesKeepIndexOrder(t *testing.T) {
	vectors := [][]float64{{1, 0}, {0, 1}, {1, 0}, {1, 0}}
	got := TopK([]float64{1, 0}, vectors, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{got[0].Index, got[1].Index, got[2].Index})
}

func TestStaticLookup(t *testing.T) {
	assert.Equal(t, []string{"dti"}, StaticLookup("What is the max DTI?"))
	assert.Equal(t, []string{"dti"}, StaticLookup("debt-to-income limits"))
	assert.Equal(t, []string{"borrower_credit_score", "ltv"}, StaticLookup("credit score and loan to value"))
	assert.Empty(t, StaticLookup("reserves needed"))
	assert.Empty(t, StaticLookup("ltvs"), "whole words only")
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, `  * "DTI", "debt to income" → "dti"`, FormatMapping(StaticMappings()[4]))

	line := FormatResult(Result{Parameter: Parameter{
		ColumnName:     "borrower_credit_score",
		AttributeGroup: "credit",
		CommonTerms:    []string{"credit score", "fico", "minimum credit score", "credit requirement"},
	}})
	assert.Equal(t, `  * "credit score", "fico", "minimum credit score" (credit) → borrower_credit_score`, line)
}
