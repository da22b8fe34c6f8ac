package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/pysugar/loanpilot/internal/llm"
	"github.com/pysugar/loanpilot/internal/llm/llmtest"
	"github.com/pysugar/loanpilot/internal/llm/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("model not found")

func newTestSelector(t *testing.T, client llm.Client, chain ...string) *Selector {
	t.Helper()
	reg, err := registry.New(map[registry.Tier][]string{registry.Fast: chain}, "")
	require.NoError(t, err)
	return New(client, reg, registry.Fast)
}

func routeRequest() llm.MessageRequest {
	return llm.MessageRequest{
		MaxTokens: 1024,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "Query: max dti"}},
	}
}

func TestCallWithFallback_AdvancesPastUnavailableModels(t *testing.T) {
	client := llmtest.New().
		On("A", llmtest.Fail(errNotFound)).
		On("B", llmtest.Fail(errNotFound)).
		On("C", llmtest.Text("ok"))
	s := newTestSelector(t, client, "A", "B", "C")

	resp, model, err := s.CallWithFallback(context.Background(), routeRequest())
	require.NoError(t, err)
	assert.Equal(t, "C", model)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, []string{"A", "B"}, s.FailedModels())
	assert.Equal(t, "C", s.SuccessfulModel())
	assert.Equal(t, []string{"A", "B", "C"}, client.Models())
}

func TestCallWithFallback_NeverRetriesFailedModels(t *testing.T) {
	client := llmtest.New().
		On("A", llmtest.Fail(errNotFound)).
		On("B", llmtest.Text("ok"))
	s := newTestSelector(t, client, "A", "B")

	for i := 0; i < 5; i++ {
		_, model, err := s.CallWithFallback(context.Background(), routeRequest())
		require.NoError(t, err)
		require.Equal(t, "B", model)
	}
	assert.Equal(t, []string{"A", "B", "B", "B", "B", "B"}, client.Models())
	assert.Equal(t, []string{"A"}, s.FailedModels())
}

func TestCallWithFallback_RestartsFromTopEachCall(t *testing.T) {
	transient := errors.New("overloaded_error: try again")
	client := llmtest.New().
		On("A", llmtest.Fail(transient), llmtest.Text("a")).
		On("B", llmtest.Text("b"))
	s := newTestSelector(t, client, "A", "B")

	_, _, err := s.CallWithFallback(context.Background(), routeRequest())
	require.ErrorIs(t, err, transient)

	_, model, err := s.CallWithFallback(context.Background(), routeRequest())
	require.NoError(t, err)
	assert.Equal(t, "A", model)
	assert.Empty(t, s.FailedModels())
}

func TestCallWithFallback_OtherErrorsReturnImmediately(t *testing.T) {
	authErr := &llm.APIError{StatusCode: 401, Type: "authentication_error", Message: "invalid x-api-key"}
	client := llmtest.New().
		On("A", llmtest.Fail(authErr)).
		On("B", llmtest.Text("never"))
	s := newTestSelector(t, client, "A", "B")

	_, model, err := s.CallWithFallback(context.Background(), routeRequest())
	require.Error(t, err)
	assert.Equal(t, "A", model)

	var apiErr *llm.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.False(t, errors.Is(err, ErrChainExhausted))
	assert.Equal(t, []string{"A"}, client.Models())
	assert.Empty(t, s.FailedModels())
	assert.Empty(t, s.SuccessfulModel())
}

func TestCallWithFallback_ExhaustionCarriesLastError(t *testing.T) {
	last := errors.New("model claude-c is deprecated")
	client := llmtest.New().
		On("A", llmtest.Fail(errNotFound)).
		On("B", llmtest.Fail(errNotFound)).
		On("C", llmtest.Fail(last))
	s := newTestSelector(t, client, "A", "B", "C")

	_, _, err := s.CallWithFallback(context.Background(), routeRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChainExhausted)
	assert.ErrorIs(t, err, last)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, registry.Fast, exhausted.Tier)
	assert.Equal(t, []string{"A", "B", "C"}, exhausted.Tried)
	assert.Equal(t, []string{"A", "B", "C"}, s.FailedModels())

	_, _, err = s.CallWithFallback(context.Background(), routeRequest())
	assert.ErrorIs(t, err, ErrChainExhausted)
	assert.Len(t, client.Models(), 3, "exhausted chain must not issue further calls")
}

func TestCallWithFallback_EmptyContentIsSuccess(t *testing.T) {
	client := llmtest.New().On("A", llmtest.Empty())
	s := newTestSelector(t, client, "A", "B")

	resp, model, err := s.CallWithFallback(context.Background(), routeRequest())
	require.NoError(t, err)
	assert.Equal(t, "A", model)
	assert.Empty(t, resp.Content)
}

func TestCallWithFallback_SubstitutesModelIntoRequest(t *testing.T) {
	client := llmtest.New().On("A", llmtest.Text("ok"))
	s := newTestSelector(t, client, "A")

	req := routeRequest()
	req.Model = "caller-supplied"
	_, _, err := s.CallWithFallback(context.Background(), req)
	require.NoError(t, err)

	sent := client.Requests()
	require.Len(t, sent, 1)
	assert.Equal(t, "A", sent[0].Model)
	assert.Equal(t, 1024, sent[0].MaxTokens)
}

func TestGetWorkingModel_OptimisticSkipsFailed(t *testing.T) {
	client := llmtest.New().
		On("A", llmtest.Fail(errNotFound)).
		On("B", llmtest.Text("ok"))
	s := newTestSelector(t, client, "A", "B", "C")

	model, err := s.GetWorkingModel(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "A", model)
	assert.Empty(t, client.Models(), "optimistic selection must not call the backend")

	_, _, err = s.CallWithFallback(context.Background(), routeRequest())
	require.NoError(t, err)

	model, err = s.GetWorkingModel(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "B", model)
	assert.Equal(t, "B", s.SuccessfulModel())
}

func TestGetWorkingModel_TestCallClassifiesErrors(t *testing.T) {
	client := llmtest.New().
		On("A", llmtest.Fail(errNotFound)).
		On("B", llmtest.Fail(errors.New("connection reset by peer"))).
		On("C", llmtest.Empty()).
		On("D", llmtest.Text("Hello"))
	s := newTestSelector(t, client, "A", "B", "C", "D")

	model, err := s.GetWorkingModel(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "D", model)
	assert.Equal(t, []string{"A"}, s.FailedModels())
	assert.Equal(t, "D", s.SuccessfulModel())

	for _, req := range client.Requests() {
		assert.Equal(t, 10, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "Hi", req.Messages[0].Content)
	}
}

func TestGetWorkingModel_TestCallExhausted(t *testing.T) {
	client := llmtest.New().
		On("A", llmtest.Fail(errNotFound)).
		On("B", llmtest.Fail(errors.New("model is deprecated")))
	s := newTestSelector(t, client, "A", "B")

	_, err := s.GetWorkingModel(context.Background(), true)
	require.ErrorIs(t, err, ErrChainExhausted)
	assert.Equal(t, []string{"A", "B"}, s.FailedModels())

	_, err = s.GetWorkingModel(context.Background(), false)
	assert.ErrorIs(t, err, ErrChainExhausted)
}

func TestNew_UsesOverrideAndUnknownTier(t *testing.T) {
	reg, err := registry.New(nil, "custom-model")
	require.NoError(t, err)

	s := New(llmtest.New(), reg, registry.Tier("bogus"))
	assert.Equal(t, registry.Fast, s.Tier())
	assert.Equal(t, "custom-model", s.Chain()[0])

	status := s.Status()
	assert.Equal(t, registry.Fast, status.Tier)
	assert.NotNil(t, status.FailedModels)
}
