// Package selector keeps LLM calls working across model retirements by
// walking a tier's fallback chain and remembering which models failed.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/pysugar/loanpilot/internal/llm"
	"github.com/pysugar/loanpilot/internal/llm/registry"
)

// ErrChainExhausted is matched by every ExhaustedError.
var ErrChainExhausted = errors.New("model fallback chain exhausted")

// ExhaustedError reports that no model of a tier could serve a call.
type ExhaustedError struct {
	Tier  registry.Tier
	Tried []string
	Last  error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("all models in %s tier failed", e.Tier)
	}
	return fmt.Sprintf("all models in %s tier failed. Last error: %v", e.Tier, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrChainExhausted}
	}
	return []error{ErrChainExhausted, e.Last}
}

const (
	probeMaxTokens = 10
	probePrompt    = "Hi"
)

// Selector wraps an llm.Client with one tier's fallback chain.
//
// Failure and success bookkeeping is not locked. Callers sharing a Selector
// across goroutines must serialize calls.
type Selector struct {
	client llm.Client
	tier   registry.Tier
	chain  []string

	successfulModel string
	failedModels    []string
	failedSet       map[string]struct{}
}

// New creates a Selector for tier using the chain from reg.
func New(client llm.Client, reg *registry.Registry, tier registry.Tier) *Selector {
	if reg == nil {
		reg = registry.Default()
	}
	if !tier.Valid() {
		log.Printf("⚠️ [Selector] Unknown tier %q, using %s", tier, registry.Fast)
		tier = registry.Fast
	}
	return &Selector{
		client:    client,
		tier:      tier,
		chain:     reg.Chain(tier),
		failedSet: make(map[string]struct{}),
	}
}

// Tier returns the selector's tier.
func (s *Selector) Tier() registry.Tier {
	return s.tier
}

// Chain returns a copy of the fallback chain in priority order.
func (s *Selector) Chain() []string {
	return append([]string(nil), s.chain...)
}

// SuccessfulModel returns the last model that served a call, or "".
func (s *Selector) SuccessfulModel() string {
	return s.successfulModel
}

// FailedModels returns the failed models in the order they failed.
func (s *Selector) FailedModels() []string {
	return append([]string{}, s.failedModels...)
}

// IsFailed reports whether model was marked failed.
func (s *Selector) IsFailed(model string) bool {
	_, ok := s.failedSet[model]
	return ok
}

func (s *Selector) markFailed(model string, err error) {
	if s.IsFailed(model) {
		return
	}
	s.failedSet[model] = struct{}{}
	s.failedModels = append(s.failedModels, model)
	log.Printf("⚠️ [Selector] Model %s unavailable, marking failed: %v", model, err)
}

// GetWorkingModel returns a model identifier from the chain.
//
// Without testCall the first model not marked failed is returned and
// recorded as successful without any network call. With testCall each
// remaining model receives a minimal request until one returns content.
// Only availability errors mark a model failed; other errors and empty
// replies skip the model for this probe.
func (s *Selector) GetWorkingModel(ctx context.Context, testCall bool) (string, error) {
	var lastErr error
	var tried []string
	for _, model := range s.chain {
		if s.IsFailed(model) {
			continue
		}
		if !testCall {
			s.successfulModel = model
			return model, nil
		}

		tried = append(tried, model)
		resp, err := s.client.CreateMessage(ctx, llm.MessageRequest{
			Model:     model,
			MaxTokens: probeMaxTokens,
			Messages:  []llm.Message{{Role: llm.RoleUser, Content: probePrompt}},
		})
		if err != nil {
			lastErr = err
			if llm.IsModelUnavailable(err) {
				s.markFailed(model, err)
			} else {
				log.Printf("⚠️ [Selector] Probe of %s inconclusive: %v", model, err)
			}
			continue
		}
		if resp == nil || len(resp.Content) == 0 {
			log.Printf("⚠️ [Selector] Probe of %s returned no content", model)
			continue
		}

		s.successfulModel = model
		log.Printf("✅ [Selector] Verified model %s (%s tier)", model, s.tier)
		return model, nil
	}
	return "", &ExhaustedError{Tier: s.tier, Tried: tried, Last: lastErr}
}

// CallWithFallback issues req with each model of the chain in priority
// order, skipping failed ones. Every call starts from the top of the chain.
// Availability errors mark the model failed and advance; any other error is
// returned immediately. The model that served the call is returned.
func (s *Selector) CallWithFallback(ctx context.Context, req llm.MessageRequest) (*llm.MessageResponse, string, error) {
	var lastErr error
	var tried []string
	for _, model := range s.chain {
		if s.IsFailed(model) {
			continue
		}

		tried = append(tried, model)
		log.Printf("🔄 [Selector] Attempting API call with model: %s", model)
		req.Model = model
		resp, err := s.client.CreateMessage(ctx, req)
		if err == nil {
			s.successfulModel = model
			return resp, model, nil
		}
		if !llm.IsModelUnavailable(err) {
			return nil, model, err
		}
		s.markFailed(model, err)
		lastErr = err
	}
	return nil, "", &ExhaustedError{Tier: s.tier, Tried: tried, Last: lastErr}
}

// Status is a snapshot of a selector's bookkeeping.
type Status struct {
	Tier            registry.Tier `json:"tier"`
	Chain           []string      `json:"chain"`
	FailedModels    []string      `json:"failed_models"`
	SuccessfulModel string        `json:"successful_model,omitempty"`
}

// Status returns a snapshot of the selector state.
func (s *Selector) Status() Status {
	return Status{
		Tier:            s.tier,
		Chain:           s.Chain(),
		FailedModels:    s.FailedModels(),
		SuccessfulModel: s.successfulModel,
	}
}
