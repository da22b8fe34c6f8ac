// Package rewriter asks a fast model to restate a free-form question in
// the phrasing of one of the registered script prompts, so the keyword
// matcher can route it.
package rewriter

import (
	"context"
	"hash/fnv"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/pysugar/loanpilot/internal/llm"
	"github.com/pysugar/loanpilot/internal/retriever"
	"github.com/pysugar/loanpilot/internal/router"
	"github.com/pysugar/loanpilot/internal/textnorm"
)

const (
	DefaultCacheSize = 1000
	DefaultTTL       = time.Hour

	maxTokens   = 100
	temperature = 0.3
)

type entry struct {
	rewritten string
	storedAt  time.Time
}

// Rewriter rewrites queries and caches the results. It is safe for
// concurrent use; model calls themselves go through the caller.
type Rewriter struct {
	caller   router.Caller
	source   router.ParameterSource
	topK     int
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]entry
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithRetriever adds the descriptors most relevant to each query to the
// prompt.
func WithRetriever(source router.ParameterSource, k int) Option {
	return func(r *Rewriter) {
		r.source = source
		r.topK = k
	}
}

// WithCache overrides the cache capacity and entry lifetime.
func WithCache(capacity int, ttl time.Duration) Option {
	return func(r *Rewriter) {
		r.capacity = capacity
		r.ttl = ttl
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Rewriter) {
		r.now = now
	}
}

// New creates a Rewriter. A nil caller disables rewriting.
func New(caller router.Caller, opts ...Option) *Rewriter {
	r := &Rewriter{
		caller:   caller,
		topK:     retriever.DefaultTopK,
		capacity: DefaultCacheSize,
		ttl:      DefaultTTL,
		now:      time.Now,
		cache:    make(map[string]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether a model can be called.
func (r *Rewriter) Available() bool {
	return r.caller != nil
}

// Rewrite returns the canonical phrasing of query and true, or the
// original query and false when no rewrite could be obtained.
func (r *Rewriter) Rewrite(ctx context.Context, query string, patterns []string) (string, bool) {
	query = router.StripMarker(query)
	key := cacheKey(query, patterns)
	if cached, ok := r.lookup(key); ok {
		log.Printf("💾 [Rewriter] Using cached rewrite: '%s' → '%s'", query, cached)
		return cached, true
	}
	if r.caller == nil || query == "" {
		return query, false
	}

	var relevant []retriever.Result
	if r.source != nil && r.source.Available() {
		relevant = r.source.Retrieve(ctx, query, r.topK)
	}

	start := time.Now()
	resp, model, err := r.caller.CallWithFallback(ctx, llm.MessageRequest{
		MaxTokens:   maxTokens,
		Temperature: llm.Float64(temperature),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: BuildPrompt(query, patterns, relevant)}},
	})
	if err != nil {
		log.Printf("⚠️ [Rewriter] Error during query rewriting: %v", err)
		return query, false
	}

	rewritten := cleanResponse(resp.Text())
	if rewritten == "" {
		log.Printf("⚠️ [Rewriter] Model %s returned an empty rewrite", model)
		return query, false
	}
	log.Printf("🤖 [Rewriter] %s rewrite (%.2fs): '%s' → '%s'", model, time.Since(start).Seconds(), query, rewritten)
	r.store(key, rewritten)
	return rewritten, true
}

// Len returns the number of cached rewrites, expired ones included.
func (r *Rewriter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func (r *Rewriter) lookup(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[key]
	if !ok {
		return "", false
	}
	if r.now().Sub(e.storedAt) >= r.ttl {
		delete(r.cache, key)
		return "", false
	}
	return e.rewritten, true
}

func (r *Rewriter) store(key, rewritten string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capacity <= 0 {
		return
	}
	if _, ok := r.cache[key]; !ok && len(r.cache) >= r.capacity {
		oldestKey, oldest := "", time.Time{}
		for k, e := range r.cache {
			if oldestKey == "" || e.storedAt.Before(oldest) {
				oldestKey, oldest = k, e.storedAt
			}
		}
		delete(r.cache, oldestKey)
	}
	r.cache[key] = entry{rewritten: rewritten, storedAt: r.now()}
}

// cacheKey combines the folded query with a fingerprint of the pattern set.
func cacheKey(query string, patterns []string) string {
	h := fnv.New64a()
	for _, p := range patterns {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return textnorm.Fold(query) + "\x00" + string(h.Sum(nil))
}

// cleanResponse keeps the first non-empty line without surrounding quotes
// or a "Rewritten:" label.
func cleanResponse(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "Rewritten:"))
		line = strings.Trim(line, `"'`)
		if line != "" {
			return line
		}
	}
	return ""
}
