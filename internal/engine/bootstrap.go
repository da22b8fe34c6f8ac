package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/pysugar/loanpilot/internal/config"
	"github.com/pysugar/loanpilot/internal/db"
	"github.com/pysugar/loanpilot/internal/embedding"
	"github.com/pysugar/loanpilot/internal/llm"
	"github.com/pysugar/loanpilot/internal/llm/registry"
	"github.com/pysugar/loanpilot/internal/monitor"
	"github.com/pysugar/loanpilot/internal/retriever"
	"github.com/pysugar/loanpilot/internal/rewriter"
	"github.com/pysugar/loanpilot/internal/router"
	"github.com/pysugar/loanpilot/internal/scripts"
	"github.com/pysugar/loanpilot/internal/selector"
	"gorm.io/gorm"
)

// Stack is everything Bootstrap wires together.
type Stack struct {
	Engine   *Engine
	Monitor  *monitor.QueryMonitor
	DB       *gorm.DB
	Registry *registry.Registry
}

// Close flushes pending history writes and closes the database.
func (s *Stack) Close() error {
	s.Monitor.Wait()
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type bootstrapOptions struct {
	client      llm.Client
	embedder    embedding.Embedder
	embedderSet bool
}

// BootstrapOption replaces a backend built from configuration.
type BootstrapOption func(*bootstrapOptions)

// WithLLMClient uses client instead of the Anthropic client.
func WithLLMClient(client llm.Client) BootstrapOption {
	return func(o *bootstrapOptions) {
		o.client = client
	}
}

// WithEmbedder uses e instead of the configured provider. A nil e disables
// retrieval.
func WithEmbedder(e embedding.Embedder) BootstrapOption {
	return func(o *bootstrapOptions) {
		o.embedder = e
		o.embedderSet = true
	}
}

// Bootstrap opens the database and builds the engine with its selectors,
// retriever, router, rewriter, executor and history monitor. A missing
// Anthropic credential or embedding backend degrades the engine instead
// of failing it.
func Bootstrap(ctx context.Context, cfg *config.Config, opts ...BootstrapOption) (*Stack, error) {
	var o bootstrapOptions
	for _, opt := range opts {
		opt(&o)
	}

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	reg, err := registry.Load(cfg.ModelsFile, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("load model registry: %w", err)
	}

	client := o.client
	if client == nil {
		anthropic, err := llm.NewAnthropicClient(cfg.Anthropic())
		switch {
		case errors.Is(err, llm.ErrNoCredential):
			log.Printf("⚠️ ANTHROPIC_API_KEY not set, model routing disabled")
		case err != nil:
			return nil, err
		default:
			client = anthropic
		}
	}

	selectors := map[registry.Tier]*selector.Selector{}
	var routerCaller, rewriterCaller router.Caller
	if client != nil {
		for _, tier := range registry.Tiers() {
			selectors[tier] = selector.New(client, reg, tier)
		}
		routerCaller = selectorFor(selectors, cfg.RouterTier, registry.Balanced)
		rewriterCaller = selectorFor(selectors, cfg.RewriterTier, registry.Fast)
	}

	embedder := o.embedder
	if !o.embedderSet {
		embedder, err = embedding.New(cfg.Embedding())
		switch {
		case errors.Is(err, embedding.ErrDisabled):
			log.Printf("⚠️ Embeddings disabled, using static parameter mappings")
		case err != nil:
			return nil, err
		}
	}
	descriptors, err := db.ListParameters(database)
	if err != nil {
		return nil, fmt.Errorf("load parameter metadata: %w", err)
	}
	ret := retriever.New(ctx, embedder, retriever.FromMetadata(descriptors))

	columns, err := db.AttributeColumns(database)
	if err != nil {
		return nil, fmt.Errorf("load program columns: %w", err)
	}

	rt := router.New(routerCaller, columns, router.WithRetriever(ret, cfg.RAGTopK))
	rw := rewriter.New(rewriterCaller, rewriter.WithRetriever(ret, cfg.RAGTopK))
	executor := scripts.NewExecutor(database,
		scripts.WithDBPath(cfg.DBPath),
		scripts.WithScratchpad(cfg.ScratchpadPath),
	)

	qm := monitor.NewQueryMonitor(database)
	eng := New(Components{
		DB:        database,
		DBPath:    cfg.DBPath,
		Router:    rt,
		Rewriter:  rw,
		Executor:  executor,
		Retriever: ret,
		Selectors: selectors,
		Recorder:  qm,
	})

	log.Printf("✅ Query engine ready: db=%s columns=%d llm=%t retrieval=%t",
		cfg.DBPath, len(columns), client != nil, ret.Available())
	return &Stack{Engine: eng, Monitor: qm, DB: database, Registry: reg}, nil
}

// selectorFor returns the selector of tier, or of fallback for an unset
// tier. The result is never a typed nil.
func selectorFor(selectors map[registry.Tier]*selector.Selector, tier, fallback registry.Tier) router.Caller {
	if s, ok := selectors[tier]; ok && s != nil {
		return s
	}
	if s, ok := selectors[fallback]; ok && s != nil {
		return s
	}
	return nil
}
