// Package retriever narrows the parameter vocabulary to the descriptors most
// relevant to a query by embedding similarity.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/pysugar/loanpilot/internal/embedding"
)

// DefaultTopK is the number of descriptors returned when k <= 0.
const DefaultTopK = 8

// Parameter describes one attribute column of the programs table.
type Parameter struct {
	ColumnName     string   `json:"column_name"`
	DisplayName    string   `json:"display_name"`
	AttributeGroup string   `json:"attribute_group,omitempty"`
	PossibleValues []string `json:"possible_values,omitempty"`
	CommonTerms    []string `json:"common_terms,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// Result is a descriptor with its cosine similarity to the query.
type Result struct {
	Parameter
	Score float64 `json:"relevance_score"`
}

// Retriever holds one precomputed vector per descriptor, in descriptor
// order. It is read-only after New and safe for concurrent use.
type Retriever struct {
	embedder embedding.Embedder
	params   []Parameter
	vectors  [][]float64
	err      error
}

// New embeds every descriptor. When the embedder is missing or fails, the
// retriever is returned unavailable and Retrieve yields nothing.
func New(ctx context.Context, e embedding.Embedder, params []Parameter) *Retriever {
	r := &Retriever{
		embedder: e,
		params:   append([]Parameter(nil), params...),
	}
	if e == nil {
		r.err = embedding.ErrDisabled
		return r
	}
	if len(params) == 0 {
		r.err = errors.New("no parameter descriptors to index")
		log.Printf("⚠️ [Retriever] %v", r.err)
		return r
	}

	texts := make([]string, len(params))
	for i, p := range params {
		texts[i] = EmbeddingText(p)
	}
	vectors, err := embedding.EmbedAll(ctx, e, texts)
	if err != nil {
		r.err = fmt.Errorf("index parameters: %w", err)
		log.Printf("⚠️ [Retriever] Parameter retrieval unavailable, using static mappings: %v", err)
		return r
	}
	r.vectors = vectors
	log.Printf("✅ [Retriever] Indexed %d parameters", len(params))
	return r
}

// Available reports whether the descriptor index was built.
func (r *Retriever) Available() bool {
	return r != nil && r.err == nil && len(r.vectors) > 0
}

// Err returns why the retriever is unavailable, or nil.
func (r *Retriever) Err() error {
	if r == nil {
		return embedding.ErrDisabled
	}
	return r.err
}

// Parameters returns the indexed descriptors in index order.
func (r *Retriever) Parameters() []Parameter {
	if r == nil {
		return nil
	}
	return append([]Parameter(nil), r.params...)
}

// Retrieve returns up to k descriptors ordered by descending similarity.
// It returns an empty list when the retriever is unavailable or the query
// cannot be embedded.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) []Result {
	if !r.Available() || strings.TrimSpace(query) == "" {
		return []Result{}
	}
	qvec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("⚠️ [Retriever] Failed to embed query: %v", err)
		return []Result{}
	}

	ranked := TopK(qvec, r.vectors, k)
	results := make([]Result, 0, len(ranked))
	for _, s := range ranked {
		results = append(results, Result{Parameter: r.params[s.Index], Score: s.Score})
	}
	return results
}

// EmbeddingText renders a descriptor as the text that gets embedded.
func EmbeddingText(p Parameter) string {
	parts := []string{p.DisplayName + "."}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	if p.AttributeGroup != "" {
		parts = append(parts, "Category: "+p.AttributeGroup+".")
	}
	if len(p.PossibleValues) > 0 {
		parts = append(parts, "Possible values: "+strings.Join(p.PossibleValues, ", ")+".")
	}
	parts = append(parts, "Common terms: "+strings.Join(p.CommonTerms, ", ")+".")
	parts = append(parts, "Column: "+p.ColumnName)
	return strings.Join(parts, " ")
}

// Scored is a vector index with its similarity to a query.
type Scored struct {
	Index int
	Score float64
}

// TopK ranks vectors by cosine similarity to query and keeps the best k.
// k <= 0 selects DefaultTopK and k never exceeds len(vectors). Equal scores
// keep index order.
func TopK(query []float64, vectors [][]float64, k int) []Scored {
	if k <= 0 {
		k = DefaultTopK
	}
	if k > len(vectors) {
		k = len(vectors)
	}
	scored := make([]Scored, len(vectors))
	for i, vec := range vectors {
		scored[i] = Scored{Index: i, Score: CosineSimilarity(query, vec)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored[:k]
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is a zero vector or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
