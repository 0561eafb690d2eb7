// Package arbitrage implements the ArbitrageEngine: cross-venue market
// matching, continuous price polling, and the opportunity lifecycle, per
// spec.md §4.6. The matching-strategy plug-in shape is carried over from the
// teacher's internal/arbitrage.Registry/Strategy, repurposed from "which
// single-venue spread-detection strategy runs on an orderbook snapshot" to
// "which matching strategy produced this ArbMatch" (slug/question/embedding).
package arbitrage

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/agenthub/venuecore/internal/domain"
)

// Matcher declares ArbMatch candidates across venues. Each matcher is
// selectable by name through the Registry, the same shape the teacher uses
// to select among Spread/Imbalance/YesNoSpread strategies.
type Matcher interface {
	Name() string
	// Match compares a candidates's members for similarity and returns a
	// MatchedBy tag plus a similarity score in [0,1]; higher is better.
	Match(ctx context.Context, a, b domain.MarketIndexEntry) (domain.MatchedBy, float64, error)
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]{3,}`)

// tokenize normalizes a question into a set of lowercase alnum tokens
// length > 2, per spec.md §4.6's auto-match rule.
func tokenize(s string) map[string]struct{} {
	toks := tokenPattern.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// jaccard returns |a∩b| / |a∪b|, 0 when both sets are empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// QuestionMatcher matches markets by Jaccard similarity over normalized
// question tokens — the spec's default, deliberately simple heuristic.
type QuestionMatcher struct{}

func NewQuestionMatcher() *QuestionMatcher { return &QuestionMatcher{} }

func (m *QuestionMatcher) Name() string { return "question" }

func (m *QuestionMatcher) Match(_ context.Context, a, b domain.MarketIndexEntry) (domain.MatchedBy, float64, error) {
	sim := jaccard(tokenize(a.Question), tokenize(b.Question))
	return domain.MatchedByQuestion, sim, nil
}

// EmbeddingMatcher matches markets by cosine similarity over their stored
// embedding vectors, used in place of QuestionMatcher when both entries
// already carry an embedding (content-hash gated: see index.go).
type EmbeddingMatcher struct{}

func NewEmbeddingMatcher() *EmbeddingMatcher { return &EmbeddingMatcher{} }

func (m *EmbeddingMatcher) Name() string { return "embedding" }

func (m *EmbeddingMatcher) Match(_ context.Context, a, b domain.MarketIndexEntry) (domain.MatchedBy, float64, error) {
	if len(a.Embedding) == 0 || len(b.Embedding) == 0 || len(a.Embedding) != len(b.Embedding) {
		return domain.MatchedByEmbedding, 0, nil
	}
	return domain.MatchedByEmbedding, cosineSimilarity(a.Embedding, b.Embedding), nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// Registry holds named matching strategies for selection by config, exactly
// the teacher's map[string]Strategy shape repurposed to Matcher.
type Registry struct {
	matchers map[string]Matcher
}

// NewRegistry returns a registry pre-populated with the built-in
// question/embedding matchers; callers may Register additional ones.
func NewRegistry() *Registry {
	r := &Registry{matchers: make(map[string]Matcher)}
	r.Register(NewQuestionMatcher())
	r.Register(NewEmbeddingMatcher())
	return r
}

// Register adds a matcher under its own Name().
func (r *Registry) Register(m Matcher) {
	r.matchers[m.Name()] = m
}

// Get returns the matcher by name, or an error if not found.
func (r *Registry) Get(name string) (Matcher, error) {
	m, ok := r.matchers[name]
	if !ok {
		return nil, fmt.Errorf("arbitrage: matcher %q not found", name)
	}
	return m, nil
}

// List returns all registered matcher names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.matchers))
	for n := range r.matchers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
