package arbitrage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenthub/venuecore/internal/domain"
)

func TestQuestionMatcherJaccardSimilarity(t *testing.T) {
	m := NewQuestionMatcher()
	a := domain.MarketIndexEntry{Venue: "polymarket", Question: "Will Trump win the 2024 election?"}
	b := domain.MarketIndexEntry{Venue: "kalshi", Question: "Will Donald Trump win the 2024 presidential election?"}

	by, sim, err := m.Match(context.Background(), a, b)
	require.NoError(t, err)
	require.Equal(t, domain.MatchedByQuestion, by)
	require.Greater(t, sim, 0.3)
	require.LessOrEqual(t, sim, 1.0)
}

func TestQuestionMatcherUnrelatedIsLowSimilarity(t *testing.T) {
	m := NewQuestionMatcher()
	a := domain.MarketIndexEntry{Question: "Will it rain in Seattle tomorrow?"}
	b := domain.MarketIndexEntry{Question: "Will the Lakers win the championship?"}

	_, sim, err := m.Match(context.Background(), a, b)
	require.NoError(t, err)
	require.Less(t, sim, 0.2)
}

func TestEmbeddingMatcherCosineSimilarity(t *testing.T) {
	m := NewEmbeddingMatcher()
	a := domain.MarketIndexEntry{Embedding: []float32{1, 0, 0}}
	b := domain.MarketIndexEntry{Embedding: []float32{1, 0, 0}}
	_, sim, err := m.Match(context.Background(), a, b)
	require.NoError(t, err)
	require.InDelta(t, 1.0, sim, 1e-9)

	c := domain.MarketIndexEntry{Embedding: []float32{0, 1, 0}}
	_, sim2, err := m.Match(context.Background(), a, c)
	require.NoError(t, err)
	require.InDelta(t, 0.0, sim2, 1e-9)
}

func TestEmbeddingMatcherMissingEmbeddingIsZero(t *testing.T) {
	m := NewEmbeddingMatcher()
	a := domain.MarketIndexEntry{}
	b := domain.MarketIndexEntry{Embedding: []float32{1, 2, 3}}
	_, sim, err := m.Match(context.Background(), a, b)
	require.NoError(t, err)
	require.Equal(t, 0.0, sim)
}

func TestRegistryGetUnknownMatcherErrors(t *testing.T) {
	r := NewRegistry()
	require.ElementsMatch(t, []string{"embedding", "question"}, r.List())
	_, err := r.Get("slug")
	require.Error(t, err)
}
