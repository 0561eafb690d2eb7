package arbitrage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/venue"
)

// contentHash hashes the fields that drive matching, so Indexer only
// recomputes an embedding when the text actually changed (spec.md §3's
// MarketIndexEntry "embedding lifecycle keyed by contentHash" rule), the
// same sha256-prefix-hex shape as the teacher's hashISINs in
// aristath-sentinel's risk.go, generalized from a cache key to a
// change-detection fingerprint.
func contentHash(question, description string, tags []string) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	h := sha256.New()
	h.Write([]byte(question))
	h.Write([]byte{0})
	h.Write([]byte(description))
	for _, t := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(t))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Indexer keeps MarketIndexEntry rows fresh for search results and runs the
// cross-venue auto-match pass over them.
type Indexer struct {
	registry *venue.Registry
	index    domain.MarketIndexStore
	matches  domain.ArbMatchStore
	matchers *Registry
	minConf  float64
	logger   *slog.Logger
}

// NewIndexer creates an Indexer. minMatchConfidence defaults to 0.8 per
// spec.md §4.6.
func NewIndexer(registry *venue.Registry, index domain.MarketIndexStore, matches domain.ArbMatchStore, matchers *Registry, minMatchConfidence float64, logger *slog.Logger) *Indexer {
	if minMatchConfidence <= 0 {
		minMatchConfidence = 0.8
	}
	return &Indexer{
		registry: registry,
		index:    index,
		matches:  matches,
		matchers: matchers,
		minConf:  minMatchConfidence,
		logger:   logger.With(slog.String("component", "arb_indexer")),
	}
}

// AutoMatchTerm searches term across every venue exposing SearchMarkets,
// indexes the results, and declares an ArbMatch for every cross-venue pair
// whose similarity clears minMatchConfidence. A pair is scored by the
// "embedding" matcher when both entries carry an embedding, and by the
// "question" matcher otherwise.
func (ix *Indexer) AutoMatchTerm(ctx context.Context, term string) ([]domain.ArbMatch, error) {
	entries, err := ix.searchAndIndex(ctx, term)
	if err != nil {
		return nil, err
	}

	matcher, err := ix.matchers.Get("question")
	if err != nil {
		return nil, err
	}

	var created []domain.ArbMatch
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			if a.Venue == b.Venue {
				continue
			}
			pairMatcher := matcher
			if len(a.Embedding) > 0 && len(b.Embedding) > 0 {
				if em, emErr := ix.matchers.Get("embedding"); emErr == nil {
					pairMatcher = em
				}
			}
			by, sim, err := pairMatcher.Match(ctx, a, b)
			if err != nil {
				ix.logger.Warn("matcher failed", slog.String("error", err.Error()))
				continue
			}
			if sim < ix.minConf {
				continue
			}
			m := domain.ArbMatch{
				ID: uuid.NewString(),
				Markets: []domain.MarketRef{
					{Venue: a.Venue, MarketID: a.MarketID, Outcome: "yes"},
					{Venue: b.Venue, MarketID: b.MarketID, Outcome: "yes"},
				},
				MatchedBy:  by,
				Similarity: sim,
				CreatedAt:  time.Now().UTC(),
			}
			if err := ix.matches.Add(ctx, m); err != nil {
				return nil, fmt.Errorf("arbitrage: persist auto-match: %w", err)
			}
			created = append(created, m)
		}
	}
	return created, nil
}

// searchAndIndex queries term against every SearchableAdapter and upserts
// each result into the market index, recomputing content hashes so a
// downstream embedding job only has to touch rows whose text changed.
func (ix *Indexer) searchAndIndex(ctx context.Context, term string) ([]domain.MarketIndexEntry, error) {
	var out []domain.MarketIndexEntry
	for _, adapter := range ix.registry.Searchable() {
		markets, err := adapter.SearchMarkets(ctx, term)
		if err != nil {
			ix.logger.Warn("search failed", slog.String("venue", adapter.Tag()), slog.String("error", err.Error()))
			continue
		}
		for _, m := range markets {
			entry := domain.MarketIndexEntry{
				Venue:       m.Venue,
				MarketID:    m.MarketID,
				Question:    m.Question,
				ContentHash: contentHash(m.Question, "", nil),
				UpdatedAt:   time.Now().UTC(),
			}
			if existing, err := ix.lookupExisting(ctx, m.Venue, m.MarketID); err == nil && existing != nil && existing.ContentHash == entry.ContentHash {
				entry.Embedding = existing.Embedding // unchanged text: keep the embedding
			}
			if err := ix.index.Upsert(ctx, entry); err != nil {
				return nil, fmt.Errorf("arbitrage: index %s/%s: %w", m.Venue, m.MarketID, err)
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

func (ix *Indexer) lookupExisting(ctx context.Context, venueTag string, marketID string) (*domain.MarketIndexEntry, error) {
	entries, err := ix.index.ListByVenue(ctx, venueTag)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.MarketID == marketID {
			return &e, nil
		}
	}
	return nil, nil
}

// Prune evicts market index entries last updated before `before`.
func (ix *Indexer) Prune(ctx context.Context, before time.Time) (int64, error) {
	return ix.index.Prune(ctx, before)
}
