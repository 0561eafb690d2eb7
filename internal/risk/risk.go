// Package risk implements RiskAnalyzer per spec.md §4.5: category
// classification, pairwise correlation, concentration (HHI), category
// exposure, and hedge-pair detection over a portfolio snapshot. Every
// exported function beyond Enrich is a pure function over its inputs, in
// the same spirit as the teacher's internal/arbitrage spread/imbalance
// calculators (pure math over a price snapshot, no I/O).
package risk

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/agenthub/venuecore/internal/domain"
)

// Category is one of a fixed, ordered vocabulary. Classify tests a
// question's text against each category's keywords in this order and
// returns the first match.
type Category string

const (
	CategoryPolitics      Category = "politics"
	CategoryCrypto        Category = "crypto"
	CategorySports        Category = "sports"
	CategoryEconomics     Category = "economics"
	CategoryEntertainment Category = "entertainment"
	CategoryWeather       Category = "weather"
	CategoryScience       Category = "science"
	CategoryOther         Category = "other"
)

// categoryKeywords is enumerated in match-priority order: the first
// category whose keyword appears in the lowercased question wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryPolitics, []string{"president", "election", "senate", "congress", "parliament", "minister", "governor", "vote", "ballot", "politic"}},
	{CategoryCrypto, []string{"bitcoin", "btc", "ethereum", " eth", "crypto", "token", "blockchain", "solana", "defi", "nft"}},
	{CategorySports, []string{"nfl", "nba", "mlb", "nhl", "soccer", "football", "basketball", "baseball", "tournament", "championship", "world cup", "olympics", "match"}},
	{CategoryEconomics, []string{"fed ", "federal reserve", "inflation", "gdp", "interest rate", "recession", "unemployment", "economy", "economic", "stock market"}},
	{CategoryEntertainment, []string{"oscar", "grammy", "movie", "album", "celebrity", "tv show", "netflix", "award", "box office"}},
	{CategoryWeather, []string{"hurricane", "temperature", "rainfall", "snowfall", "weather", "storm", "heatwave"}},
	{CategoryScience, []string{"nasa", "spacex", "vaccine", "research", "discovery", "particle", "climate"}},
}

// Classify returns the first category whose keyword vocabulary matches
// question, or CategoryOther when none do.
func Classify(question string) Category {
	q := " " + strings.ToLower(question) + " "
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(q, kw) {
				return c.category
			}
		}
	}
	return CategoryOther
}

var entityPattern = regexp.MustCompile(`\b[A-Z][a-zA-Z]{2,}\b|\b(19|20)\d{2}\b`)

// ExtractEntities pulls candidate named entities (capitalized words, four-
// digit years) out of question, deduplicated and lowercased for
// comparison.
func ExtractEntities(question string) []string {
	matches := entityPattern.FindAllString(question, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		lower := strings.ToLower(m)
		if !seen[lower] {
			seen[lower] = true
			out = append(out, lower)
		}
	}
	return out
}

// EnrichedPosition pairs a live Position with the question text and
// derived category/entities used for correlation and exposure analysis.
type EnrichedPosition struct {
	domain.Position
	Question string
	Category Category
	Entities []string
}

func (e EnrichedPosition) Value() float64 { return e.Position.Value() }

// Analyzer resolves Positions against the cached Market store so
// classification has question text to work from.
type Analyzer struct {
	markets domain.MarketStore
}

// New creates an Analyzer over the given Market cache.
func New(markets domain.MarketStore) *Analyzer {
	return &Analyzer{markets: markets}
}

// Enrich resolves each position's market question (falling back to its
// marketID when the market isn't cached) and classifies it.
func (a *Analyzer) Enrich(ctx context.Context, positions []domain.Position) ([]EnrichedPosition, error) {
	out := make([]EnrichedPosition, 0, len(positions))
	for _, p := range positions {
		question := p.MarketID
		if m, err := a.markets.Get(ctx, p.Venue, p.MarketID); err != nil {
			return nil, err
		} else if m != nil {
			question = m.Question
		}
		out = append(out, EnrichedPosition{
			Position: p,
			Question: question,
			Category: Classify(question),
			Entities: ExtractEntities(question),
		})
	}
	return out, nil
}

// CorrelationKind classifies the sign/strength of a Correlation result for
// display purposes.
type CorrelationKind string

const (
	CorrelationPositive CorrelationKind = "positive"
	CorrelationNegative CorrelationKind = "negative"
	CorrelationNeutral  CorrelationKind = "neutral"
)

// Correlation is the result of comparing two positions.
type Correlation struct {
	Value  float64
	Kind   CorrelationKind
	Reason string
}

// Correlate implements spec.md §4.5's correlation(a,b) rule ladder.
func Correlate(a, b EnrichedPosition) Correlation {
	if a.MarketID == b.MarketID && a.Venue == b.Venue {
		if a.OutcomeID != b.OutcomeID {
			return Correlation{Value: -1, Kind: CorrelationNegative, Reason: "same market opposite outcome"}
		}
		return Correlation{Value: 1, Kind: CorrelationPositive, Reason: "same market same outcome"}
	}

	if a.Category == b.Category && a.Category != CategoryOther {
		shared := sharedCount(a.Entities, b.Entities)
		if shared > 0 {
			value := math.Min(0.95, 0.7+0.1*float64(shared))
			return Correlation{Value: value, Kind: CorrelationPositive, Reason: "same category, shared entities"}
		}
		return Correlation{Value: 0.4, Kind: CorrelationPositive, Reason: "same category"}
	}

	if isPoliticsEconomicsPair(a.Category, b.Category) {
		return Correlation{Value: 0.3, Kind: CorrelationPositive, Reason: "politics/economics cross-category"}
	}

	return Correlation{Value: 0.1, Kind: CorrelationNeutral, Reason: "unrelated"}
}

func isPoliticsEconomicsPair(a, b Category) bool {
	return (a == CategoryPolitics && b == CategoryEconomics) || (a == CategoryEconomics && b == CategoryPolitics)
}

func sharedCount(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, e := range a {
		set[e] = true
	}
	n := 0
	for _, e := range b {
		if set[e] {
			n++
		}
	}
	return n
}

// Matrix is an N×N correlation grid plus the summary portfolio correlation
// (mean |value| over the upper triangle).
type Matrix struct {
	Positions           []EnrichedPosition
	Values              [][]float64
	PortfolioCorrelation float64
}

// CorrelationMatrix builds the full pairwise grid over positions, with a
// diagonal of 1 and portfolioCorrelation = mean(|value|) over the strict
// upper triangle. Returns an empty matrix with PortfolioCorrelation 0 for an
// empty portfolio, and the 1×1 matrix [[1]] with PortfolioCorrelation 0 for a
// single position. The grid itself is assembled into a
// gonum SymDense (correlation matrices are symmetric by construction) and
// unpacked into the plain [][]float64 callers expect, the same
// build-then-unpack shape as the teacher's covariance builder in
// aristath-sentinel's internal/modules/optimization/risk.go.
func CorrelationMatrix(positions []EnrichedPosition) Matrix {
	n := len(positions)
	if n == 0 {
		return Matrix{Positions: positions}
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		sym.SetSym(i, i, 1)
	}

	var upper []float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := Correlate(positions[i], positions[j])
			sym.SetSym(i, j, c.Value)
			upper = append(upper, math.Abs(c.Value))
		}
	}

	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			values[i][j] = sym.At(i, j)
		}
	}

	portfolioCorrelation := 0.0
	if len(upper) > 0 {
		portfolioCorrelation = stat.Mean(upper, nil)
	}
	return Matrix{Positions: positions, Values: values, PortfolioCorrelation: portfolioCorrelation}
}

// RiskLevel buckets a portfolio's concentration.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
)

// Concentration is the HHI-based concentration summary.
type Concentration struct {
	HHI                 float64
	LargestPositionPct  float64
	Top3Pct             float64
	DiversificationScore float64
	RiskLevel           RiskLevel
}

// ComputeConcentration implements spec.md §4.5's concentration() formula,
// guarding every division so an empty portfolio yields zeros rather than
// NaN/Infinity.
func ComputeConcentration(positions []domain.Position) Concentration {
	var total float64
	abs := make([]float64, len(positions))
	for i, p := range positions {
		abs[i] = math.Abs(p.Value())
		total += abs[i]
	}
	if total == 0 {
		return Concentration{DiversificationScore: 100, RiskLevel: RiskLow}
	}

	shares := make([]float64, len(abs))
	var hhi float64
	for i, v := range abs {
		shares[i] = v / total
		pct := shares[i] * 100
		hhi += pct * pct
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(shares)))

	largestPct := shares[0] * 100
	top3 := 0.0
	for i := 0; i < len(shares) && i < 3; i++ {
		top3 += shares[i]
	}
	top3Pct := top3 * 100

	diversification := math.Max(0, 100-hhi/100)

	level := RiskLow
	switch {
	case largestPct > 50 || hhi > 5000:
		level = RiskCritical
	case largestPct > 30 || hhi > 2500:
		level = RiskHigh
	case largestPct > 20 || hhi > 1500:
		level = RiskMedium
	}

	return Concentration{
		HHI:                  hhi,
		LargestPositionPct:   largestPct,
		Top3Pct:              top3Pct,
		DiversificationScore: diversification,
		RiskLevel:            level,
	}
}

// CategoryExposureEntry is one category's share of total portfolio value.
type CategoryExposureEntry struct {
	Category      Category
	PositionCount int
	TotalValue    float64
	ValuePercent  float64
}

// CategoryExposure sums |value| per category, sorted by totalValue
// descending.
func CategoryExposure(positions []EnrichedPosition) []CategoryExposureEntry {
	byCategory := map[Category]*CategoryExposureEntry{}
	var total float64
	for _, p := range positions {
		v := math.Abs(p.Value())
		total += v
		e, ok := byCategory[p.Category]
		if !ok {
			e = &CategoryExposureEntry{Category: p.Category}
			byCategory[p.Category] = e
		}
		e.PositionCount++
		e.TotalValue += v
	}

	out := make([]CategoryExposureEntry, 0, len(byCategory))
	for _, e := range byCategory {
		if total > 0 {
			e.ValuePercent = e.TotalValue / total * 100
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalValue > out[j].TotalValue })
	return out
}

// HedgedPair is a long/short pair in the same (venue, marketId) sharing
// opposite YES/NO outcomes.
type HedgedPair struct {
	Long       domain.Position
	Short      domain.Position
	HedgeRatio float64
}

// FindHedgedPairs groups positions by (venue, marketId) and, within groups
// that hold both a "yes" and a "no" outcome, emits a hedge pair with ratio
// min(|value|)/max(|value|).
func FindHedgedPairs(positions []domain.Position) []HedgedPair {
	type group struct {
		yes, no *domain.Position
	}
	groups := map[string]*group{}
	for i := range positions {
		p := &positions[i]
		key := p.Venue + "|" + p.MarketID
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
		}
		switch strings.ToLower(p.OutcomeID) {
		case "yes":
			g.yes = p
		case "no":
			g.no = p
		}
	}

	var keys []string
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []HedgedPair
	for _, k := range keys {
		g := groups[k]
		if g.yes == nil || g.no == nil {
			continue
		}
		yesVal := math.Abs(g.yes.Value())
		noVal := math.Abs(g.no.Value())
		if yesVal == 0 || noVal == 0 {
			continue
		}
		long, short := *g.yes, *g.no
		small, large := yesVal, noVal
		if small > large {
			small, large = large, small
		}
		out = append(out, HedgedPair{Long: long, Short: short, HedgeRatio: small / large})
	}
	return out
}
