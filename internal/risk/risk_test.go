package risk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenthub/venuecore/internal/domain"
)

func TestClassifyMatchesFirstCategoryInOrder(t *testing.T) {
	require.Equal(t, CategoryPolitics, Classify("Will the President win re-election?"))
	require.Equal(t, CategoryCrypto, Classify("Will Bitcoin hit $100k?"))
	require.Equal(t, CategorySports, Classify("Who wins the NBA championship?"))
	require.Equal(t, CategoryOther, Classify("Will it rain tomorrow in an unspecified way?"))
}

func TestCorrelateSameMarketOppositeOutcomeIsNegativeOne(t *testing.T) {
	a := EnrichedPosition{Position: domain.Position{Venue: "polymarket", MarketID: "m1", OutcomeID: "yes"}, Category: CategoryPolitics}
	b := EnrichedPosition{Position: domain.Position{Venue: "polymarket", MarketID: "m1", OutcomeID: "no"}, Category: CategoryPolitics}
	c := Correlate(a, b)
	require.Equal(t, -1.0, c.Value)
	require.Equal(t, CorrelationNegative, c.Kind)
}

func TestCorrelateSameMarketSameOutcomeIsOne(t *testing.T) {
	a := EnrichedPosition{Position: domain.Position{Venue: "polymarket", MarketID: "m1", OutcomeID: "yes"}}
	b := EnrichedPosition{Position: domain.Position{Venue: "polymarket", MarketID: "m1", OutcomeID: "yes"}}
	require.Equal(t, 1.0, Correlate(a, b).Value)
}

func TestCorrelateSameCategorySharedEntitiesCapsAt095(t *testing.T) {
	a := EnrichedPosition{
		Position: domain.Position{Venue: "polymarket", MarketID: "m1", OutcomeID: "yes"},
		Category: CategoryPolitics, Entities: []string{"trump", "2028", "senate", "texas"},
	}
	b := EnrichedPosition{
		Position: domain.Position{Venue: "kalshi", MarketID: "m2", OutcomeID: "yes"},
		Category: CategoryPolitics, Entities: []string{"trump", "2028", "senate", "florida"},
	}
	c := Correlate(a, b)
	require.InDelta(t, 0.95, c.Value, 1e-9) // 0.7 + 0.1*3 shared, capped
	require.Equal(t, CorrelationPositive, c.Kind)
}

func TestCorrelateSameCategoryNoSharedEntitiesIsPoint4(t *testing.T) {
	a := EnrichedPosition{Position: domain.Position{Venue: "polymarket", MarketID: "m1"}, Category: CategorySports, Entities: []string{"lakers"}}
	b := EnrichedPosition{Position: domain.Position{Venue: "kalshi", MarketID: "m2"}, Category: CategorySports, Entities: []string{"celtics"}}
	require.Equal(t, 0.4, Correlate(a, b).Value)
}

func TestCorrelatePoliticsEconomicsCrossCategory(t *testing.T) {
	a := EnrichedPosition{Position: domain.Position{Venue: "polymarket", MarketID: "m1"}, Category: CategoryPolitics}
	b := EnrichedPosition{Position: domain.Position{Venue: "kalshi", MarketID: "m2"}, Category: CategoryEconomics}
	require.Equal(t, 0.3, Correlate(a, b).Value)
}

func TestCorrelateUnrelatedIsNeutral(t *testing.T) {
	a := EnrichedPosition{Position: domain.Position{Venue: "polymarket", MarketID: "m1"}, Category: CategorySports}
	b := EnrichedPosition{Position: domain.Position{Venue: "kalshi", MarketID: "m2"}, Category: CategoryWeather}
	c := Correlate(a, b)
	require.Equal(t, 0.1, c.Value)
	require.Equal(t, CorrelationNeutral, c.Kind)
}

func TestCorrelationMatrixEmptyPortfolioIsZero(t *testing.T) {
	m := CorrelationMatrix(nil)
	require.Equal(t, 0.0, m.PortfolioCorrelation)
	require.Empty(t, m.Values)
}

func TestCorrelationMatrixDiagonalIsOne(t *testing.T) {
	positions := []EnrichedPosition{
		{Position: domain.Position{Venue: "polymarket", MarketID: "m1"}, Category: CategorySports},
		{Position: domain.Position{Venue: "kalshi", MarketID: "m2"}, Category: CategoryWeather},
	}
	m := CorrelationMatrix(positions)
	require.Equal(t, 1.0, m.Values[0][0])
	require.Equal(t, 1.0, m.Values[1][1])
	require.Equal(t, 0.1, m.PortfolioCorrelation)
}

func TestComputeConcentrationEmptyPortfolioIsZeroed(t *testing.T) {
	c := ComputeConcentration(nil)
	require.Equal(t, 0.0, c.HHI)
	require.Equal(t, 0.0, c.LargestPositionPct)
	require.Equal(t, 100.0, c.DiversificationScore)
	require.Equal(t, RiskLow, c.RiskLevel)
}

func TestComputeConcentrationSinglePositionIsCritical(t *testing.T) {
	positions := []domain.Position{{Size: 100, CurrentPrice: 1}}
	c := ComputeConcentration(positions)
	require.Equal(t, 100.0, c.LargestPositionPct)
	require.Equal(t, 10000.0, c.HHI)
	require.Equal(t, RiskCritical, c.RiskLevel)
	require.Equal(t, 0.0, c.DiversificationScore)
}

func TestComputeConcentrationEvenSplitIsMediumRisk(t *testing.T) {
	positions := []domain.Position{
		{Size: 25, CurrentPrice: 1}, {Size: 25, CurrentPrice: 1},
		{Size: 25, CurrentPrice: 1}, {Size: 25, CurrentPrice: 1},
	}
	c := ComputeConcentration(positions)
	require.InDelta(t, 25.0, c.LargestPositionPct, 1e-9)
	require.InDelta(t, 2500.0, c.HHI, 1e-9)
	require.Equal(t, RiskMedium, c.RiskLevel)
}

func TestCategoryExposureSortedDescendingWithPercent(t *testing.T) {
	positions := []EnrichedPosition{
		{Position: domain.Position{Size: 10, CurrentPrice: 1}, Category: CategorySports},
		{Position: domain.Position{Size: 90, CurrentPrice: 1}, Category: CategoryCrypto},
	}
	exposure := CategoryExposure(positions)
	require.Len(t, exposure, 2)
	require.Equal(t, CategoryCrypto, exposure[0].Category)
	require.InDelta(t, 90.0, exposure[0].ValuePercent, 1e-9)
}

func TestFindHedgedPairsRequiresBothOutcomes(t *testing.T) {
	positions := []domain.Position{
		{Venue: "polymarket", MarketID: "m1", OutcomeID: "yes", Size: 10, CurrentPrice: 0.6}, // value 6
		{Venue: "polymarket", MarketID: "m1", OutcomeID: "no", Size: 15, CurrentPrice: 0.3},  // value 4.5
		{Venue: "kalshi", MarketID: "m2", OutcomeID: "yes", Size: 5, CurrentPrice: 0.5},      // unmatched, no "no" leg
	}
	pairs := FindHedgedPairs(positions)
	require.Len(t, pairs, 1)
	require.InDelta(t, 4.5/6.0, pairs[0].HedgeRatio, 1e-9)
}
