package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// gammaMarketResponse mirrors a Gamma /markets/{conditionId} payload: token
// outcomes are capitalized ("Yes"/"No"), not the lowercase side callers pass.
func gammaMarketResponse(conditionID string) []byte {
	body, _ := json.Marshal(apiMarket{
		ConditionID: conditionID,
		Question:    "Will it happen?",
		Tokens: []apiTok{
			{TokenID: "111", Outcome: "Yes", Price: "0.62"},
			{TokenID: "222", Outcome: "No", Price: "0.38"},
		},
	})
	return body
}

func TestQuoteMatchesOutcomeCaseInsensitively(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(gammaMarketResponse("trump-2024-yes"))
	}))
	defer srv.Close()

	a := New(srv.URL, srv.URL)

	q, err := a.Quote(context.Background(), "trump-2024-yes", "yes", 100)
	require.NoError(t, err)
	require.InDelta(t, 0.62, q.Price, 1e-9)

	q, err = a.Quote(context.Background(), "trump-2024-yes", "no", 100)
	require.NoError(t, err)
	require.InDelta(t, 0.38, q.Price, 1e-9)
}

func TestQuoteNoMatchingOutcomeIsVenueError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(gammaMarketResponse("m1"))
	}))
	defer srv.Close()

	a := New(srv.URL, srv.URL)
	_, err := a.Quote(context.Background(), "m1", "maybe", 100)
	require.Error(t, err)
}
