package options

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optionhawk/scanner/internal/fetch"
	"github.com/optionhawk/scanner/internal/ratelimit"
	"github.com/optionhawk/scanner/models"
)

type fakeQuotes struct {
	price float64
	err   error
}

func (f *fakeQuotes) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	if f.err != nil {
		return models.Quote{}, f.err
	}
	return models.Quote{Symbol: symbol, Price: f.price}, nil
}

type fakeOptions struct {
	expirations []time.Time
	calls       map[int64][]models.RawContract
	puts        map[int64][]models.RawContract
}

func (f *fakeOptions) Expirations(ctx context.Context, symbol string) ([]time.Time, error) {
	return f.expirations, nil
}

func (f *fakeOptions) CallContracts(ctx context.Context, symbol string, expiration time.Time) ([]models.RawContract, error) {
	return f.calls[expiration.Unix()], nil
}

func (f *fakeOptions) PutContracts(ctx context.Context, symbol string, expiration time.Time) ([]models.RawContract, error) {
	return f.puts[expiration.Unix()], nil
}

func newTestAnalyzer(t *testing.T, quotes QuoteSource, provider models.OptionsProvider) *Analyzer {
	t.Helper()
	limiter := ratelimit.New(10000)
	limiter.SetSleep(func(time.Duration) {})
	client := fetch.New(limiter)
	client.SetSleep(func(time.Duration) {})
	return New(quotes, provider, client)
}

func TestSelectExpirations(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	days := func(d int) time.Time { return now.AddDate(0, 0, d) }

	selected := SelectExpirations([]time.Time{
		days(5), days(90), days(40), days(25), days(60), days(30), days(50),
	}, now)

	require.Len(t, selected, 3)
	assert.Equal(t, 25, selected[0].days)
	assert.Equal(t, 40, selected[1].days)
	assert.Equal(t, 60, selected[2].days)
}

func TestSelectExpirationsFewInRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	days := func(d int) time.Time { return now.AddDate(0, 0, d) }

	selected := SelectExpirations([]time.Time{days(10), days(30), days(45)}, now)
	require.Len(t, selected, 2)
	assert.Equal(t, 30, selected[0].days)
	assert.Equal(t, 45, selected[1].days)

	assert.Empty(t, SelectExpirations([]time.Time{days(5), days(100)}, now))
}

func TestLiquidityScore(t *testing.T) {
	tests := []struct {
		name       string
		volume     int64
		oi         int64
		spread     float64
		ask        float64
		strike     float64
		score      int
		acceptable bool
	}{
		{"volume only qualifies", 600, 0, 0.5, 2.0, 110, 40, true},
		{"all conditions caps at 100", 600, 1200, 0.10, 2.0, 101, 100, true},
		{"open interest only", 0, 1500, 0.5, 2.0, 120, 40, true},
		{"tight spread only", 0, 0, 0.20, 2.0, 120, 20, true},
		{"near money alone does not qualify", 0, 0, 0.5, 2.0, 101, 20, false},
		{"nothing qualifies", 100, 500, 0.5, 2.0, 120, 0, false},
		{"zero ask blocks spread condition", 0, 0, 0.0, 0, 120, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, acceptable := LiquidityScore(tt.volume, tt.oi, tt.spread, tt.ask, 100, tt.strike)
			assert.Equal(t, tt.score, score)
			assert.Equal(t, tt.acceptable, acceptable)
		})
	}
}

func TestSpreadPct(t *testing.T) {
	assert.InDelta(t, 0.25, SpreadPct(1.5, 2.0), 1e-9)
	assert.Equal(t, 1.0, SpreadPct(0, 0))
}

func TestEstimateDeltaFallbackBands(t *testing.T) {
	// iv of zero forces the banded fallback.
	assert.Equal(t, 0.7, EstimateDelta(110, 100, 30, 0))
	assert.Equal(t, 0.3, EstimateDelta(90, 100, 30, 0))
	assert.Equal(t, 0.5, EstimateDelta(100, 100, 30, 0))
}

func TestEstimateDeltaATM(t *testing.T) {
	// d1 = (0.02 + 0.5*0.09)*0.1 / (0.3*sqrt(0.1)), cdf just above one half.
	delta := EstimateDelta(100, 100, 36, 0.3)
	assert.InDelta(t, 0.527, delta, 0.005)
	assert.Greater(t, delta, 0.5)
	assert.Less(t, delta, 0.6)
}

func TestEstimateThetaNegative(t *testing.T) {
	theta := EstimateTheta(100, 100, 30, 0.3, 5.0)
	assert.Less(t, theta, 0.0)

	// Shorter dated contracts decay faster at the same price.
	shorter := EstimateTheta(100, 100, 10, 0.3, 5.0)
	assert.Less(t, shorter, theta)

	assert.Equal(t, -0.01, EstimateTheta(0, 100, 30, 0.3, 5.0))
}

func TestEstimateGamma(t *testing.T) {
	atm := EstimateGamma(100, 100, 30, 0.3)
	far := EstimateGamma(100, 130, 30, 0.3)
	assert.Greater(t, atm, 0.0)
	assert.Greater(t, atm, far)
	assert.GreaterOrEqual(t, far, 0.0)

	assert.Equal(t, 0.01, EstimateGamma(100, 100, 30, 0))
}

func TestEstimateVega(t *testing.T) {
	atm := EstimateVega(100, 100, 36, 0.3)
	assert.Greater(t, atm, 0.0)
	assert.Greater(t, atm, EstimateVega(100, 130, 36, 0.3))

	assert.Equal(t, 0.1, EstimateVega(0, 100, 36, 0.3))
}

func TestGetChain(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	exp := now.AddDate(0, 0, 30)

	provider := &fakeOptions{
		expirations: []time.Time{now.AddDate(0, 0, 5), exp, now.AddDate(0, 0, 100)},
		calls: map[int64][]models.RawContract{
			exp.Unix(): {
				{ContractSymbol: "AAPL240701C00100000", Strike: 100, Bid: 4.8, Ask: 5.0, LastPrice: 4.9, Volume: 900, OpenInterest: 2000, ImpliedVolatility: 0.35},
				// Strike outside the 0.85-1.20 band.
				{ContractSymbol: "AAPL240701C00150000", Strike: 150, Bid: 0.1, Ask: 0.2, Volume: 900, OpenInterest: 2000},
				// Illiquid on every axis.
				{ContractSymbol: "AAPL240701C00110000", Strike: 110, Bid: 0.5, Ask: 1.5, Volume: 10, OpenInterest: 50},
				// Crossed market.
				{ContractSymbol: "AAPL240701C00105000", Strike: 105, Bid: 3.0, Ask: 2.0, Volume: 900, OpenInterest: 2000},
			},
		},
	}

	analyzer := newTestAnalyzer(t, &fakeQuotes{price: 100}, provider)
	analyzer.SetNow(func() time.Time { return now })

	chain, err := analyzer.GetChain(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, chain, 1)

	c := chain[0]
	assert.Equal(t, "AAPL240701C00100000", c.ContractSymbol)
	assert.Equal(t, models.Call, c.Type)
	assert.Equal(t, 30, c.DaysToExpiration)
	assert.Equal(t, 100, c.LiquidityScore)
	assert.InDelta(t, 0.04, c.SpreadPct, 1e-9)
	assert.InDelta(t, 4.9, c.Mid, 1e-9)
	assert.Equal(t, 0.35, c.ImpliedVolatility)
	assert.InDelta(t, 52.5, c.IVPercentile, 1e-9)
	assert.Greater(t, c.Delta, 0.5)
	assert.Less(t, c.Theta, 0.0)
}

func TestGetChainNoExpirationsInRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	provider := &fakeOptions{expirations: []time.Time{now.AddDate(0, 0, 5)}}

	analyzer := newTestAnalyzer(t, &fakeQuotes{price: 100}, provider)
	analyzer.SetNow(func() time.Time { return now })

	chain, err := analyzer.GetChain(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestGetChainIVFallback(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	exp := now.AddDate(0, 0, 30)
	provider := &fakeOptions{
		expirations: []time.Time{exp},
		calls: map[int64][]models.RawContract{
			exp.Unix(): {
				{ContractSymbol: "XYZ", Strike: 100, Bid: 4.0, Ask: 5.0, Volume: 900, OpenInterest: 0},
			},
		},
	}

	analyzer := newTestAnalyzer(t, &fakeQuotes{price: 100}, provider)
	analyzer.SetNow(func() time.Time { return now })

	chain, err := analyzer.GetChain(context.Background(), "XYZ")
	require.NoError(t, err)
	require.Len(t, chain, 1)
	// 0.3 + 0.5*spread with a 20% spread.
	assert.InDelta(t, 0.4, chain[0].ImpliedVolatility, 1e-9)
}

func TestGetOptionQuote(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	exp := now.AddDate(0, 0, 45)
	provider := &fakeOptions{
		puts: map[int64][]models.RawContract{
			exp.Unix(): {
				{ContractSymbol: "AAPL240715P00095000", Strike: 95, Bid: 2.0, Ask: 2.2, Volume: 600, OpenInterest: 500, ImpliedVolatility: 0.4},
			},
		},
	}

	analyzer := newTestAnalyzer(t, &fakeQuotes{price: 100}, provider)
	analyzer.SetNow(func() time.Time { return now })

	q, err := analyzer.GetOptionQuote(context.Background(), "AAPL", 95, exp, models.Put)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, models.Put, q.Type)
	assert.Equal(t, 45, q.DaysToExpiration)
	assert.Equal(t, 0.4, q.ImpliedVolatility)

	missing, err := analyzer.GetOptionQuote(context.Background(), "AAPL", 90, exp, models.Put)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
