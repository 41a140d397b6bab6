package options

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/internal/fetch"
	"github.com/optionhawk/scanner/models"
)

const (
	minDaysToExpiration = 20
	maxDaysToExpiration = 70
	maxExpirations      = 3
	minStrikeRatio      = 0.85
	maxStrikeRatio      = 1.20
	minVolume           = 500
	minOpenInterest     = 1000
	maxSpreadPct        = 0.25
	// riskFreeRate is the fixed assumption baked into the delta estimate.
	riskFreeRate = 0.02
)

// QuoteSource supplies the current spot price for the underlying.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (models.Quote, error)
}

// Analyzer selects expirations, scores contract liquidity and estimates
// Greeks. The Greek math is deliberately closed-form and approximate; it
// ranks contracts, it does not price them.
type Analyzer struct {
	quotes   QuoteSource
	provider models.OptionsProvider
	client   *fetch.Client
	now      func() time.Time
	logger   zerolog.Logger
}

func New(quotes QuoteSource, provider models.OptionsProvider, client *fetch.Client) *Analyzer {
	return &Analyzer{
		quotes:   quotes,
		provider: provider,
		client:   client,
		now:      time.Now,
		logger:   log.With().Str("component", "options").Logger(),
	}
}

// SetNow replaces the clock, used by tests.
func (a *Analyzer) SetNow(now func() time.Time) {
	a.now = now
}

type expirationChoice struct {
	date time.Time
	days int
}

// GetChain returns scored call contracts across up to three expirations
// chosen for temporal variety. Failures degrade to an empty chain.
func (a *Analyzer) GetChain(ctx context.Context, symbol string) ([]models.OptionContractQuote, error) {
	quote, err := a.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	spot := quote.Price

	var expirations []time.Time
	err = a.client.Do(ctx, "expirations "+symbol, func(ctx context.Context) error {
		var err error
		expirations, err = a.provider.Expirations(ctx, symbol)
		return err
	})
	if err != nil {
		if fetch.IsNoData(err) {
			a.logger.Warn().Str("symbol", symbol).Msg("no options available")
			return nil, nil
		}
		return nil, err
	}

	selected := SelectExpirations(expirations, a.now())
	if len(selected) == 0 {
		return nil, nil
	}

	var chain []models.OptionContractQuote
	for _, exp := range selected {
		var raw []models.RawContract
		err := a.client.Do(ctx, "chain "+symbol, func(ctx context.Context) error {
			var err error
			raw, err = a.provider.CallContracts(ctx, symbol, exp.date)
			return err
		})
		if err != nil {
			a.logger.Warn().Str("symbol", symbol).Time("expiration", exp.date).Err(err).
				Msg("error fetching contracts, skipping expiration")
			continue
		}

		for _, c := range raw {
			if q, ok := a.score(symbol, spot, exp, c); ok {
				chain = append(chain, q)
			}
		}
	}
	return chain, nil
}

// GetOptionQuote fetches one side of the chain at a specific expiration and
// returns the contract at the given strike, scored the same way chain
// contracts are. Returns nil without error when the strike is not listed.
func (a *Analyzer) GetOptionQuote(ctx context.Context, symbol string, strike float64, expiration time.Time, optType models.OptionType) (*models.OptionContractQuote, error) {
	quote, err := a.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var raw []models.RawContract
	err = a.client.Do(ctx, "contract "+symbol, func(ctx context.Context) error {
		var err error
		if optType == models.Put {
			raw, err = a.provider.PutContracts(ctx, symbol, expiration)
		} else {
			raw, err = a.provider.CallContracts(ctx, symbol, expiration)
		}
		return err
	})
	if err != nil {
		if fetch.IsNoData(err) {
			return nil, nil
		}
		return nil, err
	}

	days := int(expiration.Sub(a.now()).Hours() / 24)
	for _, c := range raw {
		if math.Abs(c.Strike-strike) > 0.001 {
			continue
		}
		q := a.build(symbol, quote.Price, expirationChoice{date: expiration, days: days}, c)
		q.Type = optType
		return &q, nil
	}
	return nil, nil
}

// SelectExpirations keeps dates 20-70 days out and picks up to three for
// temporal variety: shortest, middle, longest.
func SelectExpirations(expirations []time.Time, now time.Time) []expirationChoice {
	var inRange []expirationChoice
	for _, exp := range expirations {
		days := int(exp.Sub(now).Hours() / 24)
		if days >= minDaysToExpiration && days <= maxDaysToExpiration {
			inRange = append(inRange, expirationChoice{date: exp, days: days})
		}
	}
	sort.Slice(inRange, func(i, j int) bool { return inRange[i].days < inRange[j].days })

	if len(inRange) <= maxExpirations {
		return inRange
	}
	return []expirationChoice{
		inRange[0],
		inRange[len(inRange)/2],
		inRange[len(inRange)-1],
	}
}

// score validates, filters and scores one raw contract.
func (a *Analyzer) score(symbol string, spot float64, exp expirationChoice, c models.RawContract) (models.OptionContractQuote, bool) {
	if c.Strike <= 0 || c.Bid < 0 || c.Ask < 0 || c.Ask < c.Bid {
		return models.OptionContractQuote{}, false
	}
	if c.Strike < spot*minStrikeRatio || c.Strike > spot*maxStrikeRatio {
		return models.OptionContractQuote{}, false
	}

	_, acceptable := LiquidityScore(c.Volume, c.OpenInterest, SpreadPct(c.Bid, c.Ask), c.Ask, spot, c.Strike)
	if !acceptable {
		return models.OptionContractQuote{}, false
	}
	return a.build(symbol, spot, exp, c), true
}

// build assembles a scored quote from a raw contract without applying the
// chain's retention filters.
func (a *Analyzer) build(symbol string, spot float64, exp expirationChoice, c models.RawContract) models.OptionContractQuote {
	spread := SpreadPct(c.Bid, c.Ask)
	score, _ := LiquidityScore(c.Volume, c.OpenInterest, spread, c.Ask, spot, c.Strike)

	iv := c.ImpliedVolatility
	if iv == 0 || math.IsNaN(iv) {
		// Wider spreads imply higher uncertainty.
		iv = 0.3 + spread*0.5
	}

	mid := (c.Bid + c.Ask) / 2
	if c.Ask == 0 {
		mid = c.LastPrice
	}
	optionPrice := c.Ask
	if optionPrice == 0 {
		optionPrice = 0.01
	}

	return models.OptionContractQuote{
		Symbol:            symbol,
		Type:              models.Call,
		Strike:            c.Strike,
		Expiration:        exp.date,
		DaysToExpiration:  exp.days,
		Bid:               c.Bid,
		Ask:               c.Ask,
		Mid:               mid,
		Last:              c.LastPrice,
		Volume:            c.Volume,
		OpenInterest:      c.OpenInterest,
		ImpliedVolatility: iv,
		InTheMoney:        c.InTheMoney,
		ContractSymbol:    c.ContractSymbol,
		SpreadPct:         spread,
		LiquidityScore:    score,
		Delta:             EstimateDelta(spot, c.Strike, exp.days, iv),
		Theta:             EstimateTheta(spot, c.Strike, exp.days, iv, optionPrice),
		Gamma:             EstimateGamma(spot, c.Strike, exp.days, iv),
		Vega:              EstimateVega(spot, c.Strike, exp.days, iv),
		IVPercentile:      math.Min(95, math.Max(5, iv*150)),
	}
}

// SpreadPct is (ask-bid)/ask, or 1.0 for an unquoted ask.
func SpreadPct(bid, ask float64) float64 {
	if ask <= 0 {
		return 1.0
	}
	return (ask - bid) / ask
}

// LiquidityScore grades a contract 0-100. The first three conditions are
// independent qualifiers; near-the-money adds score but cannot qualify a
// contract on its own.
func LiquidityScore(volume, openInterest int64, spreadPct, ask, spot, strike float64) (int, bool) {
	score := 0
	acceptable := false

	if volume >= minVolume {
		acceptable = true
		score += 40
	}
	if openInterest >= minOpenInterest {
		acceptable = true
		score += 40
	}
	if spreadPct <= maxSpreadPct && ask > 0 {
		acceptable = true
		score += 20
	}
	if spot > 0 && math.Abs(strike-spot)/spot <= 0.05 {
		score += 20
	}
	if score > 100 {
		score = 100
	}
	return score, acceptable
}

// EstimateDelta approximates the Black-Scholes call delta. On numeric
// failure it falls back to moneyness-banded constants.
func EstimateDelta(spot, strike float64, days int, iv float64) float64 {
	moneyness := spot / strike
	timeToExp := float64(days) / 365.0

	if iv > 0 && timeToExp > 0 && spot > 0 && strike > 0 {
		d1 := (math.Log(moneyness) + (riskFreeRate+0.5*iv*iv)*timeToExp) / (iv * math.Sqrt(timeToExp))
		if !math.IsNaN(d1) && !math.IsInf(d1, 0) {
			return round(normCDF(d1), 3)
		}
	}

	switch {
	case moneyness > 1.05:
		return 0.7
	case moneyness < 0.95:
		return 0.3
	default:
		return 0.5
	}
}

// EstimateTheta approximates daily time decay in dollars, always negative.
func EstimateTheta(spot, strike float64, days int, iv, optionPrice float64) float64 {
	if spot <= 0 || strike <= 0 {
		return -0.01
	}
	timeFactor := math.Sqrt(365 / math.Max(float64(days), 1))
	atm := atmFactor(spot, strike)
	theta := optionPrice * (-0.005 * timeFactor * atm * (1 + iv))
	if math.IsNaN(theta) || math.IsInf(theta, 0) {
		return -0.01
	}
	return round(theta, 4)
}

// EstimateGamma approximates gamma, highest at the money and near expiry.
func EstimateGamma(spot, strike float64, days int, iv float64) float64 {
	if spot <= 0 || strike <= 0 || iv <= 0 {
		return 0.01
	}
	timeToExp := float64(days) / 365.0
	atm := atmFactor(spot, strike)
	timeFactor := 1 / math.Sqrt(math.Max(timeToExp, 0.01))
	gamma := 0.01 * atm * timeFactor / (spot * iv * math.Sqrt(2*math.Pi))
	if math.IsNaN(gamma) || math.IsInf(gamma, 0) {
		return 0.01
	}
	return round(math.Max(0, gamma), 4)
}

// EstimateVega approximates sensitivity to a one-point IV move.
func EstimateVega(spot, strike float64, days int, iv float64) float64 {
	if spot <= 0 || strike <= 0 {
		return 0.1
	}
	timeToExp := float64(days) / 365.0
	vega := spot * 0.01 * atmFactor(spot, strike) * math.Sqrt(timeToExp) * math.Sqrt(2/math.Pi)
	if math.IsNaN(vega) || math.IsInf(vega, 0) {
		return 0.1
	}
	return round(vega, 3)
}

func atmFactor(spot, strike float64) float64 {
	m := spot/strike - 1
	return math.Exp(-(m * m) / 0.02)
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func round(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}
