package models

import (
	"time"
)

// MarketCapCategory buckets a stock by market capitalization.
type MarketCapCategory string

const (
	SmallCap MarketCapCategory = "small_cap"
	MidCap   MarketCapCategory = "mid_cap"
	LargeCap MarketCapCategory = "large_cap"
	MegaCap  MarketCapCategory = "mega_cap"
)

// CategorizeMarketCap maps a market cap in currency units to its category band.
func CategorizeMarketCap(marketCap float64) MarketCapCategory {
	switch {
	case marketCap < 1e9:
		return SmallCap
	case marketCap < 10e9:
		return MidCap
	case marketCap < 100e9:
		return LargeCap
	default:
		return MegaCap
	}
}

// StockRecord is a single universe entry. PERatio of zero means unknown.
type StockRecord struct {
	Symbol     string            `json:"symbol"`
	Name       string            `json:"name"`
	MarketCap  float64           `json:"market_cap"`
	Price      float64           `json:"price"`
	Volume     int64             `json:"volume"`
	AvgVolume  int64             `json:"avg_volume"`
	Sector     string            `json:"sector"`
	Industry   string            `json:"industry"`
	Exchange   string            `json:"exchange"`
	PERatio    float64           `json:"pe_ratio,omitempty"`
	HasOptions bool              `json:"has_options"`
	Category   MarketCapCategory `json:"market_cap_category"`
}

// Bar is a single OHLCV bar.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Quote is a current snapshot for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
	AvgVolume int64     `json:"avg_volume"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	DayHigh   float64   `json:"day_high"`
	DayLow    float64   `json:"day_low"`
	PrevClose float64   `json:"prev_close"`
	Timestamp time.Time `json:"timestamp"`
}

// FundamentalsSnapshot holds per-symbol fundamentals. Missing provider values
// are filled with the documented defaults before the snapshot leaves the
// quotes service, so consumers never see zeroes that mean "unknown".
type FundamentalsSnapshot struct {
	PERatio                float64 `json:"pe_ratio"`
	PEGRatio               float64 `json:"peg_ratio"`
	PriceToBook            float64 `json:"price_to_book"`
	RevenueGrowth          float64 `json:"revenue_growth"`
	EarningsGrowth         float64 `json:"earnings_growth"`
	ProfitMargin           float64 `json:"profit_margin"`
	InstitutionalOwnership float64 `json:"institutional_ownership"`
	InsiderOwnership       float64 `json:"insider_ownership"`
	ShortRatio             float64 `json:"short_ratio"`
	Beta                   float64 `json:"beta"`
}

// DefaultFundamentals returns the fallback snapshot used when a provider
// fails or omits fields.
func DefaultFundamentals() FundamentalsSnapshot {
	return FundamentalsSnapshot{
		PERatio:                25,
		PEGRatio:               1.5,
		PriceToBook:            2,
		RevenueGrowth:          0.10,
		EarningsGrowth:         0.10,
		ProfitMargin:           0.10,
		InstitutionalOwnership: 0.20,
		InsiderOwnership:       0.10,
		ShortRatio:             2,
		Beta:                   1.2,
	}
}

// FundamentalsData is the raw provider-side view. Zero fields mean the
// provider did not supply a value. QuarterlyRevenue is ordered most recent
// first and is used to derive revenue growth.
type FundamentalsData struct {
	ForwardPE              float64
	TrailingPE             float64
	PEGRatio               float64
	PriceToBook            float64
	EarningsGrowth         float64
	ProfitMargin           float64
	InstitutionalOwnership float64
	InsiderOwnership       float64
	ShortRatio             float64
	Beta                   float64
	QuarterlyRevenue       []float64
}

// Pattern is a detected chart pattern.
type Pattern string

const (
	PatternBreakout          Pattern = "breakout"
	PatternFlag              Pattern = "flag"
	PatternAscendingTriangle Pattern = "ascending_triangle"
	PatternNone              Pattern = "none"
)

// TechnicalSnapshot holds indicators computed fresh per screening pass.
type TechnicalSnapshot struct {
	RSI              float64 `json:"rsi"`
	SMA20            float64 `json:"sma_20"`
	SMA50            float64 `json:"sma_50"`
	VolumeRatio      float64 `json:"volume_ratio"`
	PriceChange5D    float64 `json:"price_change_5d"`
	PriceChange20D   float64 `json:"price_change_20d"`
	ATR              float64 `json:"atr"`
	RelativeStrength float64 `json:"relative_strength"`
	Pattern          Pattern `json:"pattern"`
}

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// OptionContractQuote is a scored option contract with estimated Greeks.
// Created transiently per query, never persisted.
type OptionContractQuote struct {
	Symbol            string     `json:"symbol"`
	Type              OptionType `json:"type"`
	Strike            float64    `json:"strike"`
	Expiration        time.Time  `json:"expiration"`
	DaysToExpiration  int        `json:"days_to_expiration"`
	Bid               float64    `json:"bid"`
	Ask               float64    `json:"ask"`
	Mid               float64    `json:"mid"`
	Last              float64    `json:"last"`
	Volume            int64      `json:"volume"`
	OpenInterest      int64      `json:"open_interest"`
	ImpliedVolatility float64    `json:"implied_volatility"`
	InTheMoney        bool       `json:"in_the_money"`
	ContractSymbol    string     `json:"contract_symbol"`
	SpreadPct         float64    `json:"spread_pct"`
	LiquidityScore    int        `json:"liquidity_score"`
	Delta             float64    `json:"delta"`
	Theta             float64    `json:"theta"`
	Gamma             float64    `json:"gamma"`
	Vega              float64    `json:"vega"`
	IVPercentile      float64    `json:"iv_percentile"`
}

// RawContract is a provider-native option contract before scoring.
type RawContract struct {
	ContractSymbol    string
	Strike            float64
	Bid               float64
	Ask               float64
	LastPrice         float64
	Volume            int64
	OpenInterest      int64
	ImpliedVolatility float64
	InTheMoney        bool
}

// DirectoryEntry is a bare listing from a symbol directory source.
type DirectoryEntry struct {
	Symbol   string
	Name     string
	Exchange string
}

// Candidate is a stock that survived screening, carrying the merged record,
// fundamentals and technicals.
type Candidate struct {
	StockRecord
	Fundamentals FundamentalsSnapshot `json:"fundamentals"`
	Technicals   TechnicalSnapshot    `json:"technicals"`
}
