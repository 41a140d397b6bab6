package models

import (
	"context"
	"time"
)

// MarketDataProvider supplies per-symbol bars and quote extras, already
// decoded from the provider's wire format.
type MarketDataProvider interface {
	// IntradayBars returns today's 5-minute bars.
	IntradayBars(ctx context.Context, symbol string) ([]Bar, error)
	// DailyBars returns daily bars covering the trailing number of days.
	DailyBars(ctx context.Context, symbol string, days int) ([]Bar, error)
	// QuoteInfo returns bid/ask/average-volume extras, best effort.
	QuoteInfo(ctx context.Context, symbol string) (Quote, error)
	// MarketCap returns the current market cap for a symbol.
	MarketCap(ctx context.Context, symbol string) (float64, error)
}

// FundamentalsProvider fetches raw fundamentals for a symbol.
type FundamentalsProvider interface {
	Fundamentals(ctx context.Context, symbol string) (FundamentalsData, error)
}

// OptionsProvider exposes an options chain source.
type OptionsProvider interface {
	Expirations(ctx context.Context, symbol string) ([]time.Time, error)
	CallContracts(ctx context.Context, symbol string, expiration time.Time) ([]RawContract, error)
	PutContracts(ctx context.Context, symbol string, expiration time.Time) ([]RawContract, error)
}

// ScreenerSource is one bulk universe source. Sources that do not page
// ignore pageSize.
type ScreenerSource interface {
	Name() string
	Fetch(ctx context.Context, pageSize int) ([]StockRecord, error)
}

// SymbolDirectory lists raw symbols without price or cap data.
type SymbolDirectory interface {
	Symbols(ctx context.Context) ([]DirectoryEntry, error)
}
