package quotes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/internal/cache"
	"github.com/optionhawk/scanner/internal/fetch"
	"github.com/optionhawk/scanner/models"
)

const (
	fundamentalsBucket = "fundamentals"
	fundamentalsTTL    = 24 * time.Hour
	quoteMemoTTL       = 10 * time.Minute
	historyFallback    = 30 // days, matches the provider's one-month window
)

// Service answers per-symbol quote, price history and fundamentals queries.
// Quotes are memoized in-process with a TTL; fundamentals are cached durably
// for 24 hours. Fundamentals are best-effort and never fail the pipeline.
type Service struct {
	market       models.MarketDataProvider
	fundamentals models.FundamentalsProvider
	client       *fetch.Client
	store        *cache.Store
	now          func() time.Time

	mu   sync.Mutex
	memo map[string]memoEntry

	logger zerolog.Logger
}

type memoEntry struct {
	quote     models.Quote
	fetchedAt time.Time
}

// New creates the service. store may be shared with other components.
func New(market models.MarketDataProvider, fundamentals models.FundamentalsProvider, client *fetch.Client, store *cache.Store) *Service {
	return &Service{
		market:       market,
		fundamentals: fundamentals,
		client:       client,
		store:        store,
		now:          time.Now,
		memo:         make(map[string]memoEntry),
		logger:       log.With().Str("component", "quotes").Logger(),
	}
}

// SetNow replaces the clock, used by tests.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// GetQuote returns the current quote for a symbol. Intraday 5-minute bars
// are preferred; empty intraday data falls back to five daily bars; if both
// are empty the symbol has no data and an error is returned for the caller
// to skip or log.
func (s *Service) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	s.mu.Lock()
	if e, ok := s.memo[symbol]; ok && s.now().Sub(e.fetchedAt) < quoteMemoTTL {
		s.mu.Unlock()
		return e.quote, nil
	}
	s.mu.Unlock()

	var q models.Quote
	err := s.client.Do(ctx, "quote "+symbol, func(ctx context.Context) error {
		bars, err := s.market.IntradayBars(ctx, symbol)
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			bars, err = s.market.DailyBars(ctx, symbol, 5)
			if err != nil {
				return err
			}
			if len(bars) == 0 {
				return fmt.Errorf("%s: %w", symbol, fetch.ErrNoData)
			}
		}

		price := bars[len(bars)-1].Close
		volume := bars[len(bars)-1].Volume
		dayHigh, dayLow := bars[0].High, bars[0].Low
		if len(bars) > 1 {
			volume = 0
			for _, b := range bars {
				volume += b.Volume
				if b.High > dayHigh {
					dayHigh = b.High
				}
				if b.Low < dayLow {
					dayLow = b.Low
				}
			}
		}

		q = models.Quote{
			Symbol:    symbol,
			Price:     price,
			Volume:    volume,
			AvgVolume: volume,
			Bid:       price * 0.995,
			Ask:       price * 1.005,
			DayHigh:   dayHigh,
			DayLow:    dayLow,
			PrevClose: price,
			Timestamp: s.now(),
		}

		// Quote extras are decoration; the bar-derived quote stands alone.
		if info, err := s.market.QuoteInfo(ctx, symbol); err == nil {
			if info.AvgVolume > 0 {
				q.AvgVolume = info.AvgVolume
			}
			if info.Bid > 0 {
				q.Bid = info.Bid
			}
			if info.Ask > 0 {
				q.Ask = info.Ask
			}
			if info.PrevClose > 0 {
				q.PrevClose = info.PrevClose
			}
		}
		return nil
	})
	if err != nil {
		return models.Quote{}, err
	}

	s.mu.Lock()
	s.memo[symbol] = memoEntry{quote: q, fetchedAt: s.now()}
	s.mu.Unlock()
	return q, nil
}

// GetPriceHistory returns daily bars covering the requested window. An empty
// result falls back to a one-month window; a still-empty result is returned
// as an empty slice, not an error.
func (s *Service) GetPriceHistory(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	var bars []models.Bar
	err := s.client.Do(ctx, "history "+symbol, func(ctx context.Context) error {
		var err error
		bars, err = s.market.DailyBars(ctx, symbol, days)
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			bars, err = s.market.DailyBars(ctx, symbol, historyFallback)
		}
		return err
	})
	if err != nil {
		if fetch.IsNoData(err) {
			return nil, nil
		}
		s.logger.Warn().Str("symbol", symbol).Err(err).Msg("error getting price history")
		return nil, nil
	}
	return bars, nil
}

// GetFundamentals returns fundamentals for a symbol, cache-first with a
// 24-hour TTL. Fetch failures degrade to the documented defaults and are
// never surfaced as errors.
func (s *Service) GetFundamentals(ctx context.Context, symbol string) models.FundamentalsSnapshot {
	var cached models.FundamentalsSnapshot
	if age, ok := s.store.Get(fundamentalsBucket, symbol, &cached); ok && age < fundamentalsTTL {
		return cached
	}

	var data models.FundamentalsData
	err := s.client.Do(ctx, "fundamentals "+symbol, func(ctx context.Context) error {
		var err error
		data, err = s.fundamentals.Fundamentals(ctx, symbol)
		return err
	})

	var snap models.FundamentalsSnapshot
	if err != nil {
		s.logger.Warn().Str("symbol", symbol).Err(err).Msg("error getting fundamentals, using defaults")
		snap = models.DefaultFundamentals()
	} else {
		snap = buildSnapshot(data)
	}

	if err := s.store.Put(fundamentalsBucket, symbol, snap); err != nil {
		s.logger.Warn().Str("symbol", symbol).Err(err).Msg("error caching fundamentals")
	}
	return snap
}

// SaveCaches flushes the durable fundamentals cache.
func (s *Service) SaveCaches() error {
	return s.store.Flush()
}

func buildSnapshot(data models.FundamentalsData) models.FundamentalsSnapshot {
	snap := models.DefaultFundamentals()

	if data.ForwardPE != 0 {
		snap.PERatio = data.ForwardPE
	} else if data.TrailingPE != 0 {
		snap.PERatio = data.TrailingPE
	}
	if data.PEGRatio != 0 {
		snap.PEGRatio = data.PEGRatio
	}
	if data.PriceToBook != 0 {
		snap.PriceToBook = data.PriceToBook
	}
	if growth, ok := revenueGrowth(data.QuarterlyRevenue); ok {
		snap.RevenueGrowth = growth
	}
	if data.EarningsGrowth != 0 {
		snap.EarningsGrowth = data.EarningsGrowth
	}
	if data.ProfitMargin != 0 {
		snap.ProfitMargin = data.ProfitMargin
	}
	if data.InstitutionalOwnership != 0 {
		snap.InstitutionalOwnership = data.InstitutionalOwnership
	}
	if data.InsiderOwnership != 0 {
		snap.InsiderOwnership = data.InsiderOwnership
	}
	if data.ShortRatio != 0 {
		snap.ShortRatio = data.ShortRatio
	}
	if data.Beta != 0 {
		snap.Beta = data.Beta
	}
	return snap
}

// revenueGrowth derives growth from the two most recent quarterly revenues.
func revenueGrowth(revenues []float64) (float64, bool) {
	if len(revenues) < 2 {
		return 0, false
	}
	recent, previous := revenues[0], revenues[1]
	if previous == 0 {
		return 0, false
	}
	growth := (recent - previous) / previous
	if growth == 0 {
		return 0, false
	}
	return growth, true
}
