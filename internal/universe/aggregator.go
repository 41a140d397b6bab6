package universe

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/internal/cache"
	"github.com/optionhawk/scanner/models"
)

// ErrEmptyUniverse signals that every source produced zero usable records,
// usually a market-closed or provider-outage state. Callers must be able
// to tell it apart from a legitimately empty filter result.
var ErrEmptyUniverse = errors.New("universe empty after exhausting all sources")

const (
	universeBucket = "universe"
	universeKey    = "all"
	universeTTL    = 24 * time.Hour

	directoryBatch = 100
	maxSanePrice   = 10000
	maxSaneCap     = 1e12
)

// pageSizes is the descending ladder of screener page sizes. A source that
// rejects a size gets the next smaller one.
var pageSizes = []int{250, 200, 100}

// QuoteSource supplies spot quotes for override and directory enrichment.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (models.Quote, error)
}

// CapSource looks up market caps, best effort.
type CapSource interface {
	MarketCap(ctx context.Context, symbol string) (float64, error)
}

// Limits is the filter band applied to every returned record.
type Limits struct {
	MarketCapMin float64
	MarketCapMax float64
	MinVolume    int64
}

// Aggregator merges bulk screener sources, an optional symbol directory
// and a local override file into one de-duplicated universe.
type Aggregator struct {
	sources     []models.ScreenerSource
	directory   models.SymbolDirectory
	quotes      QuoteSource
	caps        CapSource
	store       *cache.Store
	limits      Limits
	symbolsFile string
	sleep       func(time.Duration)
	logger      zerolog.Logger
}

func New(sources []models.ScreenerSource, directory models.SymbolDirectory, quotes QuoteSource, caps CapSource, store *cache.Store, limits Limits, symbolsFile string) *Aggregator {
	return &Aggregator{
		sources:     sources,
		directory:   directory,
		quotes:      quotes,
		caps:        caps,
		store:       store,
		limits:      limits,
		symbolsFile: symbolsFile,
		sleep:       time.Sleep,
		logger:      log.With().Str("component", "universe").Logger(),
	}
}

// SetSleep replaces the inter-batch pause, used by tests.
func (a *Aggregator) SetSleep(sleep func(time.Duration)) {
	a.sleep = sleep
}

// Universe returns the filtered stock universe: local override first, then
// cache, then fresh aggregation.
func (a *Aggregator) Universe(ctx context.Context) ([]models.StockRecord, error) {
	if records, ok := a.fromOverride(ctx); ok {
		return a.finish(records)
	}

	var cached []models.StockRecord
	if age, ok := a.store.Get(universeBucket, universeKey, &cached); ok && age < universeTTL {
		if filtered := a.filter(cached); len(filtered) > 0 {
			a.logger.Info().Int("count", len(filtered)).Dur("age", age).Msg("universe served from cache")
			return filtered, nil
		}
	}

	merged := a.aggregate(ctx)
	if len(merged) > 0 {
		if err := a.store.Put(universeBucket, universeKey, merged); err != nil {
			a.logger.Warn().Err(err).Msg("failed to cache universe")
		}
		if err := a.store.Flush(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to flush universe cache")
		}
	}
	return a.finish(merged)
}

func (a *Aggregator) finish(records []models.StockRecord) ([]models.StockRecord, error) {
	filtered := a.filter(records)
	if len(filtered) == 0 {
		a.logger.Error().Int("raw", len(records)).
			Msg("universe empty, likely market closed or providers down")
		return nil, ErrEmptyUniverse
	}
	return filtered, nil
}

type overrideRow struct {
	Symbol string `csv:"symbol"`
	Name   string `csv:"name"`
}

// fromOverride builds records from a local ticker list when one exists.
func (a *Aggregator) fromOverride(ctx context.Context) ([]models.StockRecord, bool) {
	if a.symbolsFile == "" {
		return nil, false
	}
	f, err := os.Open(a.symbolsFile)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var rows []overrideRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		a.logger.Warn().Str("file", a.symbolsFile).Err(err).Msg("unreadable symbols file, ignoring")
		return nil, false
	}
	if len(rows) == 0 {
		return nil, false
	}
	a.logger.Info().Int("symbols", len(rows)).Str("file", a.symbolsFile).Msg("using local symbol override")

	var records []models.StockRecord
	for _, row := range rows {
		if row.Symbol == "" {
			continue
		}
		record, err := a.enrich(ctx, row.Symbol, row.Name)
		if err != nil {
			a.logger.Warn().Str("symbol", row.Symbol).Err(err).Msg("skipping override symbol")
			continue
		}
		records = append(records, record)
	}
	return records, true
}

// enrich builds a full record from a bare symbol. Market cap falls back to
// price times volume when the provider lookup fails.
func (a *Aggregator) enrich(ctx context.Context, symbol, name string) (models.StockRecord, error) {
	quote, err := a.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return models.StockRecord{}, err
	}

	marketCap, err := a.caps.MarketCap(ctx, symbol)
	if err != nil || marketCap <= 0 {
		marketCap = quote.Price * float64(quote.Volume)
	}

	if name == "" {
		name = symbol
	}
	return models.StockRecord{
		Symbol:     symbol,
		Name:       name,
		Price:      quote.Price,
		Volume:     quote.Volume,
		AvgVolume:  quote.AvgVolume,
		MarketCap:  marketCap,
		Sector:     "Unknown",
		Industry:   "Unknown",
		Exchange:   "Unknown",
		HasOptions: true,
	}, nil
}

// aggregate performs the fresh bulk pull across every configured source.
func (a *Aggregator) aggregate(ctx context.Context) []models.StockRecord {
	seen := make(map[string]struct{})
	var merged []models.StockRecord

	add := func(records []models.StockRecord) {
		for _, r := range records {
			if r.Symbol == "" {
				continue
			}
			if _, dup := seen[r.Symbol]; dup {
				continue
			}
			seen[r.Symbol] = struct{}{}
			merged = append(merged, r)
		}
	}

	for _, source := range a.sources {
		add(a.fetchWithLadder(ctx, source))
	}

	if a.directory != nil {
		add(a.fromDirectory(ctx, seen))
	}

	a.logger.Info().Int("merged", len(merged)).Int("sources", len(a.sources)).Msg("universe aggregated")
	return merged
}

// fetchWithLadder walks the page-size ladder until a source accepts one.
func (a *Aggregator) fetchWithLadder(ctx context.Context, source models.ScreenerSource) []models.StockRecord {
	for _, size := range pageSizes {
		records, err := source.Fetch(ctx, size)
		if err != nil {
			a.logger.Debug().Str("source", source.Name()).Int("page_size", size).Err(err).
				Msg("screener page size rejected, stepping down")
			continue
		}
		a.logger.Debug().Str("source", source.Name()).Int("count", len(records)).Msg("screener fetched")
		return records
	}
	a.logger.Warn().Str("source", source.Name()).Msg("source failed at every page size, skipping")
	return nil
}

// fromDirectory enriches bare directory listings in batches with pauses,
// skipping symbols already merged from the screeners.
func (a *Aggregator) fromDirectory(ctx context.Context, seen map[string]struct{}) []models.StockRecord {
	entries, err := a.directory.Symbols(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("symbol directory unavailable, skipping")
		return nil
	}

	var fresh []models.DirectoryEntry
	for _, e := range entries {
		if _, dup := seen[e.Symbol]; !dup && e.Symbol != "" {
			fresh = append(fresh, e)
		}
	}

	var records []models.StockRecord
	for start := 0; start < len(fresh); start += directoryBatch {
		if start > 0 {
			a.sleep(time.Second + time.Duration(rand.Intn(400)+100)*time.Millisecond)
		}
		end := start + directoryBatch
		if end > len(fresh) {
			end = len(fresh)
		}
		for _, entry := range fresh[start:end] {
			record, err := a.enrich(ctx, entry.Symbol, entry.Name)
			if err != nil {
				continue
			}
			if entry.Exchange != "" {
				record.Exchange = entry.Exchange
			}
			records = append(records, record)
		}
		a.logger.Debug().Int("enriched", end).Int("total", len(fresh)).Msg("directory batch complete")
	}
	return records
}

// filter applies the cap band, the volume floor and the sanity checks.
// Drops are counted for observability, never fatal.
func (a *Aggregator) filter(records []models.StockRecord) []models.StockRecord {
	var kept []models.StockRecord
	dropped := struct{ invalid, outOfBand, thinVolume int }{}

	for _, r := range records {
		switch {
		case r.Symbol == "" || r.Price <= 0 || r.MarketCap <= 0:
			dropped.invalid++
		case r.Price > maxSanePrice || r.MarketCap > maxSaneCap:
			dropped.invalid++
		case r.MarketCap < a.limits.MarketCapMin || r.MarketCap > a.limits.MarketCapMax:
			dropped.outOfBand++
		case a.limits.MinVolume > 0 && r.Volume < a.limits.MinVolume:
			dropped.thinVolume++
		default:
			r.Category = models.CategorizeMarketCap(r.MarketCap)
			kept = append(kept, r)
		}
	}

	if dropped.invalid > 0 || dropped.outOfBand > 0 || dropped.thinVolume > 0 {
		a.logger.Debug().
			Int("invalid", dropped.invalid).
			Int("out_of_band", dropped.outOfBand).
			Int("thin_volume", dropped.thinVolume).
			Int("kept", len(kept)).
			Msg("universe filtered")
	}
	return kept
}
