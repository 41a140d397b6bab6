package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/config"
	"github.com/optionhawk/scanner/internal/cache"
	"github.com/optionhawk/scanner/internal/fetch"
	"github.com/optionhawk/scanner/internal/notify"
	"github.com/optionhawk/scanner/internal/options"
	"github.com/optionhawk/scanner/internal/provider"
	"github.com/optionhawk/scanner/internal/quotes"
	"github.com/optionhawk/scanner/internal/ratelimit"
	"github.com/optionhawk/scanner/internal/screener"
	"github.com/optionhawk/scanner/internal/storage"
	"github.com/optionhawk/scanner/internal/technical"
	"github.com/optionhawk/scanner/internal/universe"
	"github.com/optionhawk/scanner/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lvl, _ := zerolog.ParseLevel(cfg.LogLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	ctx := context.Background()

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.CacheDir).Msg("failed to create cache directory")
	}
	store, err := cache.Open(filepath.Join(cfg.CacheDir, "scanner.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cache store")
	}
	defer store.Close()

	httpClient := provider.NewClient(provider.ClientOptions{
		Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
	})
	fetchClient := fetch.New(ratelimit.New(cfg.RateLimitPerMin))

	market := provider.NewYahooMarket(httpClient)
	quotesSvc := quotes.New(market, market, fetchClient, store)

	screenerIDs := append(append([]string{}, provider.PrimaryScreenerIDs...), provider.VarietyScreenerIDs...)
	sources := provider.NewYahooScreeners(httpClient, screenerIDs)
	sources = append(sources, provider.NewNasdaqScreener(httpClient))

	var directory models.SymbolDirectory
	if cfg.FinnhubAPIToken != "" {
		directory = provider.NewFinnhubDirectory(httpClient, cfg.FinnhubAPIToken)
	} else {
		log.Info().Msg("FINNHUB_API_TOKEN not set, symbol directory source disabled")
	}

	aggregator := universe.New(sources, directory, quotesSvc, market, store, universe.Limits{
		MarketCapMin: cfg.MarketCapMin,
		MarketCapMax: cfg.MarketCapMax,
		MinVolume:    cfg.MinVolume,
	}, cfg.SymbolsFile)

	engine := screener.New(aggregator, quotesSvc, technical.New(quotesSvc))

	candidates, stats, err := engine.FindCandidates(ctx)
	if err != nil {
		if errors.Is(err, universe.ErrEmptyUniverse) {
			log.Fatal().Err(err).Msg("no universe to screen, market closed or providers down")
		}
		log.Fatal().Err(err).Msg("screening pass failed")
	}

	fmt.Printf("Screened %d symbols: %d accepted, %d skipped, %d failed\n",
		stats.Discovered, stats.Accepted, stats.SkippedNoData, stats.Failed)

	chains := options.New(quotesSvc, provider.NewYahooOptions(httpClient), fetchClient)
	for _, c := range candidates {
		printCandidate(ctx, chains, c)
	}

	if cfg.DatabaseURL != "" && len(candidates) > 0 {
		db, err := storage.New(cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to results database")
		} else {
			defer db.Close()
			if err := db.SaveCandidates(ctx, candidates); err != nil {
				log.Error().Err(err).Msg("failed to save scan results")
			}
		}
	}

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		notifier, err := notify.New(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize telegram notifier")
		} else if err := notifier.SendScanResults(candidates); err != nil {
			log.Error().Err(err).Msg("failed to send scan results")
		}
	}

	if err := quotesSvc.SaveCaches(); err != nil {
		log.Error().Err(err).Msg("failed to flush caches")
	}
}

func printCandidate(ctx context.Context, chains *options.Analyzer, c models.Candidate) {
	fmt.Printf("\n%s (%s) $%.2f cap $%.0fM\n", c.Symbol, c.Category, c.Price, c.MarketCap/1e6)
	fmt.Printf("  rev growth %.0f%% | earnings growth %.0f%% | PE %.1f\n",
		c.Fundamentals.RevenueGrowth*100, c.Fundamentals.EarningsGrowth*100, c.Fundamentals.PERatio)
	fmt.Printf("  RSI %.0f | RS %.2f | vol ratio %.2f | pattern %s\n",
		c.Technicals.RSI, c.Technicals.RelativeStrength, c.Technicals.VolumeRatio, c.Technicals.Pattern)

	chain, err := chains.GetChain(ctx, c.Symbol)
	if err != nil {
		log.Warn().Str("symbol", c.Symbol).Err(err).Msg("failed to fetch options chain")
		return
	}
	if len(chain) == 0 {
		fmt.Println("  no liquid call contracts")
		return
	}

	sort.Slice(chain, func(i, j int) bool { return chain[i].LiquidityScore > chain[j].LiquidityScore })
	top := chain
	if len(top) > 5 {
		top = top[:5]
	}
	for _, q := range top {
		fmt.Printf("  %s %dd $%.2f strike, bid/ask %.2f/%.2f, liq %d, delta %.3f, theta %.4f\n",
			q.Expiration.Format("2006-01-02"), q.DaysToExpiration, q.Strike, q.Bid, q.Ask, q.LiquidityScore, q.Delta, q.Theta)
	}
}
