package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/config"
	"github.com/optionhawk/scanner/internal/cache"
	"github.com/optionhawk/scanner/internal/fetch"
	"github.com/optionhawk/scanner/internal/options"
	"github.com/optionhawk/scanner/internal/provider"
	"github.com/optionhawk/scanner/internal/quotes"
	"github.com/optionhawk/scanner/internal/ratelimit"
)

// chain dumps the scored call chain for one or more symbols, useful for
// eyeballing liquidity before acting on a scan result.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s SYMBOL [SYMBOL...]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	lvl, _ := zerolog.ParseLevel(cfg.LogLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

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
	analyzer := options.New(quotesSvc, provider.NewYahooOptions(httpClient), fetchClient)

	ctx := context.Background()
	for _, symbol := range os.Args[1:] {
		dumpChain(ctx, analyzer, symbol)
	}

	if err := quotesSvc.SaveCaches(); err != nil {
		log.Error().Err(err).Msg("failed to flush caches")
	}
}

func dumpChain(ctx context.Context, analyzer *options.Analyzer, symbol string) {
	chain, err := analyzer.GetChain(ctx, symbol)
	if err != nil {
		log.Error().Str("symbol", symbol).Err(err).Msg("failed to fetch chain")
		return
	}
	if len(chain) == 0 {
		fmt.Printf("%s: no liquid call contracts 20-70 days out\n", symbol)
		return
	}

	fmt.Printf("%s: %d contracts\n", symbol, len(chain))
	fmt.Println("  expiration   dte  strike     bid    ask  sprd%  liq  delta   theta   gamma   vega   iv%")
	for _, q := range chain {
		fmt.Printf("  %s  %3d  %7.2f %6.2f %6.2f  %4.1f  %3d  %5.3f %7.4f  %6.4f %6.3f  %4.1f\n",
			q.Expiration.Format("2006-01-02"), q.DaysToExpiration, q.Strike, q.Bid, q.Ask,
			q.SpreadPct*100, q.LiquidityScore, q.Delta, q.Theta, q.Gamma, q.Vega, q.IVPercentile)
	}
}
