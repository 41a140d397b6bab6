package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/models"
)

// PrimaryScreenerIDs are the Yahoo predefined screeners queried on every
// fresh universe build.
var PrimaryScreenerIDs = []string{
	"most_actives",
	"day_gainers",
	"day_losers",
	"growth_technology_stocks",
	"undervalued_growth_stocks",
}

// VarietyScreenerIDs add breadth beyond the primary set.
var VarietyScreenerIDs = []string{
	"undervalued_large_caps",
	"aggressive_small_caps",
	"small_cap_gainers",
	"mid_cap_movers",
}

const screenerBaseURL = "https://query2.finance.yahoo.com/v1/finance/screener/predefined/saved"

// YahooScreener is one predefined Yahoo Finance screener category.
type YahooScreener struct {
	client  *Client
	baseURL string
	id      string
	logger  zerolog.Logger
}

// NewYahooScreeners builds a source per screener id sharing one HTTP client.
func NewYahooScreeners(client *Client, ids []string) []models.ScreenerSource {
	sources := make([]models.ScreenerSource, 0, len(ids))
	for _, id := range ids {
		sources = append(sources, &YahooScreener{
			client:  client,
			baseURL: screenerBaseURL,
			id:      id,
			logger:  log.With().Str("component", "yahoo_screener").Str("screener", id).Logger(),
		})
	}
	return sources
}

func (s *YahooScreener) Name() string { return "yahoo:" + s.id }

type screenerResponse struct {
	Finance struct {
		Result []struct {
			Quotes []screenerQuote `json:"quotes"`
		} `json:"result"`
	} `json:"finance"`
}

type screenerQuote struct {
	Symbol             string  `json:"symbol"`
	ShortName          string  `json:"shortName"`
	MarketCap          float64 `json:"marketCap"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	Volume             int64   `json:"volume"`
	AverageVolume      int64   `json:"averageVolume"`
	Sector             string  `json:"sector"`
	Industry           string  `json:"industry"`
	Exchange           string  `json:"exchange"`
	ForwardPE          float64 `json:"forwardPE"`
}

// Fetch returns one page of the screener as plain records.
func (s *YahooScreener) Fetch(ctx context.Context, pageSize int) ([]models.StockRecord, error) {
	url := fmt.Sprintf("%s?scrIds=%s&count=%d", s.baseURL, s.id, pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.DoRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded screenerResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding screener response: %w", err)
	}

	var records []models.StockRecord
	for _, result := range decoded.Finance.Result {
		for _, q := range result.Quotes {
			records = append(records, quoteToRecord(q))
		}
	}
	s.logger.Debug().Int("count", len(records)).Msg("screener page fetched")
	return records, nil
}

func quoteToRecord(q screenerQuote) models.StockRecord {
	name := q.ShortName
	if name == "" {
		name = q.Symbol
	}
	sector, industry, exchange := q.Sector, q.Industry, q.Exchange
	if sector == "" {
		sector = "Unknown"
	}
	if industry == "" {
		industry = "Unknown"
	}
	if exchange == "" {
		exchange = "Unknown"
	}
	return models.StockRecord{
		Symbol:    q.Symbol,
		Name:      name,
		MarketCap: q.MarketCap,
		Price:     q.RegularMarketPrice,
		Volume:    q.Volume,
		AvgVolume: q.AverageVolume,
		Sector:    sector,
		Industry:  industry,
		Exchange:  exchange,
		PERatio:   q.ForwardPE,
		// Screener hits are large enough that listed options are a safe assumption.
		HasOptions: true,
		Category:   models.CategorizeMarketCap(q.MarketCap),
	}
}
