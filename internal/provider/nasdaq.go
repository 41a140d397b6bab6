package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/models"
)

const nasdaqScreenerURL = "https://api.nasdaq.com/api/screener/stocks?tableonly=true&limit=5000&offset=0&download=true"

// NasdaqScreener is the NASDAQ bulk stock screener. It serves the full table
// in one response, so pageSize is ignored.
type NasdaqScreener struct {
	client *Client
	url    string
	logger zerolog.Logger
}

func NewNasdaqScreener(client *Client) *NasdaqScreener {
	return &NasdaqScreener{
		client: client,
		url:    nasdaqScreenerURL,
		logger: log.With().Str("component", "nasdaq_screener").Logger(),
	}
}

func (s *NasdaqScreener) Name() string { return "nasdaq" }

type nasdaqResponse struct {
	Data struct {
		Rows []struct {
			Symbol    string `json:"symbol"`
			Name      string `json:"name"`
			MarketCap string `json:"marketCap"`
			LastSale  string `json:"lastsale"`
			Volume    string `json:"volume"`
			Sector    string `json:"sector"`
			Industry  string `json:"industry"`
			Exchange  string `json:"exchange"`
		} `json:"rows"`
	} `json:"data"`
}

func (s *NasdaqScreener) Fetch(ctx context.Context, _ int) ([]models.StockRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.DoRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded nasdaqResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding nasdaq response: %w", err)
	}

	var records []models.StockRecord
	for _, row := range decoded.Data.Rows {
		marketCap := ParseMarketCap(row.MarketCap)
		volume := ParseVolume(row.Volume)
		price, _ := strconv.ParseFloat(strings.TrimPrefix(row.LastSale, "$"), 64)

		name := row.Name
		if name == "" {
			name = row.Symbol
		}
		sector, industry, exchange := row.Sector, row.Industry, row.Exchange
		if sector == "" {
			sector = "Unknown"
		}
		if industry == "" {
			industry = "Unknown"
		}
		if exchange == "" {
			exchange = "NASDAQ"
		}

		records = append(records, models.StockRecord{
			Symbol:     row.Symbol,
			Name:       name,
			MarketCap:  marketCap,
			Price:      price,
			Volume:     volume,
			AvgVolume:  volume,
			Sector:     sector,
			Industry:   industry,
			Exchange:   exchange,
			HasOptions: true,
			Category:   models.CategorizeMarketCap(marketCap),
		})
	}
	s.logger.Debug().Int("count", len(records)).Msg("nasdaq table fetched")
	return records, nil
}

// ParseMarketCap converts screener strings like "1.2B", "350M" or
// "1,234,567" to a float value. Unknown formats parse as zero.
func ParseMarketCap(raw string) float64 {
	if raw == "" || raw == "N/A" {
		return 0
	}
	cleaned := strings.ReplaceAll(strings.ToUpper(raw), ",", "")
	cleaned = strings.TrimPrefix(cleaned, "$")

	multiplier := 1.0
	switch {
	case strings.HasSuffix(cleaned, "T"):
		multiplier = 1e12
		cleaned = strings.TrimSuffix(cleaned, "T")
	case strings.HasSuffix(cleaned, "B"):
		multiplier = 1e9
		cleaned = strings.TrimSuffix(cleaned, "B")
	case strings.HasSuffix(cleaned, "M"):
		multiplier = 1e6
		cleaned = strings.TrimSuffix(cleaned, "M")
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return value * multiplier
}

// ParseVolume converts a volume string with separators to an integer.
func ParseVolume(raw string) int64 {
	if raw == "" || raw == "N/A" {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0
	}
	return int64(value)
}
