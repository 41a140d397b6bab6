package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/models"
)

const finnhubSymbolURL = "https://finnhub.io/api/v1/stock/symbol"

// FinnhubDirectory lists US common stocks from Finnhub. Construction is
// gated on an API token being configured; without one the universe simply
// skips this source.
type FinnhubDirectory struct {
	client *Client
	token  string
	logger zerolog.Logger
}

func NewFinnhubDirectory(client *Client, token string) *FinnhubDirectory {
	return &FinnhubDirectory{
		client: client,
		token:  token,
		logger: log.With().Str("component", "finnhub").Logger(),
	}
}

type finnhubSymbol struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Exchange    string `json:"exchange"`
	Type        string `json:"type"`
}

// Symbols returns every US common stock listing.
func (d *FinnhubDirectory) Symbols(ctx context.Context) ([]models.DirectoryEntry, error) {
	u := fmt.Sprintf("%s?exchange=US&token=%s", finnhubSymbolURL, url.QueryEscape(d.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := d.client.DoRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded []finnhubSymbol
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding finnhub response: %w", err)
	}

	var entries []models.DirectoryEntry
	for _, item := range decoded {
		if item.Type != "Common Stock" {
			continue
		}
		name := item.Description
		if name == "" {
			name = item.Symbol
		}
		exchange := item.Exchange
		if exchange == "" {
			exchange = "US"
		}
		entries = append(entries, models.DirectoryEntry{
			Symbol:   item.Symbol,
			Name:     name,
			Exchange: exchange,
		})
	}
	d.logger.Info().Int("count", len(entries)).Msg("finnhub US common stocks listed")
	return entries, nil
}
