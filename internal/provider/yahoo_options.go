package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/models"
)

const optionsBaseURL = "https://query2.finance.yahoo.com/v7/finance/options"

// YahooOptions serves option expirations and call contracts.
type YahooOptions struct {
	client *Client
	logger zerolog.Logger
}

func NewYahooOptions(client *Client) *YahooOptions {
	return &YahooOptions{
		client: client,
		logger: log.With().Str("component", "yahoo_options").Logger(),
	}
}

type optionChainResponse struct {
	OptionChain struct {
		Result []struct {
			ExpirationDates []int64 `json:"expirationDates"`
			Options         []struct {
				Calls []optionContractJSON `json:"calls"`
				Puts  []optionContractJSON `json:"puts"`
			} `json:"options"`
		} `json:"result"`
	} `json:"optionChain"`
}

type optionContractJSON struct {
	ContractSymbol    string  `json:"contractSymbol"`
	Strike            float64 `json:"strike"`
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	LastPrice         float64 `json:"lastPrice"`
	Volume            int64   `json:"volume"`
	OpenInterest      int64   `json:"openInterest"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
	InTheMoney        bool    `json:"inTheMoney"`
}

func (o *YahooOptions) fetchChain(ctx context.Context, url string) (*optionChainResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := o.client.DoRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded optionChainResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding option chain: %w", err)
	}
	return &decoded, nil
}

// Expirations lists the available expiration dates for a symbol.
func (o *YahooOptions) Expirations(ctx context.Context, symbol string) ([]time.Time, error) {
	decoded, err := o.fetchChain(ctx, fmt.Sprintf("%s/%s", optionsBaseURL, symbol))
	if err != nil {
		return nil, err
	}
	if len(decoded.OptionChain.Result) == 0 {
		return nil, nil
	}

	var expirations []time.Time
	for _, epoch := range decoded.OptionChain.Result[0].ExpirationDates {
		expirations = append(expirations, time.Unix(epoch, 0).UTC())
	}
	return expirations, nil
}

// CallContracts returns the call side of the chain at one expiration.
func (o *YahooOptions) CallContracts(ctx context.Context, symbol string, expiration time.Time) ([]models.RawContract, error) {
	return o.contracts(ctx, symbol, expiration, models.Call)
}

// PutContracts returns the put side of the chain at one expiration.
func (o *YahooOptions) PutContracts(ctx context.Context, symbol string, expiration time.Time) ([]models.RawContract, error) {
	return o.contracts(ctx, symbol, expiration, models.Put)
}

func (o *YahooOptions) contracts(ctx context.Context, symbol string, expiration time.Time, side models.OptionType) ([]models.RawContract, error) {
	url := fmt.Sprintf("%s/%s?date=%d", optionsBaseURL, symbol, expiration.Unix())
	decoded, err := o.fetchChain(ctx, url)
	if err != nil {
		return nil, err
	}

	var contracts []models.RawContract
	for _, result := range decoded.OptionChain.Result {
		for _, opt := range result.Options {
			raw := opt.Calls
			if side == models.Put {
				raw = opt.Puts
			}
			for _, c := range raw {
				contracts = append(contracts, models.RawContract{
					ContractSymbol:    c.ContractSymbol,
					Strike:            c.Strike,
					Bid:               c.Bid,
					Ask:               c.Ask,
					LastPrice:         c.LastPrice,
					Volume:            c.Volume,
					OpenInterest:      c.OpenInterest,
					ImpliedVolatility: c.ImpliedVolatility,
					InTheMoney:        c.InTheMoney,
				})
			}
		}
	}
	o.logger.Debug().Str("symbol", symbol).Str("side", string(side)).Int("contracts", len(contracts)).Msg("option chain fetched")
	return contracts, nil
}
