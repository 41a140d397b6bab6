package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/piquette/finance-go/quote"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/models"
)

// YahooMarket serves per-symbol bars, quote extras and fundamentals from
// Yahoo Finance. Bars and quotes go through the finance-go client; quarterly
// revenue comes from the fundamentals timeseries endpoint directly.
type YahooMarket struct {
	client *Client
	now    func() time.Time
	logger zerolog.Logger
}

func NewYahooMarket(client *Client) *YahooMarket {
	return &YahooMarket{
		client: client,
		now:    time.Now,
		logger: log.With().Str("component", "yahoo_market").Logger(),
	}
}

// IntradayBars returns today's 5-minute bars.
func (m *YahooMarket) IntradayBars(ctx context.Context, symbol string) ([]models.Bar, error) {
	end := m.now()
	start := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
	return m.bars(ctx, symbol, start, end, datetime.FiveMins)
}

// DailyBars returns daily bars for the trailing window.
func (m *YahooMarket) DailyBars(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	end := m.now()
	start := end.AddDate(0, 0, -days)
	return m.bars(ctx, symbol, start, end, datetime.OneDay)
}

func (m *YahooMarket) bars(ctx context.Context, symbol string, start, end time.Time, interval datetime.Interval) ([]models.Bar, error) {
	iter := chart.Get(&chart.Params{
		Params:   finance.Params{Context: &ctx},
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: interval,
	})

	var bars []models.Bar
	for iter.Next() {
		b := iter.Bar()
		open, _ := b.Open.Float64()
		high, _ := b.High.Float64()
		low, _ := b.Low.Float64()
		closePx, _ := b.Close.Float64()
		bars = append(bars, models.Bar{
			Date:   time.Unix(int64(b.Timestamp), 0),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: int64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("chart %s: %w", symbol, err)
	}
	return bars, nil
}

// QuoteInfo returns the current market snapshot for a symbol.
func (m *YahooMarket) QuoteInfo(ctx context.Context, symbol string) (models.Quote, error) {
	q, err := quote.Get(symbol)
	if err != nil {
		return models.Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
	}
	if q == nil {
		return models.Quote{}, fmt.Errorf("quote %s: %w", symbol, errEmptyResponse)
	}
	return models.Quote{
		Symbol:    symbol,
		Price:     q.RegularMarketPrice,
		Volume:    int64(q.RegularMarketVolume),
		AvgVolume: int64(q.AverageDailyVolume3Month),
		Bid:       q.Bid,
		Ask:       q.Ask,
		DayHigh:   q.RegularMarketDayHigh,
		DayLow:    q.RegularMarketDayLow,
		PrevClose: q.RegularMarketPreviousClose,
		Timestamp: m.now(),
	}, nil
}

// MarketCap returns the current market cap for a symbol.
func (m *YahooMarket) MarketCap(ctx context.Context, symbol string) (float64, error) {
	e, err := equity.Get(symbol)
	if err != nil {
		return 0, fmt.Errorf("equity %s: %w", symbol, err)
	}
	if e == nil {
		return 0, fmt.Errorf("equity %s: %w", symbol, errEmptyResponse)
	}
	return float64(e.MarketCap), nil
}

// Fundamentals fetches the raw fundamentals view. Fields Yahoo does not
// serve stay zero and pick up defaults in the quotes service.
func (m *YahooMarket) Fundamentals(ctx context.Context, symbol string) (models.FundamentalsData, error) {
	e, err := equity.Get(symbol)
	if err != nil {
		return models.FundamentalsData{}, fmt.Errorf("equity %s: %w", symbol, err)
	}
	if e == nil {
		return models.FundamentalsData{}, fmt.Errorf("equity %s: %w", symbol, errEmptyResponse)
	}

	data := models.FundamentalsData{
		ForwardPE:   e.ForwardPE,
		TrailingPE:  e.TrailingPE,
		PriceToBook: e.PriceToBook,
	}

	// Quarterly revenue feeds the revenue growth derivation; losing it only
	// costs the documented default.
	revenues, err := m.quarterlyRevenue(ctx, symbol)
	if err != nil {
		m.logger.Debug().Str("symbol", symbol).Err(err).Msg("quarterly revenue unavailable")
	} else {
		data.QuarterlyRevenue = revenues
	}
	return data, nil
}

var errEmptyResponse = fmt.Errorf("empty response")

type timeseriesResponse struct {
	Timeseries struct {
		Result []struct {
			QuarterlyTotalRevenue []struct {
				ReportedValue struct {
					Raw float64 `json:"raw"`
				} `json:"reportedValue"`
			} `json:"quarterlyTotalRevenue"`
		} `json:"result"`
	} `json:"timeseries"`
}

// quarterlyRevenue returns reported quarterly revenues, most recent first.
func (m *YahooMarket) quarterlyRevenue(ctx context.Context, symbol string) ([]float64, error) {
	end := m.now()
	start := end.AddDate(-2, 0, 0)
	url := fmt.Sprintf(
		"https://query1.finance.yahoo.com/ws/fundamentals-timeseries/v1/finance/timeseries/%s?type=quarterlyTotalRevenue&period1=%d&period2=%d",
		symbol, start.Unix(), end.Unix(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.DoRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded timeseriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if len(decoded.Timeseries.Result) == 0 {
		return nil, errEmptyResponse
	}

	// Served oldest first; reverse to most recent first.
	points := decoded.Timeseries.Result[0].QuarterlyTotalRevenue
	revenues := make([]float64, 0, len(points))
	for i := len(points) - 1; i >= 0; i-- {
		revenues = append(revenues, points[i].ReportedValue.Raw)
	}
	return revenues, nil
}
