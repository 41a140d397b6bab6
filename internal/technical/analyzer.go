package technical

import (
	"context"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/models"
)

const (
	rsiPeriod    = 14
	atrPeriod    = 14
	patternBars  = 20
	minBars      = 50
	historyDays  = 100
	benchmark    = "SPY"
	benchmarkWin = 20
)

// HistorySource supplies daily bars, most recent last.
type HistorySource interface {
	GetPriceHistory(ctx context.Context, symbol string, days int) ([]models.Bar, error)
}

// Analyzer computes indicators and chart-pattern classification from price
// history. Snapshots are derived fresh per screening pass and never cached.
type Analyzer struct {
	history HistorySource
	logger  zerolog.Logger
}

func New(history HistorySource) *Analyzer {
	return &Analyzer{
		history: history,
		logger:  log.With().Str("component", "technical").Logger(),
	}
}

// Analyze returns the technical snapshot for a symbol, or nil when fewer
// than 50 bars of history are available.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (*models.TechnicalSnapshot, error) {
	bars, err := a.history.GetPriceHistory(ctx, symbol, historyDays)
	if err != nil {
		return nil, err
	}
	if len(bars) < minBars {
		a.logger.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("not enough history")
		return nil, nil
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
	}

	snap := &models.TechnicalSnapshot{
		RSI:              RSI(closes, rsiPeriod),
		SMA20:            sma(closes, 20),
		SMA50:            sma(closes, 50),
		VolumeRatio:      volumeRatio(volumes),
		PriceChange5D:    priceChange(closes, 5),
		PriceChange20D:   priceChange(closes, 20),
		ATR:              ATR(bars, atrPeriod),
		RelativeStrength: a.relativeStrength(ctx, closes),
		Pattern:          DetectPattern(bars),
	}
	return snap, nil
}

// RSI is the 14-period mean-gain over mean-loss oscillator.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50.0
	}

	var gains, losses float64
	tail := closes[len(closes)-period-1:]
	for i := 1; i < len(tail); i++ {
		change := tail[i] - tail[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// ATR is the mean true range over the trailing period.
func ATR(bars []models.Bar, period int) float64 {
	if len(bars) < period+1 {
		return 0
	}

	tail := bars[len(bars)-period-1:]
	var sum float64
	for i := 1; i < len(tail); i++ {
		highLow := tail[i].High - tail[i].Low
		highClose := math.Abs(tail[i].High - tail[i-1].Close)
		lowClose := math.Abs(tail[i].Low - tail[i-1].Close)
		sum += math.Max(highLow, math.Max(highClose, lowClose))
	}
	return sum / float64(period)
}

func sma(closes []float64, period int) float64 {
	if len(closes) < period {
		return 0
	}
	mean, err := stats.Mean(closes[len(closes)-period:])
	if err != nil {
		return 0
	}
	return mean
}

func volumeRatio(volumes []float64) float64 {
	if len(volumes) < patternBars {
		return 1.0
	}
	mean, err := stats.Mean(volumes[len(volumes)-patternBars:])
	if err != nil || mean == 0 {
		return 1.0
	}
	return volumes[len(volumes)-1] / mean
}

func priceChange(closes []float64, days int) float64 {
	if len(closes) < days {
		return 0
	}
	base := closes[len(closes)-days]
	if base == 0 {
		return 0
	}
	return closes[len(closes)-1]/base - 1
}

// relativeStrength compares the stock's 20-day return to the benchmark's.
// Defaults to 1.0 when benchmark data is unavailable or flat.
func (a *Analyzer) relativeStrength(ctx context.Context, closes []float64) float64 {
	spy, err := a.history.GetPriceHistory(ctx, benchmark, benchmarkWin)
	if err != nil || len(spy) < 2 || spy[0].Close == 0 {
		return 1.0
	}
	spyReturn := spy[len(spy)-1].Close/spy[0].Close - 1
	if spyReturn == 0 {
		return 1.0
	}
	return priceChange(closes, benchmarkWin) / spyReturn
}

// DetectPattern classifies the last 20 bars, first match wins.
func DetectPattern(bars []models.Bar) models.Pattern {
	if len(bars) < patternBars {
		return models.PatternNone
	}

	tail := bars[len(bars)-patternBars:]
	closes := make([]float64, patternBars)
	highs := make([]float64, patternBars)
	lows := make([]float64, patternBars)
	for i, b := range tail {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	switch {
	case isBreakout(closes, highs):
		return models.PatternBreakout
	case isFlag(closes):
		return models.PatternFlag
	case isAscendingTriangle(highs, lows):
		return models.PatternAscendingTriangle
	default:
		return models.PatternNone
	}
}

// isBreakout: last close clears the pre-pullback high by 2%.
func isBreakout(closes, highs []float64) bool {
	recentHigh, err := stats.Max(highs[:len(highs)-5])
	if err != nil {
		return false
	}
	return closes[len(closes)-1] > recentHigh*1.02
}

// isFlag: a strong run in the first half followed by flat consolidation.
func isFlag(closes []float64) bool {
	first := slope(closes[:10])
	second := slope(closes[10:])
	return first > 0.5 && math.Abs(second) < 0.1
}

// isAscendingTriangle: rising lows pressing into flat resistance.
func isAscendingTriangle(highs, lows []float64) bool {
	lowTrend := slope(lows)
	highStd, err := stats.StandardDeviation(highs)
	if err != nil {
		return false
	}
	highMean, err := stats.Mean(highs)
	if err != nil {
		return false
	}
	return lowTrend > 0 && highStd < highMean*0.02
}

// slope is the per-bar slope of the least-squares line through the series.
func slope(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	coords := make([]stats.Coordinate, len(values))
	for i, v := range values {
		coords[i] = stats.Coordinate{X: float64(i), Y: v}
	}
	line, err := stats.LinearRegression(coords)
	if err != nil || len(line) < 2 {
		return 0
	}
	return (line[len(line)-1].Y - line[0].Y) / (line[len(line)-1].X - line[0].X)
}
