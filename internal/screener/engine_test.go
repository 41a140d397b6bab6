package screener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optionhawk/scanner/internal/fetch"
	"github.com/optionhawk/scanner/models"
)

type fakeUniverse struct {
	records []models.StockRecord
	err     error
}

func (f *fakeUniverse) Universe(ctx context.Context) ([]models.StockRecord, error) {
	return f.records, f.err
}

type fakeFundamentals struct {
	bySymbol map[string]models.FundamentalsSnapshot
}

func (f *fakeFundamentals) GetFundamentals(ctx context.Context, symbol string) models.FundamentalsSnapshot {
	if snap, ok := f.bySymbol[symbol]; ok {
		return snap
	}
	return models.DefaultFundamentals()
}

type fakeTechnicals struct {
	bySymbol map[string]*models.TechnicalSnapshot
	errs     map[string]error
}

func (f *fakeTechnicals) Analyze(ctx context.Context, symbol string) (*models.TechnicalSnapshot, error) {
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	return f.bySymbol[symbol], nil
}

func record(symbol string) models.StockRecord {
	return models.StockRecord{Symbol: symbol, Price: 25, MarketCap: 2e9, Volume: 500000}
}

func passingFundamentals() models.FundamentalsSnapshot {
	return models.FundamentalsSnapshot{
		PERatio:                30,
		RevenueGrowth:          0.25,
		EarningsGrowth:         0.15,
		InstitutionalOwnership: 0.40,
	}
}

func passingTechnicals() *models.TechnicalSnapshot {
	return &models.TechnicalSnapshot{
		RSI:              65,
		VolumeRatio:      1.5,
		PriceChange5D:    0.04,
		PriceChange20D:   0.12,
		RelativeStrength: 1.3,
		Pattern:          models.PatternBreakout,
	}
}

func TestFindCandidatesFiltersByRevenueGrowth(t *testing.T) {
	weak := passingFundamentals()
	weak.RevenueGrowth = 0.05

	engine := New(
		&fakeUniverse{records: []models.StockRecord{record("GOOD"), record("WEAK")}},
		&fakeFundamentals{bySymbol: map[string]models.FundamentalsSnapshot{
			"GOOD": passingFundamentals(),
			"WEAK": weak,
		}},
		&fakeTechnicals{bySymbol: map[string]*models.TechnicalSnapshot{
			"GOOD": passingTechnicals(),
			"WEAK": passingTechnicals(),
		}},
	)
	engine.SetSleep(func(time.Duration) {})

	candidates, stats, err := engine.FindCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "GOOD", candidates[0].Symbol)
	assert.Equal(t, 0.25, candidates[0].Fundamentals.RevenueGrowth)
	assert.Equal(t, models.PatternBreakout, candidates[0].Technicals.Pattern)

	assert.Equal(t, 2, stats.Discovered)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 1, stats.RejectedFundamentals)
}

func TestFindCandidatesBatchPauses(t *testing.T) {
	records := make([]models.StockRecord, 7)
	for i := range records {
		records[i] = record(string(rune('A' + i)))
	}

	engine := New(
		&fakeUniverse{records: records},
		&fakeFundamentals{},
		&fakeTechnicals{},
	)
	var pauses []time.Duration
	engine.SetSleep(func(d time.Duration) { pauses = append(pauses, d) })

	_, stats, err := engine.FindCandidates(context.Background())
	require.NoError(t, err)

	// 7 symbols in batches of 3 means two inter-batch pauses.
	require.Len(t, pauses, 2)
	assert.Equal(t, 5*time.Second, pauses[0])
	assert.Equal(t, 7, stats.Discovered)
}

func TestFindCandidatesOutcomeCounters(t *testing.T) {
	engine := New(
		&fakeUniverse{records: []models.StockRecord{
			record("OK"), record("GONE"), record("THIN"), record("BROKEN"), record("SLOW"),
		}},
		&fakeFundamentals{bySymbol: map[string]models.FundamentalsSnapshot{
			"OK":     passingFundamentals(),
			"GONE":   passingFundamentals(),
			"THIN":   passingFundamentals(),
			"BROKEN": passingFundamentals(),
			"SLOW":   passingFundamentals(),
		}},
		&fakeTechnicals{
			bySymbol: map[string]*models.TechnicalSnapshot{
				"OK": passingTechnicals(),
				// THIN maps to nil, insufficient history.
				"SLOW": {RSI: 50, VolumeRatio: 0.8, RelativeStrength: 0.9},
			},
			errs: map[string]error{
				"GONE":   fetch.ErrNoData,
				"BROKEN": errors.New("connection reset"),
			},
		},
	)
	engine.SetSleep(func(time.Duration) {})

	candidates, stats, err := engine.FindCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "OK", candidates[0].Symbol)

	assert.Equal(t, 5, stats.Discovered)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 2, stats.SkippedNoData)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.RejectedTechnicals)
	assert.Equal(t, 2, stats.Enriched)
}

func TestFindCandidatesUniverseError(t *testing.T) {
	engine := New(&fakeUniverse{err: errors.New("all sources failed")}, &fakeFundamentals{}, &fakeTechnicals{})
	engine.SetSleep(func(time.Duration) {})

	_, _, err := engine.FindCandidates(context.Background())
	assert.Error(t, err)
}

func TestPassesFundamentals(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.FundamentalsSnapshot)
		want   bool
	}{
		{"all gates pass", func(f *models.FundamentalsSnapshot) {}, true},
		{"zero pe skips its own check", func(f *models.FundamentalsSnapshot) { f.PERatio = 0 }, true},
		{"negative pe fails", func(f *models.FundamentalsSnapshot) { f.PERatio = -5 }, false},
		{"pe over 100 fails", func(f *models.FundamentalsSnapshot) { f.PERatio = 150 }, false},
		{"low revenue growth fails", func(f *models.FundamentalsSnapshot) { f.RevenueGrowth = 0.14 }, false},
		{"low earnings growth fails", func(f *models.FundamentalsSnapshot) { f.EarningsGrowth = 0.05 }, false},
		{"low institutional ownership fails", func(f *models.FundamentalsSnapshot) { f.InstitutionalOwnership = 0.01 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := passingFundamentals()
			tt.mutate(&f)
			assert.Equal(t, tt.want, PassesFundamentals(f))
		})
	}
}

func TestPassesTechnicals(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.TechnicalSnapshot)
		want   bool
	}{
		{"all gates pass", func(t *models.TechnicalSnapshot) {}, true},
		{"weak relative strength fails", func(t *models.TechnicalSnapshot) { t.RelativeStrength = 1.0 }, false},
		{"flat 20d change fails", func(t *models.TechnicalSnapshot) { t.PriceChange20D = 0.01 }, false},
		{"thin volume fails", func(t *models.TechnicalSnapshot) { t.VolumeRatio = 1.0 }, false},
		{"overbought rsi fails", func(t *models.TechnicalSnapshot) { t.RSI = 85 }, false},
		{"flat 5d change fails", func(t *models.TechnicalSnapshot) { t.PriceChange5D = 0.0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := passingTechnicals()
			tt.mutate(s)
			assert.Equal(t, tt.want, PassesTechnicals(*s))
		})
	}
}
