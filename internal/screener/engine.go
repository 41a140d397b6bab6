package screener

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/internal/fetch"
	"github.com/optionhawk/scanner/models"
)

const (
	batchSize  = 3
	batchPause = 5 * time.Second
)

// UniverseSource produces the raw symbol list to screen.
type UniverseSource interface {
	Universe(ctx context.Context) ([]models.StockRecord, error)
}

// FundamentalsSource supplies per-symbol fundamentals. Implementations
// degrade to defaults internally, so there is no error return.
type FundamentalsSource interface {
	GetFundamentals(ctx context.Context, symbol string) models.FundamentalsSnapshot
}

// TechnicalsSource computes indicators for a symbol. A nil snapshot with a
// nil error means the symbol lacks enough history.
type TechnicalsSource interface {
	Analyze(ctx context.Context, symbol string) (*models.TechnicalSnapshot, error)
}

// Stats counts per-symbol outcomes across one screening pass.
type Stats struct {
	Discovered           int
	Enriched             int
	SkippedNoData        int
	Failed               int
	RejectedFundamentals int
	RejectedTechnicals   int
	Accepted             int
}

// Engine walks the universe in small batches, enriches each symbol and
// applies the fundamental and technical gates. Batching with explicit
// pauses stands in for concurrent fan-out so provider limits hold.
type Engine struct {
	universe     UniverseSource
	fundamentals FundamentalsSource
	technicals   TechnicalsSource
	sleep        func(time.Duration)
	logger       zerolog.Logger
}

func New(universe UniverseSource, fundamentals FundamentalsSource, technicals TechnicalsSource) *Engine {
	return &Engine{
		universe:     universe,
		fundamentals: fundamentals,
		technicals:   technicals,
		sleep:        time.Sleep,
		logger:       log.With().Str("component", "screener").Logger(),
	}
}

// SetSleep replaces the inter-batch pause, used by tests.
func (e *Engine) SetSleep(sleep func(time.Duration)) {
	e.sleep = sleep
}

// FindCandidates runs one full screening pass. Per-symbol failures are
// counted and skipped, never fatal to the batch or the scan.
func (e *Engine) FindCandidates(ctx context.Context) ([]models.Candidate, Stats, error) {
	records, err := e.universe.Universe(ctx)
	if err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{Discovered: len(records)}
	var accepted []models.Candidate

	for start := 0; start < len(records); start += batchSize {
		if start > 0 {
			e.sleep(batchPause)
		}
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		for _, record := range records[start:end] {
			candidate, outcome := e.screen(ctx, record)
			switch outcome {
			case outcomeAccepted:
				accepted = append(accepted, *candidate)
				stats.Enriched++
				stats.Accepted++
			case outcomeRejectedFundamentals:
				stats.Enriched++
				stats.RejectedFundamentals++
			case outcomeRejectedTechnicals:
				stats.Enriched++
				stats.RejectedTechnicals++
			case outcomeSkipped:
				stats.SkippedNoData++
			case outcomeFailed:
				stats.Failed++
			}
		}
		e.logger.Debug().Int("screened", end).Int("total", len(records)).Msg("batch complete")
	}

	e.logger.Info().
		Int("discovered", stats.Discovered).
		Int("accepted", stats.Accepted).
		Int("skipped", stats.SkippedNoData).
		Int("failed", stats.Failed).
		Msg("screening pass complete")
	return accepted, stats, nil
}

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeRejectedFundamentals
	outcomeRejectedTechnicals
	outcomeSkipped
	outcomeFailed
)

func (e *Engine) screen(ctx context.Context, record models.StockRecord) (*models.Candidate, outcome) {
	fundamentals := e.fundamentals.GetFundamentals(ctx, record.Symbol)
	if !PassesFundamentals(fundamentals) {
		return nil, outcomeRejectedFundamentals
	}

	technicals, err := e.technicals.Analyze(ctx, record.Symbol)
	if err != nil {
		if errors.Is(err, fetch.ErrNoData) {
			e.logger.Debug().Str("symbol", record.Symbol).Msg("no data, skipping")
			return nil, outcomeSkipped
		}
		e.logger.Warn().Str("symbol", record.Symbol).Err(err).Msg("enrichment failed")
		return nil, outcomeFailed
	}
	if technicals == nil {
		e.logger.Debug().Str("symbol", record.Symbol).Msg("insufficient history, skipping")
		return nil, outcomeSkipped
	}
	if !PassesTechnicals(*technicals) {
		return nil, outcomeRejectedTechnicals
	}

	return &models.Candidate{
		StockRecord:  record,
		Fundamentals: fundamentals,
		Technicals:   *technicals,
	}, outcomeAccepted
}

// PassesFundamentals applies the fundamental gate. A zero PE means the
// ratio is unknown and skips its own check.
func PassesFundamentals(f models.FundamentalsSnapshot) bool {
	if f.PERatio != 0 && (f.PERatio < 0 || f.PERatio > 100) {
		return false
	}
	if f.RevenueGrowth < 0.15 {
		return false
	}
	if f.EarningsGrowth < 0.10 {
		return false
	}
	if f.InstitutionalOwnership < 0.05 {
		return false
	}
	return true
}

// PassesTechnicals applies the technical gate, all conditions required.
func PassesTechnicals(t models.TechnicalSnapshot) bool {
	return t.RelativeStrength >= 1.1 &&
		t.PriceChange20D >= 0.05 &&
		t.VolumeRatio >= 1.2 &&
		t.RSI <= 80 &&
		t.PriceChange5D >= 0.02
}
