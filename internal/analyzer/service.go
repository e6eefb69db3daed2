package analyzer

import (
	"context"
	"fmt"
	"time"

	"fundambush/internal/contracts"
	"fundambush/pkg/logger"
)

// lookbackDays is the calendar span fetched per run; generous enough to
// cover the longest module window in trading days.
const lookbackDays = 120

// Service materializes a stock's inputs from the repositories, runs the
// analyzer and persists the report. Handlers, the scheduler and the CLI
// all go through it.
type Service struct {
	analyzer *Analyzer

	bars    contracts.BarRepository
	metas   contracts.StockMetaRepository
	markets contracts.MarketContextRepository
	reports contracts.ReportStore

	log *logger.Logger
}

// NewService wires the analyzer to its data sources.
func NewService(a *Analyzer, bars contracts.BarRepository, metas contracts.StockMetaRepository, markets contracts.MarketContextRepository, reports contracts.ReportStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		analyzer: a,
		bars:     bars,
		metas:    metas,
		markets:  markets,
		reports:  reports,
		log:      log.Named("service"),
	}
}

// AnalyzeStock runs a full analysis for one stock and stores the report.
// A missing market snapshot degrades the run (the market module will fail
// and be excluded) instead of aborting it.
func (s *Service) AnalyzeStock(ctx context.Context, code string, extras *contracts.Extras) (*contracts.FinalAnalysisResult, error) {
	meta, err := s.metas.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	to := time.Now()
	from := to.AddDate(0, 0, -lookbackDays)
	bars, err := s.bars.GetByCodeAndDateRange(ctx, code, from, to)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}

	mkt, err := s.markets.Latest(ctx)
	if err != nil {
		s.log.WithError(err).WithField("code", code).Warn("market context unavailable, running without it")
		mkt = nil
	}

	result, err := s.analyzer.Analyze(ctx, bars, meta, mkt, extras)
	if err != nil {
		return nil, err
	}

	if err := s.reports.Save(ctx, result); err != nil {
		// The caller still gets the result; persistence is retried on the
		// next scheduled run.
		s.log.WithError(err).WithField("code", code).Error("report save failed")
	}
	return result, nil
}

// Report returns the stored report for a stock and date.
func (s *Service) Report(ctx context.Context, code string, date time.Time) (*contracts.FinalAnalysisResult, error) {
	return s.reports.Get(ctx, code, date)
}

// ScanProgress is one step of a batch scan, streamed to observers.
type ScanProgress struct {
	Code      string  `json:"code"`
	Index     int     `json:"index"`
	Total     int     `json:"total"`
	Score     float64 `json:"score"`
	Predicted bool    `json:"predicted"`
	Error     string  `json:"error,omitempty"`
}

// Scan analyzes every watchlist code in order, reporting progress through
// the optional callback and returning the positive calls. Per-stock
// failures are reported and skipped; only context cancellation stops the
// scan.
func (s *Service) Scan(ctx context.Context, codes []string, progress func(ScanProgress)) ([]*contracts.FinalAnalysisResult, error) {
	var hits []*contracts.FinalAnalysisResult

	for i, code := range codes {
		if err := ctx.Err(); err != nil {
			return hits, err
		}

		step := ScanProgress{Code: code, Index: i + 1, Total: len(codes)}
		result, err := s.AnalyzeStock(ctx, code, nil)
		if err != nil {
			step.Error = err.Error()
			s.log.WithError(err).WithField("code", code).Warn("scan step failed")
		} else {
			step.Score = result.FinalScore
			step.Predicted = result.IsPredictedAmbush
			if result.IsPredictedAmbush {
				hits = append(hits, result)
			}
		}
		if progress != nil {
			progress(step)
		}
	}

	s.log.WithFields(map[string]interface{}{
		"scanned": len(codes),
		"hits":    len(hits),
	}).Info("watchlist scan completed")

	return hits, nil
}
