package jobs

import (
	"context"
	"fmt"

	"fundambush/internal/analyzer"
	"fundambush/pkg/config"
	"fundambush/pkg/logger"
)

// WatchlistScanJob runs the full watchlist through the analyzer after the
// close, so the day's reports are stored before the next session.
type WatchlistScanJob struct {
	service *analyzer.Service
	config  *config.Config
	logger  *logger.Logger
}

// NewWatchlistScanJob creates the nightly scan job.
func NewWatchlistScanJob(service *analyzer.Service, cfg *config.Config, log *logger.Logger) *WatchlistScanJob {
	return &WatchlistScanJob{
		service: service,
		config:  cfg,
		logger:  log.Named("scan_job"),
	}
}

// Name returns the job name.
func (j *WatchlistScanJob) Name() string {
	return "watchlist_scan"
}

// Schedule returns the configured cron expression.
func (j *WatchlistScanJob) Schedule() string {
	return j.config.ScanSchedule
}

// Run scans the watchlist and logs the positive calls.
func (j *WatchlistScanJob) Run(ctx context.Context) error {
	if len(j.config.Watchlist) == 0 {
		j.logger.Warn("watchlist empty, nothing to scan")
		return nil
	}

	hits, err := j.service.Scan(ctx, j.config.Watchlist, nil)
	if err != nil {
		return fmt.Errorf("watchlist scan: %w", err)
	}

	for _, hit := range hits {
		j.logger.WithFields(map[string]interface{}{
			"code":  hit.Code,
			"score": hit.FinalScore,
		}).Info("ambush candidate flagged")
	}
	return nil
}
