package contracts

import (
	"context"
	"time"
)

// The interfaces below are the contract the external data layer satisfies.
// The scoring core never fetches or persists anything itself: all inputs
// are materialized before a run begins and the resulting report is handed
// back through the ReportStore.

// BarRepository provides the historical bar/order-flow table.
type BarRepository interface {
	// GetByCodeAndDateRange returns date-ascending bars for a stock.
	GetByCodeAndDateRange(ctx context.Context, code string, from, to time.Time) (BarSeries, error)
}

// StockMetaRepository provides static stock metadata snapshots.
type StockMetaRepository interface {
	Get(ctx context.Context, code string) (*StockMeta, error)
}

// MarketContextRepository provides dated market snapshots.
type MarketContextRepository interface {
	Latest(ctx context.Context) (*MarketContext, error)
}

// ReportStore persists final analysis reports.
type ReportStore interface {
	Save(ctx context.Context, result *FinalAnalysisResult) error
	Get(ctx context.Context, code string, date time.Time) (*FinalAnalysisResult, error)
}
