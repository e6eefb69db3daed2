package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundambush/internal/contracts"
	"fundambush/pkg/logger"
)

type fakeBars struct {
	bars contracts.BarSeries
	err  error
}

func (f *fakeBars) GetByCodeAndDateRange(ctx context.Context, code string, from, to time.Time) (contracts.BarSeries, error) {
	return f.bars, f.err
}

type fakeMetas struct {
	meta *contracts.StockMeta
	err  error
}

func (f *fakeMetas) Get(ctx context.Context, code string) (*contracts.StockMeta, error) {
	return f.meta, f.err
}

type fakeMarkets struct {
	mkt *contracts.MarketContext
	err error
}

func (f *fakeMarkets) Latest(ctx context.Context) (*contracts.MarketContext, error) {
	return f.mkt, f.err
}

type fakeReports struct {
	saved   []*contracts.FinalAnalysisResult
	saveErr error
	stored  *contracts.FinalAnalysisResult
}

func (f *fakeReports) Save(ctx context.Context, result *contracts.FinalAnalysisResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, result)
	return nil
}

func (f *fakeReports) Get(ctx context.Context, code string, date time.Time) (*contracts.FinalAnalysisResult, error) {
	if f.stored == nil {
		return nil, errors.New("not found")
	}
	return f.stored, nil
}

func newTestService(score float64, reports *fakeReports) *Service {
	a := newStubAnalyzer(&stubModule{name: "alpha", weight: 1, enabled: true, score: score})
	return NewService(a,
		&fakeBars{},
		&fakeMetas{meta: testMeta()},
		&fakeMarkets{mkt: &contracts.MarketContext{Regime: contracts.RegimeShock}},
		reports,
		logger.Nop(),
	)
}

func TestAnalyzeStockPersistsReport(t *testing.T) {
	reports := &fakeReports{}
	svc := newTestService(80, reports)

	res, err := svc.AnalyzeStock(context.Background(), "000001", nil)
	require.NoError(t, err)

	assert.Equal(t, 80.0, res.FinalScore)
	require.Len(t, reports.saved, 1)
	assert.Equal(t, "000001", reports.saved[0].Code)
}

func TestAnalyzeStockSurvivesSaveFailure(t *testing.T) {
	reports := &fakeReports{saveErr: errors.New("db down")}
	svc := newTestService(80, reports)

	res, err := svc.AnalyzeStock(context.Background(), "000001", nil)
	require.NoError(t, err, "a persistence failure must not cost the caller the result")
	assert.Equal(t, 80.0, res.FinalScore)
}

func TestAnalyzeStockSurvivesMissingMarketContext(t *testing.T) {
	a := newStubAnalyzer(&stubModule{name: "alpha", weight: 1, enabled: true, score: 60})
	svc := NewService(a,
		&fakeBars{},
		&fakeMetas{meta: testMeta()},
		&fakeMarkets{err: errors.New("no snapshots")},
		&fakeReports{},
		logger.Nop(),
	)

	res, err := svc.AnalyzeStock(context.Background(), "000001", nil)
	require.NoError(t, err)
	assert.Equal(t, 60.0, res.FinalScore)
}

func TestAnalyzeStockFailsWithoutMeta(t *testing.T) {
	a := newStubAnalyzer(&stubModule{name: "alpha", weight: 1, enabled: true, score: 60})
	svc := NewService(a,
		&fakeBars{},
		&fakeMetas{err: errors.New("stock not found")},
		&fakeMarkets{},
		&fakeReports{},
		logger.Nop(),
	)

	_, err := svc.AnalyzeStock(context.Background(), "999999", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load metadata")
}

func TestScanCollectsHitsAndProgress(t *testing.T) {
	reports := &fakeReports{}
	svc := newTestService(80, reports)

	var steps []ScanProgress
	hits, err := svc.Scan(context.Background(), []string{"000001", "000002", "000003"}, func(p ScanProgress) {
		steps = append(steps, p)
	})
	require.NoError(t, err)

	assert.Len(t, hits, 3, "every stock scores 80 with the stub module")
	require.Len(t, steps, 3)
	assert.Equal(t, 1, steps[0].Index)
	assert.Equal(t, 3, steps[0].Total)
	assert.True(t, steps[2].Predicted)
}

func TestScanReportsPerStockFailures(t *testing.T) {
	a := newStubAnalyzer(&stubModule{name: "alpha", weight: 1, enabled: true, score: 80})
	svc := NewService(a,
		&fakeBars{},
		&fakeMetas{err: errors.New("stock not found")},
		&fakeMarkets{},
		&fakeReports{},
		logger.Nop(),
	)

	var steps []ScanProgress
	hits, err := svc.Scan(context.Background(), []string{"000001"}, func(p ScanProgress) {
		steps = append(steps, p)
	})
	require.NoError(t, err)
	assert.Empty(t, hits)
	require.Len(t, steps, 1)
	assert.Contains(t, steps[0].Error, "stock not found")
}

func TestScanStopsOnCancel(t *testing.T) {
	svc := newTestService(80, &fakeReports{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Scan(ctx, []string{"000001"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
