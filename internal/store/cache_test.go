package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundambush/internal/contracts"
	"fundambush/pkg/config"
	"fundambush/pkg/logger"
	"fundambush/pkg/redis"
)

type fakeReportStore struct {
	saved   []*contracts.FinalAnalysisResult
	stored  map[string]*contracts.FinalAnalysisResult
	saveErr error
}

func (f *fakeReportStore) Save(_ context.Context, result *contracts.FinalAnalysisResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, result)
	return nil
}

func (f *fakeReportStore) Get(_ context.Context, code string, _ time.Time) (*contracts.FinalAnalysisResult, error) {
	r, ok := f.stored[code]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func disabledCache(t *testing.T) *redis.Client {
	t.Helper()
	c, err := redis.New(&config.Config{})
	require.NoError(t, err)
	require.False(t, c.Enabled())
	return c
}

func TestCachedStoreSavePassesThrough(t *testing.T) {
	inner := &fakeReportStore{}
	s := NewCachedReportStore(inner, disabledCache(t), logger.Nop())

	result := &contracts.FinalAnalysisResult{Code: "000001", FinalScore: 82}
	require.NoError(t, s.Save(context.Background(), result))
	require.Len(t, inner.saved, 1)
	assert.Equal(t, "000001", inner.saved[0].Code)
}

func TestCachedStoreSaveErrorPropagates(t *testing.T) {
	inner := &fakeReportStore{saveErr: errors.New("connection reset")}
	s := NewCachedReportStore(inner, disabledCache(t), logger.Nop())

	err := s.Save(context.Background(), &contracts.FinalAnalysisResult{Code: "000001"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestCachedStoreGetFallsBackToInner(t *testing.T) {
	inner := &fakeReportStore{stored: map[string]*contracts.FinalAnalysisResult{
		"600519": {Code: "600519", FinalScore: 77.5},
	}}
	s := NewCachedReportStore(inner, disabledCache(t), logger.Nop())

	got, err := s.Get(context.Background(), "600519", time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 77.5, got.FinalScore, 1e-9)

	_, err = s.Get(context.Background(), "999999", time.Now())
	require.Error(t, err)
}

func TestReportKeyEncodesCodeAndDate(t *testing.T) {
	date := time.Date(2026, 8, 20, 15, 4, 0, 0, time.UTC)
	assert.Equal(t, "ambush:report:000001:2026-08-20", reportKey("000001", date))
}
