package store

import (
	"context"
	"fmt"
	"time"

	"fundambush/internal/contracts"
	"fundambush/pkg/logger"
	"fundambush/pkg/redis"
)

// reportTTL keeps cached reports around for one trading day.
const reportTTL = 24 * time.Hour

// CachedReportStore layers a Redis read-through cache over a ReportStore.
// Cache errors are logged and absorbed; the database stays authoritative.
type CachedReportStore struct {
	inner contracts.ReportStore
	cache *redis.Client
	log   *logger.Logger
}

// NewCachedReportStore wraps a store with a report cache.
func NewCachedReportStore(inner contracts.ReportStore, cache *redis.Client, log *logger.Logger) *CachedReportStore {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedReportStore{inner: inner, cache: cache, log: log.Named("reportcache")}
}

func reportKey(code string, date time.Time) string {
	return fmt.Sprintf("ambush:report:%s:%s", code, date.Format("2006-01-02"))
}

// Save persists the report and refreshes the cache entry.
func (s *CachedReportStore) Save(ctx context.Context, result *contracts.FinalAnalysisResult) error {
	if err := s.inner.Save(ctx, result); err != nil {
		return err
	}
	key := reportKey(result.Code, time.Now())
	if err := s.cache.SetJSON(ctx, key, result, reportTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("report cache write failed")
	}
	return nil
}

// Get serves from the cache when possible, falling back to the store and
// backfilling on a miss.
func (s *CachedReportStore) Get(ctx context.Context, code string, date time.Time) (*contracts.FinalAnalysisResult, error) {
	key := reportKey(code, date)

	var cached contracts.FinalAnalysisResult
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("report cache read failed")
	} else if hit {
		return &cached, nil
	}

	result, err := s.inner.Get(ctx, code, date)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, result, reportTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("report cache backfill failed")
	}
	return result, nil
}
