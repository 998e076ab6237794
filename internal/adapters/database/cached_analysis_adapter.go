package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/domain/repositories"
)

// analysisTTL is long because analyses never change once written (seconds)
const analysisTTL = 3600

func analysisCacheKey(reportID string) string {
	return fmt.Sprintf("report:analysis:%s", reportID)
}

// CachedAnalysisAdapter wraps an AnalysisRepository with a read-through cache
type CachedAnalysisAdapter struct {
	adapter repositories.AnalysisRepository
	cache   providers.CacheProvider
}

// NewCachedAnalysisAdapter creates a new cached analysis adapter
func NewCachedAnalysisAdapter(adapter repositories.AnalysisRepository, cache providers.CacheProvider) repositories.AnalysisRepository {
	return &CachedAnalysisAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Create writes through to the database and primes the cache
func (a *CachedAnalysisAdapter) Create(ctx context.Context, analysis *entities.ReportAnalysis) error {
	if err := a.adapter.Create(ctx, analysis); err != nil {
		return err
	}
	a.store(ctx, analysis)
	return nil
}

// GetByReportID serves from cache when possible
func (a *CachedAnalysisAdapter) GetByReportID(ctx context.Context, reportID string) (*entities.ReportAnalysis, error) {
	key := analysisCacheKey(reportID)

	cached, err := a.cache.Get(ctx, key)
	switch {
	case err == nil:
		var analysis entities.ReportAnalysis
		if err := json.Unmarshal(cached, &analysis); err == nil {
			return &analysis, nil
		}
		log.Warn().Err(err).Str("report_id", reportID).Msg("discarding undecodable cached analysis")
	case !errors.Is(err, providers.ErrCacheMiss):
		log.Warn().Err(err).Str("report_id", reportID).Msg("analysis cache read failed")
	}

	analysis, err := a.adapter.GetByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	a.store(ctx, analysis)
	return analysis, nil
}

func (a *CachedAnalysisAdapter) store(ctx context.Context, analysis *entities.ReportAnalysis) {
	data, err := json.Marshal(analysis)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, analysisCacheKey(analysis.ReportID), data, analysisTTL); err != nil {
		log.Warn().Err(err).Str("report_id", analysis.ReportID).Msg("failed to cache analysis")
	}
}
