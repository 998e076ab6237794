package database_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eswasthya/portal/backend/internal/adapters/database"
	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

var analysisColumns = []string{"id", "report_id", "analysis_text", "health_tips", "suggestions", "source", "created_at"}

func TestAnalysisAdapter_CreateAndGet(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewAnalysisAdapter(client)
	created := time.Date(2024, 5, 1, 10, 15, 1, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "report_analyses"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, adapter.Create(context.Background(), &entities.ReportAnalysis{
		ID: "a1", ReportID: "r1", AnalysisText: "text", HealthTips: "tips", Suggestions: "yoga", Source: "static", CreatedAt: created,
	}))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "report_analyses" WHERE ("report_id" = 'r1')`)).
		WillReturnRows(sqlmock.NewRows(analysisColumns).AddRow("a1", "r1", "text", "tips", "yoga", "static", created))

	analysis, err := adapter.GetByReportID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "yoga", analysis.Suggestions)
	assert.Equal(t, "static", analysis.Source)
}

func TestAnalysisAdapter_DuplicateIsConflict(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewAnalysisAdapter(client)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "report_analyses"`)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := adapter.Create(context.Background(), &entities.ReportAnalysis{ID: "a2", ReportID: "r1"})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConflict))
}

func TestAnalysisAdapter_NotFound(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewAnalysisAdapter(client)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "report_analyses"`)).
		WillReturnRows(sqlmock.NewRows(analysisColumns))

	_, err := adapter.GetByReportID(context.Background(), "r1")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "Analysis not found", appErr.Message)
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) Incr(ctx context.Context, key string, expirationSeconds int) (int64, error) {
	return 0, nil
}

func TestCachedAnalysisAdapter_ReadThrough(t *testing.T) {
	client, mock := newMockClient(t)
	cache := newMemoryCache()
	adapter := database.NewCachedAnalysisAdapter(database.NewAnalysisAdapter(client), cache)
	created := time.Date(2024, 5, 1, 10, 15, 1, 0, time.UTC)

	// only the first read reaches the database
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "report_analyses"`)).
		WillReturnRows(sqlmock.NewRows(analysisColumns).AddRow("a1", "r1", "text", "tips", "yoga", "static", created))

	first, err := adapter.GetByReportID(context.Background(), "r1")
	require.NoError(t, err)
	second, err := adapter.GetByReportID(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "text", second.AnalysisText)
	assert.Equal(t, 1, cache.sets)
}

func TestCachedAnalysisAdapter_CreatePrimesCache(t *testing.T) {
	client, mock := newMockClient(t)
	cache := newMemoryCache()
	adapter := database.NewCachedAnalysisAdapter(database.NewAnalysisAdapter(client), cache)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "report_analyses"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.Create(context.Background(), &entities.ReportAnalysis{ID: "a1", ReportID: "r1", AnalysisText: "text"}))

	analysis, err := adapter.GetByReportID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "text", analysis.AnalysisText)
}

func TestCachedAnalysisAdapter_NotFoundIsNotCached(t *testing.T) {
	client, mock := newMockClient(t)
	cache := newMemoryCache()
	adapter := database.NewCachedAnalysisAdapter(database.NewAnalysisAdapter(client), cache)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "report_analyses"`)).
		WillReturnRows(sqlmock.NewRows(analysisColumns))

	_, err := adapter.GetByReportID(context.Background(), "r1")
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))
	assert.Zero(t, cache.sets)
}
