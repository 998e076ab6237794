package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/domain/repositories"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

const (
	reportsPrefix    = "reports"
	thumbnailsPrefix = "thumbnails"
	thumbnailWidth   = 200
	timestampLayout  = "20060102_150405"
)

// ReportServiceConfig tunes uploads
type ReportServiceConfig struct {
	MaxUploadBytes int64
	Thumbnails     bool
}

// UploadInput is one uploaded report file
type UploadInput struct {
	Filename string
	Content  io.Reader
}

// UploadResult is the stored report with its analysis
type UploadResult struct {
	Report   *entities.MedicalReport
	Analysis *entities.ReportAnalysis
}

// ReportService stores uploaded medical reports and their analyses
type ReportService struct {
	reports  repositories.ReportRepository
	analyses repositories.AnalysisRepository
	storage  providers.ReportStorage
	analyzer providers.ReportAnalyzer
	cfg      ReportServiceConfig
	now      func() time.Time
}

// NewReportService creates a new report service
func NewReportService(
	reports repositories.ReportRepository,
	analyses repositories.AnalysisRepository,
	storage providers.ReportStorage,
	analyzer providers.ReportAnalyzer,
	cfg ReportServiceConfig,
) *ReportService {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &ReportService{
		reports:  reports,
		analyses: analyses,
		storage:  storage,
		analyzer: analyzer,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Upload stores the file, records the report, analyzes it and records the
// analysis. If any step after the file write fails, the stored files and the
// report row are removed again.
func (s *ReportService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	logger := observability.LoggerFromContext(ctx)

	data, err := io.ReadAll(io.LimitReader(in.Content, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, apperrors.NewValidationError("Failed to read uploaded file")
	}
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("Uploaded file is empty")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, apperrors.NewValidationError(fmt.Sprintf("File exceeds the %d byte limit", s.cfg.MaxUploadBytes))
	}

	now := s.now()
	timestamp := now.Format(timestampLayout)
	id := uuid.New()
	ext := strings.ToLower(filepath.Ext(in.Filename))
	base := fmt.Sprintf("%s_%s", timestamp, strings.ReplaceAll(id.String(), "-", "")[:8])
	fileKey := path.Join(reportsPrefix, base+ext)

	report := &entities.MedicalReport{
		ID:           id.String(),
		Title:        "Report_" + timestamp,
		ReportType:   entities.ReportTypeForFilename(in.Filename),
		FileKey:      fileKey,
		FileURL:      s.storage.URL(fileKey),
		OriginalName: filepath.Base(in.Filename),
		SizeBytes:    int64(len(data)),
		UploadedAt:   now,
	}

	if err := s.storage.Save(ctx, fileKey, bytes.NewReader(data), http.DetectContentType(data)); err != nil {
		return nil, err
	}

	var stored []string
	stored = append(stored, fileKey)
	reportCreated := false
	cleanup := func() {
		// the request context may be cancelled already
		bg := context.WithoutCancel(ctx)
		if reportCreated {
			if err := s.reports.Delete(bg, report.ID); err != nil && !apperrors.Is(err, apperrors.ErrorTypeNotFound) {
				logger.Error().Err(err).Str("report_id", report.ID).Msg("failed to remove report after upload failure")
			}
		}
		for _, key := range stored {
			if err := s.storage.Delete(bg, key); err != nil {
				logger.Error().Err(err).Str("key", key).Msg("failed to remove stored file after upload failure")
			}
		}
	}

	if s.cfg.Thumbnails && report.ReportType == entities.ReportTypeImage {
		if thumbKey, ok := s.saveThumbnail(ctx, data, base); ok {
			report.ThumbnailKey = thumbKey
			stored = append(stored, thumbKey)
		}
	}

	if err := s.reports.Create(ctx, report); err != nil {
		cleanup()
		return nil, err
	}
	reportCreated = true

	result := s.analyzer.Analyze(ctx, report)
	analysis := &entities.ReportAnalysis{
		ID:           uuid.NewString(),
		ReportID:     report.ID,
		AnalysisText: result.AnalysisText,
		HealthTips:   result.HealthTips,
		Suggestions:  result.Suggestions,
		Source:       result.Source,
		CreatedAt:    s.now(),
	}
	if err := s.analyses.Create(ctx, analysis); err != nil {
		cleanup()
		return nil, err
	}

	logger.Info().
		Str("report_id", report.ID).
		Str("report_type", string(report.ReportType)).
		Int64("size_bytes", report.SizeBytes).
		Str("analysis_source", analysis.Source).
		Msg("report uploaded")

	return &UploadResult{Report: report, Analysis: analysis}, nil
}

// saveThumbnail stores a JPEG preview. Files that are not decodable images are skipped.
func (s *ReportService) saveThumbnail(ctx context.Context, data []byte, base string) (string, bool) {
	logger := observability.LoggerFromContext(ctx)

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Debug().Err(err).Msg("upload is not a decodable image, skipping thumbnail")
		return "", false
	}
	thumbnail := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		logger.Warn().Err(err).Msg("failed to encode thumbnail")
		return "", false
	}

	key := path.Join(thumbnailsPrefix, base+".jpg")
	if err := s.storage.Save(ctx, key, &buf, "image/jpeg"); err != nil {
		logger.Warn().Err(err).Msg("failed to store thumbnail")
		return "", false
	}
	return key, true
}

// GetAnalysis returns the analysis of a report
func (s *ReportService) GetAnalysis(ctx context.Context, reportID string) (*entities.ReportAnalysis, error) {
	if _, err := uuid.Parse(reportID); err != nil {
		return nil, apperrors.NewNotFoundError("Report not found")
	}
	if _, err := s.reports.GetByID(ctx, reportID); err != nil {
		return nil, err
	}
	return s.analyses.GetByReportID(ctx, reportID)
}
