package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/eswasthya/portal/backend/internal/application/services"
	"github.com/eswasthya/portal/backend/internal/domain/entities"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

// multipart framing allowance on top of the file limit
const multipartOverhead = 1 << 20

// ReportUploader is the report operations the handler needs
type ReportUploader interface {
	Upload(ctx context.Context, in services.UploadInput) (*services.UploadResult, error)
	GetAnalysis(ctx context.Context, reportID string) (*entities.ReportAnalysis, error)
}

// ReportHandler handles report upload and analysis requests
type ReportHandler struct {
	reports        ReportUploader
	maxUploadBytes int64
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports ReportUploader, maxUploadBytes int64) *ReportHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &ReportHandler{reports: reports, maxUploadBytes: maxUploadBytes}
}

type uploadResponse struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	ReportID string      `json:"report_id"`
	FileURL  string      `json:"file_url"`
	Analysis analysisDTO `json:"analysis"`
}

type analysisResponse struct {
	Status   string      `json:"status"`
	Analysis analysisDTO `json:"analysis"`
}

// UploadReport handles POST /upload-report/
func (h *ReportHandler) UploadReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handleError(w, r, apperrors.NewValidationError("File is too large"))
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			handleError(w, r, apperrors.NewValidationError("Invalid upload request"))
			return
		}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("report")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	result, err := h.reports.Upload(r.Context(), services.UploadInput{Filename: header.Filename, Content: file})
	if err != nil {
		handleSubmissionError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, uploadResponse{
		Status:   statusSuccess,
		Message:  "Report uploaded and analyzed successfully",
		ReportID: result.Report.ID,
		FileURL:  result.Report.FileURL,
		Analysis: newAnalysisDTO(result.Analysis),
	})
}

// GetReportAnalysis handles GET /report-analysis/{id}/
func (h *ReportHandler) GetReportAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.reports.GetAnalysis(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, analysisResponse{Status: statusSuccess, Analysis: newAnalysisDTO(analysis)})
}
