package entities

import (
	"path/filepath"
	"strings"
	"time"
)

// ReportType classifies an uploaded medical report by its file extension
type ReportType string

const (
	ReportTypePDF   ReportType = "pdf"
	ReportTypeImage ReportType = "image"
)

// ReportTypeForFilename returns pdf for a ".pdf" extension (any case) and image otherwise.
func ReportTypeForFilename(filename string) ReportType {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return ReportTypePDF
	}
	return ReportTypeImage
}

// MedicalReport is an uploaded report file. Immutable after creation.
type MedicalReport struct {
	ID           string     `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	ReportType   ReportType `json:"report_type" db:"report_type"`
	FileKey      string     `json:"file_key" db:"file_key"`
	FileURL      string     `json:"file_url" db:"file_url"`
	ThumbnailKey string     `json:"thumbnail_key,omitempty" db:"thumbnail_key"`
	OriginalName string     `json:"original_name" db:"original_name"`
	SizeBytes    int64      `json:"size_bytes" db:"size_bytes"`
	UploadedAt   time.Time  `json:"uploaded_at" db:"uploaded_at"`
}

// ReportAnalysis is the one-to-one analysis attached to a MedicalReport.
// Created right after the report and never updated.
type ReportAnalysis struct {
	ID           string    `json:"id" db:"id"`
	ReportID     string    `json:"report_id" db:"report_id"`
	AnalysisText string    `json:"analysis_text" db:"analysis_text"`
	HealthTips   string    `json:"health_tips" db:"health_tips"`
	Suggestions  string    `json:"yoga_suggestions" db:"suggestions"`
	Source       string    `json:"source" db:"source"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// AnalysisResult is what an analyzer produces for a stored report
type AnalysisResult struct {
	AnalysisText string
	HealthTips   string
	Suggestions  string
	Source       string
}
