package handlers_test

import (
	"context"

	"github.com/eswasthya/portal/backend/internal/application/services"
	"github.com/eswasthya/portal/backend/internal/domain/entities"
)

type stubReportService struct {
	uploaded    []string
	uploadErr   error
	analysis    *entities.ReportAnalysis
	analysisErr error
}

func (s *stubReportService) Upload(ctx context.Context, in services.UploadInput) (*services.UploadResult, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	s.uploaded = append(s.uploaded, in.Filename)
	return &services.UploadResult{
		Report: &entities.MedicalReport{
			ID:         "0b6f9f0e-8c44-4a6a-9d1b-6a1c0f0a0001",
			FileURL:    "/media/reports/20240101_101010_0b6f9f0e.pdf",
			ReportType: entities.ReportTypeForFilename(in.Filename),
		},
		Analysis: &entities.ReportAnalysis{AnalysisText: "fine", HealthTips: "sleep", Suggestions: "stretch"},
	}, nil
}

func (s *stubReportService) GetAnalysis(ctx context.Context, reportID string) (*entities.ReportAnalysis, error) {
	return s.analysis, s.analysisErr
}

type stubEmergencyService struct {
	alertInput   services.TriggerAlertInput
	contactInput services.AddContactInput
	contacts     []*entities.EmergencyContact
	deleted      string
	err          error
}

func (s *stubEmergencyService) TriggerAlert(ctx context.Context, in services.TriggerAlertInput) (*entities.EmergencyAlert, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.alertInput = in
	return &entities.EmergencyAlert{
		ID:        "alert-1",
		AlertType: entities.AlertType(in.Type),
		Status:    entities.AlertStatusCompleted,
		Message:   entities.AlertType(in.Type).CompletionMessage(),
	}, nil
}

func (s *stubEmergencyService) AddContact(ctx context.Context, in services.AddContactInput) (*entities.EmergencyContact, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.contactInput = in
	return &entities.EmergencyContact{ID: "c1", Name: in.Name, PhoneNumber: "+919876543210", Relationship: in.Relationship, IsPrimary: in.IsPrimary}, nil
}

func (s *stubEmergencyService) ListContacts(ctx context.Context) ([]*entities.EmergencyContact, error) {
	return s.contacts, s.err
}

func (s *stubEmergencyService) DeleteContact(ctx context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = id
	return nil
}

type stubChatService struct {
	result *services.ChatResult
	err    error
	calls  int
}

func (s *stubChatService) Process(ctx context.Context, message string) (*services.ChatResult, error) {
	s.calls++
	return s.result, s.err
}

type stubRecordService struct {
	receipt *entities.LedgerReceipt
	record  *entities.LedgerRecord
	valid   bool
	err     error
	created services.CreateRecordInput
	keys    []string
}

func (s *stubRecordService) Create(ctx context.Context, in services.CreateRecordInput) (*services.RecordReceipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = in
	return &services.RecordReceipt{LedgerReceipt: *s.receipt, ReportHash: "abc"}, nil
}

func (s *stubRecordService) Get(ctx context.Context, patientID, reportHash string) (*entities.LedgerRecord, error) {
	s.keys = append(s.keys, patientID+"/"+reportHash)
	return s.record, s.err
}

func (s *stubRecordService) Update(ctx context.Context, patientID, reportHash string, in services.UpdateRecordInput) (*entities.LedgerReceipt, error) {
	s.keys = append(s.keys, patientID+"/"+reportHash)
	return s.receipt, s.err
}

func (s *stubRecordService) Invalidate(ctx context.Context, patientID, reportHash string) (*entities.LedgerReceipt, error) {
	s.keys = append(s.keys, patientID+"/"+reportHash)
	return s.receipt, s.err
}

func (s *stubRecordService) Verify(ctx context.Context, patientID, reportHash string) (bool, error) {
	s.keys = append(s.keys, patientID+"/"+reportHash)
	return s.valid, s.err
}
