package services_test

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
)

type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, report *entities.MedicalReport) error {
	return m.Called(ctx, report).Error(0)
}

func (m *MockReportRepository) GetByID(ctx context.Context, id string) (*entities.MedicalReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MedicalReport), args.Error(1)
}

func (m *MockReportRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockAnalysisRepository struct {
	mock.Mock
}

func (m *MockAnalysisRepository) Create(ctx context.Context, analysis *entities.ReportAnalysis) error {
	return m.Called(ctx, analysis).Error(0)
}

func (m *MockAnalysisRepository) GetByReportID(ctx context.Context, reportID string) (*entities.ReportAnalysis, error) {
	args := m.Called(ctx, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReportAnalysis), args.Error(1)
}

// MockStorage records saved payloads so tests can inspect them
type MockStorage struct {
	mock.Mock
	saved map[string][]byte
}

func (m *MockStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	data, _ := io.ReadAll(r)
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[key] = data
	return m.Called(ctx, key, contentType).Error(0)
}

func (m *MockStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockStorage) URL(key string) string {
	return "/media/" + key
}

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, report *entities.MedicalReport) entities.AnalysisResult {
	return m.Called(ctx, report).Get(0).(entities.AnalysisResult)
}

type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) Create(ctx context.Context, contact *entities.EmergencyContact) error {
	return m.Called(ctx, contact).Error(0)
}

func (m *MockContactRepository) List(ctx context.Context) ([]*entities.EmergencyContact, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.EmergencyContact), args.Error(1)
}

func (m *MockContactRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockAlertRepository struct {
	mock.Mock
}

func (m *MockAlertRepository) Create(ctx context.Context, alert *entities.EmergencyAlert) error {
	return m.Called(ctx, alert).Error(0)
}

func (m *MockAlertRepository) UpdateStatus(ctx context.Context, id string, status entities.AlertStatus, message string) error {
	return m.Called(ctx, id, status, message).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyContacts(ctx context.Context, alert *entities.EmergencyAlert, contacts []*entities.EmergencyContact) (int, error) {
	args := m.Called(ctx, alert, contacts)
	return args.Int(0), args.Error(1)
}

type MockAlertBus struct {
	mock.Mock
}

func (m *MockAlertBus) Publish(ctx context.Context, channel string, event *entities.AlertEvent) error {
	return m.Called(ctx, channel, event).Error(0)
}

func (m *MockAlertBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AlertEvent, error) {
	args := m.Called(ctx, channel)
	return args.Get(0).(<-chan *entities.AlertEvent), args.Error(1)
}

func (m *MockAlertBus) Unsubscribe(ctx context.Context, channel string) error {
	return m.Called(ctx, channel).Error(0)
}

func (m *MockAlertBus) Close() error {
	return m.Called().Error(0)
}

type MockCompletion struct {
	mock.Mock
}

func (m *MockCompletion) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Store(ctx context.Context, patientID, reportHash, reportData string) (*entities.LedgerReceipt, error) {
	args := m.Called(ctx, patientID, reportHash, reportData)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerReceipt), args.Error(1)
}

func (m *MockLedger) Get(ctx context.Context, patientID, reportHash string) (*entities.LedgerRecord, error) {
	args := m.Called(ctx, patientID, reportHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerRecord), args.Error(1)
}

func (m *MockLedger) Update(ctx context.Context, patientID, reportHash, reportData string) (*entities.LedgerReceipt, error) {
	args := m.Called(ctx, patientID, reportHash, reportData)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerReceipt), args.Error(1)
}

func (m *MockLedger) Invalidate(ctx context.Context, patientID, reportHash string) (*entities.LedgerReceipt, error) {
	args := m.Called(ctx, patientID, reportHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerReceipt), args.Error(1)
}

func (m *MockLedger) Verify(ctx context.Context, patientID, reportHash string) (bool, error) {
	args := m.Called(ctx, patientID, reportHash)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) Close() error {
	return nil
}

// countingLocker hands out locks without blocking and counts releases
type countingLocker struct {
	keys     []string
	released int
	err      error
}

func (l *countingLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func() { l.released++ }, nil
}
