package routes_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eswasthya/portal/backend/internal/adapters/storage"
	"github.com/eswasthya/portal/backend/internal/api/handlers"
	"github.com/eswasthya/portal/backend/internal/api/middleware"
	"github.com/eswasthya/portal/backend/internal/api/routes"
	"github.com/eswasthya/portal/backend/internal/application/services"
	"github.com/eswasthya/portal/backend/internal/domain/entities"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

type fakeReports struct{}

func (fakeReports) Upload(ctx context.Context, in services.UploadInput) (*services.UploadResult, error) {
	return nil, apperrors.NewValidationError("Uploaded file is empty")
}

func (fakeReports) GetAnalysis(ctx context.Context, id string) (*entities.ReportAnalysis, error) {
	if id == "missing" {
		return nil, apperrors.NewNotFoundError("Report not found")
	}
	return &entities.ReportAnalysis{ReportID: id, AnalysisText: "ok"}, nil
}

type fakeEmergency struct {
	deleted []string
}

func (f *fakeEmergency) TriggerAlert(ctx context.Context, in services.TriggerAlertInput) (*entities.EmergencyAlert, error) {
	return &entities.EmergencyAlert{ID: "a1", Message: entities.AlertType(in.Type).CompletionMessage()}, nil
}

func (f *fakeEmergency) AddContact(ctx context.Context, in services.AddContactInput) (*entities.EmergencyContact, error) {
	return &entities.EmergencyContact{ID: "c1", Name: in.Name}, nil
}

func (f *fakeEmergency) ListContacts(ctx context.Context) ([]*entities.EmergencyContact, error) {
	return nil, nil
}

func (f *fakeEmergency) DeleteContact(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeChat struct{}

func (fakeChat) Process(ctx context.Context, message string) (*services.ChatResult, error) {
	return &services.ChatResult{Response: "hi"}, nil
}

type fakeRecords struct {
	lastKey string
}

func (f *fakeRecords) Create(ctx context.Context, in services.CreateRecordInput) (*services.RecordReceipt, error) {
	return &services.RecordReceipt{ReportHash: "h"}, nil
}

func (f *fakeRecords) Get(ctx context.Context, p, h string) (*entities.LedgerRecord, error) {
	f.lastKey = "get:" + p + "/" + h
	return &entities.LedgerRecord{PatientID: p, ReportHash: h}, nil
}

func (f *fakeRecords) Update(ctx context.Context, p, h string, in services.UpdateRecordInput) (*entities.LedgerReceipt, error) {
	f.lastKey = "update:" + p + "/" + h
	return &entities.LedgerReceipt{}, nil
}

func (f *fakeRecords) Invalidate(ctx context.Context, p, h string) (*entities.LedgerReceipt, error) {
	f.lastKey = "invalidate:" + p + "/" + h
	return &entities.LedgerReceipt{}, nil
}

func (f *fakeRecords) Verify(ctx context.Context, p, h string) (bool, error) {
	f.lastKey = "verify:" + p + "/" + h
	return true, nil
}

type fixture struct {
	handler   http.Handler
	emergency *fakeEmergency
	records   *fakeRecords
}

func newFixture(t *testing.T, limiter *middleware.RateLimiter) *fixture {
	mediaDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(mediaDir, "reports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mediaDir, "reports", "a.pdf"), []byte("%PDF"), 0o644))

	mediaStore, err := storage.NewLocalStorage(mediaDir, "/media/")
	require.NoError(t, err)

	f := &fixture{emergency: &fakeEmergency{}, records: &fakeRecords{}}
	router := routes.NewRouter(routes.Handlers{
		Index:         handlers.NewIndexHandler("test", 10<<20),
		Report:        handlers.NewReportHandler(fakeReports{}, 1<<20),
		Emergency:     handlers.NewEmergencyHandler(f.emergency),
		Chat:          handlers.NewChatHandler(fakeChat{}),
		MedicalRecord: handlers.NewMedicalRecordHandler(f.records),
		Media:         handlers.NewMediaHandler(mediaStore),
	}, limiter, nil, nil)
	f.handler = router.SetupRoutes()
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/upload-report/"},
		{http.MethodGet, "/trigger-emergency/"},
		{http.MethodPut, "/emergency-contacts/"},
		{http.MethodGet, "/emergency-contacts/add/"},
		{http.MethodGet, "/emergency-contacts/c1/"},
		{http.MethodGet, "/chat/process/"},
		{http.MethodPost, "/report-analysis/r1/"},
	} {
		w := f.do(tc.method, tc.path, "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, tc.method+" "+tc.path)
		assert.JSONEq(t, `{"status":"error","message":"Invalid request method"}`, w.Body.String(), tc.path)
		assert.NotEmpty(t, w.Header().Get("Allow"))
	}

	w := f.do(http.MethodPatch, "/api/medical-records/p/h/", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Invalid request method"}`, w.Body.String())
	assert.Equal(t, "DELETE, GET, HEAD, PUT", w.Header().Get("Allow"))
}

func TestRouter_PortalRoutes(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "E-Swasthya+")

	w = f.do(http.MethodGet, "/report-analysis/missing/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"Report not found"}`, w.Body.String())

	w = f.do(http.MethodPost, "/trigger-emergency/", `{"type":"ambulance"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ambulance has been called and is on the way.")

	w = f.do(http.MethodPost, "/emergency-contacts/add/", `{"name":"Asha"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/emergency-contacts/c1/", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/emergency-contacts/c2/delete/", "").Code)
	assert.Equal(t, []string{"c1", "c2"}, f.emergency.deleted)

	w = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, "OK", w.Body.String())

	w = f.do(http.MethodGet, "/no-such-page/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"Not found"}`, w.Body.String())
}

func TestRouter_MedicalRecordRoutes(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/medical-records/", `{"patient_id":"p","report_data":"d"}`).Code)

	f.do(http.MethodGet, "/api/medical-records/p1/h1/", "")
	assert.Equal(t, "get:p1/h1", f.records.lastKey)

	f.do(http.MethodPut, "/api/medical-records/p1/h1/", `{"report_data":"x"}`)
	assert.Equal(t, "update:p1/h1", f.records.lastKey)

	f.do(http.MethodDelete, "/api/medical-records/p1/h1/", "")
	assert.Equal(t, "invalidate:p1/h1", f.records.lastKey)

	w := f.do(http.MethodGet, "/api/medical-records/p1/h1/verify/", "")
	assert.Equal(t, "verify:p1/h1", f.records.lastKey)
	assert.JSONEq(t, `{"success":true,"is_valid":true}`, w.Body.String())
}

func TestRouter_MediaAndRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(nil, "chat", 1, time.Minute)
	f := newFixture(t, limiter)

	w := f.do(http.MethodGet, "/media/reports/a.pdf", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF", w.Body.String())
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/media/reports/", "").Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/chat/process/", `{"message":"hi"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, "/chat/process/", `{"message":"hi"}`).Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/chat/process/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
