package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	// MethodNotAllowedMessage is returned for a known path with the wrong method
	MethodNotAllowedMessage = "Invalid request method"

	maxJSONBodyBytes = 1 << 20
)

// portalError is the error envelope of the portal routes
type portalError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// recordError is the error envelope of /api/medical-records
type recordError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type analysisDTO struct {
	Text            string `json:"text"`
	HealthTips      string `json:"health_tips"`
	YogaSuggestions string `json:"yoga_suggestions"`
}

func newAnalysisDTO(a *entities.ReportAnalysis) analysisDTO {
	return analysisDTO{Text: a.AnalysisText, HealthTips: a.HealthTips, YogaSuggestions: a.Suggestions}
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, portalError{Status: statusError, Message: message})
}

func respondWithRecordError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, recordError{Success: false, Error: message})
}

// RespondMethodNotAllowed writes the portal 405 envelope
func RespondMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, http.StatusMethodNotAllowed, MethodNotAllowedMessage)
}

// RespondRecordMethodNotAllowed writes the medical record 405 envelope
func RespondRecordMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondWithRecordError(w, http.StatusMethodNotAllowed, MethodNotAllowedMessage)
}

// statusForError maps an error to its HTTP status and client-safe message.
// Messages of upstream and internal failures stay generic.
func statusForError(err error) (int, string) {
	appErr, ok := apperrors.As(err)
	if !ok {
		return http.StatusInternalServerError, "Internal server error"
	}
	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest, appErr.Message
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound, appErr.Message
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict, appErr.Message
	case apperrors.ErrorTypeMethodNotAllowed:
		return http.StatusMethodNotAllowed, MethodNotAllowedMessage
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout, appErr.Message
	case apperrors.ErrorTypeExternal, apperrors.ErrorTypeMalformedResponse:
		return http.StatusInternalServerError, appErr.Message
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// handleError logs err and writes the portal envelope
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusForError(err)
	logError(r, status, err)
	respondWithError(w, status, message)
}

// handleSubmissionError is handleError for the form submission routes, which
// answer every failure other than a missing resource with 400. Messages of
// server-side failures stay generic.
func handleSubmissionError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusForError(err)
	logError(r, status, err)
	if status >= http.StatusInternalServerError {
		status = http.StatusBadRequest
	}
	respondWithError(w, status, message)
}

// handleRecordError logs err and writes the medical record envelope
func handleRecordError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusForError(err)
	logError(r, status, err)
	respondWithRecordError(w, status, message)
}

func logError(r *http.Request, status int, err error) {
	logger := observability.LoggerFromContext(r.Context())
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")
}

// decodeJSON reads a bounded JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.NewValidationError("Request body too large")
		}
		return apperrors.NewValidationError("Invalid JSON format")
	}
	return nil
}
