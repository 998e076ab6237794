package handlers

import (
	"context"
	"net/http"

	"github.com/eswasthya/portal/backend/internal/application/services"
	"github.com/eswasthya/portal/backend/internal/domain/entities"
)

// MedicalRecordOperations is the ledger-backed record surface used by the handler
type MedicalRecordOperations interface {
	Create(ctx context.Context, in services.CreateRecordInput) (*services.RecordReceipt, error)
	Get(ctx context.Context, patientID, reportHash string) (*entities.LedgerRecord, error)
	Update(ctx context.Context, patientID, reportHash string, in services.UpdateRecordInput) (*entities.LedgerReceipt, error)
	Invalidate(ctx context.Context, patientID, reportHash string) (*entities.LedgerReceipt, error)
	Verify(ctx context.Context, patientID, reportHash string) (bool, error)
}

// MedicalRecordHandler exposes medical record metadata stored on the ledger
type MedicalRecordHandler struct {
	records MedicalRecordOperations
}

// NewMedicalRecordHandler creates a new medical record handler
func NewMedicalRecordHandler(records MedicalRecordOperations) *MedicalRecordHandler {
	return &MedicalRecordHandler{records: records}
}

type receiptResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transaction_hash"`
	BlockNumber     uint64 `json:"block_number"`
	ReportHash      string `json:"report_hash,omitempty"`
}

type recordResponse struct {
	Success bool                   `json:"success"`
	Data    *entities.LedgerRecord `json:"data"`
}

type verifyResponse struct {
	Success bool `json:"success"`
	IsValid bool `json:"is_valid"`
}

// CreateRecord handles POST /api/medical-records/
func (h *MedicalRecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var in services.CreateRecordInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleRecordError(w, r, err)
		return
	}

	receipt, err := h.records.Create(r.Context(), in)
	if err != nil {
		handleRecordError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, receiptResponse{
		Success:         true,
		TransactionHash: receipt.TransactionHash,
		BlockNumber:     receipt.BlockNumber,
		ReportHash:      receipt.ReportHash,
	})
}

// GetRecord handles GET /api/medical-records/{patient_id}/{report_hash}/
func (h *MedicalRecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.records.Get(r.Context(), r.PathValue("patient_id"), r.PathValue("report_hash"))
	if err != nil {
		handleRecordError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, recordResponse{Success: true, Data: record})
}

// UpdateRecord handles PUT /api/medical-records/{patient_id}/{report_hash}/
func (h *MedicalRecordHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var in services.UpdateRecordInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleRecordError(w, r, err)
		return
	}

	receipt, err := h.records.Update(r.Context(), r.PathValue("patient_id"), r.PathValue("report_hash"), in)
	if err != nil {
		handleRecordError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, receiptResponse{
		Success:         true,
		TransactionHash: receipt.TransactionHash,
		BlockNumber:     receipt.BlockNumber,
	})
}

// InvalidateRecord handles DELETE /api/medical-records/{patient_id}/{report_hash}/
func (h *MedicalRecordHandler) InvalidateRecord(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.records.Invalidate(r.Context(), r.PathValue("patient_id"), r.PathValue("report_hash"))
	if err != nil {
		handleRecordError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, receiptResponse{
		Success:         true,
		TransactionHash: receipt.TransactionHash,
		BlockNumber:     receipt.BlockNumber,
	})
}

// VerifyRecord handles GET /api/medical-records/{patient_id}/{report_hash}/verify/
func (h *MedicalRecordHandler) VerifyRecord(w http.ResponseWriter, r *http.Request) {
	valid, err := h.records.Verify(r.Context(), r.PathValue("patient_id"), r.PathValue("report_hash"))
	if err != nil {
		handleRecordError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, verifyResponse{Success: true, IsValid: valid})
}
