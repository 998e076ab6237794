package services

import (
	"context"
	"strings"
	"time"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
	"github.com/eswasthya/portal/backend/pkg/recordhash"
)

// CreateRecordInput is a request to store a medical record on the ledger
type CreateRecordInput struct {
	PatientID  string `json:"patient_id" validate:"required,max=128"`
	ReportData string `json:"report_data" validate:"required"`
}

// UpdateRecordInput replaces the payload of an existing record
type UpdateRecordInput struct {
	ReportData string `json:"report_data" validate:"required"`
}

// RecordReceipt is the confirmed result of a ledger mutation
type RecordReceipt struct {
	entities.LedgerReceipt
	ReportHash string
}

// MedicalRecordService stores medical record metadata on the ledger
type MedicalRecordService struct {
	ledger    providers.Ledger
	locker    providers.RecordLocker
	txTimeout time.Duration
}

// NewMedicalRecordService creates a new medical record service
func NewMedicalRecordService(ledger providers.Ledger, locker providers.RecordLocker, txTimeout time.Duration) *MedicalRecordService {
	if txTimeout <= 0 {
		txTimeout = 60 * time.Second
	}
	return &MedicalRecordService{ledger: ledger, locker: locker, txTimeout: txTimeout}
}

// Create hashes the payload with the patient id and stores the record under that hash
func (s *MedicalRecordService) Create(ctx context.Context, in CreateRecordInput) (*RecordReceipt, error) {
	in.PatientID = strings.TrimSpace(in.PatientID)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	hash := recordhash.Hash(in.PatientID, in.ReportData)

	var receipt *entities.LedgerReceipt
	err := s.mutate(ctx, in.PatientID, hash, func(ctx context.Context) error {
		var err error
		receipt, err = s.ledger.Store(ctx, in.PatientID, hash, in.ReportData)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("report_hash", hash).
		Str("tx", receipt.TransactionHash).
		Uint64("block", receipt.BlockNumber).
		Msg("medical record stored")

	return &RecordReceipt{LedgerReceipt: *receipt, ReportHash: hash}, nil
}

// Get reads a record
func (s *MedicalRecordService) Get(ctx context.Context, patientID, reportHash string) (*entities.LedgerRecord, error) {
	if err := checkRecordKey(patientID, reportHash); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	return s.ledger.Get(ctx, patientID, reportHash)
}

// Update replaces the payload of a record, keeping its key and validity
func (s *MedicalRecordService) Update(ctx context.Context, patientID, reportHash string, in UpdateRecordInput) (*entities.LedgerReceipt, error) {
	if err := checkRecordKey(patientID, reportHash); err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var receipt *entities.LedgerReceipt
	err := s.mutate(ctx, patientID, reportHash, func(ctx context.Context) error {
		var err error
		receipt, err = s.ledger.Update(ctx, patientID, reportHash, in.ReportData)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Invalidate marks a record as no longer valid
func (s *MedicalRecordService) Invalidate(ctx context.Context, patientID, reportHash string) (*entities.LedgerReceipt, error) {
	if err := checkRecordKey(patientID, reportHash); err != nil {
		return nil, err
	}

	var receipt *entities.LedgerReceipt
	err := s.mutate(ctx, patientID, reportHash, func(ctx context.Context) error {
		var err error
		receipt, err = s.ledger.Invalidate(ctx, patientID, reportHash)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Verify reports whether a record exists and is still valid
func (s *MedicalRecordService) Verify(ctx context.Context, patientID, reportHash string) (bool, error) {
	if err := checkRecordKey(patientID, reportHash); err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	return s.ledger.Verify(ctx, patientID, reportHash)
}

// mutate runs fn holding the record lock, bounded by the transaction timeout.
// Lock wait counts against the same deadline.
func (s *MedicalRecordService) mutate(ctx context.Context, patientID, reportHash string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	if s.locker != nil {
		// hashes are fixed width so the key is unambiguous
		release, err := s.locker.Lock(ctx, reportHash+":"+patientID)
		if err != nil {
			return err
		}
		defer release()
	}
	return fn(ctx)
}

// checkRecordKey rejects keys that cannot address a stored record
func checkRecordKey(patientID, reportHash string) error {
	if strings.TrimSpace(patientID) == "" || !recordhash.Valid(reportHash) {
		return apperrors.NewNotFoundError("Record not found")
	}
	return nil
}
