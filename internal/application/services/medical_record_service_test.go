package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eswasthya/portal/backend/internal/application/services"
	"github.com/eswasthya/portal/backend/internal/domain/entities"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
	"github.com/eswasthya/portal/backend/pkg/recordhash"
)

func TestMedicalRecordService_CreateHashesAndLocks(t *testing.T) {
	ledger := new(MockLedger)
	locker := &countingLocker{}
	svc := services.NewMedicalRecordService(ledger, locker, time.Second)

	hash := recordhash.Hash("patient-1", `{"bp":"120/80"}`)
	ledger.On("Store", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), "patient-1", hash, `{"bp":"120/80"}`).
		Return(&entities.LedgerReceipt{TransactionHash: "0xabc", BlockNumber: 7}, nil)

	receipt, err := svc.Create(context.Background(), services.CreateRecordInput{PatientID: " patient-1 ", ReportData: `{"bp":"120/80"}`})
	require.NoError(t, err)

	assert.Equal(t, hash, receipt.ReportHash)
	assert.Equal(t, "0xabc", receipt.TransactionHash)
	assert.Equal(t, uint64(7), receipt.BlockNumber)
	assert.Equal(t, []string{hash + ":patient-1"}, locker.keys)
	assert.Equal(t, 1, locker.released)
}

func TestMedicalRecordService_CreateValidation(t *testing.T) {
	ledger := new(MockLedger)
	svc := services.NewMedicalRecordService(ledger, nil, time.Second)

	_, err := svc.Create(context.Background(), services.CreateRecordInput{PatientID: "", ReportData: "x"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
	assert.Equal(t, "patient_id is required", appErr.Message)

	_, err = svc.Create(context.Background(), services.CreateRecordInput{PatientID: strings.Repeat("p", 129), ReportData: "x"})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))

	ledger.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMedicalRecordService_CreateConflictReleasesLock(t *testing.T) {
	ledger := new(MockLedger)
	locker := &countingLocker{}
	svc := services.NewMedicalRecordService(ledger, locker, time.Second)
	ledger.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apperrors.NewConflictError("Record already exists"))

	_, err := svc.Create(context.Background(), services.CreateRecordInput{PatientID: "p", ReportData: "x"})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConflict))
	assert.Equal(t, 1, locker.released)
}

func TestMedicalRecordService_LockFailureSkipsLedger(t *testing.T) {
	ledger := new(MockLedger)
	locker := &countingLocker{err: apperrors.NewConflictError("Record is being modified, try again")}
	svc := services.NewMedicalRecordService(ledger, locker, time.Second)
	hash := recordhash.Hash("p", "x")

	_, err := svc.Update(context.Background(), "p", hash, services.UpdateRecordInput{ReportData: "y"})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConflict))
	ledger.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMedicalRecordService_UpdateInvalidateGetVerify(t *testing.T) {
	ledger := new(MockLedger)
	svc := services.NewMedicalRecordService(ledger, &countingLocker{}, time.Second)
	hash := recordhash.Hash("p", "x")
	receipt := &entities.LedgerReceipt{TransactionHash: "0x1", BlockNumber: 3}

	ledger.On("Update", mock.Anything, "p", hash, "y").Return(receipt, nil)
	ledger.On("Invalidate", mock.Anything, "p", hash).Return(receipt, nil)
	ledger.On("Get", mock.Anything, "p", hash).Return(&entities.LedgerRecord{PatientID: "p", ReportHash: hash, ReportData: "y"}, nil)
	ledger.On("Verify", mock.Anything, "p", hash).Return(false, nil)

	got, err := svc.Update(context.Background(), "p", hash, services.UpdateRecordInput{ReportData: "y"})
	require.NoError(t, err)
	assert.Equal(t, receipt, got)

	got, err = svc.Invalidate(context.Background(), "p", hash)
	require.NoError(t, err)
	assert.Equal(t, receipt, got)

	record, err := svc.Get(context.Background(), "p", hash)
	require.NoError(t, err)
	assert.Equal(t, "y", record.ReportData)

	valid, err := svc.Verify(context.Background(), "p", hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestMedicalRecordService_MalformedKeyIsNotFound(t *testing.T) {
	ledger := new(MockLedger)
	svc := services.NewMedicalRecordService(ledger, nil, time.Second)

	_, err := svc.Get(context.Background(), "p", "XYZ")
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))

	_, err = svc.Verify(context.Background(), "", recordhash.Hash("p", "x"))
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))

	_, err = svc.Update(context.Background(), "p", "short", services.UpdateRecordInput{ReportData: "y"})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))

	ledger.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestMedicalRecordService_UpdateRequiresData(t *testing.T) {
	svc := services.NewMedicalRecordService(new(MockLedger), nil, time.Second)
	_, err := svc.Update(context.Background(), "p", recordhash.Hash("p", "x"), services.UpdateRecordInput{})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "report_data is required", appErr.Message)
}
