package providers

import (
	"context"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
)

// Ledger is the remote record store for medical record metadata.
// Every record is addressed by (patientID, reportHash). Mutations block until
// the transaction is confirmed and return its receipt.
//
// Implementations return apperrors NOT_FOUND for unknown records, CONFLICT
// when storing a key that already exists, and EXTERNAL or TIMEOUT for node
// failures.
type Ledger interface {
	Store(ctx context.Context, patientID, reportHash, reportData string) (*entities.LedgerReceipt, error)
	Get(ctx context.Context, patientID, reportHash string) (*entities.LedgerRecord, error)
	Update(ctx context.Context, patientID, reportHash, reportData string) (*entities.LedgerReceipt, error)
	Invalidate(ctx context.Context, patientID, reportHash string) (*entities.LedgerReceipt, error)
	Verify(ctx context.Context, patientID, reportHash string) (bool, error)
	Close() error
}

// RecordLocker serializes mutations of a single ledger key across processes.
type RecordLocker interface {
	// Lock blocks until the key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (func(), error)
}
