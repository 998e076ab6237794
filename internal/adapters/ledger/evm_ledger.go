package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

// Backend is what the EVM ledger needs from a node connection.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// EVMConfig holds the contract binding parameters
type EVMConfig struct {
	Address  common.Address
	ABI      abi.ABI
	Key      *ecdsa.PrivateKey
	ChainID  *big.Int
	GasLimit uint64
}

// EVMLedger stores medical records in the MedicalRecord smart contract.
type EVMLedger struct {
	backend  Backend
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	gasLimit uint64
	closer   func()

	// serializes nonce assignment for the single signing account
	submitMu sync.Mutex
}

// NewEVMLedger binds the contract at cfg.Address. closer, when set, is run by Close.
func NewEVMLedger(backend Backend, cfg EVMConfig, closer func()) (*EVMLedger, error) {
	if backend == nil {
		return nil, errors.New("ledger backend is required")
	}
	if cfg.Key == nil {
		return nil, errors.New("ledger signing key is required")
	}
	if cfg.ChainID == nil {
		return nil, errors.New("ledger chain id is required")
	}
	if cfg.Address == (common.Address{}) {
		return nil, errors.New("ledger contract address is required")
	}

	return &EVMLedger{
		backend:  backend,
		contract: bind.NewBoundContract(cfg.Address, cfg.ABI, backend, backend, backend),
		key:      cfg.Key,
		chainID:  cfg.ChainID,
		gasLimit: cfg.GasLimit,
		closer:   closer,
	}, nil
}

var _ providers.Ledger = (*EVMLedger)(nil)

// Store writes a new record. Storing an existing key is a conflict.
func (l *EVMLedger) Store(ctx context.Context, patientID, reportHash, reportData string) (*entities.LedgerReceipt, error) {
	if _, found, err := l.lookup(ctx, patientID, reportHash); err != nil {
		return nil, err
	} else if found {
		return nil, apperrors.NewConflictError("Record already exists")
	}
	return l.transact(ctx, methodStore, patientID, reportHash, reportData)
}

// Get reads a record.
func (l *EVMLedger) Get(ctx context.Context, patientID, reportHash string) (*entities.LedgerRecord, error) {
	record, found, err := l.lookup(ctx, patientID, reportHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewNotFoundError("Record not found")
	}
	return record, nil
}

// Update replaces the payload of an existing record.
func (l *EVMLedger) Update(ctx context.Context, patientID, reportHash, reportData string) (*entities.LedgerReceipt, error) {
	if err := l.mustExist(ctx, patientID, reportHash); err != nil {
		return nil, err
	}
	return l.transact(ctx, methodUpdate, patientID, reportHash, reportData)
}

// Invalidate marks an existing record invalid.
func (l *EVMLedger) Invalidate(ctx context.Context, patientID, reportHash string) (*entities.LedgerReceipt, error) {
	if err := l.mustExist(ctx, patientID, reportHash); err != nil {
		return nil, err
	}
	return l.transact(ctx, methodInvalidate, patientID, reportHash)
}

// Verify reports the record's validity flag. A false answer for a key the
// contract does not know is reported as not found.
func (l *EVMLedger) Verify(ctx context.Context, patientID, reportHash string) (bool, error) {
	start := time.Now()
	var out []interface{}
	err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodIsValid, patientID, reportHash)
	recordLedgerMetric(ctx, "evm", methodIsValid, time.Since(start), err)
	if err != nil {
		if isRevert(err) {
			return false, apperrors.NewNotFoundError("Record not found")
		}
		return false, apperrors.FromUpstream("ledger verify failed", err)
	}
	if len(out) != 1 {
		return false, apperrors.NewExternalError("ledger verify failed", errors.New("unexpected isRecordValid result"))
	}
	valid, ok := out[0].(bool)
	if !ok {
		return false, apperrors.NewExternalError("ledger verify failed", errors.New("unexpected isRecordValid result"))
	}
	if valid {
		return true, nil
	}
	if err := l.mustExist(ctx, patientID, reportHash); err != nil {
		return false, err
	}
	return false, nil
}

// Close releases the node connection
func (l *EVMLedger) Close() error {
	if l.closer != nil {
		l.closer()
	}
	return nil
}

func (l *EVMLedger) mustExist(ctx context.Context, patientID, reportHash string) error {
	_, found, err := l.lookup(ctx, patientID, reportHash)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.NewNotFoundError("Record not found")
	}
	return nil
}

func (l *EVMLedger) lookup(ctx context.Context, patientID, reportHash string) (*entities.LedgerRecord, bool, error) {
	start := time.Now()
	var out []interface{}
	err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodGet, patientID, reportHash)
	recordLedgerMetric(ctx, "evm", methodGet, time.Since(start), err)
	if err != nil {
		if isRevert(err) {
			return nil, false, nil
		}
		return nil, false, apperrors.FromUpstream("ledger read failed", err)
	}
	record, found, err := decodeRecord(out)
	if err != nil {
		return nil, false, apperrors.NewExternalError("ledger read failed", err)
	}
	return record, found, nil
}

// transact submits one contract call and waits for it to be mined.
func (l *EVMLedger) transact(ctx context.Context, method string, params ...interface{}) (*entities.LedgerReceipt, error) {
	ctx, span := observability.StartSpan(ctx, "ledger."+method)
	defer span.End()
	start := time.Now()

	opts, err := bind.NewKeyedTransactorWithChainID(l.key, l.chainID)
	if err != nil {
		return nil, apperrors.NewInternalError("ledger signer unavailable", err)
	}
	opts.Context = ctx
	opts.GasLimit = l.gasLimit

	l.submitMu.Lock()
	tx, err := l.contract.Transact(opts, method, params...)
	l.submitMu.Unlock()
	if err != nil {
		observability.RecordError(span, err)
		recordLedgerMetric(ctx, "evm", method, time.Since(start), err)
		if isRevert(err) {
			return nil, apperrors.NewExternalError("ledger rejected transaction", err)
		}
		return nil, apperrors.FromUpstream("ledger transaction failed", err)
	}

	receipt, err := bind.WaitMined(ctx, l.backend, tx)
	if err != nil {
		observability.RecordError(span, err)
		recordLedgerMetric(ctx, "evm", method, time.Since(start), err)
		return nil, apperrors.FromUpstream("ledger transaction not confirmed", err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		err := errors.New("transaction reverted")
		recordLedgerMetric(ctx, "evm", method, time.Since(start), err)
		return nil, apperrors.NewExternalError("ledger rejected transaction", err)
	}

	recordLedgerMetric(ctx, "evm", method, time.Since(start), nil)
	return &entities.LedgerReceipt{
		TransactionHash: receipt.TxHash.Hex(),
		BlockNumber:     receipt.BlockNumber.Uint64(),
	}, nil
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "revert")
}
