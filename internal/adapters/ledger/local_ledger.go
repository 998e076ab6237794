package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

const (
	keyLatestHeight = "height_latest"
	genesisPrevHash = "0000000000000000000000000000000000000000000000000000000000000000"
)

// Block operations
const (
	OpGenesis    = "genesis"
	OpStore      = "store"
	OpUpdate     = "update"
	OpInvalidate = "invalidate"
)

// Block is one entry of the local hash chain. Every mutation appends a block.
type Block struct {
	Index       uint64 `json:"index"`
	PrevHash    string `json:"prev_hash"`
	Timestamp   string `json:"timestamp"`
	Operation   string `json:"operation"`
	PatientID   string `json:"patient_id,omitempty"`
	ReportHash  string `json:"report_hash,omitempty"`
	PayloadHash string `json:"payload_hash,omitempty"`
	BlockHash   string `json:"block_hash"`
}

func (b *Block) computeHash() string {
	header := strings.Join([]string{
		strconv.FormatUint(b.Index, 10),
		b.PrevHash,
		b.Timestamp,
		b.Operation,
		b.PatientID,
		b.ReportHash,
		b.PayloadHash,
	}, "|")
	sum := sha256.Sum256([]byte(header))
	return hex.EncodeToString(sum[:])
}

type storedRecord struct {
	PatientID  string `json:"patient_id"`
	ReportHash string `json:"report_hash"`
	ReportData string `json:"report_data"`
	Timestamp  int64  `json:"timestamp"`
	IsValid    bool   `json:"is_valid"`
}

// LocalLedger is a single-node ledger persisted in LevelDB. Records live
// under record keys; every mutation is also appended to a hash chain of
// blocks so the history can be audited with VerifyChain.
type LocalLedger struct {
	db  *leveldb.DB
	mu  sync.Mutex
	now func() time.Time
}

var _ providers.Ledger = (*LocalLedger)(nil)

// NewLocalLedger opens (or creates) a ledger database at path
func NewLocalLedger(path string) (*LocalLedger, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open local ledger: %w", err)
	}
	l, err := newLocalLedger(db, time.Now)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("path", path).Msg("local ledger opened")
	return l, nil
}

// NewLocalLedgerWithStorage opens a ledger on an arbitrary goleveldb storage (e.g. in memory)
func NewLocalLedgerWithStorage(stor storage.Storage, now func() time.Time) (*LocalLedger, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, fmt.Errorf("open local ledger: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return newLocalLedger(db, now)
}

func newLocalLedger(db *leveldb.DB, now func() time.Time) (*LocalLedger, error) {
	l := &LocalLedger{db: db, now: now}
	if _, ok, err := l.height(); err != nil {
		return nil, err
	} else if !ok {
		genesis := Block{
			Index:     0,
			PrevHash:  genesisPrevHash,
			Timestamp: now().UTC().Format(time.RFC3339Nano),
			Operation: OpGenesis,
		}
		genesis.BlockHash = genesis.computeHash()
		batch := new(leveldb.Batch)
		if err := putBlock(batch, genesis); err != nil {
			return nil, err
		}
		if err := l.db.Write(batch, nil); err != nil {
			return nil, fmt.Errorf("write genesis block: %w", err)
		}
	}
	return l, nil
}

// Store writes a new record. Storing an existing key is a conflict.
func (l *LocalLedger) Store(ctx context.Context, patientID, reportHash, reportData string) (*entities.LedgerReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromUpstream("ledger store cancelled", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.getRecord(patientID, reportHash); err == nil {
		return nil, apperrors.NewConflictError("Record already exists")
	} else if !apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}

	rec := storedRecord{
		PatientID:  patientID,
		ReportHash: reportHash,
		ReportData: reportData,
		Timestamp:  l.now().Unix(),
		IsValid:    true,
	}
	return l.commit(OpStore, rec)
}

// Get reads a record
func (l *LocalLedger) Get(ctx context.Context, patientID, reportHash string) (*entities.LedgerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromUpstream("ledger read cancelled", err)
	}
	rec, err := l.getRecord(patientID, reportHash)
	if err != nil {
		return nil, err
	}
	return &entities.LedgerRecord{
		PatientID:  rec.PatientID,
		ReportHash: rec.ReportHash,
		ReportData: rec.ReportData,
		Timestamp:  time.Unix(rec.Timestamp, 0).UTC(),
		IsValid:    rec.IsValid,
	}, nil
}

// Update replaces the payload of an existing record; validity is unchanged.
func (l *LocalLedger) Update(ctx context.Context, patientID, reportHash, reportData string) (*entities.LedgerReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromUpstream("ledger update cancelled", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.getRecord(patientID, reportHash)
	if err != nil {
		return nil, err
	}
	rec.ReportData = reportData
	rec.Timestamp = l.now().Unix()
	return l.commit(OpUpdate, *rec)
}

// Invalidate marks an existing record invalid
func (l *LocalLedger) Invalidate(ctx context.Context, patientID, reportHash string) (*entities.LedgerReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromUpstream("ledger invalidate cancelled", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.getRecord(patientID, reportHash)
	if err != nil {
		return nil, err
	}
	rec.IsValid = false
	return l.commit(OpInvalidate, *rec)
}

// Verify reports whether the record is still valid
func (l *LocalLedger) Verify(ctx context.Context, patientID, reportHash string) (bool, error) {
	rec, err := l.Get(ctx, patientID, reportHash)
	if err != nil {
		return false, err
	}
	return rec.IsValid, nil
}

// Height returns the index of the latest block
func (l *LocalLedger) Height() (uint64, error) {
	h, ok, err := l.height()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.New("ledger has no blocks")
	}
	return h, nil
}

// Block returns the block at index
func (l *LocalLedger) Block(index uint64) (*Block, error) {
	data, err := l.db.Get(blockKey(index), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("block %d not found", index))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("read block", err)
	}
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, apperrors.NewInternalError("decode block", err)
	}
	return &b, nil
}

// VerifyChain re-hashes every block and checks the links between them.
// It returns the number of blocks checked.
func (l *LocalLedger) VerifyChain(ctx context.Context) (uint64, error) {
	height, err := l.Height()
	if err != nil {
		return 0, err
	}
	prevHash := genesisPrevHash
	for i := uint64(0); i <= height; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		b, err := l.Block(i)
		if err != nil {
			return i, err
		}
		if b.Index != i {
			return i, fmt.Errorf("block %d: stored index %d", i, b.Index)
		}
		if b.PrevHash != prevHash {
			return i, fmt.Errorf("block %d: broken link to previous block", i)
		}
		if b.computeHash() != b.BlockHash {
			return i, fmt.Errorf("block %d: hash mismatch", i)
		}
		prevHash = b.BlockHash
	}
	return height + 1, nil
}

// Close closes the database
func (l *LocalLedger) Close() error {
	return l.db.Close()
}

// commit appends a block for rec and writes both atomically. Caller holds l.mu.
func (l *LocalLedger) commit(op string, rec storedRecord) (*entities.LedgerReceipt, error) {
	start := time.Now()
	height, ok, err := l.height()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewInternalError("ledger has no genesis block", nil)
	}
	prev, err := l.Block(height)
	if err != nil {
		return nil, err
	}

	payloadHash := sha256.Sum256([]byte(rec.ReportData))
	block := Block{
		Index:       height + 1,
		PrevHash:    prev.BlockHash,
		Timestamp:   l.now().UTC().Format(time.RFC3339Nano),
		Operation:   op,
		PatientID:   rec.PatientID,
		ReportHash:  rec.ReportHash,
		PayloadHash: hex.EncodeToString(payloadHash[:]),
	}
	block.BlockHash = block.computeHash()

	recData, err := json.Marshal(rec)
	if err != nil {
		return nil, apperrors.NewInternalError("encode record", err)
	}

	batch := new(leveldb.Batch)
	batch.Put(recordKey(rec.PatientID, rec.ReportHash), recData)
	if err := putBlock(batch, block); err != nil {
		return nil, err
	}
	if err := l.db.Write(batch, nil); err != nil {
		recordLedgerMetric(context.Background(), "local", op, time.Since(start), err)
		return nil, apperrors.NewExternalError("ledger write failed", err)
	}

	recordLedgerMetric(context.Background(), "local", op, time.Since(start), nil)
	return &entities.LedgerReceipt{
		TransactionHash: "0x" + block.BlockHash,
		BlockNumber:     block.Index,
	}, nil
}

func (l *LocalLedger) getRecord(patientID, reportHash string) (*storedRecord, error) {
	data, err := l.db.Get(recordKey(patientID, reportHash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Record not found")
	}
	if err != nil {
		return nil, apperrors.NewExternalError("ledger read failed", err)
	}
	var rec storedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, apperrors.NewInternalError("decode record", err)
	}
	return &rec, nil
}

func (l *LocalLedger) height() (uint64, bool, error) {
	data, err := l.db.Get([]byte(keyLatestHeight), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.NewExternalError("ledger read failed", err)
	}
	h, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false, apperrors.NewInternalError("corrupt ledger height", err)
	}
	return h, true, nil
}

func putBlock(batch *leveldb.Batch, b Block) error {
	data, err := json.Marshal(b)
	if err != nil {
		return apperrors.NewInternalError("encode block", err)
	}
	batch.Put(blockKey(b.Index), data)
	batch.Put([]byte(keyLatestHeight), []byte(strconv.FormatUint(b.Index, 10)))
	return nil
}

func blockKey(index uint64) []byte {
	return []byte(fmt.Sprintf("block_%d", index))
}

// recordKey length-prefixes the patient id so ids containing the separator
// cannot collide.
func recordKey(patientID, reportHash string) []byte {
	return []byte(fmt.Sprintf("record_%d_%s_%s", len(patientID), patientID, reportHash))
}
