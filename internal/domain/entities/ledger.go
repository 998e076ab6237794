package entities

import "time"

// LedgerRecord is a medical record as held by the ledger, keyed by
// (PatientID, ReportHash).
type LedgerRecord struct {
	PatientID  string    `json:"patient_id"`
	ReportHash string    `json:"report_hash"`
	ReportData string    `json:"report_data"`
	Timestamp  time.Time `json:"timestamp"`
	IsValid    bool      `json:"is_valid"`
}

// LedgerReceipt identifies the confirmed transaction behind a mutation
type LedgerReceipt struct {
	TransactionHash string `json:"transaction_hash"`
	BlockNumber     uint64 `json:"block_number"`
}
