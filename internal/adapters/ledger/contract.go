package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
)

// MedicalRecordABI is the interface of the deployed MedicalRecord contract.
const MedicalRecordABI = `[
  {"type":"function","name":"storeRecord","stateMutability":"nonpayable",
   "inputs":[{"name":"patientId","type":"string"},{"name":"reportHash","type":"string"},{"name":"reportData","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"updateRecord","stateMutability":"nonpayable",
   "inputs":[{"name":"patientId","type":"string"},{"name":"reportHash","type":"string"},{"name":"newReportData","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"invalidateRecord","stateMutability":"nonpayable",
   "inputs":[{"name":"patientId","type":"string"},{"name":"reportHash","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"getRecord","stateMutability":"view",
   "inputs":[{"name":"patientId","type":"string"},{"name":"reportHash","type":"string"}],
   "outputs":[{"name":"","type":"string"},{"name":"","type":"string"},{"name":"","type":"string"},{"name":"","type":"uint256"},{"name":"","type":"bool"}]},
  {"type":"function","name":"isRecordValid","stateMutability":"view",
   "inputs":[{"name":"patientId","type":"string"},{"name":"reportHash","type":"string"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

const (
	methodStore      = "storeRecord"
	methodUpdate     = "updateRecord"
	methodInvalidate = "invalidateRecord"
	methodGet        = "getRecord"
	methodIsValid    = "isRecordValid"
)

// ParseABI parses the built-in MedicalRecord ABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(MedicalRecordABI))
}

// Artifact is the subset of a truffle build artifact the ledger needs
type Artifact struct {
	ABI     abi.ABI
	Address common.Address
}

type artifactFile struct {
	ABI      json.RawMessage `json:"abi"`
	Networks json.RawMessage `json:"networks"`
}

// LoadArtifact reads a truffle build artifact and returns its ABI together
// with the address of the most recently added network deployment.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract artifact: %w", err)
	}
	return parseArtifact(data)
}

func parseArtifact(data []byte) (*Artifact, error) {
	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode contract artifact: %w", err)
	}
	if len(file.ABI) == 0 {
		return nil, errors.New("contract artifact has no abi")
	}
	parsed, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	for _, m := range []string{methodStore, methodUpdate, methodInvalidate, methodGet, methodIsValid} {
		if _, ok := parsed.Methods[m]; !ok {
			return nil, fmt.Errorf("contract abi is missing %s", m)
		}
	}

	address, err := lastNetworkAddress(file.Networks)
	if err != nil {
		return nil, err
	}
	return &Artifact{ABI: parsed, Address: address}, nil
}

// lastNetworkAddress walks the networks object in document order; the last
// entry is the latest deployment.
func lastNetworkAddress(raw json.RawMessage) (common.Address, error) {
	if len(raw) == 0 {
		return common.Address{}, errors.New("contract artifact has no deployments")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return common.Address{}, errors.New("contract artifact networks must be an object")
	}

	var last string
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return common.Address{}, err
		}
		var network struct {
			Address string `json:"address"`
		}
		if err := dec.Decode(&network); err != nil {
			return common.Address{}, fmt.Errorf("decode network entry: %w", err)
		}
		if network.Address != "" {
			last = network.Address
		}
	}
	if last == "" {
		return common.Address{}, errors.New("contract artifact has no deployments")
	}
	if !common.IsHexAddress(last) {
		return common.Address{}, fmt.Errorf("invalid contract address %q", last)
	}
	return common.HexToAddress(last), nil
}

// decodeRecord converts getRecord outputs into a LedgerRecord. An empty
// patient id means the contract returned the zero value for a missing key.
func decodeRecord(out []interface{}) (*entities.LedgerRecord, bool, error) {
	if len(out) != 5 {
		return nil, false, fmt.Errorf("getRecord returned %d values", len(out))
	}
	patientID, ok1 := out[0].(string)
	reportHash, ok2 := out[1].(string)
	reportData, ok3 := out[2].(string)
	ts, ok4 := out[3].(*big.Int)
	valid, ok5 := out[4].(bool)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return nil, false, errors.New("getRecord returned unexpected types")
	}
	if patientID == "" {
		return nil, false, nil
	}
	return &entities.LedgerRecord{
		PatientID:  patientID,
		ReportHash: reportHash,
		ReportData: reportData,
		Timestamp:  time.Unix(ts.Int64(), 0).UTC(),
		IsValid:    valid,
	}, true, nil
}
