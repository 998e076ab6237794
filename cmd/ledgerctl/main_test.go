package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/eswasthya/portal/backend/internal/adapters/ledger"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/pkg/config"
	"github.com/eswasthya/portal/backend/pkg/recordhash"
)

// sharedLedger keeps one in-memory ledger open across commands
type sharedLedger struct {
	*ledger.LocalLedger
}

func (sharedLedger) Close() error { return nil }

func newTestOpener(t *testing.T) ledgerOpener {
	t.Helper()
	l, err := ledger.NewLocalLedgerWithStorage(storage.NewMemStorage(), time.Now)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	cfg := &config.LedgerConfig{Backend: config.LedgerBackendLocal, TxTimeout: 5 * time.Second}
	return func(ctx context.Context) (providers.Ledger, *config.LedgerConfig, error) {
		return sharedLedger{l}, cfg, nil
	}
}

func run(t *testing.T, open ledgerOpener, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashCmd(t *testing.T) {
	out, err := run(t, nil, "hash", "--patient", "P1", "--data", "cbc")
	require.NoError(t, err)
	assert.Equal(t, recordhash.Hash("P1", "cbc"), strings.TrimSpace(out))
}

func TestRecordLifecycle(t *testing.T) {
	open := newTestOpener(t)

	out, err := run(t, open, "store", "--patient", "P1", "--data", "cbc normal")
	require.NoError(t, err)
	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &stored))
	hash := recordhash.Hash("P1", "cbc normal")
	assert.Equal(t, hash, stored["report_hash"])
	assert.NotEmpty(t, stored["transaction_hash"])

	out, err = run(t, open, "get", "P1", hash)
	require.NoError(t, err)
	assert.Contains(t, out, `"report_data": "cbc normal"`)
	assert.Contains(t, out, `"is_valid": true`)

	_, err = run(t, open, "update", "P1", hash, "--data", "cbc revised")
	require.NoError(t, err)
	out, err = run(t, open, "get", "P1", hash)
	require.NoError(t, err)
	assert.Contains(t, out, "cbc revised")

	_, err = run(t, open, "invalidate", "P1", hash)
	require.NoError(t, err)
	out, err = run(t, open, "verify", "P1", hash)
	require.NoError(t, err)
	assert.Contains(t, out, `"is_valid": false`)

	out, err = run(t, open, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "chain ok: 4 blocks verified")
}

func TestGetCmd_MissingRecord(t *testing.T) {
	open := newTestOpener(t)

	_, err := run(t, open, "get", "P1", recordhash.Hash("P1", "nothing"))
	assert.Error(t, err)
}

func TestStoreCmd_RequiresFlags(t *testing.T) {
	_, err := run(t, newTestOpener(t), "store", "--patient", "P1")
	assert.Error(t, err)
}
