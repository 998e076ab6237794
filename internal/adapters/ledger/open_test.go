package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eswasthya/portal/backend/pkg/config"
)

func TestOpen_LocalBackend(t *testing.T) {
	l, err := Open(context.Background(), &config.LedgerConfig{
		Backend:   config.LedgerBackendLocal,
		LocalPath: filepath.Join(t.TempDir(), "ledger"),
	})
	require.NoError(t, err)
	defer l.Close()

	_, ok := l.(*LocalLedger)
	assert.True(t, ok)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), &config.LedgerConfig{Backend: "sqlite"})
	assert.Error(t, err)
}

func TestResolveContract(t *testing.T) {
	t.Run("address overrides artifact deployment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "MedicalRecord.json")
		require.NoError(t, os.WriteFile(path, []byte(artifactJSON), 0o600))

		_, address, err := resolveContract(&config.LedgerConfig{
			ContractArtifact: path,
			ContractAddress:  "0x3333333333333333333333333333333333333333",
		})
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0x3333333333333333333333333333333333333333"), address)
	})

	t.Run("built-in abi with explicit address", func(t *testing.T) {
		parsed, address, err := resolveContract(&config.LedgerConfig{
			ContractAddress: "0x1111111111111111111111111111111111111111",
		})
		require.NoError(t, err)
		assert.Contains(t, parsed.Methods, methodGet)
		assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), address)
	})

	t.Run("invalid address", func(t *testing.T) {
		_, _, err := resolveContract(&config.LedgerConfig{ContractAddress: "0xnope"})
		assert.Error(t, err)
	})

	t.Run("no address anywhere", func(t *testing.T) {
		_, _, err := resolveContract(&config.LedgerConfig{})
		assert.Error(t, err)
	})
}
