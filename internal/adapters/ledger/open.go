package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/ethereum"
	"github.com/eswasthya/portal/backend/pkg/config"
)

// Open builds the ledger selected by cfg.Backend. The caller owns Close.
func Open(ctx context.Context, cfg *config.LedgerConfig) (providers.Ledger, error) {
	switch cfg.Backend {
	case config.LedgerBackendLocal:
		return NewLocalLedger(cfg.LocalPath)
	case config.LedgerBackendEVM:
		return openEVM(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func openEVM(ctx context.Context, cfg *config.LedgerConfig) (*EVMLedger, error) {
	contractABI, address, err := resolveContract(cfg)
	if err != nil {
		return nil, err
	}

	client, err := ethereum.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	l, err := NewEVMLedger(client.Eth(), EVMConfig{
		Address:  address,
		ABI:      contractABI,
		Key:      client.Key(),
		ChainID:  client.ChainID(),
		GasLimit: cfg.GasLimit,
	}, client.Close)
	if err != nil {
		client.Close()
		return nil, err
	}
	return l, nil
}

// resolveContract prefers an explicit address; the artifact supplies the ABI
// and, when no address is configured, the latest deployment.
func resolveContract(cfg *config.LedgerConfig) (abi.ABI, common.Address, error) {
	var contractABI abi.ABI
	var address common.Address

	if cfg.ContractArtifact != "" {
		artifact, err := LoadArtifact(cfg.ContractArtifact)
		if err != nil {
			return contractABI, address, err
		}
		contractABI, address = artifact.ABI, artifact.Address
	} else {
		parsed, err := ParseABI()
		if err != nil {
			return contractABI, address, err
		}
		contractABI = parsed
	}

	if cfg.ContractAddress != "" {
		if !common.IsHexAddress(cfg.ContractAddress) {
			return contractABI, address, fmt.Errorf("invalid ledger contract address %q", cfg.ContractAddress)
		}
		address = common.HexToAddress(cfg.ContractAddress)
	}
	if address == (common.Address{}) {
		return contractABI, address, errors.New("no ledger contract address configured")
	}
	return contractABI, address, nil
}
