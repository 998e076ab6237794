package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"github.com/eswasthya/portal/backend/pkg/config"
	"github.com/eswasthya/portal/backend/pkg/retry"
)

// Client is a connection to an EVM node plus the key used to sign transactions
type Client struct {
	eth     *ethclient.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

// NewClient dials the node, parses the signing key and resolves the chain id.
// A configured chain id must match what the node reports.
func NewClient(ctx context.Context, cfg *config.LedgerConfig) (*Client, error) {
	if cfg == nil || cfg.RPCURL == "" {
		return nil, errors.New("ledger rpc url is required")
	}
	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	var eth *ethclient.Client
	var chainID *big.Int

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 5
	retryCfg.MaxTotalTimeout = 30 * time.Second

	err = retry.DoWithLog(ctx, retryCfg, "Ledger node", func() error {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		c, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
		if err != nil {
			return err
		}
		id, err := c.ChainID(dialCtx)
		if err != nil {
			c.Close()
			return err
		}
		eth, chainID = c, id
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("ledger node connection attempt failed")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger node: %w", err)
	}

	if cfg.ChainID > 0 && chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("ledger chain id mismatch: node reports %s, configured %d", chainID, cfg.ChainID)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	log.Info().Str("rpc_url", cfg.RPCURL).Str("chain_id", chainID.String()).Str("account", from.Hex()).Msg("connected to ledger node")

	return &Client{eth: eth, key: key, from: from, chainID: chainID}, nil
}

// ParsePrivateKey decodes a hex encoded secp256k1 key, with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("ledger private key is required")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger private key: %w", err)
	}
	return key, nil
}

// Eth returns the underlying node client
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// Key returns the signing key
func (c *Client) Key() *ecdsa.PrivateKey {
	return c.key
}

// From returns the signing account address
func (c *Client) From() common.Address {
	return c.from
}

// ChainID returns the chain id reported by the node
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Close closes the node connection
func (c *Client) Close() {
	c.eth.Close()
}
