// Package ethereum provides a bridge host that reaches escrow ledgers deployed
// on an EVM chain through go-ethereum.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/chainsafe/escrow-bridge/internal/metrics"
	"github.com/chainsafe/escrow-bridge/pkg/config"
	"github.com/chainsafe/escrow-bridge/pkg/dispatch"
)

var (
	ErrCallReverted        = errors.New("remote call reverted")
	ErrReceiptTimeout      = errors.New("timed out waiting for receipt")
	ErrUnsupportedSelector = errors.New("selector has no on-chain encoding")
)

// Backend is the subset of ethclient.Client the caller uses.
type Backend interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// callArguments is the ABI layout of (address token, uint256 amount, address agent).
var callArguments = mustArguments("address", "uint256", "address")

func mustArguments(typeNames ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(typeNames))
	for _, name := range typeNames {
		typ, err := abi.NewType(name, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// EncodeCall returns selector || abi.encode(token, amount, agent). Only the
// ledger entry points are encodable.
func EncodeCall(selector dispatch.Selector, args dispatch.CallArgs) ([]byte, error) {
	if selector != dispatch.DepositSelector() && selector != dispatch.WithdrawSelector() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSelector, selector)
	}
	packed, err := callArguments.Pack(args.Token, args.Amount, args.Agent)
	if err != nil {
		return nil, fmt.Errorf("failed to pack call arguments: %w", err)
	}
	data := make([]byte, 0, len(selector)+len(packed))
	data = append(data, selector[:]...)
	return append(data, packed...), nil
}

// DecodeCall splits calldata produced by EncodeCall.
func DecodeCall(data []byte) (dispatch.Selector, dispatch.CallArgs, error) {
	var sel dispatch.Selector
	if len(data) < len(sel) {
		return sel, dispatch.CallArgs{}, fmt.Errorf("calldata too short: %d bytes", len(data))
	}
	copy(sel[:], data[:len(sel)])

	values, err := callArguments.Unpack(data[len(sel):])
	if err != nil {
		return sel, dispatch.CallArgs{}, fmt.Errorf("failed to unpack call arguments: %w", err)
	}
	return sel, dispatch.CallArgs{
		Token:  values[0].(common.Address),
		Amount: values[1].(*big.Int),
		Agent:  values[2].(common.Address),
	}, nil
}

// Caller invokes escrow ledgers deployed on an EVM chain. Each Invoke sends a
// signed transaction and blocks until it is mined.
type Caller struct {
	config     *config.EthereumConfig
	backend    Backend
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	logger     *zap.Logger

	mu sync.Mutex // serializes nonce assignment
}

// Dial connects to cfg.RPCURL and returns a Caller backed by ethclient.
func Dial(cfg *config.EthereumConfig, logger *zap.Logger) (*Caller, *ethclient.Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	caller, err := NewCaller(cfg, client, logger)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	logger.Info("Connected to Ethereum",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("sender", caller.address.Hex()))
	return caller, client, nil
}

// NewCaller creates a Caller over an existing backend.
func NewCaller(cfg *config.EthereumConfig, backend Backend, logger *zap.Logger) (*Caller, error) {
	privateKey, err := crypto.HexToECDSA(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	return &Caller{
		config:     cfg,
		backend:    backend,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    big.NewInt(cfg.ChainID),
		logger:     logger,
	}, nil
}

// Address returns the account that signs outgoing transactions.
func (c *Caller) Address() common.Address {
	return c.address
}

// IsContract reports whether address holds code at the latest block.
func (c *Caller) IsContract(ctx context.Context, address common.Address) (bool, error) {
	code, err := c.backend.CodeAt(ctx, address, nil)
	if err != nil {
		return false, fmt.Errorf("failed to get code at %s: %w", address.Hex(), err)
	}
	return len(code) > 0, nil
}

// Invoke sends selector-routed calldata to callee and waits for the receipt.
func (c *Caller) Invoke(ctx context.Context, callee common.Address, selector dispatch.Selector, args dispatch.CallArgs) error {
	data, err := EncodeCall(selector, args)
	if err != nil {
		return err
	}

	tx, err := c.send(ctx, callee, data)
	if err != nil {
		metrics.TransactionsSent.WithLabelValues("failed").Inc()
		return err
	}
	metrics.TransactionsSent.WithLabelValues("sent").Inc()

	c.logger.Info("Remote ledger call submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("callee", callee.Hex()),
		zap.String("selector", selector.String()),
		zap.Uint64("nonce", tx.Nonce()))

	// The transaction is out; wait for it even if the caller gives up, bounded
	// by ReceiptTimeout.
	receipt, err := c.waitReceipt(context.WithoutCancel(ctx), tx.Hash())
	if err != nil {
		return err
	}
	metrics.GasUsed.WithLabelValues(selector.String()).Observe(float64(receipt.GasUsed))

	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: tx %s in block %s", ErrCallReverted, tx.Hash().Hex(), receipt.BlockNumber)
	}
	return nil
}

func (c *Caller) send(ctx context.Context, callee common.Address, data []byte) (*types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &callee,
		Value:    new(big.Int),
		Gas:      c.config.GasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err = c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	return signed, nil
}

func (c *Caller) gasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	if c.config.MaxGasPrice == "" {
		return gasPrice, nil
	}

	maxGasPrice, ok := new(big.Int).SetString(c.config.MaxGasPrice, 10)
	if !ok {
		return nil, fmt.Errorf("invalid max gas price %q", c.config.MaxGasPrice)
	}
	if gasPrice.Cmp(maxGasPrice) > 0 {
		c.logger.Warn("Suggested gas price exceeds maximum",
			zap.String("suggested", gasPrice.String()),
			zap.String("max", maxGasPrice.String()))
		return maxGasPrice, nil
	}
	return gasPrice, nil
}

func (c *Caller) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.config.PollingInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return receipt, nil
		case !errors.Is(err, geth.NotFound):
			c.logger.Warn("Failed to fetch receipt", zap.String("tx_hash", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrReceiptTimeout, hash.Hex())
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
