package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"swapLedger/internal/model"
)

const receiptPollInterval = 500 * time.Millisecond

// EthLedger talks to ERC20 token contracts on an Ethereum-style ledger.
// Metadata queries are plain eth_calls; transfers are signed transactions
// whose receipt status decides the outcome reported to the caller.
type EthLedger struct {
	client   *Client
	key      *ecdsa.PrivateKey
	account  common.Address
	chainID  *big.Int
	gasLimit uint64
	logger   *zap.Logger

	// serializes nonce assignment across concurrent transfers
	nonceMu sync.Mutex
}

// NewEthLedger builds a ledger client signing with the given hex private key.
// gasLimit is the per-transfer resource budget.
func NewEthLedger(ctx context.Context, client *Client, hexKey string, gasLimit uint64, logger *zap.Logger) (*EthLedger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gasLimit == 0 {
		gasLimit = 100_000
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	return &EthLedger{
		client:   client,
		key:      key,
		account:  crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		gasLimit: gasLimit,
		logger:   logger,
	}, nil
}

// Account returns the address the ledger signs with; inbound transfers to
// this address are the pool's deposits and swap requests.
func (l *EthLedger) Account() common.Address {
	return l.account
}

// Metadata queries the token contract for name, symbol and decimals.
// Decimals are required; name and symbol fall back to empty strings when the
// contract does not expose them.
func (l *EthLedger) Metadata(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}

	parsed, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}

	call := func(method string) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		msg := ethereum.CallMsg{To: &token, Data: data}
		resp, err := l.client.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		return values, nil
	}

	values, err := call("decimals")
	if err != nil {
		return meta, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return meta, fmt.Errorf("unsupported decimals type %T", values[0])
	}
	meta.Decimals = decimals

	if values, err := call("symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else {
		l.logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := call("name"); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else {
		l.logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

// Transfer submits a token transfer and waits for its receipt. A reverted
// receipt, a send failure, or running out of the resource budget all surface
// as an error so the caller can roll back.
func (l *EthLedger) Transfer(ctx context.Context, token, recipient common.Address, amount *uint256.Int) error {
	parsed, err := ERC20ABI()
	if err != nil {
		return fmt.Errorf("parse erc20 abi: %w", err)
	}

	data, err := parsed.Pack("transfer", recipient, amount.ToBig())
	if err != nil {
		return fmt.Errorf("pack transfer: %w", err)
	}

	gasPrice, err := l.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}

	l.nonceMu.Lock()
	nonce, err := l.client.PendingNonceAt(ctx, l.account)
	if err != nil {
		l.nonceMu.Unlock()
		return fmt.Errorf("pending nonce: %w", err)
	}

	tx := types.NewTransaction(nonce, token, big.NewInt(0), l.gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(l.chainID), l.key)
	if err != nil {
		l.nonceMu.Unlock()
		return fmt.Errorf("sign transfer: %w", err)
	}

	err = l.client.SendTransaction(ctx, signed)
	l.nonceMu.Unlock()
	if err != nil {
		return fmt.Errorf("send transfer: %w", err)
	}

	l.logger.Debug("transfer submitted",
		zap.String("token", token.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount", amount.Dec()),
		zap.String("tx", signed.Hash().Hex()),
	)

	receipt, err := l.waitMined(ctx, signed.Hash())
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transfer reverted: tx %s", signed.Hash().Hex())
	}
	return nil
}

func (l *EthLedger) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := l.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("transaction receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
