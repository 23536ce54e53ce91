package ledgereth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"attestd/internal/domain"
)

// Client adapts an Ethereum-compatible JSON-RPC endpoint to the
// domain's ledger boundary. Transient RPC failures are retried per the
// configured policy; ledger answers (not found, reverts, logical
// falses) are never retried.
type Client struct {
	eth     *ethclient.Client
	retry   domain.RetryPolicy
	chainID *big.Int
	key     *ecdsa.PrivateKey

	pollInterval time.Duration
}

func Dial(ctx context.Context, rpcURL string, retry domain.RetryPolicy) (*Client, error) {
	if rpcURL == "" {
		return nil, &domain.ConfigurationError{Field: "RPC_URL", Reason: "required"}
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, domain.Transient("dial ledger", err)
	}
	return &Client{eth: eth, retry: retry, pollInterval: 2 * time.Second}, nil
}

// WithSubmitter attaches the key used for state-changing submissions.
// Read paths work without one.
func (c *Client) WithSubmitter(privateKeyHex string) (*Client, error) {
	key, err := crypto.HexToECDSA(trimHexPrefix(privateKeyHex))
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "SUBMITTER_PRIVATE_KEY", Reason: err.Error()}
	}
	c.key = key
	return c, nil
}

func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var id *big.Int
	err := c.do(ctx, "chain id", func(ctx context.Context) error {
		var err error
		id, err = c.eth.ChainID(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	c.chainID = id
	return id.Uint64(), nil
}

func (c *Client) TransactionByHash(ctx context.Context, hash string) (domain.Transaction, error) {
	var tx *types.Transaction
	err := c.do(ctx, "transaction by hash", func(ctx context.Context) error {
		var err error
		tx, _, err = c.eth.TransactionByHash(ctx, common.HexToHash(hash))
		return err
	})
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return domain.Transaction{}, domain.ErrTransactionNotFound
		}
		return domain.Transaction{}, err
	}
	out := domain.Transaction{Hash: tx.Hash().Hex(), Data: tx.Data()}
	if to := tx.To(); to != nil {
		out.To = to.Hex()
	}
	return out, nil
}

func (c *Client) ReceiptByHash(ctx context.Context, hash string) (domain.Receipt, error) {
	var receipt *types.Receipt
	err := c.do(ctx, "receipt by hash", func(ctx context.Context) error {
		var err error
		receipt, err = c.eth.TransactionReceipt(ctx, common.HexToHash(hash))
		return err
	})
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return domain.Receipt{}, domain.ErrReceiptPending
		}
		return domain.Receipt{}, err
	}
	return receiptFromEth(receipt), nil
}

func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.do(ctx, "block height", func(ctx context.Context) error {
		var err error
		height, err = c.eth.BlockNumber(ctx)
		return err
	})
	return height, err
}

func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	var header *types.Header
	err := c.do(ctx, "header by number", func(ctx context.Context) error {
		var err error
		header, err = c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		return err
	})
	if err != nil {
		return 0, err
	}
	return header.Time, nil
}

func (c *Client) Logs(ctx context.Context, address string, fromHeight, toHeight uint64) ([]domain.EventLog, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{common.HexToAddress(address)},
		FromBlock: new(big.Int).SetUint64(fromHeight),
		ToBlock:   new(big.Int).SetUint64(toHeight),
	}
	var logs []types.Log
	err := c.do(ctx, "filter logs", func(ctx context.Context) error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.EventLog, 0, len(logs))
	for _, entry := range logs {
		out = append(out, logFromEth(entry))
	}
	return out, nil
}

func (c *Client) Call(ctx context.Context, address string, data []byte) ([]byte, error) {
	to := common.HexToAddress(address)
	msg := ethereum.CallMsg{To: &to, Data: data}
	var ret []byte
	err := c.do(ctx, "call", func(ctx context.Context) error {
		var err error
		ret, err = c.eth.CallContract(ctx, msg, nil)
		return err
	})
	return ret, err
}

func (c *Client) EstimateGas(ctx context.Context, address string, data []byte) (uint64, error) {
	to := common.HexToAddress(address)
	msg := ethereum.CallMsg{To: &to, Data: data}
	if c.key != nil {
		msg.From = crypto.PubkeyToAddress(c.key.PublicKey)
	}
	var gas uint64
	err := c.do(ctx, "estimate gas", func(ctx context.Context) error {
		var err error
		gas, err = c.eth.EstimateGas(ctx, msg)
		return err
	})
	return gas, err
}

func (c *Client) Submit(ctx context.Context, address string, data []byte) (string, error) {
	if c.key == nil {
		return "", &domain.ConfigurationError{Field: "SUBMITTER_PRIVATE_KEY", Reason: "required for submission"}
	}
	chainID := c.chainID
	if chainID == nil {
		id, err := c.eth.ChainID(ctx)
		if err != nil {
			return "", domain.Transient("chain id", err)
		}
		chainID = id
		c.chainID = id
	}

	from := crypto.PubkeyToAddress(c.key.PublicKey)
	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", domain.Transient("pending nonce", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", domain.Transient("suggest gas price", err)
	}
	to := common.HexToAddress(address)
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		// An estimate failure is the ledger rejecting the call, most
		// often the replay guard.
		return "", err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

func (c *Client) WaitForConfirmations(ctx context.Context, txHash string, n uint64) (domain.Receipt, error) {
	interval := c.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	hash := common.HexToHash(txHash)
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			height, heightErr := c.eth.BlockNumber(ctx)
			if heightErr == nil && height >= receipt.BlockNumber.Uint64() &&
				height-receipt.BlockNumber.Uint64()+1 >= n {
				return receiptFromEth(receipt), nil
			}
		} else if !errors.Is(err, ethereum.NotFound) {
			return domain.Receipt{}, domain.Transient("receipt poll", err)
		}
		select {
		case <-ctx.Done():
			return domain.Receipt{}, domain.ErrPendingConfirmation
		case <-time.After(interval):
		}
	}
}

// do retries transient RPC failures; a NotFound answer is a ledger
// fact, not a failure.
func (c *Client) do(ctx context.Context, op string, fn func(context.Context) error) error {
	return c.retry.Do(ctx, func(err error) bool {
		return !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil
	}, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return domain.Transient(op, err)
		}
		return err
	})
}

func receiptFromEth(receipt *types.Receipt) domain.Receipt {
	out := domain.Receipt{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Status:      domain.ReceiptFailure,
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		out.Status = domain.ReceiptSuccess
	}
	for _, entry := range receipt.Logs {
		out.Logs = append(out.Logs, logFromEth(*entry))
	}
	return out
}

func logFromEth(entry types.Log) domain.EventLog {
	topics := make([]string, 0, len(entry.Topics))
	for _, topic := range entry.Topics {
		topics = append(topics, topic.Hex())
	}
	return domain.EventLog{
		Address:     entry.Address.Hex(),
		Topics:      topics,
		Data:        entry.Data,
		BlockNumber: entry.BlockNumber,
	}
}

func trimHexPrefix(value string) string {
	if len(value) >= 2 && (value[:2] == "0x" || value[:2] == "0X") {
		return value[2:]
	}
	return value
}
