package domain

import (
	"context"
	"time"
)

type Transaction struct {
	Hash        string
	To          string
	BlockNumber uint64
	Data        []byte
}

type Receipt struct {
	TxHash      string
	Status      ReceiptStatus
	BlockNumber uint64
	GasUsed     uint64
	Logs        []EventLog
}

// LedgerClient is the read/write boundary to the remote transaction
// ledger. Implementations retry transient RPC failures internally per
// their RetryPolicy; logical failures are never retried.
type LedgerClient interface {
	ChainID(ctx context.Context) (uint64, error)
	TransactionByHash(ctx context.Context, hash string) (Transaction, error)
	// ReceiptByHash returns ErrReceiptPending while the transaction has
	// not been included.
	ReceiptByHash(ctx context.Context, hash string) (Receipt, error)
	BlockHeight(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	Logs(ctx context.Context, address string, fromHeight, toHeight uint64) ([]EventLog, error)
	// Call performs a read-only contract call and returns the raw
	// return data.
	Call(ctx context.Context, address string, data []byte) ([]byte, error)
	EstimateGas(ctx context.Context, address string, data []byte) (uint64, error)
	Submit(ctx context.Context, address string, data []byte) (string, error)
	// WaitForConfirmations blocks until the transaction has n
	// confirmations or the context is done, in which case it returns
	// ErrPendingConfirmation. Abandoning the wait is safe; the call can
	// be re-polled later.
	WaitForConfirmations(ctx context.Context, txHash string, n uint64) (Receipt, error)
}

// RewardContract is the ledger-side replay guard and reward recorder.
type RewardContract interface {
	// RecordOf returns the existing reward record for an attestation tx
	// hash, or nil when none exists.
	RecordOf(ctx context.Context, attestationTxHash string) (*RewardRecord, error)
	EstimateRecord(ctx context.Context, intent RewardIntent) (gas uint64, err error)
	SubmitRecord(ctx context.Context, intent RewardIntent) (txHash string, err error)
}

// ProofVerifier performs the read-only proof-validity call against the
// external verification contract. The boolean is the contract's answer;
// strategy names which call signature produced it.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, payload ProofPayload) (accepted bool, strategy string, err error)
}

// RetryPolicy bounds retries of transient errors. A zero policy runs
// the operation exactly once.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
	Backoff     float64
}

// Do runs fn, retrying only errors classified transient by retryable,
// up to MaxAttempts with multiplicative backoff. The last error is
// returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, retryable func(error) bool, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	interval := p.Interval
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil || attempt >= attempts {
			return err
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(interval):
		}
		if p.Backoff > 1 {
			interval = time.Duration(float64(interval) * p.Backoff)
		}
	}
}
