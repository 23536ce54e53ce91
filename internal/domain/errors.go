package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProofMissing          = errors.New("proof artifact not found")
	ErrTransactionNotFound   = errors.New("attestation transaction not found")
	ErrReceiptPending        = errors.New("attestation receipt pending")
	ErrVerificationNotPassed = errors.New("verification not passed")
	ErrPendingConfirmation   = errors.New("reward submission pending confirmation")
	ErrRejectedByLedger      = errors.New("reward call rejected by ledger")
	ErrSimulationMode        = errors.New("reward gate invoked in simulation mode")
	// ErrSignatureMismatch means no known verification call signature
	// matched the contract; distinct from a transport failure.
	ErrSignatureMismatch = errors.New("no verification call signature matched the contract")
)

// ConfigurationError marks a missing or invalid required input. Fatal,
// never retried, surfaced before any verification work starts. Code
// carries a verdict detail code when a specific one applies.
type ConfigurationError struct {
	Field  string
	Code   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// TransientError wraps an RPC/HTTP failure reaching the ledger or the
// verification service. Safe to retry with backoff, bounded attempts.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Verdict detail codes. They name the compared values in Detail so the
// decision can be reproduced without re-running the network calls.
const (
	CodeChainMismatch      = "CHAIN_MISMATCH"
	CodeStaleConfirmations = "STALE_CONFIRMATIONS"
	CodeReceiptPending     = "RECEIPT_PENDING"
	CodeReceiptFailed      = "RECEIPT_FAILED"
	CodeProofAccepted      = "PROOF_ACCEPTED"
	CodeProofRejected      = "PROOF_REJECTED"
	CodeSignatureMismatch  = "SIGNATURE_MISMATCH"
	CodeDigestMismatch     = "DIGEST_MISMATCH"
	CodeDigestMatch        = "DIGEST_MATCH"
	CodeNoDigestToCompare  = "NO_DIGEST_TO_COMPARE"
	CodeBeforeLowerBound   = "BEFORE_LOWER_BOUND"
	CodeInvertedRange      = "INVERTED_RANGE"
	CodeEvaluatorError     = "EVALUATOR_ERROR"
	CodeOperatorDeny       = "OPERATOR_DENY"
)
