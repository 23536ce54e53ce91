package domain

import (
	"context"
	"time"
)

// OperatorPolicyInput is the document an operator rego bundle is
// evaluated against after the built-in evaluators have run.
type OperatorPolicyInput struct {
	TxHash        string          `json:"tx_hash"`
	ChainID       uint64          `json:"chain_id"`
	Confirmations uint64          `json:"confirmations"`
	Claim         Claim           `json:"claim"`
	Facts         LedgerFacts     `json:"facts"`
	Verdicts      []PolicyVerdict `json:"verdicts"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

// OperatorPolicy can only add deny reasons on top of the built-in
// evaluators; it never upgrades a failed run.
type OperatorPolicy interface {
	Evaluate(ctx context.Context, input OperatorPolicyInput) (PolicyResult, error)
}

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
