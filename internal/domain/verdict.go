package domain

import "time"

type PolicyName string

const (
	PolicyChainIdentity     PolicyName = "chain_identity"
	PolicyConfirmationDepth PolicyName = "confirmation_depth"
	PolicyProofValidity     PolicyName = "proof_validity"
	PolicyPayloadIntegrity  PolicyName = "payload_integrity"
	PolicyTimeWindow        PolicyName = "time_window"
	PolicyOperatorRules     PolicyName = "operator_rules"
)

// PolicyVerdict is one evaluator's output. Passed is tri-state: nil
// means indeterminate (could not check), which aggregation must treat
// as not proven, never as proven.
type PolicyVerdict struct {
	Policy PolicyName     `json:"policy"`
	Passed *bool          `json:"passed"`
	Code   string         `json:"code,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

// OK reports a definite pass. It is the only form aggregation accepts.
func (v PolicyVerdict) OK() bool {
	return v.Passed != nil && *v.Passed
}

func (v PolicyVerdict) Indeterminate() bool {
	return v.Passed == nil
}

func Pass(policy PolicyName, code string, detail map[string]any) PolicyVerdict {
	passed := true
	return PolicyVerdict{Policy: policy, Passed: &passed, Code: code, Detail: detail}
}

func Fail(policy PolicyName, code string, detail map[string]any) PolicyVerdict {
	passed := false
	return PolicyVerdict{Policy: policy, Passed: &passed, Code: code, Detail: detail}
}

func Indeterminate(policy PolicyName, code string, detail map[string]any) PolicyVerdict {
	return PolicyVerdict{Policy: policy, Passed: nil, Code: code, Detail: detail}
}

// AttestationVerdict aggregates the policy verdicts of one verification
// run together with the raw ledger facts. It is constructed once per
// run, never mutated, and persisted as an audit artifact. The reward
// gate reads this object and nothing else.
type AttestationVerdict struct {
	TxHash        string `json:"tx_hash"`
	TargetAddress string `json:"target_address"`
	ChainID       uint64 `json:"chain_id"`
	BlockNumber   uint64 `json:"block_number"`
	Confirmations uint64 `json:"confirmations"`

	Verified bool `json:"verified"`

	Confirmation PolicyVerdict  `json:"confirmation"`
	Proof        PolicyVerdict  `json:"proof"`
	Integrity    PolicyVerdict  `json:"integrity"`
	TimeWindow   PolicyVerdict  `json:"time_window"`
	Operator     *PolicyVerdict `json:"operator,omitempty"`

	Facts     LedgerFacts `json:"facts"`
	CheckedAt time.Time   `json:"checked_at"`
}

// Verdicts lists the non-fatal policy verdicts in evaluation order.
func (v AttestationVerdict) Verdicts() []PolicyVerdict {
	out := []PolicyVerdict{v.Confirmation, v.Proof, v.Integrity, v.TimeWindow}
	if v.Operator != nil {
		out = append(out, *v.Operator)
	}
	return out
}

type RewardStatus string

const (
	RewardStatusDryRun          RewardStatus = "dry_run"
	RewardStatusExecuted        RewardStatus = "executed"
	RewardStatusAlreadyExecuted RewardStatus = "already_executed"
	RewardStatusNotVerified     RewardStatus = "verification_not_passed"
	RewardStatusRejected        RewardStatus = "rejected_by_ledger"
	RewardStatusPending         RewardStatus = "pending_confirmation"
)

// RewardOutcome is the serialized result of one gate invocation. The
// originating verdict is embedded for audit traceability.
type RewardOutcome struct {
	Status       RewardStatus `json:"status"`
	DryRun       bool         `json:"dry_run"`
	Intent       RewardIntent `json:"intent"`
	GasEstimate  uint64       `json:"gas_estimate,omitempty"`
	GasUsed      uint64       `json:"gas_used,omitempty"`
	RewardTxHash string       `json:"reward_tx_hash,omitempty"`
	BlockNumber  uint64       `json:"block_number,omitempty"`

	Verdict    AttestationVerdict `json:"verdict"`
	ExecutedAt time.Time          `json:"executed_at"`
}

func (o RewardOutcome) Success() bool {
	return o.Status == RewardStatusExecuted || o.Status == RewardStatusDryRun
}
