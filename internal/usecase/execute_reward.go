package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attestd/internal/domain"
)

// ExecuteReward consumes an AttestationVerdict and, if and only if it
// is wholly positive, drives the reward-recording call. The ledger-side
// contract holds the authoritative replay guard; the RecordOf check
// here is defense in depth, and it must complete with a result strictly
// before submission.
type ExecuteReward struct {
	Ledger   domain.LedgerClient
	Rewards  domain.RewardContract
	Outcomes domain.OutcomeRepository

	RequiredConfirmations uint64

	Now func() time.Time
}

// Execute runs one gate invocation. dryRun computes and records the
// would-be call and a gas estimate without submitting; it must never
// have an observable side effect on ledger state.
func (uc *ExecuteReward) Execute(ctx context.Context, verdict domain.AttestationVerdict, intent domain.RewardIntent, mode domain.Mode, dryRun bool) (domain.RewardOutcome, error) {
	if uc == nil || uc.Rewards == nil {
		return domain.RewardOutcome{}, errors.New("reward contract binding is required")
	}
	if mode != domain.ModeReal {
		// The demo path must never reach this gate.
		return domain.RewardOutcome{}, domain.ErrSimulationMode
	}

	outcome := domain.RewardOutcome{
		DryRun:     dryRun,
		Intent:     intent,
		Verdict:    verdict,
		ExecutedAt: uc.now(),
	}

	if !whollyPositive(verdict) {
		outcome.Status = domain.RewardStatusNotVerified
		uc.persist(ctx, &outcome)
		return outcome, domain.ErrVerificationNotPassed
	}

	existing, err := uc.Rewards.RecordOf(ctx, intent.AttestationTxHash)
	if err != nil {
		return outcome, fmt.Errorf("query reward record: %w", err)
	}
	if existing != nil {
		outcome.Status = domain.RewardStatusAlreadyExecuted
		outcome.RewardTxHash = existing.RewardTxHash
		outcome.BlockNumber = existing.BlockNumber
		uc.persist(ctx, &outcome)
		return outcome, nil
	}

	gas, err := uc.Rewards.EstimateRecord(ctx, intent)
	if err != nil {
		outcome.Status = domain.RewardStatusRejected
		uc.persist(ctx, &outcome)
		return outcome, fmt.Errorf("%w: %v", domain.ErrRejectedByLedger, err)
	}
	outcome.GasEstimate = gas

	if dryRun {
		outcome.Status = domain.RewardStatusDryRun
		uc.persist(ctx, &outcome)
		return outcome, nil
	}

	txHash, err := uc.Rewards.SubmitRecord(ctx, intent)
	if err != nil {
		outcome.Status = domain.RewardStatusRejected
		uc.persist(ctx, &outcome)
		return outcome, fmt.Errorf("%w: %v", domain.ErrRejectedByLedger, err)
	}
	outcome.RewardTxHash = txHash

	receipt, err := uc.Ledger.WaitForConfirmations(ctx, txHash, uc.RequiredConfirmations)
	if err != nil {
		if errors.Is(err, domain.ErrPendingConfirmation) {
			// Retryable by re-invocation; the on-ledger guard keeps a
			// later retry idempotent.
			outcome.Status = domain.RewardStatusPending
			uc.persist(ctx, &outcome)
			return outcome, domain.ErrPendingConfirmation
		}
		return outcome, fmt.Errorf("wait for confirmations: %w", err)
	}
	if receipt.Status != domain.ReceiptSuccess {
		outcome.Status = domain.RewardStatusRejected
		outcome.BlockNumber = receipt.BlockNumber
		uc.persist(ctx, &outcome)
		return outcome, domain.ErrRejectedByLedger
	}

	outcome.Status = domain.RewardStatusExecuted
	outcome.BlockNumber = receipt.BlockNumber
	outcome.GasUsed = receipt.GasUsed
	uc.persist(ctx, &outcome)
	return outcome, nil
}

// whollyPositive requires every sub-verdict to be a definite pass; an
// indeterminate verdict is not proven and never releases a reward.
func whollyPositive(verdict domain.AttestationVerdict) bool {
	if !verdict.Verified {
		return false
	}
	for _, v := range verdict.Verdicts() {
		if !v.OK() {
			return false
		}
	}
	return true
}

func (uc *ExecuteReward) persist(ctx context.Context, outcome *domain.RewardOutcome) {
	if uc.Outcomes == nil {
		return
	}
	// The outcome artifact is best effort: an unwritable audit store
	// must not mask the ledger result already obtained.
	_ = uc.Outcomes.Append(ctx, *outcome)
}

func (uc *ExecuteReward) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now().UTC()
}
