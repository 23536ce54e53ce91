package usecase

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"attestd/internal/domain"
)

type stubRewardContract struct {
	mu       sync.Mutex
	records  map[string]*domain.RewardRecord
	gas      uint64
	gasErr   error
	txHash   string
	txErr    error
	submits  int
	queryErr error
}

func newStubRewardContract() *stubRewardContract {
	return &stubRewardContract{
		records: make(map[string]*domain.RewardRecord),
		gas:     21000,
		txHash:  "0xreward",
	}
}

func (s *stubRewardContract) RecordOf(_ context.Context, hash string) (*domain.RewardRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.records[hash], nil
}

func (s *stubRewardContract) EstimateRecord(context.Context, domain.RewardIntent) (uint64, error) {
	return s.gas, s.gasErr
}

func (s *stubRewardContract) SubmitRecord(_ context.Context, intent domain.RewardIntent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txErr != nil {
		return "", s.txErr
	}
	if _, exists := s.records[intent.AttestationTxHash]; exists {
		// Contract-side guard; the usecase should never get this far
		// twice, but the ledger is the source of truth.
		return "", errors.New("reward already recorded")
	}
	s.submits++
	s.records[intent.AttestationTxHash] = &domain.RewardRecord{
		AttestationTxHash: intent.AttestationTxHash,
		PayloadHash:       intent.PayloadHash,
		Slot:              intent.Slot,
		Participant:       intent.Participant,
		Amount:            intent.Amount,
		RewardTxHash:      s.txHash,
	}
	return s.txHash, nil
}

type stubWaitLedger struct {
	stubLedger
	waitReceipt domain.Receipt
	waitErr     error
}

func (s *stubWaitLedger) WaitForConfirmations(context.Context, string, uint64) (domain.Receipt, error) {
	return s.waitReceipt, s.waitErr
}

type stubOutcomes struct {
	mu       sync.Mutex
	appended []domain.RewardOutcome
}

func (s *stubOutcomes) Append(_ context.Context, outcome domain.RewardOutcome) error {
	s.mu.Lock()
	s.appended = append(s.appended, outcome)
	s.mu.Unlock()
	return nil
}

func (s *stubOutcomes) ListByAttestation(context.Context, string) ([]domain.RewardOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RewardOutcome, len(s.appended))
	copy(out, s.appended)
	return out, nil
}

func verifiedVerdict() domain.AttestationVerdict {
	return domain.AttestationVerdict{
		TxHash:       "0xabc",
		ChainID:      114,
		Verified:     true,
		Confirmation: domain.Pass(domain.PolicyConfirmationDepth, "", nil),
		Proof:        domain.Pass(domain.PolicyProofValidity, domain.CodeProofAccepted, nil),
		Integrity:    domain.Pass(domain.PolicyPayloadIntegrity, domain.CodeDigestMatch, nil),
		TimeWindow:   domain.Pass(domain.PolicyTimeWindow, "", nil),
	}
}

func testIntent() domain.RewardIntent {
	return domain.RewardIntent{
		AttestationTxHash: "0xabc",
		PayloadHash:       "0x2222222222222222222222222222222222222222222222222222222222222222",
		Slot:              "epoch-12",
		Participant:       "0x00000000000000000000000000000000000000aa",
		Amount:            big.NewInt(1000),
	}
}

func newRewardFixture() (*ExecuteReward, *stubRewardContract, *stubOutcomes) {
	rewards := newStubRewardContract()
	outcomes := &stubOutcomes{}
	uc := &ExecuteReward{
		Ledger: &stubWaitLedger{
			waitReceipt: domain.Receipt{Status: domain.ReceiptSuccess, BlockNumber: 160, GasUsed: 20500},
		},
		Rewards:               rewards,
		Outcomes:              outcomes,
		RequiredConfirmations: 12,
		Now:                   func() time.Time { return time.Unix(1_700_002_000, 0).UTC() },
	}
	return uc, rewards, outcomes
}

func TestExecuteRewardHappyPath(t *testing.T) {
	uc, rewards, outcomes := newRewardFixture()

	outcome, err := uc.Execute(context.Background(), verifiedVerdict(), testIntent(), domain.ModeReal, false)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Status != domain.RewardStatusExecuted {
		t.Fatalf("status = %s, want executed", outcome.Status)
	}
	if outcome.RewardTxHash != "0xreward" || outcome.GasUsed != 20500 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if !outcome.Success() {
		t.Fatalf("executed outcome must report success")
	}
	if rewards.submits != 1 {
		t.Fatalf("submits = %d, want 1", rewards.submits)
	}
	if len(outcomes.appended) != 1 {
		t.Fatalf("expected one persisted outcome, got %d", len(outcomes.appended))
	}
}

func TestExecuteRewardRefusesUnverifiedVerdict(t *testing.T) {
	uc, rewards, _ := newRewardFixture()
	verdict := verifiedVerdict()
	verdict.Verified = false

	outcome, err := uc.Execute(context.Background(), verdict, testIntent(), domain.ModeReal, false)
	if !errors.Is(err, domain.ErrVerificationNotPassed) {
		t.Fatalf("expected ErrVerificationNotPassed, got %v", err)
	}
	if outcome.Status != domain.RewardStatusNotVerified {
		t.Fatalf("status = %s", outcome.Status)
	}
	if rewards.submits != 0 {
		t.Fatalf("gate must not submit for unverified verdicts")
	}
}

func TestExecuteRewardRefusesIndeterminateVerdict(t *testing.T) {
	uc, rewards, _ := newRewardFixture()
	verdict := verifiedVerdict()
	// A tampered aggregate bit must not bypass the per-policy check.
	verdict.Proof = domain.Indeterminate(domain.PolicyProofValidity, domain.CodeEvaluatorError, nil)

	_, err := uc.Execute(context.Background(), verdict, testIntent(), domain.ModeReal, false)
	if !errors.Is(err, domain.ErrVerificationNotPassed) {
		t.Fatalf("expected ErrVerificationNotPassed, got %v", err)
	}
	if rewards.submits != 0 {
		t.Fatalf("gate must not submit on indeterminate verdicts")
	}
}

func TestExecuteRewardBlocksEveryNonPassingCombination(t *testing.T) {
	// Drive the gate with every combination of the four non-fatal
	// verdict states; only the all-pass aggregate may reach the ledger.
	policies := [4]domain.PolicyName{
		domain.PolicyConfirmationDepth,
		domain.PolicyProofValidity,
		domain.PolicyPayloadIntegrity,
		domain.PolicyTimeWindow,
	}
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			for c := 0; c < 3; c++ {
				for d := 0; d < 3; d++ {
					uc, rewards, _ := newRewardFixture()
					verdict := domain.AttestationVerdict{
						TxHash:       "0xabc",
						ChainID:      114,
						Confirmation: verdictInState(policies[0], a),
						Proof:        verdictInState(policies[1], b),
						Integrity:    verdictInState(policies[2], c),
						TimeWindow:   verdictInState(policies[3], d),
					}
					verdict.Verified = aggregateVerified(verdict.Verdicts()...)

					allPass := a == 0 && b == 0 && c == 0 && d == 0
					_, err := uc.Execute(context.Background(), verdict, testIntent(), domain.ModeReal, false)
					if allPass {
						if err != nil || rewards.submits != 1 {
							t.Fatalf("all-pass combination must execute: err=%v submits=%d", err, rewards.submits)
						}
						continue
					}
					if !errors.Is(err, domain.ErrVerificationNotPassed) {
						t.Fatalf("states (%d,%d,%d,%d): expected ErrVerificationNotPassed, got %v", a, b, c, d, err)
					}
					if rewards.submits != 0 {
						t.Fatalf("states (%d,%d,%d,%d): gate reached the ledger", a, b, c, d)
					}
				}
			}
		}
	}
}

func TestExecuteRewardAtMostOnce(t *testing.T) {
	uc, rewards, _ := newRewardFixture()
	verdict := verifiedVerdict()
	intent := testIntent()

	first, err := uc.Execute(context.Background(), verdict, intent, domain.ModeReal, false)
	if err != nil || first.Status != domain.RewardStatusExecuted {
		t.Fatalf("first invocation: %v, %+v", err, first)
	}

	second, err := uc.Execute(context.Background(), verdict, intent, domain.ModeReal, false)
	if err != nil {
		t.Fatalf("second invocation: %v", err)
	}
	if second.Status != domain.RewardStatusAlreadyExecuted {
		t.Fatalf("status = %s, want already_executed", second.Status)
	}
	if second.RewardTxHash != "0xreward" {
		t.Fatalf("already-executed outcome must reference the original tx, got %+v", second)
	}
	if second.Success() {
		t.Fatalf("already-executed is not a new success")
	}
	if rewards.submits != 1 {
		t.Fatalf("submits = %d, want exactly 1", rewards.submits)
	}
}

func TestExecuteRewardDryRunHasNoLedgerEffect(t *testing.T) {
	uc, rewards, _ := newRewardFixture()

	outcome, err := uc.Execute(context.Background(), verifiedVerdict(), testIntent(), domain.ModeReal, true)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Status != domain.RewardStatusDryRun {
		t.Fatalf("status = %s, want dry_run", outcome.Status)
	}
	if outcome.GasEstimate != 21000 {
		t.Fatalf("dry run must carry the gas estimate, got %+v", outcome)
	}
	if !outcome.Success() {
		t.Fatalf("dry-run outcome must report success")
	}
	if rewards.submits != 0 {
		t.Fatalf("dry run must not submit")
	}
	if record, _ := rewards.RecordOf(context.Background(), "0xabc"); record != nil {
		t.Fatalf("dry run must leave no ledger record")
	}
}

func TestExecuteRewardSimulationModeBlocked(t *testing.T) {
	uc, rewards, _ := newRewardFixture()

	_, err := uc.Execute(context.Background(), verifiedVerdict(), testIntent(), domain.ModeSimulation, false)
	if !errors.Is(err, domain.ErrSimulationMode) {
		t.Fatalf("expected ErrSimulationMode, got %v", err)
	}
	if rewards.submits != 0 {
		t.Fatalf("simulation mode must never reach the ledger")
	}
}

func TestExecuteRewardEstimateRejection(t *testing.T) {
	uc, rewards, _ := newRewardFixture()
	rewards.gasErr = errors.New("execution reverted: replay")

	outcome, err := uc.Execute(context.Background(), verifiedVerdict(), testIntent(), domain.ModeReal, false)
	if !errors.Is(err, domain.ErrRejectedByLedger) {
		t.Fatalf("expected ErrRejectedByLedger, got %v", err)
	}
	if outcome.Status != domain.RewardStatusRejected {
		t.Fatalf("status = %s", outcome.Status)
	}
}

func TestExecuteRewardPendingConfirmation(t *testing.T) {
	uc, _, outcomes := newRewardFixture()
	uc.Ledger = &stubWaitLedger{waitErr: domain.ErrPendingConfirmation}

	outcome, err := uc.Execute(context.Background(), verifiedVerdict(), testIntent(), domain.ModeReal, false)
	if !errors.Is(err, domain.ErrPendingConfirmation) {
		t.Fatalf("expected ErrPendingConfirmation, got %v", err)
	}
	if outcome.Status != domain.RewardStatusPending {
		t.Fatalf("status = %s", outcome.Status)
	}
	if len(outcomes.appended) != 1 {
		t.Fatalf("pending outcome must be persisted")
	}
}

func TestExecuteRewardFailedReceiptIsRejected(t *testing.T) {
	uc, _, _ := newRewardFixture()
	uc.Ledger = &stubWaitLedger{waitReceipt: domain.Receipt{Status: domain.ReceiptFailure, BlockNumber: 161}}

	outcome, err := uc.Execute(context.Background(), verifiedVerdict(), testIntent(), domain.ModeReal, false)
	if !errors.Is(err, domain.ErrRejectedByLedger) {
		t.Fatalf("expected ErrRejectedByLedger, got %v", err)
	}
	if outcome.Status != domain.RewardStatusRejected || outcome.BlockNumber != 161 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestExecuteRewardConcurrentInvocationsSubmitOnce(t *testing.T) {
	uc, rewards, _ := newRewardFixture()
	verdict := verifiedVerdict()
	intent := testIntent()

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = uc.Execute(context.Background(), verdict, intent, domain.ModeReal, false)
		}()
	}
	wg.Wait()

	if rewards.submits != 1 {
		t.Fatalf("submits = %d, want exactly 1 across concurrent invocations", rewards.submits)
	}
}
