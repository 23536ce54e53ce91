package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"attestd/internal/domain"
)

type stubLedger struct {
	chainID    uint64
	chainIDErr error

	tx    domain.Transaction
	txErr error

	receipt    domain.Receipt
	receiptErr error

	height    uint64
	timestamp uint64

	mu    sync.Mutex
	calls []string
}

func (s *stubLedger) record(name string) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
}

func (s *stubLedger) ChainID(context.Context) (uint64, error) {
	s.record("ChainID")
	return s.chainID, s.chainIDErr
}

func (s *stubLedger) TransactionByHash(_ context.Context, hash string) (domain.Transaction, error) {
	s.record("TransactionByHash")
	return s.tx, s.txErr
}

func (s *stubLedger) ReceiptByHash(context.Context, string) (domain.Receipt, error) {
	s.record("ReceiptByHash")
	return s.receipt, s.receiptErr
}

func (s *stubLedger) BlockHeight(context.Context) (uint64, error) {
	s.record("BlockHeight")
	return s.height, nil
}

func (s *stubLedger) BlockTimestamp(context.Context, uint64) (uint64, error) {
	s.record("BlockTimestamp")
	return s.timestamp, nil
}

func (s *stubLedger) Logs(context.Context, string, uint64, uint64) ([]domain.EventLog, error) {
	return nil, nil
}

func (s *stubLedger) Call(context.Context, string, []byte) ([]byte, error) {
	return nil, nil
}

func (s *stubLedger) EstimateGas(context.Context, string, []byte) (uint64, error) {
	return 0, nil
}

func (s *stubLedger) Submit(context.Context, string, []byte) (string, error) {
	return "", nil
}

func (s *stubLedger) WaitForConfirmations(context.Context, string, uint64) (domain.Receipt, error) {
	return domain.Receipt{}, nil
}

type stubProofStore struct {
	payload    domain.ProofPayload
	payloadErr error
	submission *domain.SubmissionRecord
	artifact   []byte
}

func (s *stubProofStore) ReadProof(context.Context, string) (domain.ProofPayload, error) {
	return s.payload, s.payloadErr
}

func (s *stubProofStore) ReadSubmissionRecord(context.Context, string) (*domain.SubmissionRecord, error) {
	return s.submission, nil
}

func (s *stubProofStore) ReadArtifact(context.Context, string) ([]byte, error) {
	return s.artifact, nil
}

type stubReports struct {
	mu    sync.Mutex
	saved []domain.AttestationVerdict
}

func (s *stubReports) Save(_ context.Context, verdict domain.AttestationVerdict) error {
	s.mu.Lock()
	s.saved = append(s.saved, verdict)
	s.mu.Unlock()
	return nil
}

func (s *stubReports) Get(context.Context, string) (*domain.AttestationVerdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil, nil
	}
	latest := s.saved[len(s.saved)-1]
	return &latest, nil
}

func newVerifyFixture() (*VerifyAttestation, *stubLedger, *stubProofStore, *stubReports) {
	ledger := &stubLedger{
		chainID:   114,
		tx:        domain.Transaction{Hash: "0xabc"},
		receipt:   domain.Receipt{Status: domain.ReceiptSuccess, BlockNumber: 100},
		height:    150,
		timestamp: 1_700_000_500,
	}
	proofs := &stubProofStore{
		payload: domain.ProofPayload{
			MerkleProof: []string{"0x1111111111111111111111111111111111111111111111111111111111111111"},
			Claim:       domain.Claim{AttestationType: "Web2Json", LowestUsedTimestamp: 1_700_000_000},
		},
	}
	reports := &stubReports{}
	uc := &VerifyAttestation{
		Ledger:                ledger,
		Proofs:                proofs,
		Verifier:              verifierFunc(func(context.Context, domain.ProofPayload) (bool, string, error) { return true, "Web2Json", nil }),
		Reports:               reports,
		ExpectedChainID:       114,
		RequiredConfirmations: 12,
		Now:                   func() time.Time { return time.Unix(1_700_001_000, 0).UTC() },
	}
	return uc, ledger, proofs, reports
}

func TestVerifyAttestationAllPoliciesPass(t *testing.T) {
	uc, _, _, reports := newVerifyFixture()

	verdict, err := uc.Execute(context.Background(), domain.AttestationReference{TxHash: "0xabc", ChainID: 114})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !verdict.Verified {
		t.Fatalf("expected verified verdict, got %+v", verdict)
	}
	if verdict.Confirmations != 51 {
		t.Fatalf("confirmations = %d, want 51", verdict.Confirmations)
	}
	if len(reports.saved) != 1 {
		t.Fatalf("expected one persisted report, got %d", len(reports.saved))
	}
}

func TestVerifyAttestationAggregationRejectsAnyNonPass(t *testing.T) {
	// Any single evaluator not definitely passing must flip the
	// aggregate, including the indeterminate state.
	t.Run("failed policy", func(t *testing.T) {
		uc, ledger, _, _ := newVerifyFixture()
		ledger.height = 105 // 6 confirmations < 12

		verdict, err := uc.Execute(context.Background(), domain.AttestationReference{TxHash: "0xabc"})
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if verdict.Verified {
			t.Fatalf("expected unverified verdict")
		}
		if verdict.Confirmation.OK() {
			t.Fatalf("expected confirmation failure")
		}
	})

	t.Run("indeterminate policy", func(t *testing.T) {
		uc, _, _, _ := newVerifyFixture()
		uc.Verifier = verifierFunc(func(context.Context, domain.ProofPayload) (bool, string, error) {
			return false, "", errors.New("verification service unreachable")
		})

		verdict, err := uc.Execute(context.Background(), domain.AttestationReference{TxHash: "0xabc"})
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if verdict.Verified {
			t.Fatalf("indeterminate proof verdict must not aggregate to verified")
		}
		if !verdict.Proof.Indeterminate() {
			t.Fatalf("expected indeterminate proof verdict, got %+v", verdict.Proof)
		}
	})
}

// verdictInState builds a policy verdict in one of the three states a
// non-fatal evaluator can produce: definite pass, definite fail, or
// indeterminate.
func verdictInState(policy domain.PolicyName, state int) domain.PolicyVerdict {
	switch state {
	case 0:
		return domain.Pass(policy, "", nil)
	case 1:
		return domain.Fail(policy, domain.CodeEvaluatorError, nil)
	default:
		return domain.Indeterminate(policy, domain.CodeEvaluatorError, nil)
	}
}

func TestAggregateVerifiedEnumeratesAllVerdictCombinations(t *testing.T) {
	// All 3^4 combinations of the four non-fatal verdicts; the aggregate
	// may be true for the all-pass combination and no other.
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
					verdicts := []domain.PolicyVerdict{
						verdictInState(policies[0], a),
						verdictInState(policies[1], b),
						verdictInState(policies[2], c),
						verdictInState(policies[3], d),
					}
					want := a == 0 && b == 0 && c == 0 && d == 0
					if got := aggregateVerified(verdicts...); got != want {
						t.Fatalf("states (%d,%d,%d,%d): verified = %v, want %v", a, b, c, d, got, want)
					}
				}
			}
		}
	}
}

func TestVerifyAttestationChainMismatchAbortsBeforeOtherEvaluations(t *testing.T) {
	uc, ledger, _, reports := newVerifyFixture()
	ledger.chainID = 16

	_, err := uc.Execute(context.Background(), domain.AttestationReference{TxHash: "0xabc"})
	if !domain.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	for _, call := range ledger.calls {
		if call != "ChainID" {
			t.Fatalf("evaluator touched the ledger after chain mismatch: %s", call)
		}
	}
	if len(reports.saved) != 0 {
		t.Fatalf("no report must be persisted on fatal abort")
	}
}

func TestVerifyAttestationMissingProofAborts(t *testing.T) {
	uc, _, proofs, _ := newVerifyFixture()
	proofs.payloadErr = domain.ErrProofMissing

	_, err := uc.Execute(context.Background(), domain.AttestationReference{TxHash: "0xabc"})
	if !errors.Is(err, domain.ErrProofMissing) {
		t.Fatalf("expected ErrProofMissing, got %v", err)
	}
}

func TestVerifyAttestationUnknownTransaction(t *testing.T) {
	uc, ledger, _, _ := newVerifyFixture()
	ledger.txErr = domain.ErrTransactionNotFound

	_, err := uc.Execute(context.Background(), domain.AttestationReference{TxHash: "0xmissing"})
	if !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestVerifyAttestationPendingReceiptStillPersistsReport(t *testing.T) {
	uc, ledger, _, reports := newVerifyFixture()
	ledger.receiptErr = domain.ErrReceiptPending

	verdict, err := uc.Execute(context.Background(), domain.AttestationReference{TxHash: "0xabc"})
	if !errors.Is(err, domain.ErrReceiptPending) {
		t.Fatalf("expected ErrReceiptPending, got %v", err)
	}
	if verdict.Verified {
		t.Fatalf("pending receipt must not verify")
	}
	if !verdict.Confirmation.Indeterminate() {
		t.Fatalf("expected indeterminate confirmation verdict, got %+v", verdict.Confirmation)
	}
	if len(reports.saved) != 1 {
		t.Fatalf("partial verdict must still be persisted")
	}
}

func TestVerifyAttestationIdempotent(t *testing.T) {
	uc, _, _, _ := newVerifyFixture()
	ref := domain.AttestationReference{TxHash: "0xabc", ChainID: 114}

	first, err := uc.Execute(context.Background(), ref)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := uc.Execute(context.Background(), ref)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("repeated runs over unchanged facts must produce identical verdicts:\n%s\n%s", a, b)
	}
}

type stubOperator struct {
	result domain.PolicyResult
	err    error
}

func (s *stubOperator) Evaluate(context.Context, domain.OperatorPolicyInput) (domain.PolicyResult, error) {
	return s.result, s.err
}

func TestVerifyAttestationOperatorDenyOverrides(t *testing.T) {
	uc, _, _, _ := newVerifyFixture()
	uc.Operator = &stubOperator{result: domain.PolicyResult{
		Allow: false,
		Deny:  []domain.PolicyDeny{{Code: "SOURCE_NOT_ALLOWED", Message: "source not in allow list"}},
	}}

	verdict, err := uc.Execute(context.Background(), domain.AttestationReference{TxHash: "0xabc"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if verdict.Verified {
		t.Fatalf("operator deny must veto the aggregate")
	}
	if verdict.Operator == nil || verdict.Operator.Code != domain.CodeOperatorDeny {
		t.Fatalf("expected operator deny verdict, got %+v", verdict.Operator)
	}
}
