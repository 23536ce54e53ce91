package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"attestd/internal/domain"
)

// VerifyAttestation resolves a submitted attestation transaction and
// its proof artifact, runs the policy evaluators and persists the
// aggregate verdict. The chain-identity check runs first and aborts the
// run on mismatch; every other evaluation failure is captured as an
// indeterminate verdict so a durable, inspectable report is still
// written.
type VerifyAttestation struct {
	Ledger   domain.LedgerClient
	Proofs   domain.ProofStore
	Verifier domain.ProofVerifier
	Reports  domain.ReportRepository
	Operator domain.OperatorPolicy

	ExpectedChainID       uint64
	RequiredConfirmations uint64
	ExpectedPayloadDigest string
	StrictIntegrity       bool

	Now func() time.Time
}

func (uc *VerifyAttestation) Execute(ctx context.Context, ref domain.AttestationReference) (domain.AttestationVerdict, error) {
	if uc == nil || uc.Ledger == nil || uc.Proofs == nil || uc.Verifier == nil {
		return domain.AttestationVerdict{}, errors.New("ledger, proof store and verifier are required")
	}
	if ref.TxHash == "" {
		return domain.AttestationVerdict{}, &domain.ConfigurationError{Field: "tx_hash", Reason: "required"}
	}

	reported, err := uc.Ledger.ChainID(ctx)
	if err != nil {
		return domain.AttestationVerdict{}, fmt.Errorf("resolve chain id: %w", err)
	}
	if err := EvaluateChainIdentity(reported, uc.ExpectedChainID); err != nil {
		return domain.AttestationVerdict{}, err
	}

	payload, err := uc.Proofs.ReadProof(ctx, ref.TxHash)
	if err != nil {
		return domain.AttestationVerdict{}, err
	}
	submission, err := uc.Proofs.ReadSubmissionRecord(ctx, ref.TxHash)
	if err != nil {
		return domain.AttestationVerdict{}, err
	}
	artifact, err := uc.Proofs.ReadArtifact(ctx, ref.TxHash)
	if err != nil {
		return domain.AttestationVerdict{}, err
	}

	facts, factsErr := uc.resolveFacts(ctx, ref)
	if factsErr != nil && !errors.Is(factsErr, domain.ErrReceiptPending) {
		return domain.AttestationVerdict{}, factsErr
	}

	verdict := domain.AttestationVerdict{
		TxHash:        ref.TxHash,
		TargetAddress: ref.TargetAddress,
		ChainID:       reported,
		BlockNumber:   facts.BlockNumber,
		Facts:         facts,
		CheckedAt:     uc.now(),
	}

	// The four remaining evaluators are independent reads; each writes
	// only its own verdict slot.
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		verdict.Confirmation = EvaluateConfirmationDepth(facts, uc.RequiredConfirmations)
	}()
	go func() {
		defer wg.Done()
		verdict.Proof = EvaluateProofValidity(ctx, uc.Verifier, payload)
	}()
	go func() {
		defer wg.Done()
		verdict.Integrity = EvaluatePayloadIntegrity(artifact, submission, uc.ExpectedPayloadDigest, uc.StrictIntegrity)
	}()
	go func() {
		defer wg.Done()
		verdict.TimeWindow = EvaluateTimeWindow(payload.Claim, facts)
	}()
	wg.Wait()

	verdict.Confirmations = facts.Confirmations()
	verdict.Verified = aggregateVerified(verdict.Confirmation, verdict.Proof, verdict.Integrity, verdict.TimeWindow)

	if uc.Operator != nil {
		operator := uc.evaluateOperator(ctx, ref, payload, facts, verdict)
		verdict.Operator = &operator
		verdict.Verified = verdict.Verified && operator.OK()
	}

	if uc.Reports != nil {
		if err := uc.Reports.Save(ctx, verdict); err != nil {
			return verdict, fmt.Errorf("persist verification report: %w", err)
		}
	}
	return verdict, factsErr
}

func (uc *VerifyAttestation) resolveFacts(ctx context.Context, ref domain.AttestationReference) (domain.LedgerFacts, error) {
	if _, err := uc.Ledger.TransactionByHash(ctx, ref.TxHash); err != nil {
		return domain.LedgerFacts{}, err
	}

	height, err := uc.Ledger.BlockHeight(ctx)
	if err != nil {
		return domain.LedgerFacts{}, fmt.Errorf("resolve height: %w", err)
	}
	facts := domain.LedgerFacts{CurrentHeight: height, ReceiptStatus: domain.ReceiptUnknown}

	receipt, err := uc.Ledger.ReceiptByHash(ctx, ref.TxHash)
	if err != nil {
		if errors.Is(err, domain.ErrReceiptPending) {
			return facts, domain.ErrReceiptPending
		}
		return domain.LedgerFacts{}, err
	}
	facts.BlockNumber = receipt.BlockNumber
	facts.ReceiptStatus = receipt.Status
	facts.Logs = logsAt(receipt.Logs, ref.TargetAddress)

	timestamp, err := uc.Ledger.BlockTimestamp(ctx, receipt.BlockNumber)
	if err != nil {
		return domain.LedgerFacts{}, fmt.Errorf("resolve block timestamp: %w", err)
	}
	facts.BlockTimestamp = timestamp
	return facts, nil
}

func (uc *VerifyAttestation) evaluateOperator(ctx context.Context, ref domain.AttestationReference, payload domain.ProofPayload, facts domain.LedgerFacts, verdict domain.AttestationVerdict) domain.PolicyVerdict {
	result, err := uc.Operator.Evaluate(ctx, domain.OperatorPolicyInput{
		TxHash:        ref.TxHash,
		ChainID:       verdict.ChainID,
		Confirmations: facts.Confirmations(),
		Claim:         payload.Claim,
		Facts:         facts,
		Verdicts:      []domain.PolicyVerdict{verdict.Confirmation, verdict.Proof, verdict.Integrity, verdict.TimeWindow},
	})
	if err != nil {
		return domain.Indeterminate(domain.PolicyOperatorRules, domain.CodeEvaluatorError, map[string]any{
			"error": err.Error(),
		})
	}
	if result.Allow {
		return domain.Pass(domain.PolicyOperatorRules, "", nil)
	}
	deny := make([]map[string]any, 0, len(result.Deny))
	for _, d := range result.Deny {
		deny = append(deny, map[string]any{"code": d.Code, "message": d.Message})
	}
	return domain.Fail(domain.PolicyOperatorRules, domain.CodeOperatorDeny, map[string]any{"deny": deny})
}

// aggregateVerified admits only definite passes; a failed or
// indeterminate verdict in any slot keeps the aggregate false.
func aggregateVerified(verdicts ...domain.PolicyVerdict) bool {
	for _, v := range verdicts {
		if !v.OK() {
			return false
		}
	}
	return true
}

func (uc *VerifyAttestation) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now().UTC()
}

func logsAt(logs []domain.EventLog, address string) []domain.EventLog {
	if address == "" {
		return logs
	}
	out := make([]domain.EventLog, 0, len(logs))
	for _, entry := range logs {
		if equalAddress(entry.Address, address) {
			out = append(out, entry)
		}
	}
	return out
}

func equalAddress(a, b string) bool {
	return normalizeDigest(a) == normalizeDigest(b)
}
