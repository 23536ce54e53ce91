package domain

import "context"

// ProofStore loads artifacts written by the acquisition stage. Field
// name variants in the stored JSON are normalized at this boundary;
// callers only ever see the canonical ProofPayload shape.
type ProofStore interface {
	ReadProof(ctx context.Context, key string) (ProofPayload, error)
	// ReadSubmissionRecord returns nil when no record was written for
	// the key; that is not an error.
	ReadSubmissionRecord(ctx context.Context, key string) (*SubmissionRecord, error)
	// ReadArtifact returns the exact bytes of the originally attested
	// data artifact, or nil when none was stored.
	ReadArtifact(ctx context.Context, key string) ([]byte, error)
}

// ReportRepository persists AttestationVerdicts keyed by attestation tx
// hash. Save overwrites any prior run for the same hash; verification
// is idempotent and re-runnable.
type ReportRepository interface {
	Save(ctx context.Context, verdict AttestationVerdict) error
	Get(ctx context.Context, txHash string) (*AttestationVerdict, error)
}

// OutcomeRepository is append-only; every gate invocation leaves a
// durable record, including failed ones.
type OutcomeRepository interface {
	Append(ctx context.Context, outcome RewardOutcome) error
	ListByAttestation(ctx context.Context, attestationTxHash string) ([]RewardOutcome, error)
}
