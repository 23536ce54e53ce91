package proofstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"attestd/internal/domain"
)

// FSStore reads the artifacts the acquisition stage leaves on disk,
// keyed by attestation tx hash:
//
//	<dir>/<key>.proof.json        Merkle-proof artifact
//	<dir>/<key>.submission.json   request-submission record (optional)
//	<dir>/<key>.artifact          exact attested source bytes (optional)
type FSStore struct {
	Dir string
}

func New(dir string) *FSStore {
	return &FSStore{Dir: dir}
}

func (s *FSStore) ReadProof(ctx context.Context, key string) (domain.ProofPayload, error) {
	payload, err := os.ReadFile(s.path(key, ".proof.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ProofPayload{}, domain.ErrProofMissing
		}
		return domain.ProofPayload{}, fmt.Errorf("read proof artifact: %w", err)
	}
	return normalizeProof(payload)
}

func (s *FSStore) ReadSubmissionRecord(ctx context.Context, key string) (*domain.SubmissionRecord, error) {
	payload, err := os.ReadFile(s.path(key, ".submission.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read submission record: %w", err)
	}
	return normalizeSubmission(payload)
}

func (s *FSStore) ReadArtifact(ctx context.Context, key string) ([]byte, error) {
	payload, err := os.ReadFile(s.path(key, ".artifact"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read attested artifact: %w", err)
	}
	return payload, nil
}

func (s *FSStore) path(key, suffix string) string {
	return filepath.Join(s.Dir, safeKey(key)+suffix)
}

// safeKey keeps artifact names flat; tx hashes are already safe but a
// caller-supplied key must not escape the store directory.
func safeKey(key string) string {
	return filepath.Base(key)
}

func normalizeSubmission(payload []byte) (*domain.SubmissionRecord, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode submission record: %w", err)
	}
	record := &domain.SubmissionRecord{
		ComputedDigest: pickString(doc, "computed_digest", "computedDigest", "mic"),
		RequestHex:     pickString(doc, "request_hex", "abiEncodedRequest", "abi_encoded_request"),
	}
	if raw, ok := firstRaw(doc, "submitted_at", "submittedAt"); ok {
		_ = json.Unmarshal(raw, &record.SubmittedAt)
	}
	return record, nil
}
