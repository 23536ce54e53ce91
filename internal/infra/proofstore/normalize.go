package proofstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"attestd/internal/domain"
)

// Proof artifacts have accumulated historical field-name variants
// (snake_case and camelCase generations of the attestation client).
// They are normalized here, once, into the canonical ProofPayload;
// nothing past this boundary branches on field names.
func normalizeProof(payload []byte) (domain.ProofPayload, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return domain.ProofPayload{}, fmt.Errorf("decode proof artifact: %w", err)
	}

	out := domain.ProofPayload{}
	nodesRaw, ok := firstRaw(doc, "merkle_proof", "merkleProof", "proof")
	if !ok {
		return domain.ProofPayload{}, errors.New("proof artifact missing merkle proof nodes")
	}
	if err := json.Unmarshal(nodesRaw, &out.MerkleProof); err != nil {
		return domain.ProofPayload{}, fmt.Errorf("decode merkle proof nodes: %w", err)
	}

	claimRaw, ok := firstRaw(doc, "data", "response", "claim")
	if !ok {
		return domain.ProofPayload{}, errors.New("proof artifact missing claim body")
	}
	var claimDoc map[string]json.RawMessage
	if err := json.Unmarshal(claimRaw, &claimDoc); err != nil {
		return domain.ProofPayload{}, fmt.Errorf("decode claim body: %w", err)
	}

	out.Claim = domain.Claim{
		AttestationType:     pickString(claimDoc, "attestation_type", "attestationType"),
		SourceID:            pickString(claimDoc, "source_id", "sourceId"),
		VotingRound:         pickUint64(claimDoc, "voting_round", "votingRound"),
		LowestUsedTimestamp: pickUint64(claimDoc, "lowest_used_timestamp", "lowestUsedTimestamp"),
	}

	if requestRaw, ok := firstRaw(claimDoc, "request_body", "requestBody"); ok {
		var requestDoc map[string]json.RawMessage
		if err := json.Unmarshal(requestRaw, &requestDoc); err != nil {
			return domain.ProofPayload{}, fmt.Errorf("decode request body: %w", err)
		}
		out.Claim.RequestURL = pickString(requestDoc, "url")
		out.Claim.RequestMethod = pickString(requestDoc, "http_method", "httpMethod")
		out.Claim.RequestHeaders = pickString(requestDoc, "headers")
		out.Claim.RequestQuery = pickString(requestDoc, "query_params", "queryParams")
		out.Claim.RequestBody = pickString(requestDoc, "body")
		out.Claim.PostProcess = pickString(requestDoc, "post_process_jq", "postProcessJq", "postprocessJq")
		out.Claim.ABISignature = pickString(requestDoc, "abi_signature", "abiSignature")
	}

	if responseRaw, ok := firstRaw(claimDoc, "response_body", "responseBody"); ok {
		var responseDoc map[string]json.RawMessage
		if err := json.Unmarshal(responseRaw, &responseDoc); err != nil {
			return domain.ProofPayload{}, fmt.Errorf("decode response body: %w", err)
		}
		out.Claim.ResponseHex = pickString(responseDoc, "abi_encoded_data", "abiEncodedData")
	}

	if out.Claim.AttestationType == "" {
		return domain.ProofPayload{}, errors.New("proof artifact missing attestation type")
	}
	return out, nil
}

func firstRaw(doc map[string]json.RawMessage, names ...string) (json.RawMessage, bool) {
	for _, name := range names {
		if raw, ok := doc[name]; ok && len(raw) > 0 && string(raw) != "null" {
			return raw, true
		}
	}
	return nil, false
}

func pickString(doc map[string]json.RawMessage, names ...string) string {
	raw, ok := firstRaw(doc, names...)
	if !ok {
		return ""
	}
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return ""
	}
	return out
}

// pickUint64 tolerates both numeric and stringified numbers; older
// artifacts serialized round numbers as strings.
func pickUint64(doc map[string]json.RawMessage, names ...string) uint64 {
	raw, ok := firstRaw(doc, names...)
	if !ok {
		return 0
	}
	var number uint64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if parsed, err := strconv.ParseUint(text, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
