package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"attestd/internal/domain"
)

// EvaluateChainIdentity compares the ledger's reported chain identifier
// against the configured one. A mismatch is a configuration error, not
// a verification failure: the run must abort before any other policy
// touches the network.
func EvaluateChainIdentity(reported, expected uint64) error {
	if reported == expected {
		return nil
	}
	return &domain.ConfigurationError{
		Field:  "CHAIN_ID",
		Code:   domain.CodeChainMismatch,
		Reason: "ledger reports chain " + strconv.FormatUint(reported, 10) + ", configured " + strconv.FormatUint(expected, 10),
	}
}

func EvaluateConfirmationDepth(facts domain.LedgerFacts, required uint64) domain.PolicyVerdict {
	detail := map[string]any{
		"required":      required,
		"confirmations": facts.Confirmations(),
		"block_number":  facts.BlockNumber,
		"height":        facts.CurrentHeight,
	}
	switch facts.ReceiptStatus {
	case domain.ReceiptUnknown:
		return domain.Indeterminate(domain.PolicyConfirmationDepth, domain.CodeReceiptPending, detail)
	case domain.ReceiptFailure:
		return domain.Fail(domain.PolicyConfirmationDepth, domain.CodeReceiptFailed, detail)
	}
	if facts.Confirmations() >= required {
		return domain.Pass(domain.PolicyConfirmationDepth, "", detail)
	}
	return domain.Fail(domain.PolicyConfirmationDepth, domain.CodeStaleConfirmations, detail)
}

// EvaluateProofValidity asks the external verification contract whether
// it accepts the proof. A failure to evaluate (network, RPC) becomes an
// indeterminate verdict with the error recorded, so the run still
// produces a persisted report.
func EvaluateProofValidity(ctx context.Context, verifier domain.ProofVerifier, payload domain.ProofPayload) domain.PolicyVerdict {
	accepted, strategy, err := verifier.VerifyProof(ctx, payload)
	if err != nil {
		code := domain.CodeEvaluatorError
		if errors.Is(err, domain.ErrSignatureMismatch) {
			code = domain.CodeSignatureMismatch
		}
		return domain.Indeterminate(domain.PolicyProofValidity, code, map[string]any{
			"error": err.Error(),
		})
	}
	detail := map[string]any{"strategy": strategy, "proof_nodes": len(payload.MerkleProof)}
	if accepted {
		return domain.Pass(domain.PolicyProofValidity, domain.CodeProofAccepted, detail)
	}
	return domain.Fail(domain.PolicyProofValidity, domain.CodeProofRejected, detail)
}

// EvaluatePayloadIntegrity recomputes the digest over the exact bytes
// of the attested artifact and compares it with the operator-supplied
// digest and the digest recorded at submission, where present. With
// neither reference present the check is vacuous: a pass by default, or
// indeterminate under strict mode. The lenient default is a deliberate
// trust-reduction fallback, recorded as NO_DIGEST_TO_COMPARE.
func EvaluatePayloadIntegrity(artifact []byte, submission *domain.SubmissionRecord, expectedDigest string, strict bool) domain.PolicyVerdict {
	expected := normalizeDigest(expectedDigest)
	recorded := ""
	if submission != nil {
		recorded = normalizeDigest(submission.ComputedDigest)
	}

	if expected == "" && recorded == "" {
		detail := map[string]any{"strict": strict}
		if strict {
			return domain.Indeterminate(domain.PolicyPayloadIntegrity, domain.CodeNoDigestToCompare, detail)
		}
		return domain.Pass(domain.PolicyPayloadIntegrity, domain.CodeNoDigestToCompare, detail)
	}

	if artifact == nil {
		return domain.Indeterminate(domain.PolicyPayloadIntegrity, domain.CodeEvaluatorError, map[string]any{
			"error": "artifact bytes unavailable for digest recomputation",
		})
	}

	sum := sha256.Sum256(artifact)
	computed := hex.EncodeToString(sum[:])
	detail := map[string]any{"computed": computed}
	if expected != "" {
		detail["expected"] = expected
		if computed != expected {
			return domain.Fail(domain.PolicyPayloadIntegrity, domain.CodeDigestMismatch, detail)
		}
	}
	if recorded != "" {
		detail["recorded"] = recorded
		if computed != recorded {
			return domain.Fail(domain.PolicyPayloadIntegrity, domain.CodeDigestMismatch, detail)
		}
	}
	return domain.Pass(domain.PolicyPayloadIntegrity, domain.CodeDigestMatch, detail)
}

// EvaluateTimeWindow checks that the attestation block is not earlier
// than the claim's lower timestamp bound (zero means no bound), and
// that a queried time range encoded in the request URL, if any, is not
// inverted. Malformed or absent range encoding is not a failure.
func EvaluateTimeWindow(claim domain.Claim, facts domain.LedgerFacts) domain.PolicyVerdict {
	detail := map[string]any{
		"block_timestamp": facts.BlockTimestamp,
		"lower_bound":     claim.LowestUsedTimestamp,
	}
	if claim.LowestUsedTimestamp != 0 && facts.ReceiptStatus == domain.ReceiptUnknown {
		// No containing block yet, so there is no timestamp to compare.
		return domain.Indeterminate(domain.PolicyTimeWindow, domain.CodeReceiptPending, detail)
	}
	if claim.LowestUsedTimestamp != 0 && facts.BlockTimestamp < claim.LowestUsedTimestamp {
		return domain.Fail(domain.PolicyTimeWindow, domain.CodeBeforeLowerBound, detail)
	}
	if start, end, ok := queriedRange(claim.RequestURL); ok {
		detail["range_start"] = start.Unix()
		detail["range_end"] = end.Unix()
		if !end.After(start) {
			return domain.Fail(domain.PolicyTimeWindow, domain.CodeInvertedRange, detail)
		}
	}
	return domain.Pass(domain.PolicyTimeWindow, "", detail)
}

var rangeParamPairs = [][2]string{
	{"start", "end"},
	{"from", "to"},
	{"start_time", "end_time"},
	{"startTime", "endTime"},
}

func queriedRange(rawURL string) (time.Time, time.Time, bool) {
	if rawURL == "" {
		return time.Time{}, time.Time{}, false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	query := parsed.Query()
	for _, pair := range rangeParamPairs {
		startRaw := query.Get(pair[0])
		endRaw := query.Get(pair[1])
		if startRaw == "" || endRaw == "" {
			continue
		}
		start, okStart := parseTimestamp(startRaw)
		end, okEnd := parseTimestamp(endRaw)
		if okStart && okEnd {
			return start, end, true
		}
	}
	return time.Time{}, time.Time{}, false
}

func parseTimestamp(value string) (time.Time, bool) {
	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), true
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC(), true
	}
	return time.Time{}, false
}

func normalizeDigest(value string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
}
