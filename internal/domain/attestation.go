package domain

import (
	"math/big"
	"time"
)

// AttestationReference identifies one attestation attempt. It is
// immutable once constructed; a verification run is keyed by TxHash.
type AttestationReference struct {
	TxHash        string `json:"tx_hash"`
	TargetAddress string `json:"target_address"`
	ChainID       uint64 `json:"chain_id"`
}

// Claim is the structured body of an externally produced attestation.
type Claim struct {
	AttestationType     string `json:"attestation_type"`
	SourceID            string `json:"source_id"`
	VotingRound         uint64 `json:"voting_round"`
	LowestUsedTimestamp uint64 `json:"lowest_used_timestamp"`

	RequestURL     string `json:"request_url"`
	RequestMethod  string `json:"request_method,omitempty"`
	RequestHeaders string `json:"request_headers,omitempty"`
	RequestQuery   string `json:"request_query,omitempty"`
	RequestBody    string `json:"request_body,omitempty"`
	PostProcess    string `json:"post_process,omitempty"`
	ABISignature   string `json:"abi_signature,omitempty"`

	// ResponseHex is the hex-encoded abi-encoded response body.
	ResponseHex string `json:"response_hex"`
}

// ProofPayload is the Merkle-proof artifact produced by the attestation
// network. Read-only for the duration of one verification run.
type ProofPayload struct {
	MerkleProof []string `json:"merkle_proof"`
	Claim       Claim    `json:"claim"`
}

// SubmissionRecord is written by the acquisition stage when the
// attestation request was submitted.
type SubmissionRecord struct {
	ComputedDigest string    `json:"computed_digest,omitempty"`
	RequestHex     string    `json:"request_hex,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at,omitempty"`
}

type ReceiptStatus string

const (
	ReceiptSuccess ReceiptStatus = "success"
	ReceiptFailure ReceiptStatus = "failure"
	ReceiptUnknown ReceiptStatus = "unknown"
)

type EventLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        []byte   `json:"data,omitempty"`
	BlockNumber uint64   `json:"block_number"`
}

// LedgerFacts are the observed, read-only facts about the attestation
// transaction at the moment a verification run resolved them.
type LedgerFacts struct {
	BlockNumber    uint64        `json:"block_number"`
	BlockTimestamp uint64        `json:"block_timestamp"`
	CurrentHeight  uint64        `json:"current_height"`
	ReceiptStatus  ReceiptStatus `json:"receipt_status"`
	Logs           []EventLog    `json:"logs,omitempty"`
}

// Confirmations counts the attestation block itself, so a transaction
// in the head block has one confirmation.
func (f LedgerFacts) Confirmations() uint64 {
	if f.BlockNumber == 0 || f.CurrentHeight < f.BlockNumber {
		return 0
	}
	return f.CurrentHeight - f.BlockNumber + 1
}

// RewardIntent carries the application-level payload of one reward call.
type RewardIntent struct {
	AttestationTxHash string   `json:"attestation_tx_hash"`
	PayloadHash       string   `json:"payload_hash"`
	Slot              string   `json:"slot"`
	Participant       string   `json:"participant"`
	Amount            *big.Int `json:"amount"`
}

// RewardRecord is the durable on-ledger fact that a reward for a given
// attestation transaction has been executed. At most one record may
// ever exist per attestation tx hash; the reward contract enforces it.
type RewardRecord struct {
	AttestationTxHash string   `json:"attestation_tx_hash"`
	PayloadHash       string   `json:"payload_hash"`
	Slot              string   `json:"slot"`
	Participant       string   `json:"participant"`
	Amount            *big.Int `json:"amount"`
	RewardTxHash      string   `json:"reward_tx_hash,omitempty"`
	BlockNumber       uint64   `json:"block_number,omitempty"`
}
