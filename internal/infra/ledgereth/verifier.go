package ledgereth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"attestd/internal/domain"
)

// ContractCaller is the slice of the ledger boundary the verifier
// needs; tests substitute it directly.
type ContractCaller interface {
	Call(ctx context.Context, address string, data []byte) ([]byte, error)
}

// CallStrategy is one known signature of the external verification
// contract. The interface has evolved; callers stay compatible with
// either shape by trying strategies in order.
type CallStrategy struct {
	Name   string
	Method string
	ABI    abi.ABI
	Build  func(domain.ProofPayload) (any, error)
}

// Verifier tries each strategy in order. A decode/ABI mismatch moves on
// to the next strategy; a logical false and every other failure mode is
// final.
type Verifier struct {
	Caller     ContractCaller
	Contract   string
	Strategies []CallStrategy
}

func NewVerifier(caller ContractCaller, contract string) (*Verifier, error) {
	strategies, err := DefaultStrategies()
	if err != nil {
		return nil, err
	}
	return &Verifier{Caller: caller, Contract: contract, Strategies: strategies}, nil
}

func (v *Verifier) VerifyProof(ctx context.Context, payload domain.ProofPayload) (bool, string, error) {
	if len(v.Strategies) == 0 {
		return false, "", errors.New("no verification call strategies configured")
	}
	for _, strategy := range v.Strategies {
		arg, err := strategy.Build(payload)
		if err != nil {
			return false, "", fmt.Errorf("build %s proof argument: %w", strategy.Name, err)
		}
		data, err := strategy.ABI.Pack(strategy.Method, arg)
		if err != nil {
			continue
		}
		ret, err := v.Caller.Call(ctx, v.Contract, data)
		if err != nil {
			return false, "", err
		}
		if len(ret) == 0 {
			// No return data: the contract does not expose this
			// signature. Fall through to the next shape.
			continue
		}
		results, err := strategy.ABI.Unpack(strategy.Method, ret)
		if err != nil || len(results) == 0 {
			continue
		}
		accepted, ok := results[0].(bool)
		if !ok {
			continue
		}
		return accepted, strategy.Name, nil
	}
	return false, "", domain.ErrSignatureMismatch
}

const web2JsonVerifierABI = `[{
  "type": "function",
  "name": "verifyWeb2Json",
  "stateMutability": "view",
  "inputs": [{"name": "_proof", "type": "tuple", "components": [
    {"name": "merkleProof", "type": "bytes32[]"},
    {"name": "data", "type": "tuple", "components": [
      {"name": "attestationType", "type": "bytes32"},
      {"name": "sourceId", "type": "bytes32"},
      {"name": "votingRound", "type": "uint64"},
      {"name": "lowestUsedTimestamp", "type": "uint64"},
      {"name": "requestBody", "type": "tuple", "components": [
        {"name": "url", "type": "string"},
        {"name": "httpMethod", "type": "string"},
        {"name": "headers", "type": "string"},
        {"name": "queryParams", "type": "string"},
        {"name": "body", "type": "string"},
        {"name": "postProcessJq", "type": "string"},
        {"name": "abiSignature", "type": "string"}
      ]},
      {"name": "responseBody", "type": "tuple", "components": [
        {"name": "abiEncodedData", "type": "bytes"}
      ]}
    ]}
  ]}],
  "outputs": [{"name": "_proved", "type": "bool"}]
}]`

const jsonApiVerifierABI = `[{
  "type": "function",
  "name": "verifyJsonApi",
  "stateMutability": "view",
  "inputs": [{"name": "_proof", "type": "tuple", "components": [
    {"name": "merkleProof", "type": "bytes32[]"},
    {"name": "data", "type": "tuple", "components": [
      {"name": "attestationType", "type": "bytes32"},
      {"name": "sourceId", "type": "bytes32"},
      {"name": "votingRound", "type": "uint64"},
      {"name": "lowestUsedTimestamp", "type": "uint64"},
      {"name": "requestBody", "type": "tuple", "components": [
        {"name": "url", "type": "string"},
        {"name": "postprocessJq", "type": "string"},
        {"name": "abi_signature", "type": "string"}
      ]},
      {"name": "responseBody", "type": "tuple", "components": [
        {"name": "abi_encoded_data", "type": "bytes"}
      ]}
    ]}
  ]}],
  "outputs": [{"name": "_proved", "type": "bool"}]
}]`

type web2JsonRequestBody struct {
	Url           string `abi:"url"`
	HttpMethod    string `abi:"httpMethod"`
	Headers       string `abi:"headers"`
	QueryParams   string `abi:"queryParams"`
	Body          string `abi:"body"`
	PostProcessJq string `abi:"postProcessJq"`
	AbiSignature  string `abi:"abiSignature"`
}

type web2JsonResponseBody struct {
	AbiEncodedData []byte `abi:"abiEncodedData"`
}

type web2JsonResponse struct {
	AttestationType     [32]byte             `abi:"attestationType"`
	SourceId            [32]byte             `abi:"sourceId"`
	VotingRound         uint64               `abi:"votingRound"`
	LowestUsedTimestamp uint64               `abi:"lowestUsedTimestamp"`
	RequestBody         web2JsonRequestBody  `abi:"requestBody"`
	ResponseBody        web2JsonResponseBody `abi:"responseBody"`
}

type web2JsonProof struct {
	MerkleProof [][32]byte       `abi:"merkleProof"`
	Data        web2JsonResponse `abi:"data"`
}

type jsonApiRequestBody struct {
	Url           string `abi:"url"`
	PostprocessJq string `abi:"postprocessJq"`
	AbiSignature  string `abi:"abi_signature"`
}

type jsonApiResponseBody struct {
	AbiEncodedData []byte `abi:"abi_encoded_data"`
}

type jsonApiResponse struct {
	AttestationType     [32]byte            `abi:"attestationType"`
	SourceId            [32]byte            `abi:"sourceId"`
	VotingRound         uint64              `abi:"votingRound"`
	LowestUsedTimestamp uint64              `abi:"lowestUsedTimestamp"`
	RequestBody         jsonApiRequestBody  `abi:"requestBody"`
	ResponseBody        jsonApiResponseBody `abi:"responseBody"`
}

type jsonApiProof struct {
	MerkleProof [][32]byte      `abi:"merkleProof"`
	Data        jsonApiResponse `abi:"data"`
}

// DefaultStrategies returns the newer Web2Json signature first, with
// the older JsonApi shape as the fallback.
func DefaultStrategies() ([]CallStrategy, error) {
	web2JsonABI, err := abi.JSON(strings.NewReader(web2JsonVerifierABI))
	if err != nil {
		return nil, fmt.Errorf("parse web2json abi: %w", err)
	}
	jsonAPIABI, err := abi.JSON(strings.NewReader(jsonApiVerifierABI))
	if err != nil {
		return nil, fmt.Errorf("parse jsonapi abi: %w", err)
	}
	return []CallStrategy{
		{Name: "Web2Json", Method: "verifyWeb2Json", ABI: web2JsonABI, Build: buildWeb2JsonProof},
		{Name: "JsonApi", Method: "verifyJsonApi", ABI: jsonAPIABI, Build: buildJsonApiProof},
	}, nil
}

func buildWeb2JsonProof(payload domain.ProofPayload) (any, error) {
	nodes, err := decodeProofNodes(payload.MerkleProof)
	if err != nil {
		return nil, err
	}
	response, err := decodeHexBytes(payload.Claim.ResponseHex)
	if err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	claim := payload.Claim
	return web2JsonProof{
		MerkleProof: nodes,
		Data: web2JsonResponse{
			AttestationType:     leftAlignedBytes32(claim.AttestationType),
			SourceId:            leftAlignedBytes32(claim.SourceID),
			VotingRound:         claim.VotingRound,
			LowestUsedTimestamp: claim.LowestUsedTimestamp,
			RequestBody: web2JsonRequestBody{
				Url:           claim.RequestURL,
				HttpMethod:    defaultString(claim.RequestMethod, "GET"),
				Headers:       defaultString(claim.RequestHeaders, "{}"),
				QueryParams:   defaultString(claim.RequestQuery, "{}"),
				Body:          defaultString(claim.RequestBody, "{}"),
				PostProcessJq: claim.PostProcess,
				AbiSignature:  claim.ABISignature,
			},
			ResponseBody: web2JsonResponseBody{AbiEncodedData: response},
		},
	}, nil
}

func buildJsonApiProof(payload domain.ProofPayload) (any, error) {
	nodes, err := decodeProofNodes(payload.MerkleProof)
	if err != nil {
		return nil, err
	}
	response, err := decodeHexBytes(payload.Claim.ResponseHex)
	if err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	claim := payload.Claim
	return jsonApiProof{
		MerkleProof: nodes,
		Data: jsonApiResponse{
			AttestationType:     leftAlignedBytes32(claim.AttestationType),
			SourceId:            leftAlignedBytes32(claim.SourceID),
			VotingRound:         claim.VotingRound,
			LowestUsedTimestamp: claim.LowestUsedTimestamp,
			RequestBody: jsonApiRequestBody{
				Url:           claim.RequestURL,
				PostprocessJq: claim.PostProcess,
				AbiSignature:  claim.ABISignature,
			},
			ResponseBody: jsonApiResponseBody{AbiEncodedData: response},
		},
	}, nil
}

func decodeProofNodes(nodes []string) ([][32]byte, error) {
	out := make([][32]byte, 0, len(nodes))
	for i, node := range nodes {
		raw, err := decodeHexBytes(node)
		if err != nil {
			return nil, fmt.Errorf("decode proof node %d: %w", i, err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("proof node %d: want 32 bytes, got %d", i, len(raw))
		}
		var fixed [32]byte
		copy(fixed[:], raw)
		out = append(out, fixed)
	}
	return out, nil
}

// leftAlignedBytes32 encodes a short identifier the way attestation
// type and source id tags are committed: UTF-8 bytes, zero padded on
// the right. A 0x-prefixed 32-byte hex value is used as is.
func leftAlignedBytes32(value string) [32]byte {
	var out [32]byte
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		if raw, err := hex.DecodeString(value[2:]); err == nil && len(raw) == 32 {
			copy(out[:], raw)
			return out
		}
	}
	copy(out[:], value)
	return out
}

func decodeHexBytes(value string) ([]byte, error) {
	trimmed := trimHexPrefix(strings.TrimSpace(value))
	if trimmed == "" {
		return nil, nil
	}
	return hex.DecodeString(trimmed)
}

func defaultString(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
