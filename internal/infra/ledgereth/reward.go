package ledgereth

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"attestd/internal/domain"
)

const rewardContractABI = `[
  {
    "type": "function",
    "name": "rewardOf",
    "stateMutability": "view",
    "inputs": [{"name": "attestationTx", "type": "bytes32"}],
    "outputs": [
      {"name": "exists", "type": "bool"},
      {"name": "payloadHash", "type": "bytes32"},
      {"name": "slot", "type": "bytes32"},
      {"name": "participant", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ]
  },
  {
    "type": "function",
    "name": "recordReward",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "attestationTx", "type": "bytes32"},
      {"name": "payloadHash", "type": "bytes32"},
      {"name": "slot", "type": "bytes32"},
      {"name": "participant", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": []
  },
  {
    "type": "event",
    "name": "RewardRecorded",
    "inputs": [
      {"name": "attestationTx", "type": "bytes32", "indexed": true},
      {"name": "payloadHash", "type": "bytes32", "indexed": false},
      {"name": "slot", "type": "bytes32", "indexed": false},
      {"name": "participant", "type": "address", "indexed": true},
      {"name": "amount", "type": "uint256", "indexed": false}
    ]
  }
]`

// RewardLedger is the slice of the ledger boundary the reward binding
// needs.
type RewardLedger interface {
	Call(ctx context.Context, address string, data []byte) ([]byte, error)
	EstimateGas(ctx context.Context, address string, data []byte) (uint64, error)
	Submit(ctx context.Context, address string, data []byte) (string, error)
}

// RewardBinding speaks to the deployed reward-recording contract, which
// holds the authoritative replay guard keyed by attestation tx hash.
type RewardBinding struct {
	ledger   RewardLedger
	contract string
	abi      abi.ABI
}

func NewRewardBinding(ledger RewardLedger, contract string) (*RewardBinding, error) {
	if contract == "" {
		return nil, &domain.ConfigurationError{Field: "REWARD_CONTRACT_ADDRESS", Reason: "required"}
	}
	parsed, err := abi.JSON(strings.NewReader(rewardContractABI))
	if err != nil {
		return nil, fmt.Errorf("parse reward abi: %w", err)
	}
	return &RewardBinding{ledger: ledger, contract: contract, abi: parsed}, nil
}

func (b *RewardBinding) RecordOf(ctx context.Context, attestationTxHash string) (*domain.RewardRecord, error) {
	data, err := b.abi.Pack("rewardOf", common.HexToHash(attestationTxHash))
	if err != nil {
		return nil, fmt.Errorf("encode rewardOf: %w", err)
	}
	ret, err := b.ledger.Call(ctx, b.contract, data)
	if err != nil {
		return nil, err
	}
	results, err := b.abi.Unpack("rewardOf", ret)
	if err != nil || len(results) != 5 {
		return nil, fmt.Errorf("decode rewardOf return: %w", err)
	}
	exists, _ := results[0].(bool)
	if !exists {
		return nil, nil
	}
	payloadHash, _ := results[1].([32]byte)
	slot, _ := results[2].([32]byte)
	participant, _ := results[3].(common.Address)
	amount, _ := results[4].(*big.Int)
	return &domain.RewardRecord{
		AttestationTxHash: attestationTxHash,
		PayloadHash:       common.Hash(payloadHash).Hex(),
		Slot:              common.Hash(slot).Hex(),
		Participant:       participant.Hex(),
		Amount:            amount,
	}, nil
}

func (b *RewardBinding) EstimateRecord(ctx context.Context, intent domain.RewardIntent) (uint64, error) {
	data, err := b.encodeRecord(intent)
	if err != nil {
		return 0, err
	}
	return b.ledger.EstimateGas(ctx, b.contract, data)
}

func (b *RewardBinding) SubmitRecord(ctx context.Context, intent domain.RewardIntent) (string, error) {
	data, err := b.encodeRecord(intent)
	if err != nil {
		return "", err
	}
	return b.ledger.Submit(ctx, b.contract, data)
}

func (b *RewardBinding) encodeRecord(intent domain.RewardIntent) ([]byte, error) {
	amount := intent.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}
	data, err := b.abi.Pack("recordReward",
		common.HexToHash(intent.AttestationTxHash),
		common.HexToHash(intent.PayloadHash),
		slotKey(intent.Slot),
		common.HexToAddress(intent.Participant),
		amount,
	)
	if err != nil {
		return nil, fmt.Errorf("encode recordReward: %w", err)
	}
	return data, nil
}

// slotKey accepts either a 32-byte hex key or an opaque label, which is
// hashed so any caller-supplied slot identifier fits the contract slot.
func slotKey(slot string) common.Hash {
	trimmed := strings.TrimSpace(slot)
	if strings.HasPrefix(trimmed, "0x") && len(trimmed) == 66 {
		return common.HexToHash(trimmed)
	}
	return crypto.Keccak256Hash([]byte(trimmed))
}
