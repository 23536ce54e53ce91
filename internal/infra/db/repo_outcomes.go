package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"attestd/internal/domain"

	"gorm.io/gorm"
)

type OutcomeRepository struct {
	db *gorm.DB
}

func NewOutcomeRepository(db *gorm.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

func (r *OutcomeRepository) Append(ctx context.Context, outcome domain.RewardOutcome) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if outcome.Intent.AttestationTxHash == "" {
		return errors.New("attestation tx hash is required")
	}
	if outcome.Status == "" {
		return errors.New("status is required")
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}

	model := RewardOutcomeModel{
		AttestationTxHash: outcome.Intent.AttestationTxHash,
		Status:            string(outcome.Status),
		DryRun:            outcome.DryRun,
		RewardTxHash:      stringPtrIfNotEmpty(outcome.RewardTxHash),
		BlockNumber:       int64PtrIfNotZero(outcome.BlockNumber),
		GasEstimate:       int64PtrIfNotZero(outcome.GasEstimate),
		GasUsed:           int64PtrIfNotZero(outcome.GasUsed),
		OutcomeJSON:       payload,
		CreatedAt:         time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *OutcomeRepository) ListByAttestation(ctx context.Context, attestationTxHash string) ([]domain.RewardOutcome, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if attestationTxHash == "" {
		return nil, errors.New("attestation tx hash is required")
	}
	var models []RewardOutcomeModel
	if err := r.db.WithContext(ctx).
		Where("attestation_tx_hash = ?", attestationTxHash).
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RewardOutcome, 0, len(models))
	for _, model := range models {
		var outcome domain.RewardOutcome
		if err := json.Unmarshal(model.OutcomeJSON, &outcome); err != nil {
			return nil, fmt.Errorf("decode stored outcome: %w", err)
		}
		out = append(out, outcome)
	}
	return out, nil
}
