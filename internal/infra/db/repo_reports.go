package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"attestd/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save upserts on tx hash. Verification is re-runnable and the latest
// run wins; history lives in the reward outcomes, not here.
func (r *ReportRepository) Save(ctx context.Context, verdict domain.AttestationVerdict) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if verdict.TxHash == "" {
		return errors.New("tx_hash is required")
	}
	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}

	model := VerificationReportModel{
		TxHash:        verdict.TxHash,
		ChainID:       verdict.ChainID,
		BlockNumber:   verdict.BlockNumber,
		Confirmations: verdict.Confirmations,
		Verified:      verdict.Verified,
		ReportJSON:    payload,
		CheckedAt:     verdict.CheckedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}},
		UpdateAll: true,
	}).Create(&model).Error
}

func (r *ReportRepository) Get(ctx context.Context, txHash string) (*domain.AttestationVerdict, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if txHash == "" {
		return nil, errors.New("tx_hash is required")
	}
	var model VerificationReportModel
	if err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var verdict domain.AttestationVerdict
	if err := json.Unmarshal(model.ReportJSON, &verdict); err != nil {
		return nil, fmt.Errorf("decode stored verdict: %w", err)
	}
	return &verdict, nil
}
