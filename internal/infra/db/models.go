package db

import "time"

type VerificationReportModel struct {
	TxHash        string    `gorm:"primaryKey"`
	ChainID       uint64    `gorm:"not null"`
	BlockNumber   uint64    `gorm:"not null"`
	Confirmations uint64    `gorm:"not null"`
	Verified      bool      `gorm:"index;not null"`
	ReportJSON    []byte    `gorm:"type:jsonb;not null"`
	CheckedAt     time.Time `gorm:"not null"`
}

func (VerificationReportModel) TableName() string {
	return "verification_reports"
}

type RewardOutcomeModel struct {
	ID                int64  `gorm:"primaryKey"`
	AttestationTxHash string `gorm:"index;not null"`
	Status            string `gorm:"not null"`
	DryRun            bool   `gorm:"not null"`
	RewardTxHash      *string
	BlockNumber       *int64
	GasEstimate       *int64
	GasUsed           *int64
	OutcomeJSON       []byte    `gorm:"type:jsonb;not null"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (RewardOutcomeModel) TableName() string {
	return "reward_outcomes"
}
