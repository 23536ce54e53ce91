package reportfs

import (
	"context"
	"testing"
	"time"

	"attestd/internal/domain"
)

func sampleVerdict(verified bool) domain.AttestationVerdict {
	return domain.AttestationVerdict{
		TxHash:       "0xabc",
		ChainID:      114,
		Verified:     verified,
		Confirmation: domain.Pass(domain.PolicyConfirmationDepth, "", nil),
		CheckedAt:    time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestSaveOverwritesAndGetRoundTrips(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	if err := store.Save(ctx, sampleVerdict(false)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, sampleVerdict(true)); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := store.Get(ctx, "0xabc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || !got.Verified {
		t.Fatalf("latest run must win, got %+v", got)
	}
	if got.ChainID != 114 || !got.Confirmation.OK() {
		t.Fatalf("verdict did not round-trip: %+v", got)
	}
}

func TestGetAbsentIsNil(t *testing.T) {
	got, err := New(t.TempDir()).Get(context.Background(), "0xnothing")
	if err != nil || got != nil {
		t.Fatalf("got=%v err=%v", got, err)
	}
}

func TestAppendAccumulatesOutcomes(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()
	intent := domain.RewardIntent{AttestationTxHash: "0xabc"}

	first := domain.RewardOutcome{Status: domain.RewardStatusDryRun, DryRun: true, Intent: intent}
	second := domain.RewardOutcome{Status: domain.RewardStatusExecuted, Intent: intent, RewardTxHash: "0xreward"}
	if err := store.Append(ctx, first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, second); err != nil {
		t.Fatalf("second append: %v", err)
	}

	outcomes, err := store.ListByAttestation(ctx, "0xabc")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if outcomes[0].Status != domain.RewardStatusDryRun || outcomes[1].Status != domain.RewardStatusExecuted {
		t.Fatalf("order not preserved: %+v", outcomes)
	}
}

func TestListByAttestationAbsentIsEmpty(t *testing.T) {
	outcomes, err := New(t.TempDir()).ListByAttestation(context.Background(), "0xnothing")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("expected no outcomes, got %d", len(outcomes))
	}
}
