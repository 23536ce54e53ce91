package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"

	"attestd/internal/config"
	"attestd/internal/domain"
)

func runReward(args []string) int {
	fs := flag.NewFlagSet("reward", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var txHash string
	var payloadHash string
	var slot string
	var participant string
	var amount string
	var execute bool
	fs.StringVar(&txHash, "tx", "", "attestation transaction hash")
	fs.StringVar(&payloadHash, "payload-hash", "", "32-byte payload hash hex")
	fs.StringVar(&slot, "slot", "", "reward slot key or label")
	fs.StringVar(&participant, "participant", "", "reward recipient address")
	fs.StringVar(&amount, "amount", "", "reward amount in wei")
	fs.BoolVar(&execute, "execute", false, "submit the reward call; without it the gate dry-runs")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if txHash == "" || payloadHash == "" || slot == "" || participant == "" {
		fmt.Fprintln(os.Stderr, "reward requires --tx, --payload-hash, --slot and --participant")
		return exitConfig
	}

	cfg := config.FromEnv()
	if cfg.RewardContractAddress == "" {
		fmt.Fprintln(os.Stderr, "reward requires REWARD_CONTRACT_ADDRESS")
		return exitConfig
	}
	mode, err := domain.ParseMode(cfg.Mode)
	if err != nil {
		return fail(err)
	}

	ctx := context.Background()
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	defer p.Close()

	verdict, err := p.reports.Get(ctx, txHash)
	if err != nil {
		return fail(err)
	}
	if verdict == nil {
		fmt.Fprintln(os.Stderr, "no verification report for attestation; run verify first")
		return exitNotVerified
	}

	intent := domain.RewardIntent{
		AttestationTxHash: txHash,
		PayloadHash:       payloadHash,
		Slot:              slot,
		Participant:       participant,
	}
	if amount != "" {
		value, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			fmt.Fprintln(os.Stderr, "amount must be a base-10 integer")
			return exitConfig
		}
		intent.Amount = value
	}

	// The unmarked invocation is the side-effect-free one; submission
	// requires the explicit --execute.
	outcome, err := p.reward.Execute(ctx, *verdict, intent, mode, !execute)
	if outcome.Status != "" {
		if writeErr := writeJSON(os.Stdout, outcome); writeErr != nil {
			fmt.Fprintf(os.Stderr, "encode outcome: %v\n", writeErr)
		}
	}
	if err != nil {
		return fail(err)
	}
	if !outcome.Success() {
		fmt.Fprintln(os.Stderr, "reward already recorded; no new submission made")
	}
	return 0
}
