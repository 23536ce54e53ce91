package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"attestd/internal/config"
	"attestd/internal/domain"
)

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var txHash string
	var target string
	fs.StringVar(&txHash, "tx", "", "attestation transaction hash")
	fs.StringVar(&target, "target", "", "target contract address for log filtering")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if txHash == "" {
		fmt.Fprintln(os.Stderr, "verify requires --tx")
		return exitConfig
	}

	ctx := context.Background()
	p, err := newPipeline(ctx, config.FromEnv())
	if err != nil {
		return fail(err)
	}
	defer p.Close()

	verdict, err := p.verify.Execute(ctx, domain.AttestationReference{
		TxHash:        txHash,
		TargetAddress: target,
		ChainID:       p.cfg.ChainID,
	})
	if err != nil && !errors.Is(err, domain.ErrReceiptPending) {
		return fail(err)
	}

	if writeErr := writeJSON(os.Stdout, verdict); writeErr != nil {
		fmt.Fprintf(os.Stderr, "encode verdict: %v\n", writeErr)
		return 1
	}
	if errors.Is(err, domain.ErrReceiptPending) {
		fmt.Fprintln(os.Stderr, "receipt still pending; re-run once the transaction is mined")
		return exitNotVerified
	}
	if !verdict.Verified {
		return exitNotVerified
	}
	return 0
}

func runReport(args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var txHash string
	fs.StringVar(&txHash, "tx", "", "attestation transaction hash")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if txHash == "" {
		fmt.Fprintln(os.Stderr, "report requires --tx")
		return exitConfig
	}

	ctx := context.Background()
	p, err := newPipeline(ctx, config.FromEnv())
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
		return 1
	}
	if err := writeJSON(os.Stdout, verdict); err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		return 1
	}
	return 0
}
