package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"attestd/internal/config"
	"attestd/internal/domain"
	"attestd/internal/infra/db"
	"attestd/internal/infra/ledgereth"
	"attestd/internal/infra/policyrego"
	"attestd/internal/infra/proofstore"
	"attestd/internal/infra/reportfs"
	"attestd/internal/usecase"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "verify":
		return runVerify(args[2:])
	case "reward":
		return runReward(args[2:])
	case "report":
		return runReport(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "attest"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s verify --tx <hash> [--target <address>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s reward --tx <hash> --payload-hash <hex> --slot <key> --participant <address> [--amount <wei>] [--execute]\n", name)
	fmt.Fprintf(os.Stderr, "  %s report --tx <hash>\n", name)
	fmt.Fprintf(os.Stderr, "\nconnection and policy settings come from the environment (RPC_URL, CHAIN_ID, ...)\n")
}

// pipeline holds the wired components one CLI invocation needs.
type pipeline struct {
	cfg      config.Config
	ledger   *ledgereth.Client
	reports  domain.ReportRepository
	outcomes domain.OutcomeRepository
	verify   *usecase.VerifyAttestation
	reward   *usecase.ExecuteReward
}

func newPipeline(ctx context.Context, cfg config.Config) (*pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ledger, err := ledgereth.Dial(ctx, cfg.RPCURL, cfg.RetryPolicy())
	if err != nil {
		return nil, err
	}
	if cfg.SubmitterPrivateKey != "" {
		if _, err := ledger.WithSubmitter(cfg.SubmitterPrivateKey); err != nil {
			return nil, err
		}
	}

	verifier, err := ledgereth.NewVerifier(ledger, cfg.VerificationContractAddress)
	if err != nil {
		return nil, err
	}

	var reports domain.ReportRepository
	var outcomes domain.OutcomeRepository
	if cfg.PostgresDSN != "" {
		store, err := db.NewStore(cfg)
		if err != nil {
			return nil, err
		}
		reports = db.NewReportRepository(store.DB)
		outcomes = db.NewOutcomeRepository(store.DB)
	} else {
		fsStore := reportfs.New(cfg.ReportDir)
		reports = fsStore
		outcomes = fsStore
	}

	var operator domain.OperatorPolicy
	if cfg.PolicyBundlePath != "" {
		engine, err := policyrego.NewEngine(ctx, cfg.PolicyBundlePath)
		if err != nil {
			return nil, err
		}
		operator = engine
	}

	p := &pipeline{
		cfg:      cfg,
		ledger:   ledger,
		reports:  reports,
		outcomes: outcomes,
		verify: &usecase.VerifyAttestation{
			Ledger:                ledger,
			Proofs:                proofstore.New(cfg.ProofDir),
			Verifier:              verifier,
			Reports:               reports,
			Operator:              operator,
			ExpectedChainID:       cfg.ChainID,
			RequiredConfirmations: cfg.RequiredConfirmations,
			ExpectedPayloadDigest: cfg.ExpectedPayloadDigest,
			StrictIntegrity:       cfg.StrictIntegrityCheck,
		},
	}

	if cfg.RewardContractAddress != "" {
		rewards, err := ledgereth.NewRewardBinding(ledger, cfg.RewardContractAddress)
		if err != nil {
			return nil, err
		}
		p.reward = &usecase.ExecuteReward{
			Ledger:                ledger,
			Rewards:               rewards,
			Outcomes:              outcomes,
			RequiredConfirmations: cfg.RequiredConfirmations,
		}
	}
	return p, nil
}

func (p *pipeline) Close() {
	if p.ledger != nil {
		p.ledger.Close()
	}
}
