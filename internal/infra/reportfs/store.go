package reportfs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"attestd/internal/domain"
)

// Store persists verdicts and reward outcomes as JSON files under a
// report directory. It is the fallback when no database is configured
// and the default for the CLI, which runs against a local workspace:
//
//	<dir>/<tx>.verdict.json   latest verification run (overwritten)
//	<dir>/<tx>.reward.json    append-only list of gate invocations
type Store struct {
	Dir string
}

func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) Save(_ context.Context, verdict domain.AttestationVerdict) error {
	return s.writeJSON(s.path(verdict.TxHash, ".verdict.json"), verdict)
}

func (s *Store) Get(_ context.Context, txHash string) (*domain.AttestationVerdict, error) {
	payload, err := os.ReadFile(s.path(txHash, ".verdict.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read verdict report: %w", err)
	}
	var verdict domain.AttestationVerdict
	if err := json.Unmarshal(payload, &verdict); err != nil {
		return nil, fmt.Errorf("decode verdict report: %w", err)
	}
	return &verdict, nil
}

func (s *Store) Append(ctx context.Context, outcome domain.RewardOutcome) error {
	outcomes, err := s.ListByAttestation(ctx, outcome.Intent.AttestationTxHash)
	if err != nil {
		return err
	}
	outcomes = append(outcomes, outcome)
	return s.writeJSON(s.path(outcome.Intent.AttestationTxHash, ".reward.json"), outcomes)
}

func (s *Store) ListByAttestation(_ context.Context, attestationTxHash string) ([]domain.RewardOutcome, error) {
	payload, err := os.ReadFile(s.path(attestationTxHash, ".reward.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reward outcomes: %w", err)
	}
	var outcomes []domain.RewardOutcome
	if err := json.Unmarshal(payload, &outcomes); err != nil {
		return nil, fmt.Errorf("decode reward outcomes: %w", err)
	}
	return outcomes, nil
}

// writeJSON goes through a temp file and rename so readers never see a
// half-written report.
func (s *Store) writeJSON(path string, value any) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, ".report-*")
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

func (s *Store) path(key, suffix string) string {
	return filepath.Join(s.Dir, filepath.Base(key)+suffix)
}
