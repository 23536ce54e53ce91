package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"attestd/internal/domain"
)

// Exit codes are part of the CLI contract; automation branches on them.
const (
	exitConfig      = 2
	exitNotVerified = 3
	exitRejected    = 4
)

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// fail prints the error and maps it to its contract exit code.
func fail(err error) int {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	switch {
	case domain.IsConfigurationError(err), errors.Is(err, domain.ErrSimulationMode):
		return exitConfig
	case errors.Is(err, domain.ErrVerificationNotPassed):
		return exitNotVerified
	case errors.Is(err, domain.ErrRejectedByLedger):
		return exitRejected
	default:
		return 1
	}
}
