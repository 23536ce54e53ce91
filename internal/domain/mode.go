package domain

import "fmt"

// Mode distinguishes the demo execution context from the
// policy-enforced one. It is threaded through entry points as an
// argument, never read from ambient process state.
type Mode string

const (
	ModeSimulation Mode = "simulation"
	ModeReal       Mode = "real"
)

func ParseMode(value string) (Mode, error) {
	switch value {
	case "", string(ModeReal):
		return ModeReal, nil
	case string(ModeSimulation):
		return ModeSimulation, nil
	default:
		return "", &ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unsupported value %q", value)}
	}
}
