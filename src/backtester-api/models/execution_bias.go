package models

import (
	"fmt"
	"strings"
)

// ExecutionBias decides which exit wins when a single bar touches both the
// stop loss and the take profit. Bar data cannot tell which printed first.
type ExecutionBias int

const (
	ExecutionBiasPessimistic ExecutionBias = iota
	ExecutionBiasOptimistic
)

func (b ExecutionBias) String() string {
	if b == ExecutionBiasOptimistic {
		return "optimistic"
	}

	return "pessimistic"
}

func ParseExecutionBias(s string) (ExecutionBias, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pessimistic":
		return ExecutionBiasPessimistic, nil
	case "optimistic":
		return ExecutionBiasOptimistic, nil
	}

	return 0, fmt.Errorf("ParseExecutionBias: unknown bias %q: %w", s, ErrInvalidInput)
}

func (b *ExecutionBias) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	parsed, err := ParseExecutionBias(s)
	if err != nil {
		return err
	}

	*b = parsed
	return nil
}

type ExitDecision int

const (
	ExitNone ExitDecision = iota
	ExitStopLoss
	ExitTakeProfit
)

// ResolveExit is the single place where bias is applied. On the bar that
// filled an entry, the favourable side is ignored: its extreme may have
// printed before the fill.
func ResolveExit(bias ExecutionBias, slHit, tpHit, fillBar bool) ExitDecision {
	if fillBar {
		switch bias {
		case ExecutionBiasPessimistic:
			tpHit = false
		case ExecutionBiasOptimistic:
			slHit = false
		}
	}

	switch bias {
	case ExecutionBiasOptimistic:
		if tpHit {
			return ExitTakeProfit
		}
		if slHit {
			return ExitStopLoss
		}
	default:
		if slHit {
			return ExitStopLoss
		}
		if tpHit {
			return ExitTakeProfit
		}
	}

	return ExitNone
}
