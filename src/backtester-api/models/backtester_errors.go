package models

import "fmt"

var (
	ErrAccessDenied         = fmt.Errorf("access denied")
	ErrInvalidInput         = fmt.Errorf("invalid input")
	ErrInvalidPriceOrdering = fmt.Errorf("invalid price ordering: %w", ErrInvalidInput)
	ErrCausalityViolation   = fmt.Errorf("causality violation")
	ErrInvariantViolation   = fmt.Errorf("invariant violation")
	ErrKeyNotFound          = fmt.Errorf("key not found")
	ErrEnvNotRunning        = fmt.Errorf("environment is not running")
)
