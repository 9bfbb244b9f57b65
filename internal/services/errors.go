package services

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// ErrSessionBusy is returned when another request holds the session's write lock.
var ErrSessionBusy = errors.New("session is busy")

// FailureKind tags why the AI capability produced no text.
type FailureKind int

const (
	FailureConfigurationMissing FailureKind = iota
	FailureNoModels
	FailureUnavailable
	FailureMalformed
)

func (k FailureKind) String() string {
	switch k {
	case FailureConfigurationMissing:
		return "configuration_missing"
	case FailureNoModels:
		return "no_models"
	case FailureUnavailable:
		return "unavailable"
	case FailureMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("failure(%d)", int(k))
	}
}

// CapabilityError is the error half of the generator's internal result.
// It never leaves the services package through Generate.
type CapabilityError struct {
	Kind FailureKind
	Err  error
}

func (e *CapabilityError) Error() string {
	if e.Err == nil {
		return "ai capability: " + e.Kind.String()
	}
	return fmt.Sprintf("ai capability: %s: %v", e.Kind, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}
