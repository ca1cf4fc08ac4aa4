// SPDX-License-Identifier: AGPL-3.0-or-later

package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
// Use errors.Is() to check for these errors.
// Wrap with fmt.Errorf("context: %w", ErrXxx) to add context.

var (
	// Validation errors (caller supplied missing or malformed input)
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidParameter = errors.New("invalid parameter")

	// Crypto operation kinds (the capability rejected the input or failed internally)
	ErrSigning          = errors.New("failed to sign message")
	ErrVerification     = errors.New("failed to verify signature")
	ErrWalletGeneration = errors.New("failed to generate wallet")
	ErrKeyConversion    = errors.New("failed to derive wallet from private key")

	// Journal errors
	ErrJournalDisabled = errors.New("activity journal disabled")
	ErrUnknownScheme   = errors.New("unknown scheme")
)

// ValidationError reports a request parameter that is absent or malformed.
// Its message is safe to return to the caller.
type ValidationError struct {
	Param  string
	Reason string
	Err    error
}

// Missing builds the ValidationError for an absent required parameter.
func Missing(param string) *ValidationError {
	return &ValidationError{
		Param:  param,
		Reason: "Missing required parameter: " + param,
		Err:    ErrMissingParameter,
	}
}

// Invalid builds the ValidationError for a parameter that fails its format check.
func Invalid(param, reason string) *ValidationError {
	return &ValidationError{
		Param:  param,
		Reason: fmt.Sprintf("Invalid %s: %s", param, reason),
		Err:    ErrInvalidParameter,
	}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// OperationError wraps a failure of the underlying crypto capability.
// Kind is one of the operation sentinels; Err is the cause and must only be logged.
type OperationError struct {
	Kind error
	Err  error
}

// Fail wraps cause into an OperationError of the given kind.
func Fail(kind, cause error) *OperationError {
	return &OperationError{Kind: kind, Err: cause}
}

func (e *OperationError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
