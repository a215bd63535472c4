package cpi

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/code-payments/code-program-sdk/pkg/solana"
	"github.com/code-payments/code-program-sdk/pkg/solana/entrypoint"
)

var (
	// ErrMarshalOverflow is returned when an invocation exceeds the account,
	// data or signer limits, or does not fit in the heap.
	ErrMarshalOverflow = errors.New("invocation exceeds marshalling limits")

	// ErrNonOriginalPointer is returned when an account meta does not
	// reference the key of an account in the current input.
	ErrNonOriginalPointer = errors.New("account meta does not reference an input account")
)

// RuntimeError is a nonzero status returned by the host for a nested
// invocation.
type RuntimeError struct {
	Code   uint64
	Key    solana.InstructionErrorKey
	Custom *solana.CustomError
}

// NewRuntimeError decodes status into a RuntimeError.
func NewRuntimeError(status uint64) *RuntimeError {
	key, custom := solana.KeyFromStatus(status)
	return &RuntimeError{
		Code:   status,
		Key:    key,
		Custom: custom,
	}
}

func (e *RuntimeError) Error() string {
	if e.Custom != nil {
		return fmt.Sprintf("invocation failed: %v", *e.Custom)
	}
	return fmt.Sprintf("invocation failed: %s (%#x)", e.Key, e.Code)
}

// Status returns the status the host reported, so a program that returns
// the error passes it through unchanged.
func (e *RuntimeError) Status() uint64 {
	return e.Code
}

// Unwrap returns the sentinel matching the failure, if one exists.
func (e *RuntimeError) Unwrap() error {
	if e.Custom != nil {
		return *e.Custom
	}

	switch e.Key {
	case solana.InstructionErrorInsufficientFunds:
		return entrypoint.ErrInsufficientFunds
	case solana.InstructionErrorMissingRequiredSignature:
		return entrypoint.ErrMissingSignature
	case solana.InstructionErrorMaxSeedLengthExceeded:
		return solana.ErrMaxSeedLengthExceeded
	case solana.InstructionErrorInvalidSeeds:
		return solana.ErrInvalidPublicKey
	case solana.InstructionErrorInvalidRealloc:
		return entrypoint.ErrInvalidRealloc
	case solana.InstructionErrorArithmeticOverflow:
		return entrypoint.ErrArithmeticOverflow
	default:
		return nil
	}
}
