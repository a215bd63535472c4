package entrypoint

import (
	"github.com/pkg/errors"

	"github.com/code-payments/code-program-sdk/pkg/solana"
	"github.com/code-payments/code-program-sdk/pkg/solana/binary"
)

// statusError is implemented by errors that already carry a host status,
// such as a failed nested invocation.
type statusError interface {
	Status() uint64
}

var sentinelKeys = []struct {
	err error
	key solana.InstructionErrorKey
}{
	{ErrInsufficientFunds, solana.InstructionErrorInsufficientFunds},
	{ErrNotSigner, solana.InstructionErrorMissingRequiredSignature},
	{ErrMissingSignature, solana.InstructionErrorMissingRequiredSignature},
	{ErrInvalidRealloc, solana.InstructionErrorInvalidRealloc},
	{ErrArithmeticOverflow, solana.InstructionErrorArithmeticOverflow},
	{ErrTooManyAccounts, solana.InstructionErrorInvalidArgument},
	{ErrInvalidDuplicateReference, solana.InstructionErrorInvalidArgument},
	{binary.ErrOutOfBounds, solana.InstructionErrorInvalidInstructionData},
	{ErrNotWritable, solana.InstructionErrorInvalidArgument},
	{solana.ErrMaxSeedLengthExceeded, solana.InstructionErrorMaxSeedLengthExceeded},
	{solana.ErrTooManySeeds, solana.InstructionErrorMaxSeedLengthExceeded},
	{solana.ErrInvalidPublicKey, solana.InstructionErrorInvalidSeeds},
	{solana.ErrNoViableBump, solana.InstructionErrorInvalidSeeds},
}

// StatusFromError maps the error a program returns to the status handed
// back to the host. Unknown errors are reported as InvalidArgument.
func StatusFromError(err error) uint64 {
	if err == nil {
		return solana.StatusSuccess
	}

	var se statusError
	if errors.As(err, &se) {
		return se.Status()
	}

	var custom solana.CustomError
	if errors.As(err, &custom) {
		return solana.StatusFromCustom(custom)
	}

	for _, s := range sentinelKeys {
		if errors.Is(err, s.err) {
			return solana.StatusFromKey(s.key)
		}
	}

	return solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
}
