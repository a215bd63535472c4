package entrypoint

import (
	"github.com/pkg/errors"
)

var (
	// ErrTooManyAccounts is returned when the input declares more accounts
	// than the caller provided storage for.
	ErrTooManyAccounts = errors.New("too many accounts")

	// ErrInvalidDuplicateReference is returned when a duplicate marker does
	// not reference an earlier account.
	ErrInvalidDuplicateReference = errors.New("invalid duplicate account reference")

	ErrNotWritable       = errors.New("account is not writable")
	ErrNotSigner         = errors.New("account is not a signer")
	ErrMissingSignature  = errors.New("missing required signature")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidRealloc is returned when account data would grow past its
	// original length plus MaxPermittedDataIncrease.
	ErrInvalidRealloc     = errors.New("invalid realloc")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)
