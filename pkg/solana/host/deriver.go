package host

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/code-program-sdk/pkg/solana"
)

// Deriver is a solana.Deriver backed by the host's privileged
// CreateProgramAddress call. Seed limits are validated before the call, so
// it fails the same way as solana.LocalDeriver.
type Deriver struct {
	h Host
}

// NewDeriver returns a Deriver that calls into h.
func NewDeriver(h Host) *Deriver {
	return &Deriver{h: h}
}

// CreateProgramAddress implements solana.Deriver.CreateProgramAddress.
func (d *Deriver) CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if err := solana.ValidateSeeds(seeds...); err != nil {
		return nil, err
	}

	addr, status := d.h.CreateProgramAddress(seeds, program)
	if status == StatusSuccess {
		return addr, nil
	}

	key, _ := solana.KeyFromStatus(status)
	switch key {
	case solana.InstructionErrorInvalidSeeds:
		return nil, solana.ErrInvalidPublicKey
	case solana.InstructionErrorMaxSeedLengthExceeded:
		return nil, errors.Wrap(solana.ErrMaxSeedLengthExceeded, "host rejected seeds")
	default:
		return nil, errors.Errorf("create program address failed with status %#x", status)
	}
}
