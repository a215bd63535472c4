package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"math"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32

	programAddressMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds          = errors.New("too many seeds")
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")

	// ErrInvalidPublicKey is returned when the seeds hash to a point on the
	// curve (InvalidSeeds).
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrNoViableBump is returned when every bump seed yields an on-curve
	// address.
	ErrNoViableBump = errors.New("unable to find a viable program address bump seed")
)

var (
	programHashCtor = sha256.New
)

// Deriver computes program addresses. Implementations must agree bit for bit:
// the host's privileged call and the local computation are interchangeable.
type Deriver interface {
	CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error)
}

// LocalDeriver computes program addresses in process without involving the
// host.
type LocalDeriver struct{}

// CreateProgramAddress implements Deriver.CreateProgramAddress.
func (LocalDeriver) CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	return CreateProgramAddress(program, seeds...)
}

// ValidateSeeds checks the seed count and per-seed length limits shared by
// every Deriver.
func ValidateSeeds(seeds ...[]byte) error {
	if len(seeds) > MaxSeeds {
		return errors.Wrapf(ErrTooManySeeds, "%d seeds", len(seeds))
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return errors.Wrapf(ErrMaxSeedLengthExceeded, "seed %d has length %d", i, len(s))
		}
	}
	return nil
}

// CreateProgramAddress mirrors the implementation of the Solana SDK's CreateProgramAddress.
//
// ProgramAddresses are public keys that _do not_ lie on the ed25519 curve to ensure that
// there is no associated private key. In the event that the program and seed parameters
// result in a valid public key, ErrInvalidPublicKey is returned.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L158
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if err := ValidateSeeds(seeds...); err != nil {
		return nil, err
	}

	h := programHashCtor()
	for _, s := range seeds {
		if _, err := h.Write(s); err != nil {
			return nil, errors.Wrap(err, "failed to hash seed")
		}
	}

	for _, v := range [][]byte{program, []byte(programAddressMarker)} {
		if _, err := h.Write(v); err != nil {
			return nil, errors.Wrap(err, "failed to hash seed")
		}
	}

	hash := h.Sum(nil)
	var pub [32]byte
	copy(pub[:], hash)

	if IsOnCurve(pub[:]) {
		return nil, ErrInvalidPublicKey
	}

	return pub[:], nil
}

// IsOnCurve reports whether b decodes to a valid compressed Edwards point.
//
// Following the Solana SDK, we want to _reject_ generated program addresses
// that are valid compressed EdwardsPoints. The edwards25519.ExtendedGroupElement
// is internal to the golang.org/x/crypto library, so we rely on a deprecated
// open source alternative.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L182-L187
func IsOnCurve(b []byte) bool {
	if len(b) != ed25519.PublicKeySize {
		return false
	}

	var pub [32]byte
	copy(pub[:], b)

	var A edwards25519.ExtendedGroupElement
	return A.FromBytes(&pub)
}

// FindProgramAddressAndBump returns the first off-curve program address and
// its bump seed, trying bumps from 255 down to 0.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	return FindProgramAddressAndBumpWith(LocalDeriver{}, program, seeds...)
}

// FindProgramAddressAndBumpWith is FindProgramAddressAndBump using the provided
// Deriver.
func FindProgramAddressAndBumpWith(d Deriver, program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	// The bump takes one seed slot.
	if len(seeds) >= MaxSeeds {
		return nil, 0, errors.Wrapf(ErrTooManySeeds, "%d seeds plus bump", len(seeds))
	}
	if err := ValidateSeeds(seeds...); err != nil {
		return nil, 0, err
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	bumpSeed := []byte{math.MaxUint8}
	withBump[len(seeds)] = bumpSeed
	for i := 0; i <= math.MaxUint8; i++ {
		pub, err := d.CreateProgramAddress(program, withBump...)
		if err == nil {
			return pub, bumpSeed[0], nil
		}
		if !errors.Is(err, ErrInvalidPublicKey) {
			return nil, 0, err
		}

		bumpSeed[0]--
	}

	return nil, 0, ErrNoViableBump
}

// FindProgramAddress mirrors the implementation of the Solana SDK's FindProgramAddress.
// It only returns the address.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	pub, _, err := FindProgramAddressAndBump(program, seeds...)
	return pub, err
}
