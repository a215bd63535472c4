package solana

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

type seedKind uint8

const (
	seedKindBytes seedKind = iota
	seedKindKey
)

// Seed is a single program address seed: either raw bytes or a public key.
// Seeds are resolved to bytes once, by ResolveSeeds, before hashing.
type Seed struct {
	kind  seedKind
	bytes []byte
	key   ed25519.PublicKey
}

// SeedBytes returns a raw byte seed.
func SeedBytes(b []byte) Seed {
	return Seed{kind: seedKindBytes, bytes: b}
}

// SeedString returns a seed of the UTF-8 bytes of s.
func SeedString(s string) Seed {
	return SeedBytes([]byte(s))
}

// SeedUint8 returns a single byte seed, typically a bump.
func SeedUint8(v uint8) Seed {
	return SeedBytes([]byte{v})
}

// SeedKey returns a public key seed.
func SeedKey(key ed25519.PublicKey) Seed {
	return Seed{kind: seedKindKey, key: key}
}

func (s Seed) resolve() ([]byte, error) {
	switch s.kind {
	case seedKindBytes:
		return s.bytes, nil
	case seedKindKey:
		if len(s.key) != ed25519.PublicKeySize {
			return nil, errors.Errorf("invalid key seed length: %d", len(s.key))
		}
		return s.key, nil
	default:
		return nil, errors.Errorf("unknown seed kind: %d", s.kind)
	}
}

func (s Seed) String() string {
	if s.kind == seedKindKey {
		return base58.Encode(s.key)
	}
	return base58.Encode(s.bytes)
}

// ResolveSeeds converts seeds to their byte form and validates the seed limits.
func ResolveSeeds(seeds ...Seed) ([][]byte, error) {
	resolved := make([][]byte, len(seeds))
	for i, s := range seeds {
		b, err := s.resolve()
		if err != nil {
			return nil, errors.Wrapf(err, "seed %d", i)
		}
		resolved[i] = b
	}

	if err := ValidateSeeds(resolved...); err != nil {
		return nil, err
	}
	return resolved, nil
}

// DeriveAddress resolves seeds and creates the program address with d.
func DeriveAddress(d Deriver, program ed25519.PublicKey, seeds ...Seed) (ed25519.PublicKey, error) {
	resolved, err := ResolveSeeds(seeds...)
	if err != nil {
		return nil, err
	}
	return d.CreateProgramAddress(program, resolved...)
}

// FindAddress resolves seeds and searches for an off-curve address with d.
func FindAddress(d Deriver, program ed25519.PublicKey, seeds ...Seed) (ed25519.PublicKey, uint8, error) {
	resolved, err := ResolveSeeds(seeds...)
	if err != nil {
		return nil, 0, err
	}
	return FindProgramAddressAndBumpWith(d, program, resolved...)
}

// KeyString returns the base58 form of a public key.
func KeyString(key ed25519.PublicKey) string {
	return base58.Encode(key)
}
