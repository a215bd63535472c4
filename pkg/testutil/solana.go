package testutil

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
)

// KeyGenerator produces a deterministic sequence of keypairs. Each test owns
// its generator, so sequences never depend on test order.
type KeyGenerator struct {
	label string
	next  uint64
}

func NewKeyGenerator(label string) *KeyGenerator {
	return &KeyGenerator{label: label}
}

// NextKeypair returns the next keypair in the sequence.
func (g *KeyGenerator) NextKeypair() ed25519.PrivateKey {
	var counter [8]byte
	binary.LittleEndian.PutUint64(counter[:], g.next)
	g.next++

	seed := sha256.Sum256(append([]byte(g.label), counter[:]...))
	return ed25519.NewKeyFromSeed(seed[:])
}

// Next returns the public key of the next keypair in the sequence.
func (g *KeyGenerator) Next() ed25519.PublicKey {
	return g.NextKeypair().Public().(ed25519.PublicKey)
}

func (g *KeyGenerator) NextN(n int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, n)
	for i := range keys {
		keys[i] = g.Next()
	}
	return keys
}

// FilledKey returns a key with every byte set to b.
func FilledKey(b byte) ed25519.PublicKey {
	return bytes.Repeat([]byte{b}, ed25519.PublicKeySize)
}
