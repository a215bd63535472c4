package entrypoint

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/code-program-sdk/pkg/solana/binary"
)

// InputAccount is an account as a host passes it to a program.
type InputAccount struct {
	Key          ed25519.PublicKey
	Owner        ed25519.PublicKey
	Lamports     uint64
	Data         []byte
	IsSigner     bool
	IsWritable   bool
	IsExecutable bool
	RentEpoch    uint64
}

// duplicateIndex returns the index of the first earlier account with the
// same key, or -1.
func duplicateIndex(accounts []InputAccount, i int) int {
	for j := 0; j < i; j++ {
		if bytes.Equal(accounts[j].Key, accounts[i].Key) {
			return j
		}
	}
	return -1
}

// SerializedSize returns the size of the input Serialize produces.
func SerializedSize(accounts []InputAccount, data []byte) int {
	n := 8
	for i, a := range accounts {
		if duplicateIndex(accounts, i) >= 0 {
			n += DuplicateEntrySize
			continue
		}
		n += EntrySize(len(a.Data))
	}
	return n + 8 + len(data) + pubKeySize
}

// Serialize encodes a program input. An account whose key appeared earlier
// is written as a duplicate of the first occurrence. It is the inverse of
// Decode.
func Serialize(accounts []InputAccount, data []byte, programID ed25519.PublicKey) ([]byte, error) {
	if len(accounts) > NonDupMarker {
		return nil, errors.Wrapf(ErrTooManyAccounts, "%d accounts", len(accounts))
	}

	buf := make([]byte, SerializedSize(accounts, data))
	w := binary.NewWriter(buf)

	if err := w.WriteUint64(uint64(len(accounts))); err != nil {
		return nil, err
	}

	for i, a := range accounts {
		if dup := duplicateIndex(accounts, i); dup >= 0 {
			if err := w.WriteUint8(uint8(dup)); err != nil {
				return nil, err
			}
			if err := w.WriteZeros(DuplicateEntrySize - 1); err != nil {
				return nil, err
			}
			continue
		}

		if err := writeAccount(w, a); err != nil {
			return nil, errors.Wrapf(err, "account %d", i)
		}
	}

	if err := w.WriteUint64(uint64(len(data))); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(data); err != nil {
		return nil, err
	}
	if err := w.WriteKey32(programID); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

func writeAccount(w *binary.Writer, a InputAccount) error {
	for _, step := range []func() error{
		func() error { return w.WriteUint8(NonDupMarker) },
		func() error { return w.WriteBool(a.IsSigner) },
		func() error { return w.WriteBool(a.IsWritable) },
		func() error { return w.WriteBool(a.IsExecutable) },
		func() error { return w.WriteZeros(4) },
		func() error { return w.WriteKey32(a.Key) },
		func() error { return w.WriteKey32(a.Owner) },
		func() error { return w.WriteUint64(a.Lamports) },
		func() error { return w.WriteUint64(uint64(len(a.Data))) },
		func() error { return w.WriteBytes(a.Data) },
		func() error { return w.WriteZeros(MaxPermittedDataIncrease) },
		func() error { return w.WriteUint64(a.RentEpoch) },
		func() error { return w.AlignTo(8) },
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
