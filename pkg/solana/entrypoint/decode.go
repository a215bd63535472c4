package entrypoint

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/code-program-sdk/pkg/solana/binary"
	"github.com/code-payments/code-program-sdk/pkg/solana/vm"
)

// Input is a decoded program input. Everything it returns aliases the input
// region and is valid for the duration of the invocation.
type Input struct {
	region *vm.Region

	Accounts  []Record
	Data      []byte
	ProgramID ed25519.PublicKey
}

// Region returns the input region the records view.
func (in *Input) Region() *vm.Region {
	return in.region
}

// Account returns the raw view of the account at index.
func (in *Input) Account(index int) (*AccountInfo, error) {
	if index < 0 || index >= len(in.Accounts) {
		return nil, errors.Errorf("account index %d out of range (%d accounts)", index, len(in.Accounts))
	}
	return &in.Accounts[index].Raw, nil
}

// AccountByKeyAddr returns the original entry whose key lives at addr.
func (in *Input) AccountByKeyAddr(addr uint64) (*AccountInfo, bool) {
	for i := range in.Accounts {
		raw := &in.Accounts[i].Raw
		if !raw.IsDuplicate() && raw.KeyAddr() == addr {
			return raw, true
		}
	}
	return nil, false
}

type decodeOptions struct {
	skipSnapshots bool
}

// DecodeOption configures Decode.
type DecodeOption func(*decodeOptions)

// WithoutSnapshots skips building value views. Record.Value is left zero.
func WithoutSnapshots() DecodeOption {
	return func(o *decodeOptions) {
		o.skipSnapshots = true
	}
}

// Deserialize decodes input into newly allocated storage for up to
// maxAccounts records.
func Deserialize(input *vm.Region, maxAccounts int, opts ...DecodeOption) (*Input, error) {
	if maxAccounts < 0 {
		return nil, errors.Errorf("invalid max accounts: %d", maxAccounts)
	}
	return Decode(input, make([]Record, maxAccounts), opts...)
}

// Decode decodes the serialized program input in input into records, whose
// length bounds the number of accounts. On error nothing is returned.
func Decode(input *vm.Region, records []Record, opts ...DecodeOption) (*Input, error) {
	if input == nil {
		return nil, errors.New("input region is nil")
	}

	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := binary.NewCursor(input.Data)

	count, err := c.ReadUint64()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read account count")
	}
	if count > uint64(len(records)) {
		return nil, errors.Wrapf(ErrTooManyAccounts, "%d accounts, capacity %d", count, len(records))
	}

	n := int(count)
	for i := 0; i < n; i++ {
		if err := decodeAccount(c, input, records, i); err != nil {
			return nil, errors.Wrapf(err, "account %d", i)
		}
	}

	data, err := c.ReadLenPrefixed()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read instruction data")
	}

	programID, err := c.ReadFixed(pubKeySize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read program id")
	}

	if !o.skipSnapshots {
		for i := 0; i < n; i++ {
			records[i].Value = records[i].Raw.Snapshot()
		}
	}

	return &Input{
		region:    input,
		Accounts:  records[:n:n],
		Data:      data,
		ProgramID: ed25519.PublicKey(programID),
	}, nil
}

func decodeAccount(c *binary.Cursor, input *vm.Region, records []Record, i int) error {
	entry := c.Offset()

	marker, err := c.ReadUint8()
	if err != nil {
		return err
	}

	if marker != NonDupMarker {
		ref := int(marker)
		if ref >= i {
			return errors.Wrapf(ErrInvalidDuplicateReference, "references %d", ref)
		}
		if err := c.Skip(DuplicateEntrySize - 1); err != nil {
			return err
		}

		raw := records[ref].Raw
		raw.index = i
		raw.duplicateOf = ref
		records[i] = Record{Raw: raw}
		return nil
	}

	// Flags and reserved bytes are read in place through the raw view.
	if err := c.Skip(keyOffset - 1); err != nil {
		return err
	}
	if _, err := c.ReadFixed(2 * pubKeySize); err != nil {
		return err
	}
	if _, err := c.ReadUint64(); err != nil {
		return err
	}

	dataLen, err := c.ReadUint64()
	if err != nil {
		return err
	}
	if dataLen > uint64(c.Remaining()) {
		return errors.Wrapf(binary.ErrOutOfBounds, "data length %d exceeds remaining %d", dataLen, c.Remaining())
	}
	if _, err := c.ReadFixed(int(dataLen)); err != nil {
		return err
	}
	if err := c.Skip(MaxPermittedDataIncrease); err != nil {
		return err
	}

	rentEpochOffset := c.Offset()
	if _, err := c.ReadUint64(); err != nil {
		return err
	}
	if err := c.AlignTo(8); err != nil {
		return err
	}

	records[i] = Record{
		Raw: AccountInfo{
			region:          input,
			entry:           entry,
			index:           i,
			duplicateOf:     -1,
			originalDataLen: int(dataLen),
			rentEpochOffset: rentEpochOffset,
		},
	}
	return nil
}
