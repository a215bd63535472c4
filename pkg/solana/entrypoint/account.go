package entrypoint

import (
	"crypto/ed25519"
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/code-program-sdk/pkg/solana"
	"github.com/code-payments/code-program-sdk/pkg/solana/binary"
	"github.com/code-payments/code-program-sdk/pkg/solana/vm"
)

// AccountInfo is the raw view of an account: every accessor reads the input
// region directly and every mutator writes it in place. The host observes
// these writes when the invocation returns or makes a nested call.
//
// A duplicate entry's AccountInfo addresses the same bytes as the entry it
// references.
type AccountInfo struct {
	region *vm.Region

	// entry is the offset of the original entry's duplicate marker.
	entry       int
	index       int
	duplicateOf int

	originalDataLen int
	rentEpochOffset int
}

// Index returns the position of the entry in the input.
func (a *AccountInfo) Index() int {
	return a.index
}

// DuplicateOf returns the index of the referenced entry, or -1 when this
// entry is an original.
func (a *AccountInfo) DuplicateOf() int {
	return a.duplicateOf
}

func (a *AccountInfo) IsDuplicate() bool {
	return a.duplicateOf >= 0
}

// SameAccount reports whether a and other view the same underlying bytes.
func (a *AccountInfo) SameAccount(other *AccountInfo) bool {
	return other != nil && a.region == other.region && a.entry == other.entry
}

func (a *AccountInfo) Key() ed25519.PublicKey {
	return binary.Key32At(a.region.Data, a.entry+keyOffset)
}

func (a *AccountInfo) Owner() ed25519.PublicKey {
	return binary.Key32At(a.region.Data, a.entry+ownerOffset)
}

func (a *AccountInfo) Lamports() uint64 {
	return binary.Uint64At(a.region.Data, a.entry+lamportsOffset)
}

// DataLen returns the current data length, which may differ from
// OriginalDataLen after a resize.
func (a *AccountInfo) DataLen() int {
	n := binary.Uint64At(a.region.Data, a.entry+dataLenOffset)
	if n > uint64(a.maxDataLen()) {
		return a.maxDataLen()
	}
	return int(n)
}

// Data returns the account data, aliasing the input region.
func (a *AccountInfo) Data() []byte {
	start := a.entry + dataOffset
	end := start + a.DataLen()
	return a.region.Data[start:end:end]
}

func (a *AccountInfo) IsSigner() bool {
	return binary.BoolAt(a.region.Data, a.entry+isSignerOffset)
}

func (a *AccountInfo) IsWritable() bool {
	return binary.BoolAt(a.region.Data, a.entry+isWritableOffset)
}

func (a *AccountInfo) IsExecutable() bool {
	return binary.BoolAt(a.region.Data, a.entry+executableOffset)
}

func (a *AccountInfo) RentEpoch() uint64 {
	return binary.Uint64At(a.region.Data, a.rentEpochOffset)
}

// OriginalDataLen returns the data length at the time the input was
// serialized.
func (a *AccountInfo) OriginalDataLen() int {
	return a.originalDataLen
}

func (a *AccountInfo) maxDataLen() int {
	return a.originalDataLen + MaxPermittedDataIncrease
}

// KeyAddr returns the virtual address of the account's key. This is the
// address a nested invocation must reference the account by.
func (a *AccountInfo) KeyAddr() uint64 {
	return a.region.AddrOf(a.entry + keyOffset)
}

func (a *AccountInfo) OwnerAddr() uint64 {
	return a.region.AddrOf(a.entry + ownerOffset)
}

func (a *AccountInfo) LamportsAddr() uint64 {
	return a.region.AddrOf(a.entry + lamportsOffset)
}

func (a *AccountInfo) DataLenAddr() uint64 {
	return a.region.AddrOf(a.entry + dataLenOffset)
}

func (a *AccountInfo) DataAddr() uint64 {
	return a.region.AddrOf(a.entry + dataOffset)
}

func (a *AccountInfo) RequireSigner() error {
	if !a.IsSigner() {
		return errors.Wrapf(ErrNotSigner, "account %d (%s)", a.index, solana.KeyString(a.Key()))
	}
	return nil
}

func (a *AccountInfo) RequireWritable() error {
	if !a.IsWritable() {
		return errors.Wrapf(ErrNotWritable, "account %d (%s)", a.index, solana.KeyString(a.Key()))
	}
	return nil
}

func (a *AccountInfo) SetLamports(v uint64) error {
	if err := a.RequireWritable(); err != nil {
		return err
	}
	binary.PutUint64At(a.region.Data, a.entry+lamportsOffset, v)
	return nil
}

func (a *AccountInfo) AssignOwner(owner ed25519.PublicKey) error {
	if len(owner) != ed25519.PublicKeySize {
		return errors.Errorf("invalid owner length: %d", len(owner))
	}
	if err := a.RequireWritable(); err != nil {
		return err
	}
	binary.PutKey32At(a.region.Data, a.entry+ownerOffset, owner)
	return nil
}

// MutableData returns the account data for writing.
func (a *AccountInfo) MutableData() ([]byte, error) {
	if err := a.RequireWritable(); err != nil {
		return nil, err
	}
	return a.Data(), nil
}

// ResizeData sets the data length to n. Growth is zero filled and bounded
// by OriginalDataLen plus MaxPermittedDataIncrease.
func (a *AccountInfo) ResizeData(n int) error {
	if err := a.RequireWritable(); err != nil {
		return err
	}
	if n < 0 || n > a.maxDataLen() {
		return errors.Wrapf(ErrInvalidRealloc, "resize to %d (original %d)", n, a.originalDataLen)
	}

	current := a.DataLen()
	if n > current {
		start := a.entry + dataOffset
		clear(a.region.Data[start+current : start+n])
	}
	binary.PutUint64At(a.region.Data, a.entry+dataLenOffset, uint64(n))
	return nil
}

// TransferLamports moves amount from a to to. Both accounts must be
// writable. A transfer to the same account only checks the balance.
func (a *AccountInfo) TransferLamports(to *AccountInfo, amount uint64) error {
	if err := a.RequireWritable(); err != nil {
		return err
	}
	if err := to.RequireWritable(); err != nil {
		return err
	}

	from := a.Lamports()
	if from < amount {
		return errors.Wrapf(ErrInsufficientFunds, "balance %d, transfer %d", from, amount)
	}
	if a.SameAccount(to) {
		return nil
	}

	dest := to.Lamports()
	if dest > math.MaxUint64-amount {
		return errors.Wrapf(ErrArithmeticOverflow, "balance %d, transfer %d", dest, amount)
	}

	binary.PutUint64At(a.region.Data, a.entry+lamportsOffset, from-amount)
	binary.PutUint64At(to.region.Data, to.entry+lamportsOffset, dest+amount)
	return nil
}

// Snapshot copies the current raw state into a new value view.
func (a *AccountInfo) Snapshot() Account {
	return Account{
		Key:             append(ed25519.PublicKey(nil), a.Key()...),
		Owner:           append(ed25519.PublicKey(nil), a.Owner()...),
		Lamports:        a.Lamports(),
		Data:            append([]byte(nil), a.Data()...),
		IsSigner:        a.IsSigner(),
		IsWritable:      a.IsWritable(),
		IsExecutable:    a.IsExecutable(),
		RentEpoch:       a.RentEpoch(),
		OriginalDataLen: a.originalDataLen,
		DuplicateOf:     a.duplicateOf,
	}
}

func (a *AccountInfo) String() string {
	return fmt.Sprintf("AccountInfo{index=%d,key=%s,lamports=%d,data_len=%d,dup=%d}", a.index, solana.KeyString(a.Key()), a.Lamports(), a.DataLen(), a.duplicateOf)
}

// Account is the value view of an account: a snapshot owned by the program.
// Changes to it are local and never reach the host.
type Account struct {
	Key             ed25519.PublicKey
	Owner           ed25519.PublicKey
	Lamports        uint64
	Data            []byte
	IsSigner        bool
	IsWritable      bool
	IsExecutable    bool
	RentEpoch       uint64
	OriginalDataLen int
	DuplicateOf     int
}

// Record pairs the raw and value views of one input entry.
type Record struct {
	Raw   AccountInfo
	Value Account
}
