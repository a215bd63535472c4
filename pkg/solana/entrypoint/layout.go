package entrypoint

import (
	"github.com/code-payments/code-program-sdk/pkg/solana/binary"
)

const (
	// MaxAccounts is the default number of account records Deserialize
	// allocates storage for.
	MaxAccounts = 64

	// MaxPermittedDataIncrease is the number of bytes an account's data may
	// grow by during one invocation. The input reserves this much space
	// after every account's data.
	MaxPermittedDataIncrease = 10 * 1024

	// NonDupMarker marks an account entry that is not a duplicate.
	NonDupMarker = 0xff

	// DuplicateEntrySize is the size of a duplicate entry: the marker and
	// seven bytes of padding.
	DuplicateEntrySize = 8

	pubKeySize = 32
)

// Offsets of the fields of a non-duplicate account entry, relative to its
// duplicate marker.
//
//	u8   dup marker (NonDupMarker)
//	u8   is_signer
//	u8   is_writable
//	u8   executable
//	u32  reserved
//	[32] key
//	[32] owner
//	u64  lamports
//	u64  data_len
//	[data_len] data
//	[MaxPermittedDataIncrease] growth padding
//	u64  rent_epoch
//	padding to 8 bytes
const (
	isSignerOffset   = 1
	isWritableOffset = 2
	executableOffset = 3
	keyOffset        = 8
	ownerOffset      = keyOffset + pubKeySize
	lamportsOffset   = ownerOffset + pubKeySize
	dataLenOffset    = lamportsOffset + 8
	dataOffset       = dataLenOffset + 8
)

// EntrySize returns the serialized size of a non-duplicate account entry
// with dataLen bytes of data, starting at an 8 byte aligned offset.
func EntrySize(dataLen int) int {
	n := dataOffset + dataLen + MaxPermittedDataIncrease + 8
	return n + binary.AlignmentPadding(n, 8)
}
