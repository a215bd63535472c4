package cpi

import (
	"crypto/ed25519"

	"github.com/code-payments/code-program-sdk/pkg/solana"
	"github.com/code-payments/code-program-sdk/pkg/solana/entrypoint"
)

// AccountMeta is an account capability passed to a nested invocation. The
// account is referenced by the virtual address of its key in the input
// region, never by value.
type AccountMeta struct {
	KeyAddr    uint64
	IsWritable bool
	IsSigner   bool
}

// NewAccountMeta creates a new AccountMeta representing a writable
// account.
func NewAccountMeta(info *entrypoint.AccountInfo, isSigner bool) AccountMeta {
	return AccountMeta{
		KeyAddr:    info.KeyAddr(),
		IsWritable: true,
		IsSigner:   isSigner,
	}
}

// NewReadonlyAccountMeta creates a new AccountMeta representing a readonly
// account.
func NewReadonlyAccountMeta(info *entrypoint.AccountInfo, isSigner bool) AccountMeta {
	return AccountMeta{
		KeyAddr:  info.KeyAddr(),
		IsSigner: isSigner,
	}
}

// NewAccountMetaAt creates an AccountMeta from a key address. The address
// must still be the key of an input account when the meta is invoked.
func NewAccountMetaAt(keyAddr uint64, isWritable, isSigner bool) AccountMeta {
	return AccountMeta{
		KeyAddr:    keyAddr,
		IsWritable: isWritable,
		IsSigner:   isSigner,
	}
}

// Instruction is a nested invocation of Program.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction creates a new instruction.
func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Accounts: accounts,
		Data:     data,
	}
}

// SignerSeeds are the seeds, including the bump, of one program address the
// invoking program signs for.
type SignerSeeds [][]byte

// NewSignerSeeds resolves seeds into SignerSeeds.
func NewSignerSeeds(seeds ...solana.Seed) (SignerSeeds, error) {
	resolved, err := solana.ResolveSeeds(seeds...)
	if err != nil {
		return nil, err
	}
	return SignerSeeds(resolved), nil
}
