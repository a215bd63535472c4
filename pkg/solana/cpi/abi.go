package cpi

import (
	"github.com/code-payments/code-program-sdk/pkg/solana/binary"
)

// Sizes of the C-layout descriptors passed to the host. All fields are
// little endian; pointers are 64 bit virtual addresses.
//
// Reference: https://github.com/solana-labs/solana/blob/master/sdk/bpf/c/inc/sol/cpi.h
const (
	// SolInstruction: program_id*, accounts*, accounts_len, data*, data_len
	InstructionSize = 40

	// SolAccountMeta: pubkey*, is_writable, is_signer, padding
	AccountMetaSize = 16

	// SolAccountInfo: key*, lamports*, data_len, data*, owner*, rent_epoch,
	// is_signer, is_writable, executable, padding
	AccountInfoSize = 56

	// SolSignerSeeds and SolSignerSeed: addr, len
	SignerSeedsSize = 16
	SignerSeedSize  = 16

	descriptorAlignment = 8
)

const (
	// MaxInstructionAccounts is the most account metas one invocation may
	// carry.
	MaxInstructionAccounts = 64

	// MaxInstructionDataLen is the largest instruction payload.
	MaxInstructionDataLen = 10 * 1024

	// MaxSigners is the most signer seed sets one invocation may carry.
	MaxSigners = 16
)

type solInstruction struct {
	programIDAddr uint64
	accountsAddr  uint64
	accountsLen   uint64
	dataAddr      uint64
	dataLen       uint64
}

func (ix solInstruction) marshal(w *binary.Writer) error {
	for _, v := range []uint64{ix.programIDAddr, ix.accountsAddr, ix.accountsLen, ix.dataAddr, ix.dataLen} {
		if err := w.WriteUint64(v); err != nil {
			return err
		}
	}
	return nil
}

type solAccountMeta struct {
	pubkeyAddr uint64
	isWritable bool
	isSigner   bool
}

func (m solAccountMeta) marshal(w *binary.Writer) error {
	if err := w.WriteUint64(m.pubkeyAddr); err != nil {
		return err
	}
	if err := w.WriteBool(m.isWritable); err != nil {
		return err
	}
	if err := w.WriteBool(m.isSigner); err != nil {
		return err
	}
	return w.AlignTo(descriptorAlignment)
}

type solAccountInfo struct {
	keyAddr      uint64
	lamportsAddr uint64
	dataLen      uint64
	dataAddr     uint64
	ownerAddr    uint64
	rentEpoch    uint64
	isSigner     bool
	isWritable   bool
	executable   bool
}

func (a solAccountInfo) marshal(w *binary.Writer) error {
	for _, v := range []uint64{a.keyAddr, a.lamportsAddr, a.dataLen, a.dataAddr, a.ownerAddr, a.rentEpoch} {
		if err := w.WriteUint64(v); err != nil {
			return err
		}
	}
	for _, v := range []bool{a.isSigner, a.isWritable, a.executable} {
		if err := w.WriteBool(v); err != nil {
			return err
		}
	}
	return w.AlignTo(descriptorAlignment)
}

// solSlice is the shared layout of SolSignerSeeds and SolSignerSeed.
type solSlice struct {
	addr uint64
	len  uint64
}

func (s solSlice) marshal(w *binary.Writer) error {
	if err := w.WriteUint64(s.addr); err != nil {
		return err
	}
	return w.WriteUint64(s.len)
}
