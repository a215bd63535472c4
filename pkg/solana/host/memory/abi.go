package memory

import (
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/code-payments/code-program-sdk/pkg/solana/cpi"
	"github.com/code-payments/code-program-sdk/pkg/solana/vm"
)

// Host side decoding of the C descriptors a program passes to
// InvokeSignedC.
//
// Reference: https://github.com/solana-labs/solana/blob/master/programs/bpf_loader/src/syscalls/cpi.rs

var errInvalidFlag = errors.New("flag is not 0 or 1")

type solInstruction struct {
	ProgramIDAddr uint64
	AccountsAddr  uint64
	AccountsLen   uint64
	DataAddr      uint64
	DataLen       uint64
}

func (ix *solInstruction) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	for _, v := range []*uint64{&ix.ProgramIDAddr, &ix.AccountsAddr, &ix.AccountsLen, &ix.DataAddr, &ix.DataLen} {
		if *v, err = d.ReadUint64(bin.LE); err != nil {
			return err
		}
	}
	return nil
}

type solAccountMeta struct {
	PubkeyAddr uint64
	IsWritable bool
	IsSigner   bool
}

func (m *solAccountMeta) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	if m.PubkeyAddr, err = d.ReadUint64(bin.LE); err != nil {
		return err
	}
	if m.IsWritable, err = readFlag(d); err != nil {
		return err
	}
	if m.IsSigner, err = readFlag(d); err != nil {
		return err
	}
	_, err = d.ReadBytes(cpi.AccountMetaSize - 10)
	return err
}

type solAccountInfo struct {
	KeyAddr      uint64
	LamportsAddr uint64
	DataLen      uint64
	DataAddr     uint64
	OwnerAddr    uint64
	RentEpoch    uint64
	IsSigner     bool
	IsWritable   bool
	Executable   bool
}

func (a *solAccountInfo) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	for _, v := range []*uint64{&a.KeyAddr, &a.LamportsAddr, &a.DataLen, &a.DataAddr, &a.OwnerAddr, &a.RentEpoch} {
		if *v, err = d.ReadUint64(bin.LE); err != nil {
			return err
		}
	}
	for _, v := range []*bool{&a.IsSigner, &a.IsWritable, &a.Executable} {
		if *v, err = readFlag(d); err != nil {
			return err
		}
	}
	_, err = d.ReadBytes(cpi.AccountInfoSize - 51)
	return err
}

// solSlice is a SolSignerSeeds or SolSignerSeed descriptor.
type solSlice struct {
	Addr uint64
	Len  uint64
}

func (s *solSlice) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	if s.Addr, err = d.ReadUint64(bin.LE); err != nil {
		return err
	}
	s.Len, err = d.ReadUint64(bin.LE)
	return err
}

func readFlag(d *bin.Decoder) (bool, error) {
	v, err := d.ReadUint8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, errors.Wrapf(errInvalidFlag, "got %d", v)
	}
	return v == 1, nil
}

// instruction is a translated SolInstruction. Account metas are kept as
// addresses so the caller can resolve them against its input.
type instruction struct {
	program ed25519.PublicKey
	metas   []accountMeta
	data    []byte
}

type accountMeta struct {
	pubkeyAddr uint64
	isWritable bool
	isSigner   bool
}

func translateInstruction(mem *vm.MemoryMap, addr uint64) (*instruction, error) {
	raw, err := mem.Translate(addr, cpi.InstructionSize, false)
	if err != nil {
		return nil, err
	}

	var ix solInstruction
	if err := ix.UnmarshalWithDecoder(bin.NewBinDecoder(raw)); err != nil {
		return nil, err
	}

	if ix.AccountsLen > cpi.MaxInstructionAccounts {
		return nil, errors.Errorf("%d accounts exceeds %d", ix.AccountsLen, cpi.MaxInstructionAccounts)
	}
	if ix.DataLen > cpi.MaxInstructionDataLen {
		return nil, errors.Errorf("%d bytes of data exceeds %d", ix.DataLen, cpi.MaxInstructionDataLen)
	}

	program, err := mem.Translate(ix.ProgramIDAddr, ed25519.PublicKeySize, false)
	if err != nil {
		return nil, errors.Wrap(err, "program id")
	}

	metasRaw, err := mem.Translate(ix.AccountsAddr, ix.AccountsLen*cpi.AccountMetaSize, false)
	if err != nil {
		return nil, errors.Wrap(err, "account metas")
	}

	d := bin.NewBinDecoder(metasRaw)
	metas := make([]accountMeta, ix.AccountsLen)
	for i := range metas {
		var m solAccountMeta
		if err := m.UnmarshalWithDecoder(d); err != nil {
			return nil, errors.Wrapf(err, "account meta %d", i)
		}
		metas[i] = accountMeta{
			pubkeyAddr: m.PubkeyAddr,
			isWritable: m.IsWritable,
			isSigner:   m.IsSigner,
		}
	}

	data, err := mem.Translate(ix.DataAddr, ix.DataLen, false)
	if err != nil {
		return nil, errors.Wrap(err, "data")
	}

	return &instruction{
		program: append(ed25519.PublicKey(nil), program...),
		metas:   metas,
		data:    append([]byte(nil), data...),
	}, nil
}

func translateAccountInfos(mem *vm.MemoryMap, addr, n uint64) ([]solAccountInfo, error) {
	if n > cpi.MaxInstructionAccounts {
		return nil, errors.Errorf("%d account infos exceeds %d", n, cpi.MaxInstructionAccounts)
	}

	raw, err := mem.Translate(addr, n*cpi.AccountInfoSize, false)
	if err != nil {
		return nil, err
	}

	d := bin.NewBinDecoder(raw)
	infos := make([]solAccountInfo, n)
	for i := range infos {
		if err := infos[i].UnmarshalWithDecoder(d); err != nil {
			return nil, errors.Wrapf(err, "account info %d", i)
		}
	}
	return infos, nil
}

func translateSlices(mem *vm.MemoryMap, addr, n uint64) ([]solSlice, error) {
	raw, err := mem.Translate(addr, n*cpi.SignerSeedSize, false)
	if err != nil {
		return nil, err
	}

	d := bin.NewBinDecoder(raw)
	slices := make([]solSlice, n)
	for i := range slices {
		if err := slices[i].UnmarshalWithDecoder(d); err != nil {
			return nil, errors.Wrapf(err, "descriptor %d", i)
		}
	}
	return slices, nil
}
