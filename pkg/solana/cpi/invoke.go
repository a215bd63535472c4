package cpi

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-program-sdk/pkg/solana"
	"github.com/code-payments/code-program-sdk/pkg/solana/binary"
	"github.com/code-payments/code-program-sdk/pkg/solana/entrypoint"
	"github.com/code-payments/code-program-sdk/pkg/solana/vm"
)

// Invoker marshals nested invocations for one program invocation and hands
// them to the host.
type Invoker struct {
	log     *logrus.Entry
	c       *entrypoint.Context
	deriver solana.Deriver
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithDeriver sets the Deriver used to check signer seeds. The default is
// the host's.
func WithDeriver(d solana.Deriver) InvokerOption {
	return func(i *Invoker) {
		i.deriver = d
	}
}

// NewInvoker returns an Invoker for the invocation described by c.
func NewInvoker(c *entrypoint.Context, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		log:     logrus.StandardLogger().WithField("type", "solana/cpi"),
		c:       c,
		deriver: c.Deriver(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke invokes ix without signer seeds.
func (i *Invoker) Invoke(ctx context.Context, ix Instruction) error {
	return i.InvokeSigned(ctx, ix)
}

// InvokeSigned invokes ix, signing for the program addresses derived from
// signers. Limits, pointer provenance and privileges are checked before the
// host is called; a failed check never reaches the host.
func (i *Invoker) InvokeSigned(ctx context.Context, ix Instruction, signers ...SignerSeeds) error {
	log := i.log.WithFields(logrus.Fields{
		"method":   "InvokeSigned",
		"program":  solana.KeyString(ix.Program),
		"accounts": len(ix.Accounts),
		"signers":  len(signers),
	})

	if err := checkLimits(ix, signers); err != nil {
		return err
	}

	infos, err := i.resolveAccounts(ix, signers)
	if err != nil {
		return err
	}

	heap := i.c.Heap
	if heap == nil {
		return errors.Wrap(ErrMarshalOverflow, "no heap mapped")
	}
	mark := heap.Mark()
	defer heap.Release(mark)

	m, err := marshal(heap, ix, infos, signers)
	if err != nil {
		return err
	}

	log.Debug("invoking program")

	status := i.c.Host.InvokeSignedC(ctx, m.instructionAddr, m.accountInfosAddr, m.accountInfosLen, m.signerSeedsAddr, m.signerSeedsLen)
	if status != solana.StatusSuccess {
		err := NewRuntimeError(status)
		log.WithError(err).Debug("invocation failed")
		return err
	}
	return nil
}

func checkLimits(ix Instruction, signers []SignerSeeds) error {
	if len(ix.Program) != ed25519.PublicKeySize {
		return errors.Errorf("invalid program id length: %d", len(ix.Program))
	}
	if len(ix.Accounts) > MaxInstructionAccounts {
		return errors.Wrapf(ErrMarshalOverflow, "%d accounts (max %d)", len(ix.Accounts), MaxInstructionAccounts)
	}
	if len(ix.Data) > MaxInstructionDataLen {
		return errors.Wrapf(ErrMarshalOverflow, "%d bytes of data (max %d)", len(ix.Data), MaxInstructionDataLen)
	}
	if len(signers) > MaxSigners {
		return errors.Wrapf(ErrMarshalOverflow, "%d signers (max %d)", len(signers), MaxSigners)
	}
	for j, seeds := range signers {
		if err := solana.ValidateSeeds(seeds...); err != nil {
			return errors.Wrapf(err, "signer %d", j)
		}
	}
	return nil
}

// resolveAccounts maps every meta back to its input account, checks the
// requested privileges, and returns the distinct accounts in first
// reference order.
func (i *Invoker) resolveAccounts(ix Instruction, signers []SignerSeeds) ([]*entrypoint.AccountInfo, error) {
	var pdas []ed25519.PublicKey
	pdasDerived := false

	var distinct []*entrypoint.AccountInfo
	for j, meta := range ix.Accounts {
		info, ok := i.c.Input.AccountByKeyAddr(meta.KeyAddr)
		if !ok {
			return nil, errors.Wrapf(ErrNonOriginalPointer, "account meta %d at %#x", j, meta.KeyAddr)
		}

		if meta.IsWritable && !info.IsWritable() {
			return nil, errors.Wrapf(entrypoint.ErrNotWritable, "account meta %d (%s)", j, solana.KeyString(info.Key()))
		}

		if meta.IsSigner && !info.IsSigner() {
			if !pdasDerived {
				var err error
				pdas, err = i.deriveSigners(signers)
				if err != nil {
					return nil, err
				}
				pdasDerived = true
			}
			if !containsKey(pdas, info.Key()) {
				return nil, errors.Wrapf(entrypoint.ErrMissingSignature, "account meta %d (%s)", j, solana.KeyString(info.Key()))
			}
		}

		seen := false
		for _, d := range distinct {
			if d.SameAccount(info) {
				seen = true
				break
			}
		}
		if !seen {
			distinct = append(distinct, info)
		}
	}
	return distinct, nil
}

func (i *Invoker) deriveSigners(signers []SignerSeeds) ([]ed25519.PublicKey, error) {
	pdas := make([]ed25519.PublicKey, len(signers))
	for j, seeds := range signers {
		pda, err := i.deriver.CreateProgramAddress(i.c.ProgramID(), seeds...)
		if err != nil {
			return nil, errors.Wrapf(err, "signer %d", j)
		}
		pdas[j] = pda
	}
	return pdas, nil
}

func containsKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}

type marshalled struct {
	instructionAddr  uint64
	accountInfosAddr uint64
	accountInfosLen  uint64
	signerSeedsAddr  uint64
	signerSeedsLen   uint64
}

func marshal(heap *vm.Arena, ix Instruction, infos []*entrypoint.AccountInfo, signers []SignerSeeds) (*marshalled, error) {
	programIDAddr, err := heap.Put(ix.Program)
	if err != nil {
		return nil, heapOverflow(err)
	}
	dataAddr, err := heap.Put(ix.Data)
	if err != nil {
		return nil, heapOverflow(err)
	}

	metasAddr, metas, err := heap.Alloc(AccountMetaSize*len(ix.Accounts), descriptorAlignment)
	if err != nil {
		return nil, heapOverflow(err)
	}
	w := binary.NewWriter(metas)
	for _, meta := range ix.Accounts {
		err := solAccountMeta{
			pubkeyAddr: meta.KeyAddr,
			isWritable: meta.IsWritable,
			isSigner:   meta.IsSigner,
		}.marshal(w)
		if err != nil {
			return nil, err
		}
	}

	ixAddr, ixBuf, err := heap.Alloc(InstructionSize, descriptorAlignment)
	if err != nil {
		return nil, heapOverflow(err)
	}
	err = solInstruction{
		programIDAddr: programIDAddr,
		accountsAddr:  metasAddr,
		accountsLen:   uint64(len(ix.Accounts)),
		dataAddr:      dataAddr,
		dataLen:       uint64(len(ix.Data)),
	}.marshal(binary.NewWriter(ixBuf))
	if err != nil {
		return nil, err
	}

	infosAddr, infosBuf, err := heap.Alloc(AccountInfoSize*len(infos), descriptorAlignment)
	if err != nil {
		return nil, heapOverflow(err)
	}
	w = binary.NewWriter(infosBuf)
	for _, info := range infos {
		err := solAccountInfo{
			keyAddr:      info.KeyAddr(),
			lamportsAddr: info.LamportsAddr(),
			dataLen:      uint64(info.DataLen()),
			dataAddr:     info.DataAddr(),
			ownerAddr:    info.OwnerAddr(),
			rentEpoch:    info.RentEpoch(),
			isSigner:     info.IsSigner(),
			isWritable:   info.IsWritable(),
			executable:   info.IsExecutable(),
		}.marshal(w)
		if err != nil {
			return nil, err
		}
	}

	signersAddr, err := marshalSigners(heap, signers)
	if err != nil {
		return nil, err
	}

	return &marshalled{
		instructionAddr:  ixAddr,
		accountInfosAddr: infosAddr,
		accountInfosLen:  uint64(len(infos)),
		signerSeedsAddr:  signersAddr,
		signerSeedsLen:   uint64(len(signers)),
	}, nil
}

func marshalSigners(heap *vm.Arena, signers []SignerSeeds) (uint64, error) {
	descriptors := make([]solSlice, len(signers))
	for j, seeds := range signers {
		seedSlices := make([]solSlice, len(seeds))
		for k, seed := range seeds {
			addr, err := heap.Put(seed)
			if err != nil {
				return 0, heapOverflow(err)
			}
			seedSlices[k] = solSlice{addr: addr, len: uint64(len(seed))}
		}

		addr, buf, err := heap.Alloc(SignerSeedSize*len(seeds), descriptorAlignment)
		if err != nil {
			return 0, heapOverflow(err)
		}
		w := binary.NewWriter(buf)
		for _, s := range seedSlices {
			if err := s.marshal(w); err != nil {
				return 0, err
			}
		}
		descriptors[j] = solSlice{addr: addr, len: uint64(len(seeds))}
	}

	addr, buf, err := heap.Alloc(SignerSeedsSize*len(signers), descriptorAlignment)
	if err != nil {
		return 0, heapOverflow(err)
	}
	w := binary.NewWriter(buf)
	for _, d := range descriptors {
		if err := d.marshal(w); err != nil {
			return 0, err
		}
	}
	return addr, nil
}

func heapOverflow(err error) error {
	return errors.Wrapf(ErrMarshalOverflow, "heap: %v", err)
}
