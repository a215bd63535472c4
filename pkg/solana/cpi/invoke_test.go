package cpi

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-program-sdk/pkg/solana"
	"github.com/code-payments/code-program-sdk/pkg/solana/binary"
	"github.com/code-payments/code-program-sdk/pkg/solana/entrypoint"
	"github.com/code-payments/code-program-sdk/pkg/solana/vm"
	"github.com/code-payments/code-program-sdk/pkg/testutil"
)

// recordingHost decodes the descriptors it is handed and returns a fixed
// status.
type recordingHost struct {
	t      *testing.T
	mem    *vm.MemoryMap
	status uint64

	calls   int
	program ed25519.PublicKey
	data    []byte
	metas   []solAccountMeta
	infos   []solAccountInfo
	signers [][][]byte
}

func (h *recordingHost) Log(string) {}

func (h *recordingHost) CreateProgramAddress(seeds [][]byte, program ed25519.PublicKey) (ed25519.PublicKey, uint64) {
	addr, err := solana.CreateProgramAddress(program, seeds...)
	if err != nil {
		return nil, solana.StatusFromKey(solana.InstructionErrorInvalidSeeds)
	}
	return addr, solana.StatusSuccess
}

func (h *recordingHost) read(addr, n uint64) *binary.Cursor {
	b, err := h.mem.Translate(addr, n, false)
	require.NoError(h.t, err)
	return binary.NewCursor(b)
}

func (h *recordingHost) uint64s(c *binary.Cursor, n int) []uint64 {
	vals := make([]uint64, n)
	for i := range vals {
		v, err := c.ReadUint64()
		require.NoError(h.t, err)
		vals[i] = v
	}
	return vals
}

func (h *recordingHost) flags(c *binary.Cursor, n int) []bool {
	vals := make([]bool, n)
	for i := range vals {
		v, err := c.ReadUint8()
		require.NoError(h.t, err)
		require.LessOrEqual(h.t, v, uint8(1))
		vals[i] = v == 1
	}
	require.NoError(h.t, c.AlignTo(8))
	return vals
}

func (h *recordingHost) bytes(addr, n uint64) []byte {
	b, err := h.mem.Translate(addr, n, false)
	require.NoError(h.t, err)
	return append([]byte(nil), b...)
}

func (h *recordingHost) InvokeSignedC(_ context.Context, ixAddr, infosAddr, infosLen, seedsAddr, seedsLen uint64) uint64 {
	h.calls++
	for _, addr := range []uint64{ixAddr, infosAddr} {
		assert.Zero(h.t, addr%descriptorAlignment)
	}

	ix := h.uint64s(h.read(ixAddr, InstructionSize), 5)
	h.program = h.bytes(ix[0], ed25519.PublicKeySize)
	h.data = h.bytes(ix[3], ix[4])

	c := h.read(ix[1], ix[2]*AccountMetaSize)
	h.metas = make([]solAccountMeta, ix[2])
	for i := range h.metas {
		addr := h.uint64s(c, 1)[0]
		flags := h.flags(c, 2)
		h.metas[i] = solAccountMeta{pubkeyAddr: addr, isWritable: flags[0], isSigner: flags[1]}
	}

	c = h.read(infosAddr, infosLen*AccountInfoSize)
	h.infos = make([]solAccountInfo, infosLen)
	for i := range h.infos {
		v := h.uint64s(c, 6)
		flags := h.flags(c, 3)
		h.infos[i] = solAccountInfo{
			keyAddr:      v[0],
			lamportsAddr: v[1],
			dataLen:      v[2],
			dataAddr:     v[3],
			ownerAddr:    v[4],
			rentEpoch:    v[5],
			isSigner:     flags[0],
			isWritable:   flags[1],
			executable:   flags[2],
		}
	}

	h.signers = nil
	if seedsLen == 0 {
		return h.status
	}
	c = h.read(seedsAddr, seedsLen*SignerSeedsSize)
	for i := uint64(0); i < seedsLen; i++ {
		outer := h.uint64s(c, 2)
		inner := h.read(outer[0], outer[1]*SignerSeedSize)
		var seeds [][]byte
		for j := uint64(0); j < outer[1]; j++ {
			s := h.uint64s(inner, 2)
			seeds = append(seeds, h.bytes(s[0], s[1]))
		}
		h.signers = append(h.signers, seeds)
	}

	return h.status
}

type testEnv struct {
	ctx       context.Context
	host      *recordingHost
	c         *entrypoint.Context
	programID ed25519.PublicKey
	payer     *entrypoint.AccountInfo
	recipient *entrypoint.AccountInfo
	readonly  *entrypoint.AccountInfo
	vault     *entrypoint.AccountInfo
	bump      uint8
}

func setup(t *testing.T, heapSize int) testEnv {
	keys := testutil.NewKeyGenerator(t.Name())
	programID := keys.Next()

	vault, bump, err := solana.FindProgramAddressAndBump(programID, []byte("vault"))
	require.NoError(t, err)

	buf, err := entrypoint.Serialize([]entrypoint.InputAccount{
		{Key: keys.Next(), Owner: programID, Lamports: 100, IsSigner: true, IsWritable: true},
		{Key: keys.Next(), Owner: programID, Lamports: 5, Data: []byte{1, 2, 3}, IsWritable: true, RentEpoch: 9},
		{Key: keys.Next(), Owner: programID, IsExecutable: true},
		{Key: vault, Owner: programID, Lamports: 50, IsWritable: true},
	}, []byte{0xaa}, programID)
	require.NoError(t, err)

	mem, err := vm.NewMemoryMap(
		vm.NewRegion(vm.InputStart, buf),
		vm.NewRegion(vm.HeapStart, make([]byte, heapSize)),
	)
	require.NoError(t, err)

	h := &recordingHost{t: t, mem: mem}
	c, err := entrypoint.NewContext(h, mem, entrypoint.MaxAccounts)
	require.NoError(t, err)

	env := testEnv{
		ctx:       context.Background(),
		host:      h,
		c:         c,
		programID: programID,
		bump:      bump,
	}
	for i, dst := range []**entrypoint.AccountInfo{&env.payer, &env.recipient, &env.readonly, &env.vault} {
		*dst, err = c.Account(i)
		require.NoError(t, err)
	}
	return env
}

func TestInvokeSigned_Layout(t *testing.T) {
	env := setup(t, vm.DefaultHeapSize)
	callee := testutil.FilledKey(7)

	err := NewInvoker(env.c).Invoke(env.ctx, NewInstruction(
		callee,
		[]byte{1, 2, 3, 4},
		NewAccountMeta(env.payer, true),
		NewAccountMeta(env.recipient, false),
		NewReadonlyAccountMeta(env.payer, false),
		NewReadonlyAccountMeta(env.readonly, false),
	))
	require.NoError(t, err)
	require.Equal(t, 1, env.host.calls)

	assert.EqualValues(t, callee, env.host.program)
	assert.Equal(t, []byte{1, 2, 3, 4}, env.host.data)
	assert.Equal(t, []solAccountMeta{
		{pubkeyAddr: env.payer.KeyAddr(), isWritable: true, isSigner: true},
		{pubkeyAddr: env.recipient.KeyAddr(), isWritable: true},
		{pubkeyAddr: env.payer.KeyAddr()},
		{pubkeyAddr: env.readonly.KeyAddr()},
	}, env.host.metas)

	// Account infos are distinct, in first reference order, and point into
	// the input region.
	require.Len(t, env.host.infos, 3)
	for i, info := range []*entrypoint.AccountInfo{env.payer, env.recipient, env.readonly} {
		assert.Equal(t, solAccountInfo{
			keyAddr:      info.KeyAddr(),
			lamportsAddr: info.LamportsAddr(),
			dataLen:      uint64(info.DataLen()),
			dataAddr:     info.DataAddr(),
			ownerAddr:    info.OwnerAddr(),
			rentEpoch:    info.RentEpoch(),
			isSigner:     info.IsSigner(),
			isWritable:   info.IsWritable(),
			executable:   info.IsExecutable(),
		}, env.host.infos[i], "info %d", i)
	}
	assert.EqualValues(t, 3, env.host.infos[1].dataLen)
	assert.EqualValues(t, 9, env.host.infos[1].rentEpoch)
	assert.True(t, env.host.infos[2].executable)
	assert.Empty(t, env.host.signers)

	// Descriptors are scoped to the call.
	assert.Zero(t, env.c.Heap.Used())
}

func TestInvokeSigned_Signers(t *testing.T) {
	env := setup(t, vm.DefaultHeapSize)

	seeds, err := NewSignerSeeds(solana.SeedString("vault"), solana.SeedUint8(env.bump))
	require.NoError(t, err)
	_, otherBump, err := solana.FindProgramAddressAndBump(env.programID, []byte("other"))
	require.NoError(t, err)
	other, err := NewSignerSeeds(solana.SeedString("other"), solana.SeedUint8(otherBump))
	require.NoError(t, err)

	ix := NewInstruction(testutil.FilledKey(7), nil, NewAccountMeta(env.vault, true))
	require.NoError(t, NewInvoker(env.c).InvokeSigned(env.ctx, ix, other, seeds))

	assert.Equal(t, [][][]byte{
		{[]byte("other"), {otherBump}},
		{[]byte("vault"), {env.bump}},
	}, env.host.signers)
	assert.True(t, env.host.metas[0].isSigner)
	assert.False(t, env.host.infos[0].isSigner)
}

func TestInvokeSigned_LocalChecks(t *testing.T) {
	for _, tc := range []struct {
		name     string
		build    func(t *testing.T, env testEnv) (Instruction, []SignerSeeds)
		expected []error
	}{
		{
			name: "missing signature",
			build: func(t *testing.T, env testEnv) (Instruction, []SignerSeeds) {
				return NewInstruction(testutil.FilledKey(7), nil, NewAccountMeta(env.vault, true)), nil
			},
			expected: []error{entrypoint.ErrMissingSignature},
		},
		{
			name: "wrong bump",
			build: func(t *testing.T, env testEnv) (Instruction, []SignerSeeds) {
				signers := []SignerSeeds{{[]byte("vault"), {env.bump + 1}}}
				return NewInstruction(testutil.FilledKey(7), nil, NewReadonlyAccountMeta(env.vault, true)), signers
			},
			// Seeds that do not derive the account yield either a different
			// address or an on-curve one.
			expected: []error{entrypoint.ErrMissingSignature, solana.ErrInvalidPublicKey},
		},
		{
			name: "writable escalation",
			build: func(t *testing.T, env testEnv) (Instruction, []SignerSeeds) {
				return NewInstruction(testutil.FilledKey(7), nil, NewAccountMeta(env.readonly, false)), nil
			},
			expected: []error{entrypoint.ErrNotWritable},
		},
		{
			name: "key copied to the heap",
			build: func(t *testing.T, env testEnv) (Instruction, []SignerSeeds) {
				addr, err := env.c.Heap.Put(env.c.Input.Accounts[0].Value.Key)
				require.NoError(t, err)
				return NewInstruction(testutil.FilledKey(7), nil, NewAccountMetaAt(addr, true, true)), nil
			},
			expected: []error{ErrNonOriginalPointer},
		},
		{
			name: "misaligned key address",
			build: func(t *testing.T, env testEnv) (Instruction, []SignerSeeds) {
				return NewInstruction(testutil.FilledKey(7), nil, NewAccountMetaAt(env.payer.KeyAddr()+1, true, true)), nil
			},
			expected: []error{ErrNonOriginalPointer},
		},
		{
			name: "too many accounts",
			build: func(t *testing.T, env testEnv) (Instruction, []SignerSeeds) {
				metas := make([]AccountMeta, MaxInstructionAccounts+1)
				for i := range metas {
					metas[i] = NewReadonlyAccountMeta(env.payer, false)
				}
				return NewInstruction(testutil.FilledKey(7), nil, metas...), nil
			},
			expected: []error{ErrMarshalOverflow},
		},
		{
			name: "too much data",
			build: func(t *testing.T, env testEnv) (Instruction, []SignerSeeds) {
				return NewInstruction(testutil.FilledKey(7), make([]byte, MaxInstructionDataLen+1)), nil
			},
			expected: []error{ErrMarshalOverflow},
		},
		{
			name: "too many signers",
			build: func(t *testing.T, env testEnv) (Instruction, []SignerSeeds) {
				return NewInstruction(testutil.FilledKey(7), nil), make([]SignerSeeds, MaxSigners+1)
			},
			expected: []error{ErrMarshalOverflow},
		},
		{
			name: "seed too long",
			build: func(t *testing.T, env testEnv) (Instruction, []SignerSeeds) {
				return NewInstruction(testutil.FilledKey(7), nil), []SignerSeeds{{make([]byte, solana.MaxSeedLength+1)}}
			},
			expected: []error{solana.ErrMaxSeedLengthExceeded},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t, vm.DefaultHeapSize)
			ix, signers := tc.build(t, env)

			err := NewInvoker(env.c).InvokeSigned(env.ctx, ix, signers...)
			require.Error(t, err)
			matched := false
			for _, expected := range tc.expected {
				matched = matched || errors.Is(err, expected)
			}
			assert.True(t, matched, "%v", err)
			assert.Zero(t, env.host.calls)
		})
	}
}

func TestInvokeSigned_HeapExhausted(t *testing.T) {
	env := setup(t, 64)

	err := NewInvoker(env.c).Invoke(env.ctx, NewInstruction(testutil.FilledKey(7), make([]byte, 128), NewAccountMeta(env.payer, true)))
	assert.True(t, errors.Is(err, ErrMarshalOverflow), "%v", err)
	assert.Zero(t, env.host.calls)
	assert.Zero(t, env.c.Heap.Used())
}

func TestInvokeSigned_RuntimeError(t *testing.T) {
	for _, tc := range []struct {
		status   uint64
		key      solana.InstructionErrorKey
		sentinel error
	}{
		{solana.StatusFromKey(solana.InstructionErrorInsufficientFunds), solana.InstructionErrorInsufficientFunds, entrypoint.ErrInsufficientFunds},
		{solana.StatusFromKey(solana.InstructionErrorInvalidRealloc), solana.InstructionErrorInvalidRealloc, entrypoint.ErrInvalidRealloc},
		{42, solana.InstructionErrorCustom, solana.CustomError(42)},
	} {
		env := setup(t, vm.DefaultHeapSize)
		env.host.status = tc.status

		err := NewInvoker(env.c).Invoke(env.ctx, NewInstruction(testutil.FilledKey(7), nil))

		var runtimeErr *RuntimeError
		require.True(t, errors.As(err, &runtimeErr))
		assert.Equal(t, tc.status, runtimeErr.Status())
		assert.Equal(t, tc.key, runtimeErr.Key)
		assert.True(t, errors.Is(err, tc.sentinel))

		// Returning the error from a program passes the status through.
		assert.Equal(t, tc.status, entrypoint.StatusFromError(err))
	}
}

func TestWithDeriver(t *testing.T) {
	env := setup(t, vm.DefaultHeapSize)

	seeds, err := NewSignerSeeds(solana.SeedString("vault"), solana.SeedUint8(env.bump))
	require.NoError(t, err)
	ix := NewInstruction(testutil.FilledKey(7), nil, NewAccountMeta(env.vault, true))

	require.NoError(t, NewInvoker(env.c, WithDeriver(solana.LocalDeriver{})).InvokeSigned(env.ctx, ix, seeds))
	assert.Equal(t, 1, env.host.calls)
}
