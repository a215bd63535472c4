package memory

import (
	"bytes"
	"context"
	"crypto/ed25519"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-program-sdk/pkg/metrics"
	"github.com/code-payments/code-program-sdk/pkg/solana"
	"github.com/code-payments/code-program-sdk/pkg/solana/binary"
	"github.com/code-payments/code-program-sdk/pkg/solana/cpi"
	"github.com/code-payments/code-program-sdk/pkg/solana/entrypoint"
	"github.com/code-payments/code-program-sdk/pkg/solana/vm"
)

// frame is the host a single program invocation talks to.
type frame struct {
	h   *Host
	log *logrus.Entry

	stack   []ed25519.PublicKey
	program ed25519.PublicKey
	mem     *vm.MemoryMap
	input   *entrypoint.Input

	// baseline is the state the program's own changes are verified
	// against. A nested invocation moves it to the callee's results for
	// the accounts it was passed.
	baseline map[string]*Account
}

// Log implements host.Host.Log.
func (f *frame) Log(msg string) {
	f.h.logs = append(f.h.logs, msg)
	f.log.WithField("program", solana.KeyString(f.program)).Debug(msg)
}

// CreateProgramAddress implements host.Host.CreateProgramAddress.
func (f *frame) CreateProgramAddress(seeds [][]byte, program ed25519.PublicKey) (ed25519.PublicKey, uint64) {
	if len(program) != ed25519.PublicKeySize {
		return nil, solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
	}
	if len(seeds) > solana.MaxSeeds {
		return nil, solana.StatusFromKey(solana.InstructionErrorMaxSeedLengthExceeded)
	}
	for _, seed := range seeds {
		if len(seed) > solana.MaxSeedLength {
			return nil, solana.StatusFromKey(solana.InstructionErrorMaxSeedLengthExceeded)
		}
	}

	addr, err := solanago.CreateProgramAddress(seeds, solanago.PublicKeyFromBytes(program))
	if err != nil {
		return nil, solana.StatusFromKey(solana.InstructionErrorInvalidSeeds)
	}
	return ed25519.PublicKey(addr.Bytes()), solana.StatusSuccess
}

// InvokeSignedC implements host.Host.InvokeSignedC.
func (f *frame) InvokeSignedC(ctx context.Context, instructionAddr, accountInfosAddr, accountInfosLen, signerSeedsAddr, signerSeedsLen uint64) uint64 {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "InvokeSignedC")
	defer tracer.End()

	metrics.RecordCount(ctx, invokeMetricName, 1)

	status := f.invokeSignedC(ctx, instructionAddr, accountInfosAddr, accountInfosLen, signerSeedsAddr, signerSeedsLen)
	tracer.OnStatus(status)
	return status
}

func (f *frame) invokeSignedC(ctx context.Context, instructionAddr, accountInfosAddr, accountInfosLen, signerSeedsAddr, signerSeedsLen uint64) uint64 {
	invalidArgument := solana.StatusFromKey(solana.InstructionErrorInvalidArgument)

	if f.mem == nil || f.input == nil {
		return invalidArgument
	}

	log := f.log.WithField("method", "InvokeSignedC")

	ix, err := translateInstruction(f.mem, instructionAddr)
	if err != nil {
		log.WithError(err).Debug("invalid instruction")
		return invalidArgument
	}
	log = log.WithField("callee", solana.KeyString(ix.program))

	infos, err := translateAccountInfos(f.mem, accountInfosAddr, accountInfosLen)
	if err != nil {
		log.WithError(err).Debug("invalid account infos")
		return invalidArgument
	}

	callers := make([]*entrypoint.AccountInfo, len(infos))
	for i, info := range infos {
		record, ok := f.input.AccountByKeyAddr(info.KeyAddr)
		if !ok ||
			info.LamportsAddr != record.LamportsAddr() ||
			info.OwnerAddr != record.OwnerAddr() ||
			info.DataAddr != record.DataAddr() {
			log.WithField("index", i).Debug("account info does not reference an input account")
			return invalidArgument
		}

		rawLen, err := rawDataLen(f.mem, record)
		if err != nil {
			return invalidArgument
		}
		if rawLen > uint64(record.OriginalDataLen()+entrypoint.MaxPermittedDataIncrease) {
			return solana.StatusFromKey(solana.InstructionErrorInvalidRealloc)
		}
		callers[i] = record
	}

	signers, status := f.translateSigners(signerSeedsAddr, signerSeedsLen)
	if status != solana.StatusSuccess {
		return status
	}

	accounts := make([]instructionAccount, len(ix.metas))
	for i, meta := range ix.metas {
		record, ok := f.input.AccountByKeyAddr(meta.pubkeyAddr)
		if !ok {
			log.WithField("index", i).Debug("account meta does not reference an input account")
			return invalidArgument
		}

		found := false
		for _, c := range callers {
			if c.SameAccount(record) {
				found = true
				break
			}
		}
		if !found {
			log.WithField("index", i).Debug("account meta has no matching account info")
			return solana.StatusFromKey(solana.InstructionErrorMissingAccount)
		}

		if meta.isWritable && !record.IsWritable() {
			return solana.StatusFromKey(solana.InstructionErrorPrivilegeEscalation)
		}
		if meta.isSigner && !record.IsSigner() && !containsKey(signers, record.Key()) {
			return solana.StatusFromKey(solana.InstructionErrorPrivilegeEscalation)
		}

		accounts[i] = instructionAccount{
			key:        append(ed25519.PublicKey(nil), record.Key()...),
			isSigner:   meta.isSigner,
			isWritable: meta.isWritable,
		}
	}

	if status := f.updateCallee(ctx, callers); status != solana.StatusSuccess {
		return status
	}

	log.WithField("depth", len(f.stack)).Debug("invoking program")

	status = f.h.process(ctx, f.stack, ix.program, accounts, ix.data)
	if status != solana.StatusSuccess {
		return status
	}

	return f.updateCaller(callers)
}

// updateCallee writes the caller's view of each passed account to the
// ledger. The changes the caller made so far are verified first, and must
// balance across the passed accounts.
func (f *frame) updateCallee(ctx context.Context, callers []*entrypoint.AccountInfo) uint64 {
	verify := f.h.conf.verifyBalances.Get(ctx)

	var preSum, postSum lamportSum
	updated := make(map[string]*Account, len(callers))
	for _, c := range callers {
		k := string(c.Key())
		if _, ok := updated[k]; ok {
			continue
		}

		current := f.h.load(c.Key()).clone()
		current.Lamports = c.Lamports()
		current.Owner = append(ed25519.PublicKey(nil), c.Owner()...)
		current.Data = append([]byte(nil), c.Data()...)
		updated[k] = current

		if pre, ok := f.baseline[k]; ok && verify {
			if status := verifyAccount(f.program, pre, current, c.IsWritable()); status != solana.StatusSuccess {
				return status
			}
			preSum.add(pre.Lamports)
			postSum.add(current.Lamports)
		}
	}

	if preSum != postSum {
		return solana.StatusFromKey(solana.InstructionErrorUnbalancedInstruction)
	}

	for k, a := range updated {
		f.h.accounts[k] = a
	}
	return solana.StatusSuccess
}

// updateCaller copies the callee's results back into the caller's input and
// moves the verification baseline of each passed account to its post state.
func (f *frame) updateCaller(callers []*entrypoint.AccountInfo) uint64 {
	for _, c := range callers {
		k := string(c.Key())
		post := f.h.accounts[k]

		if len(post.Data) > c.OriginalDataLen()+entrypoint.MaxPermittedDataIncrease {
			return solana.StatusFromKey(solana.InstructionErrorInvalidRealloc)
		}

		lamports, err := f.mem.Translate(c.LamportsAddr(), 8, true)
		if err != nil {
			return solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
		}
		binary.PutUint64At(lamports, 0, post.Lamports)

		owner, err := f.mem.Translate(c.OwnerAddr(), ed25519.PublicKeySize, true)
		if err != nil {
			return solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
		}
		copy(owner, post.Owner)

		dataLen, err := f.mem.Translate(c.DataLenAddr(), 8, true)
		if err != nil {
			return solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
		}
		binary.PutUint64At(dataLen, 0, uint64(len(post.Data)))

		data, err := f.mem.Translate(c.DataAddr(), uint64(len(post.Data)), true)
		if err != nil {
			return solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
		}
		copy(data, post.Data)

		if _, ok := f.baseline[k]; ok {
			f.baseline[k] = post.clone()
		}
	}
	return solana.StatusSuccess
}

// translateSigners derives the program addresses the caller signs for.
func (f *frame) translateSigners(addr, n uint64) ([]ed25519.PublicKey, uint64) {
	if n == 0 {
		return nil, solana.StatusSuccess
	}
	if n > cpi.MaxSigners {
		return nil, solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
	}

	signerSeeds, err := translateSlices(f.mem, addr, n)
	if err != nil {
		return nil, solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
	}

	pdas := make([]ed25519.PublicKey, 0, len(signerSeeds))
	for _, s := range signerSeeds {
		if s.Len > solana.MaxSeeds {
			return nil, solana.StatusFromKey(solana.InstructionErrorMaxSeedLengthExceeded)
		}

		descriptors, err := translateSlices(f.mem, s.Addr, s.Len)
		if err != nil {
			return nil, solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
		}

		seeds := make([][]byte, len(descriptors))
		for i, d := range descriptors {
			seeds[i], err = f.mem.Translate(d.Addr, d.Len, false)
			if err != nil {
				return nil, solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
			}
		}

		pda, status := f.CreateProgramAddress(seeds, f.program)
		if status != solana.StatusSuccess {
			return nil, status
		}
		pdas = append(pdas, pda)
	}
	return pdas, solana.StatusSuccess
}

// commit writes the raw account state left in the input back to the
// ledger.
func (f *frame) commit() uint64 {
	for i := range f.input.Accounts {
		raw := &f.input.Accounts[i].Raw
		if raw.IsDuplicate() {
			continue
		}

		rawLen, err := rawDataLen(f.mem, raw)
		if err != nil {
			return solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
		}
		if rawLen > uint64(raw.OriginalDataLen()+entrypoint.MaxPermittedDataIncrease) {
			return solana.StatusFromKey(solana.InstructionErrorInvalidRealloc)
		}

		stored := f.h.load(raw.Key())
		stored.Lamports = raw.Lamports()
		stored.Owner = append(ed25519.PublicKey(nil), raw.Owner()...)
		stored.Data = append([]byte(nil), raw.Data()...)
	}
	return solana.StatusSuccess
}

func containsKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}

func loaderProgramKey() ed25519.PublicKey {
	return ed25519.PublicKey(solanago.BPFLoaderUpgradeableProgramID.Bytes())
}
