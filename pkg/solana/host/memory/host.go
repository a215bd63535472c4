package memory

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math/bits"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-program-sdk/pkg/metrics"
	"github.com/code-payments/code-program-sdk/pkg/solana"
	"github.com/code-payments/code-program-sdk/pkg/solana/binary"
	"github.com/code-payments/code-program-sdk/pkg/solana/entrypoint"
	"github.com/code-payments/code-program-sdk/pkg/solana/host"
	"github.com/code-payments/code-program-sdk/pkg/solana/system"
	"github.com/code-payments/code-program-sdk/pkg/solana/vm"
)

const (
	metricsStructName = "solana.host.memory"

	executeDurationMetricName = "ProgramHost.Execute.Duration"
	executeFailureMetricName  = "ProgramHost.Execute.Failure"
	invokeMetricName          = "ProgramHost.InvokeSigned"
)

// Account is an account in the host ledger.
type Account struct {
	Key        ed25519.PublicKey
	Owner      ed25519.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

func (a *Account) clone() *Account {
	return &Account{
		Key:        append(ed25519.PublicKey(nil), a.Key...),
		Owner:      append(ed25519.PublicKey(nil), a.Owner...),
		Lamports:   a.Lamports,
		Data:       append([]byte(nil), a.Data...),
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
	}
}

// instructionAccount is an account reference with the privileges an
// instruction grants it.
type instructionAccount struct {
	key        ed25519.PublicKey
	isSigner   bool
	isWritable bool
}

// Host is an in-memory program host. It keeps an account ledger, runs
// registered programs against serialized inputs and services their nested
// invocations through the C ABI. Top level executions are serialized.
type Host struct {
	log  *logrus.Entry
	conf *conf

	mu       sync.Mutex
	accounts map[string]*Account
	programs map[string]host.ProgramFunc
	logs     []string
}

// NewHost returns an empty Host.
func NewHost(configProvider ConfigProvider) *Host {
	return &Host{
		log:      logrus.StandardLogger().WithField("type", "solana/host/memory"),
		conf:     configProvider(),
		accounts: make(map[string]*Account),
		programs: make(map[string]host.ProgramFunc),
	}
}

// RegisterProgram makes fn executable at program. The program account is
// added to the ledger as executable.
func (h *Host) RegisterProgram(program ed25519.PublicKey, fn host.ProgramFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.programs[string(program)] = fn
	h.accounts[string(program)] = &Account{
		Key:        append(ed25519.PublicKey(nil), program...),
		Owner:      loaderProgramKey(),
		Executable: true,
	}
}

// SetAccount replaces the ledger entry for a.Key with a copy of a.
func (h *Host) SetAccount(a Account) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stored := a.clone()
	if len(stored.Owner) == 0 {
		stored.Owner = append(ed25519.PublicKey(nil), system.ProgramKey[:]...)
	}
	h.accounts[string(a.Key)] = stored
}

// GetAccount returns a copy of the ledger entry for key.
func (h *Host) GetAccount(key ed25519.PublicKey) (Account, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.accounts[string(key)]
	if !ok {
		return Account{}, false
	}
	return *a.clone(), true
}

// Logs returns every message programs have logged, in order.
func (h *Host) Logs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.logs...)
}

// Deriver returns a solana.Deriver backed by the host's privileged program
// address computation.
func (h *Host) Deriver() solana.Deriver {
	return host.NewDeriver(&frame{h: h, log: h.log})
}

// Execute runs ix as a top level instruction. Account privileges come from
// the instruction's metas. On failure the ledger is left unchanged and the
// returned error is a solana.InstructionError.
func (h *Host) Execute(ctx context.Context, ix solana.Instruction) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Execute")
	defer tracer.End()
	tracer.AddAttribute("program", solana.KeyString(ix.Program))

	h.mu.Lock()
	defer h.mu.Unlock()

	log := h.log.WithFields(logrus.Fields{
		"method":  "Execute",
		"program": solana.KeyString(ix.Program),
	})

	start := time.Now()
	checkpoint := h.checkpoint()

	accounts := make([]instructionAccount, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		accounts[i] = instructionAccount{
			key:        meta.PublicKey,
			isSigner:   meta.IsSigner,
			isWritable: meta.IsWritable,
		}
	}

	status := h.process(ctx, nil, ix.Program, accounts, ix.Data)

	metrics.RecordDuration(ctx, executeDurationMetricName, time.Since(start))

	if status != solana.StatusSuccess {
		h.accounts = checkpoint
		metrics.RecordCount(ctx, executeFailureMetricName, 1)

		err := solana.NewInstructionErrorFromStatus(0, status)
		tracer.OnError(err)
		log.WithError(err).Debug("instruction failed")
		return err
	}

	log.Debug("instruction succeeded")
	return nil
}

func (h *Host) checkpoint() map[string]*Account {
	saved := make(map[string]*Account, len(h.accounts))
	for k, a := range h.accounts {
		saved[k] = a.clone()
	}
	return saved
}

// load returns the ledger entry for key, creating an empty system account
// if it does not exist.
func (h *Host) load(key ed25519.PublicKey) *Account {
	a, ok := h.accounts[string(key)]
	if !ok {
		a = &Account{
			Key:   append(ed25519.PublicKey(nil), key...),
			Owner: append(ed25519.PublicKey(nil), system.ProgramKey[:]...),
		}
		h.accounts[string(key)] = a
	}
	return a
}

// process runs program over accounts on top of the invocation stack. The
// ledger reflects the result when it returns success, and is restored for
// the referenced accounts otherwise.
func (h *Host) process(ctx context.Context, stack []ed25519.PublicKey, program ed25519.PublicKey, accounts []instructionAccount, data []byte) uint64 {
	if uint64(len(stack)) >= h.conf.maxInvokeDepth.Get(ctx) {
		return solana.StatusFromKey(solana.InstructionErrorCallDepth)
	}
	if len(stack) > 0 && !bytes.Equal(stack[len(stack)-1], program) {
		// Only the direct caller may be invoked again.
		for _, caller := range stack {
			if bytes.Equal(caller, program) {
				return solana.StatusFromKey(solana.InstructionErrorReentrancyNotAllowed)
			}
		}
	}
	if len(program) != ed25519.PublicKeySize {
		return solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
	}
	if uint64(len(accounts)) > h.conf.maxAccounts.Get(ctx) {
		return solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
	}

	accounts = mergePrivileges(accounts)

	pre := make(map[string]*Account, len(accounts))
	for _, a := range accounts {
		if len(a.key) != ed25519.PublicKeySize {
			return solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
		}
		if _, ok := pre[string(a.key)]; !ok {
			pre[string(a.key)] = h.load(a.key).clone()
		}
	}

	stack = append(stack[:len(stack):len(stack)], program)

	var status uint64
	var baseline map[string]*Account
	if bytes.Equal(program, system.ProgramKey[:]) {
		status = h.processSystem(accounts, data)
		baseline = pre
	} else if fn, ok := h.programs[string(program)]; ok {
		status, baseline = h.run(ctx, stack, program, fn, accounts, data, pre)
	} else {
		status = solana.StatusFromKey(solana.InstructionErrorUnsupportedProgramID)
	}

	if status == solana.StatusSuccess && h.conf.verifyBalances.Get(ctx) {
		status = h.verify(program, accounts, baseline)
	}

	if status != solana.StatusSuccess {
		for k, a := range pre {
			h.accounts[k] = a
		}
	}
	return status
}

// mergePrivileges returns accounts with every reference to a key carrying
// the union of the privileges granted to it.
func mergePrivileges(accounts []instructionAccount) []instructionAccount {
	merged := make([]instructionAccount, len(accounts))
	copy(merged, accounts)
	for i := range merged {
		for j := range accounts {
			if bytes.Equal(merged[i].key, accounts[j].key) {
				merged[i].isSigner = merged[i].isSigner || accounts[j].isSigner
				merged[i].isWritable = merged[i].isWritable || accounts[j].isWritable
			}
		}
	}
	return merged
}

// run serializes the input, calls fn and commits the raw account state it
// leaves behind. The returned baseline is the pre state adjusted for nested
// invocations, against which the program's own changes are verified.
func (h *Host) run(ctx context.Context, stack []ed25519.PublicKey, program ed25519.PublicKey, fn host.ProgramFunc, accounts []instructionAccount, data []byte, pre map[string]*Account) (uint64, map[string]*Account) {
	log := h.log.WithFields(logrus.Fields{
		"method":  "run",
		"program": solana.KeyString(program),
		"depth":   len(stack),
	})

	inputs := make([]entrypoint.InputAccount, len(accounts))
	for i, a := range accounts {
		stored := h.accounts[string(a.key)]
		inputs[i] = entrypoint.InputAccount{
			Key:          stored.Key,
			Owner:        stored.Owner,
			Lamports:     stored.Lamports,
			Data:         stored.Data,
			IsSigner:     a.isSigner,
			IsWritable:   a.isWritable,
			IsExecutable: stored.Executable,
			RentEpoch:    stored.RentEpoch,
		}
	}

	input, err := SerializeInput(inputs, data, program)
	if err != nil {
		log.WithError(err).Warn("failed to serialize input")
		return solana.StatusFromKey(solana.InstructionErrorInvalidArgument), nil
	}

	decoded, err := entrypoint.Deserialize(input, len(inputs), entrypoint.WithoutSnapshots())
	if err != nil {
		log.WithError(err).Warn("failed to decode serialized input")
		return solana.StatusFromKey(solana.InstructionErrorProgramEnvironmentSetupFailure), nil
	}

	mem, err := vm.NewMemoryMap(
		input,
		vm.NewRegion(vm.HeapStart, make([]byte, h.conf.heapSize.Get(ctx))),
	)
	if err != nil {
		log.WithError(err).Warn("failed to map memory")
		return solana.StatusFromKey(solana.InstructionErrorProgramEnvironmentSetupFailure), nil
	}

	baseline := make(map[string]*Account, len(pre))
	for k, a := range pre {
		baseline[k] = a.clone()
	}

	f := &frame{
		h:        h,
		log:      log,
		stack:    stack,
		program:  program,
		mem:      mem,
		input:    decoded,
		baseline: baseline,
	}

	log.Debug("running program")

	status := fn(ctx, f, mem)
	if status != solana.StatusSuccess {
		log.WithField("status", status).Debug("program failed")
		return status, nil
	}

	return f.commit(), baseline
}

// SerializeInput encodes a program input and maps it at vm.InputStart.
func SerializeInput(accounts []entrypoint.InputAccount, data []byte, programID ed25519.PublicKey) (*vm.Region, error) {
	buf, err := entrypoint.Serialize(accounts, data, programID)
	if err != nil {
		return nil, err
	}
	return vm.NewRegion(vm.InputStart, buf), nil
}

// verify checks the changes program made to accounts against baseline.
func (h *Host) verify(program ed25519.PublicKey, accounts []instructionAccount, baseline map[string]*Account) uint64 {
	var preSum, postSum lamportSum

	seen := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		k := string(a.key)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}

		pre, post := baseline[k], h.accounts[k]
		if status := verifyAccount(program, pre, post, a.isWritable); status != solana.StatusSuccess {
			h.log.WithFields(logrus.Fields{
				"method":  "verify",
				"program": solana.KeyString(program),
				"account": solana.KeyString(a.key),
				"status":  status,
			}).Debug("account change rejected")
			return status
		}

		preSum.add(pre.Lamports)
		postSum.add(post.Lamports)
	}

	if preSum != postSum {
		return solana.StatusFromKey(solana.InstructionErrorUnbalancedInstruction)
	}
	return solana.StatusSuccess
}

// verifyAccount applies the per account rules: only the owner may change
// the owner, debit lamports or modify data, and readonly accounts may not
// change at all.
func verifyAccount(program ed25519.PublicKey, pre, post *Account, isWritable bool) uint64 {
	isOwner := bytes.Equal(pre.Owner, program)

	if !bytes.Equal(pre.Owner, post.Owner) {
		if !isWritable || !isOwner || !isZeroed(post.Data) {
			return solana.StatusFromKey(solana.InstructionErrorModifiedProgramID)
		}
	}

	if post.Lamports < pre.Lamports && !isOwner {
		return solana.StatusFromKey(solana.InstructionErrorExternalAccountLamportSpend)
	}
	if post.Lamports != pre.Lamports && !isWritable {
		return solana.StatusFromKey(solana.InstructionErrorReadonlyLamportChange)
	}

	if !bytes.Equal(pre.Data, post.Data) {
		if !isWritable {
			return solana.StatusFromKey(solana.InstructionErrorReadonlyDataModified)
		}
		if !isOwner {
			return solana.StatusFromKey(solana.InstructionErrorExternalAccountDataModified)
		}
	}

	if pre.Executable != post.Executable {
		return solana.StatusFromKey(solana.InstructionErrorExecutableModified)
	}
	if pre.RentEpoch != post.RentEpoch {
		return solana.StatusFromKey(solana.InstructionErrorRentEpochModified)
	}
	return solana.StatusSuccess
}

// lamportSum is a 128 bit sum of balances.
type lamportSum struct {
	hi, lo uint64
}

func (s *lamportSum) add(v uint64) {
	var carry uint64
	s.lo, carry = bits.Add64(s.lo, v, 0)
	s.hi += carry
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// rawDataLen reads an account's data length field as the program left it.
func rawDataLen(mem *vm.MemoryMap, info *entrypoint.AccountInfo) (uint64, error) {
	b, err := mem.Translate(info.DataLenAddr(), 8, false)
	if err != nil {
		return 0, err
	}
	return binary.Uint64At(b, 0), nil
}
