package host

import (
	"context"
	"crypto/ed25519"

	"github.com/code-payments/code-program-sdk/pkg/solana"
	"github.com/code-payments/code-program-sdk/pkg/solana/vm"
)

// Host is the set of privileged calls a program may make into its host.
// Addresses are virtual addresses in the calling program's MemoryMap.
type Host interface {
	// Log records a message from the running program.
	Log(msg string)

	// CreateProgramAddress derives a program address. A nonzero status is
	// a status code as produced by solana.StatusFromKey.
	CreateProgramAddress(seeds [][]byte, program ed25519.PublicKey) (ed25519.PublicKey, uint64)

	// InvokeSignedC invokes another program with C-layout descriptors:
	// a SolInstruction at instructionAddr, accountInfosLen SolAccountInfos
	// at accountInfosAddr and signerSeedsLen SolSignerSeeds at
	// signerSeedsAddr. It returns the callee's status.
	InvokeSignedC(ctx context.Context, instructionAddr, accountInfosAddr, accountInfosLen, signerSeedsAddr, signerSeedsLen uint64) uint64
}

// ProgramFunc is a program entrypoint. mem maps the serialized input at
// vm.InputStart and a scratch heap at vm.HeapStart. The return value is the
// program's status; StatusSuccess means success.
type ProgramFunc func(ctx context.Context, h Host, mem *vm.MemoryMap) uint64

// StatusSuccess is returned by a privileged call or program that succeeded.
const StatusSuccess = solana.StatusSuccess
