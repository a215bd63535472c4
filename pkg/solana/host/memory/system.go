package memory

import (
	"bytes"
	"math"

	"github.com/code-payments/code-program-sdk/pkg/solana"
	"github.com/code-payments/code-program-sdk/pkg/solana/system"
)

// processSystem executes a system program instruction directly against the
// ledger.
//
// Reference: https://github.com/solana-labs/solana/blob/master/programs/system/src/system_processor.rs
func (h *Host) processSystem(accounts []instructionAccount, data []byte) uint64 {
	args, err := system.DecodeInstructionData(data)
	if err != nil {
		h.log.WithError(err).WithField("method", "processSystem").Debug("invalid instruction data")
		return solana.StatusFromKey(solana.InstructionErrorInvalidInstructionData)
	}

	switch args := args.(type) {
	case *system.TransferArgs:
		if len(accounts) < 2 {
			return solana.StatusFromKey(solana.InstructionErrorNotEnoughAccountKeys)
		}
		return h.systemTransfer(accounts[0], accounts[1], args.Lamports)

	case *system.AssignArgs:
		if len(accounts) < 1 {
			return solana.StatusFromKey(solana.InstructionErrorNotEnoughAccountKeys)
		}
		return h.systemAssign(accounts[0], args.Owner)

	case *system.AllocateArgs:
		if len(accounts) < 1 {
			return solana.StatusFromKey(solana.InstructionErrorNotEnoughAccountKeys)
		}
		return h.systemAllocate(accounts[0], args.Space)

	case *system.CreateAccountArgs:
		if len(accounts) < 2 {
			return solana.StatusFromKey(solana.InstructionErrorNotEnoughAccountKeys)
		}

		to := h.load(accounts[1].key)
		if to.Lamports > 0 {
			return solana.StatusFromKey(solana.InstructionErrorAccountAlreadyInitialized)
		}
		if status := h.systemAllocate(accounts[1], args.Space); status != solana.StatusSuccess {
			return status
		}
		if status := h.systemAssign(accounts[1], args.Owner); status != solana.StatusSuccess {
			return status
		}
		return h.systemTransfer(accounts[0], accounts[1], args.Lamports)

	default:
		return solana.StatusFromKey(solana.InstructionErrorInvalidInstructionData)
	}
}

func (h *Host) systemTransfer(from, to instructionAccount, lamports uint64) uint64 {
	if !from.isSigner {
		return solana.StatusFromKey(solana.InstructionErrorMissingRequiredSignature)
	}

	source := h.load(from.key)
	if len(source.Data) != 0 {
		return solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
	}
	if source.Lamports < lamports {
		return solana.StatusFromKey(solana.InstructionErrorInsufficientFunds)
	}

	if bytes.Equal(from.key, to.key) {
		return solana.StatusSuccess
	}

	dest := h.load(to.key)
	if dest.Lamports > math.MaxUint64-lamports {
		return solana.StatusFromKey(solana.InstructionErrorArithmeticOverflow)
	}

	source.Lamports -= lamports
	dest.Lamports += lamports
	return solana.StatusSuccess
}

func (h *Host) systemAssign(account instructionAccount, owner []byte) uint64 {
	a := h.load(account.key)
	if bytes.Equal(a.Owner, owner) {
		return solana.StatusSuccess
	}
	if !account.isSigner {
		return solana.StatusFromKey(solana.InstructionErrorMissingRequiredSignature)
	}

	a.Owner = append(a.Owner[:0:0], owner...)
	return solana.StatusSuccess
}

func (h *Host) systemAllocate(account instructionAccount, space uint64) uint64 {
	if !account.isSigner {
		return solana.StatusFromKey(solana.InstructionErrorMissingRequiredSignature)
	}

	a := h.load(account.key)
	if len(a.Data) != 0 || !bytes.Equal(a.Owner, system.ProgramKey[:]) {
		return solana.StatusFromKey(solana.InstructionErrorAccountAlreadyInitialized)
	}
	if space > system.MaxPermittedDataLength {
		return solana.StatusFromKey(solana.InstructionErrorInvalidArgument)
	}

	a.Data = make([]byte, space)
	return solana.StatusSuccess
}
