package system

import (
	"context"
	"crypto/ed25519"

	"github.com/code-payments/code-program-sdk/pkg/solana/cpi"
	"github.com/code-payments/code-program-sdk/pkg/solana/entrypoint"
)

// Helpers for invoking the system program from a running program. Accounts
// are passed as raw views so their capabilities point back into the input.

func invoke(ctx context.Context, inv *cpi.Invoker, args Args, signers []cpi.SignerSeeds, accounts ...cpi.AccountMeta) error {
	data, err := EncodeInstructionData(args)
	if err != nil {
		return err
	}
	return inv.InvokeSigned(ctx, cpi.NewInstruction(ProgramKey[:], data, accounts...), signers...)
}

// InvokeTransfer moves lamports from from to to through the system program.
// from must be a signer, or a program address signed for by signers.
func InvokeTransfer(ctx context.Context, inv *cpi.Invoker, from, to *entrypoint.AccountInfo, lamports uint64, signers ...cpi.SignerSeeds) error {
	return invoke(ctx, inv, &TransferArgs{Lamports: lamports}, signers,
		cpi.NewAccountMeta(from, true),
		cpi.NewAccountMeta(to, false),
	)
}

// InvokeAssign sets the owner of account.
func InvokeAssign(ctx context.Context, inv *cpi.Invoker, account *entrypoint.AccountInfo, owner ed25519.PublicKey, signers ...cpi.SignerSeeds) error {
	return invoke(ctx, inv, &AssignArgs{Owner: owner}, signers,
		cpi.NewAccountMeta(account, true),
	)
}

// InvokeAllocate sets the data size of an empty system account.
func InvokeAllocate(ctx context.Context, inv *cpi.Invoker, account *entrypoint.AccountInfo, space uint64, signers ...cpi.SignerSeeds) error {
	return invoke(ctx, inv, &AllocateArgs{Space: space}, signers,
		cpi.NewAccountMeta(account, true),
	)
}

// InvokeCreateAccount funds, allocates and assigns account.
func InvokeCreateAccount(ctx context.Context, inv *cpi.Invoker, funder, account *entrypoint.AccountInfo, lamports, space uint64, owner ed25519.PublicKey, signers ...cpi.SignerSeeds) error {
	return invoke(ctx, inv, &CreateAccountArgs{Lamports: lamports, Space: space, Owner: owner}, signers,
		cpi.NewAccountMeta(funder, true),
		cpi.NewAccountMeta(account, true),
	)
}
