package system

import (
	"bytes"
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/code-payments/code-program-sdk/pkg/solana"
)

// ProgramKey is the system program id, 11111111111111111111111111111111.
var ProgramKey [32]byte

// Command is the u32 discriminant that prefixes system instruction data.
type Command uint32

const (
	CommandCreateAccount Command = iota
	CommandAssign
	CommandTransfer
	// nolint:varcheck,deadcode,unused
	commandCreateAccountWithSeed
	// nolint:varcheck,deadcode,unused
	commandAdvanceNonceAccount
	// nolint:varcheck,deadcode,unused
	commandWithdrawNonceAccount
	// nolint:varcheck,deadcode,unused
	commandInitializeNonceAccount
	// nolint:varcheck,deadcode,unused
	commandAuthorizeNonceAccount
	CommandAllocate
)

// MaxPermittedDataLength is the largest account the system program will
// allocate.
const MaxPermittedDataLength = 10 * 1024 * 1024

// Args is the payload that follows a Command.
type Args interface {
	Command() Command
	MarshalWithEncoder(e *bin.Encoder) error
	UnmarshalWithDecoder(d *bin.Decoder) error
}

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
type CreateAccountArgs struct {
	// Number of lamports to transfer to the new account
	Lamports uint64
	// Number of bytes of memory to allocate
	Space uint64
	// Address of program that will own the new account
	Owner ed25519.PublicKey
}

func (a *CreateAccountArgs) Command() Command {
	return CommandCreateAccount
}

func (a *CreateAccountArgs) MarshalWithEncoder(e *bin.Encoder) error {
	if err := e.WriteUint64(a.Lamports, bin.LE); err != nil {
		return err
	}
	if err := e.WriteUint64(a.Space, bin.LE); err != nil {
		return err
	}
	return writeKey(e, a.Owner)
}

func (a *CreateAccountArgs) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	if a.Lamports, err = d.ReadUint64(bin.LE); err != nil {
		return err
	}
	if a.Space, err = d.ReadUint64(bin.LE); err != nil {
		return err
	}
	a.Owner, err = readKey(d)
	return err
}

type AssignArgs struct {
	Owner ed25519.PublicKey
}

func (a *AssignArgs) Command() Command {
	return CommandAssign
}

func (a *AssignArgs) MarshalWithEncoder(e *bin.Encoder) error {
	return writeKey(e, a.Owner)
}

func (a *AssignArgs) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	a.Owner, err = readKey(d)
	return err
}

type TransferArgs struct {
	Lamports uint64
}

func (a *TransferArgs) Command() Command {
	return CommandTransfer
}

func (a *TransferArgs) MarshalWithEncoder(e *bin.Encoder) error {
	return e.WriteUint64(a.Lamports, bin.LE)
}

func (a *TransferArgs) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	a.Lamports, err = d.ReadUint64(bin.LE)
	return err
}

type AllocateArgs struct {
	Space uint64
}

func (a *AllocateArgs) Command() Command {
	return CommandAllocate
}

func (a *AllocateArgs) MarshalWithEncoder(e *bin.Encoder) error {
	return e.WriteUint64(a.Space, bin.LE)
}

func (a *AllocateArgs) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	a.Space, err = d.ReadUint64(bin.LE)
	return err
}

func writeKey(e *bin.Encoder, key ed25519.PublicKey) error {
	if len(key) != ed25519.PublicKeySize {
		return errors.Errorf("invalid key length: %d", len(key))
	}
	return e.WriteBytes(key, false)
}

func readKey(d *bin.Decoder) (ed25519.PublicKey, error) {
	b, err := d.ReadBytes(ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, b)
	return key, nil
}

// EncodeInstructionData returns the command prefix followed by args.
func EncodeInstructionData(args Args) ([]byte, error) {
	var buf bytes.Buffer
	e := bin.NewBinEncoder(&buf)
	if err := e.WriteUint32(uint32(args.Command()), bin.LE); err != nil {
		return nil, err
	}
	if err := args.MarshalWithEncoder(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeInstructionData parses system instruction data. Unsupported commands
// and trailing bytes are rejected with solana.ErrIncorrectInstruction.
func DecodeInstructionData(data []byte) (Args, error) {
	d := bin.NewBinDecoder(data)
	cmd, err := d.ReadUint32(bin.LE)
	if err != nil {
		return nil, errors.Wrap(solana.ErrIncorrectInstruction, "missing command")
	}

	var args Args
	switch Command(cmd) {
	case CommandCreateAccount:
		args = &CreateAccountArgs{}
	case CommandAssign:
		args = &AssignArgs{}
	case CommandTransfer:
		args = &TransferArgs{}
	case CommandAllocate:
		args = &AllocateArgs{}
	default:
		return nil, errors.Wrapf(solana.ErrIncorrectInstruction, "unsupported command %d", cmd)
	}

	if err := args.UnmarshalWithDecoder(d); err != nil {
		return nil, errors.Wrapf(solana.ErrIncorrectInstruction, "command %d: %v", cmd, err)
	}
	if int(d.Position()) != len(data) {
		return nil, errors.Wrapf(solana.ErrIncorrectInstruction, "command %d: %d trailing bytes", cmd, len(data)-int(d.Position()))
	}
	return args, nil
}

func newInstruction(args Args, accounts ...solana.AccountMeta) solana.Instruction {
	data, err := EncodeInstructionData(args)
	if err != nil {
		// Only a malformed key can fail to encode.
		panic(err)
	}
	return solana.NewInstruction(ProgramKey[:], data, accounts...)
}

// CreateAccount returns an instruction that funds, allocates and assigns a
// new account.
//
//	0. [WRITE, SIGNER] Funding account
//	1. [WRITE, SIGNER] New account
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	return newInstruction(
		&CreateAccountArgs{Lamports: lamports, Space: size, Owner: owner},
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// Assign returns an instruction that sets the owner of address.
//
//	0. [WRITE, SIGNER] Assigned account
func Assign(address, owner ed25519.PublicKey) solana.Instruction {
	return newInstruction(
		&AssignArgs{Owner: owner},
		solana.NewAccountMeta(address, true),
	)
}

// Transfer returns an instruction that moves lamports between accounts.
//
//	0. [WRITE, SIGNER] Funding account
//	1. [WRITE] Recipient account
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	return newInstruction(
		&TransferArgs{Lamports: lamports},
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

// Allocate returns an instruction that sets the data size of address.
//
//	0. [WRITE, SIGNER] New account
func Allocate(address ed25519.PublicKey, size uint64) solana.Instruction {
	return newInstruction(
		&AllocateArgs{Space: size},
		solana.NewAccountMeta(address, true),
	)
}
