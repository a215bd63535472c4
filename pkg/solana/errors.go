package solana

import (
	"fmt"
)

// InstructionErrorKey names an instruction error variant.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorGenericError                   InstructionErrorKey = "GenericError"
	InstructionErrorInvalidArgument                InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData         InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidAccountData             InstructionErrorKey = "InvalidAccountData"
	InstructionErrorAccountDataTooSmall            InstructionErrorKey = "AccountDataTooSmall"
	InstructionErrorInsufficientFunds              InstructionErrorKey = "InsufficientFunds"
	InstructionErrorIncorrectProgramID             InstructionErrorKey = "IncorrectProgramId"
	InstructionErrorMissingRequiredSignature       InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorAccountAlreadyInitialized      InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorUninitializedAccount           InstructionErrorKey = "UninitializedAccount"
	InstructionErrorUnbalancedInstruction          InstructionErrorKey = "UnbalancedInstruction"
	InstructionErrorModifiedProgramID              InstructionErrorKey = "ModifiedProgramId"
	InstructionErrorExternalAccountLamportSpend    InstructionErrorKey = "ExternalAccountLamportSpend"
	InstructionErrorExternalAccountDataModified    InstructionErrorKey = "ExternalAccountDataModified"
	InstructionErrorReadonlyLamportChange          InstructionErrorKey = "ReadonlyLamportChange"
	InstructionErrorReadonlyDataModified           InstructionErrorKey = "ReadonlyDataModified"
	InstructionErrorDuplicateAccountIndex          InstructionErrorKey = "DuplicateAccountIndex"
	InstructionErrorExecutableModified             InstructionErrorKey = "ExecutableModified"
	InstructionErrorRentEpochModified              InstructionErrorKey = "RentEpochModified"
	InstructionErrorNotEnoughAccountKeys           InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorAccountDataSizeChanged         InstructionErrorKey = "AccountDataSizeChanged"
	InstructionErrorAccountNotExecutable           InstructionErrorKey = "AccountNotExecutable"
	InstructionErrorAccountBorrowFailed            InstructionErrorKey = "AccountBorrowFailed"
	InstructionErrorAccountBorrowOutstanding       InstructionErrorKey = "AccountBorrowOutstanding"
	InstructionErrorDuplicateAccountOutOfSync      InstructionErrorKey = "DuplicateAccountOutOfSync"
	InstructionErrorCustom                         InstructionErrorKey = "Custom"
	InstructionErrorInvalidError                   InstructionErrorKey = "InvalidError"
	InstructionErrorExecutableDataModified         InstructionErrorKey = "ExecutableDataModified"
	InstructionErrorExecutableLamportChange        InstructionErrorKey = "ExecutableLamportChange"
	InstructionErrorExecutableAccountNotRentExempt InstructionErrorKey = "ExecutableAccountNotRentExempt"
	InstructionErrorUnsupportedProgramID           InstructionErrorKey = "UnsupportedProgramId"
	InstructionErrorCallDepth                      InstructionErrorKey = "CallDepth"
	InstructionErrorMissingAccount                 InstructionErrorKey = "MissingAccount"
	InstructionErrorReentrancyNotAllowed           InstructionErrorKey = "ReentrancyNotAllowed"
	InstructionErrorMaxSeedLengthExceeded          InstructionErrorKey = "MaxSeedLengthExceeded"
	InstructionErrorInvalidSeeds                   InstructionErrorKey = "InvalidSeeds"
	InstructionErrorInvalidRealloc                 InstructionErrorKey = "InvalidRealloc"
	InstructionErrorComputationalBudgetExceeded    InstructionErrorKey = "ComputationalBudgetExceeded"
	InstructionErrorPrivilegeEscalation            InstructionErrorKey = "PrivilegeEscalation"
	InstructionErrorProgramEnvironmentSetupFailure InstructionErrorKey = "ProgramEnvironmentSetupFailure"
	InstructionErrorProgramFailedToComplete        InstructionErrorKey = "ProgramFailedToComplete"
	InstructionErrorProgramFailedToCompile         InstructionErrorKey = "ProgramFailedToCompile"
	InstructionErrorImmutable                      InstructionErrorKey = "Immutable"
	InstructionErrorIncorrectAuthority             InstructionErrorKey = "IncorrectAuthority"
	InstructionErrorBorshIoError                   InstructionErrorKey = "BorshIoError"
	InstructionErrorAccountNotRentExempt           InstructionErrorKey = "AccountNotRentExempt"
	InstructionErrorInvalidAccountOwner            InstructionErrorKey = "InvalidAccountOwner"
	InstructionErrorArithmeticOverflow             InstructionErrorKey = "ArithmeticOverflow"
	InstructionErrorUnsupportedSysvar              InstructionErrorKey = "UnsupportedSysvar"
	InstructionErrorIllegalOwner                   InstructionErrorKey = "IllegalOwner"
)

// instructionErrorOrdinals is the enum order of InstructionError. Variants
// without a builtin program error code are reported by their ordinal.
var instructionErrorOrdinals = []InstructionErrorKey{
	InstructionErrorGenericError,
	InstructionErrorInvalidArgument,
	InstructionErrorInvalidInstructionData,
	InstructionErrorInvalidAccountData,
	InstructionErrorAccountDataTooSmall,
	InstructionErrorInsufficientFunds,
	InstructionErrorIncorrectProgramID,
	InstructionErrorMissingRequiredSignature,
	InstructionErrorAccountAlreadyInitialized,
	InstructionErrorUninitializedAccount,
	InstructionErrorUnbalancedInstruction,
	InstructionErrorModifiedProgramID,
	InstructionErrorExternalAccountLamportSpend,
	InstructionErrorExternalAccountDataModified,
	InstructionErrorReadonlyLamportChange,
	InstructionErrorReadonlyDataModified,
	InstructionErrorDuplicateAccountIndex,
	InstructionErrorExecutableModified,
	InstructionErrorRentEpochModified,
	InstructionErrorNotEnoughAccountKeys,
	InstructionErrorAccountDataSizeChanged,
	InstructionErrorAccountNotExecutable,
	InstructionErrorAccountBorrowFailed,
	InstructionErrorAccountBorrowOutstanding,
	InstructionErrorDuplicateAccountOutOfSync,
	InstructionErrorCustom,
	InstructionErrorInvalidError,
	InstructionErrorExecutableDataModified,
	InstructionErrorExecutableLamportChange,
	InstructionErrorExecutableAccountNotRentExempt,
	InstructionErrorUnsupportedProgramID,
	InstructionErrorCallDepth,
	InstructionErrorMissingAccount,
	InstructionErrorReentrancyNotAllowed,
	InstructionErrorMaxSeedLengthExceeded,
	InstructionErrorInvalidSeeds,
	InstructionErrorInvalidRealloc,
	InstructionErrorComputationalBudgetExceeded,
	InstructionErrorPrivilegeEscalation,
	InstructionErrorProgramEnvironmentSetupFailure,
	InstructionErrorProgramFailedToComplete,
	InstructionErrorProgramFailedToCompile,
	InstructionErrorImmutable,
	InstructionErrorIncorrectAuthority,
	InstructionErrorBorshIoError,
	InstructionErrorAccountNotRentExempt,
	InstructionErrorInvalidAccountOwner,
	InstructionErrorArithmeticOverflow,
	InstructionErrorUnsupportedSysvar,
	InstructionErrorIllegalOwner,
}

const builtinErrorShift = 32

// StatusSuccess is the status a program or privileged call returns on success.
const StatusSuccess uint64 = 0

// Builtin program error codes, in the upper 32 bits of a status.
//
// Source: https://github.com/solana-labs/solana/blob/master/sdk/program/src/program_error.rs
var builtinStatusCodes = map[InstructionErrorKey]uint64{
	InstructionErrorInvalidArgument:           2,
	InstructionErrorInvalidInstructionData:    3,
	InstructionErrorInvalidAccountData:        4,
	InstructionErrorAccountDataTooSmall:       5,
	InstructionErrorInsufficientFunds:         6,
	InstructionErrorIncorrectProgramID:        7,
	InstructionErrorMissingRequiredSignature:  8,
	InstructionErrorAccountAlreadyInitialized: 9,
	InstructionErrorUninitializedAccount:      10,
	InstructionErrorNotEnoughAccountKeys:      11,
	InstructionErrorAccountBorrowFailed:       12,
	InstructionErrorMaxSeedLengthExceeded:     13,
	InstructionErrorInvalidSeeds:              14,
	InstructionErrorBorshIoError:              15,
	InstructionErrorAccountNotRentExempt:      16,
	InstructionErrorUnsupportedSysvar:         17,
	InstructionErrorIllegalOwner:              18,
	InstructionErrorInvalidRealloc:            20,
	InstructionErrorInvalidAccountOwner:       23,
	InstructionErrorArithmeticOverflow:        24,
	InstructionErrorImmutable:                 25,
	InstructionErrorIncorrectAuthority:        26,
}

var builtinStatusKeys = func() map[uint64]InstructionErrorKey {
	m := make(map[uint64]InstructionErrorKey, len(builtinStatusCodes))
	for k, v := range builtinStatusCodes {
		m[v] = k
	}
	return m
}()

// CustomError is the numerical error returned by a non-system program.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %x", int(c))
}

// StatusFromCustom encodes a custom program error as a status.
func StatusFromCustom(code CustomError) uint64 {
	if code == 0 {
		return 1 << builtinErrorShift
	}
	return uint64(uint32(code))
}

// StatusFromKey encodes an instruction error as a status. Builtin program
// errors use their builtin code; every other variant is reported by its
// enum ordinal in the custom range.
func StatusFromKey(key InstructionErrorKey) uint64 {
	if code, ok := builtinStatusCodes[key]; ok {
		return code << builtinErrorShift
	}
	for i, k := range instructionErrorOrdinals {
		if k == key && i > 0 {
			return uint64(i)
		}
	}
	return builtinStatusCodes[InstructionErrorInvalidArgument] << builtinErrorShift
}

// KeyFromStatus decodes a nonzero status. Builtin codes return their key;
// everything else is Custom with the decoded code.
func KeyFromStatus(status uint64) (InstructionErrorKey, *CustomError) {
	if status == 1<<builtinErrorShift {
		c := CustomError(0)
		return InstructionErrorCustom, &c
	}
	if status>>builtinErrorShift == 0 {
		c := CustomError(status)
		return InstructionErrorCustom, &c
	}
	if status&(1<<builtinErrorShift-1) == 0 {
		if key, ok := builtinStatusKeys[status>>builtinErrorShift]; ok {
			return key, nil
		}
	}
	return InstructionErrorInvalidError, nil
}

// OrdinalKey returns the InstructionError variant with the given enum
// ordinal, if it exists.
func OrdinalKey(ordinal uint64) (InstructionErrorKey, bool) {
	if ordinal >= uint64(len(instructionErrorOrdinals)) {
		return "", false
	}
	return instructionErrorOrdinals[ordinal], true
}

// InstructionError indicates an instruction failed with a known variant or a
// custom error.
type InstructionError struct {
	Index int
	Err   error
}

// NewInstructionError returns an InstructionError for key.
func NewInstructionError(index int, key InstructionErrorKey) InstructionError {
	return InstructionError{Index: index, Err: instructionErrorKeyError(key)}
}

// NewInstructionErrorFromStatus decodes a nonzero status into an
// InstructionError.
func NewInstructionErrorFromStatus(index int, status uint64) InstructionError {
	key, custom := KeyFromStatus(status)
	if custom != nil {
		return InstructionError{Index: index, Err: *custom}
	}
	return NewInstructionError(index, key)
}

type instructionErrorKeyError InstructionErrorKey

func (e instructionErrorKeyError) Error() string {
	return string(e)
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) Unwrap() error {
	return i.Err
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	if i.Err == nil {
		return ""
	}

	if i.CustomError() != nil {
		return InstructionErrorCustom
	}

	return InstructionErrorKey(i.Err.Error())
}

func (i InstructionError) CustomError() *CustomError {
	ce, ok := i.Err.(CustomError)
	if ok {
		return &ce
	}

	return nil
}

// Status returns the status encoding of the error.
func (i InstructionError) Status() uint64 {
	if ce := i.CustomError(); ce != nil {
		return StatusFromCustom(*ce)
	}
	return StatusFromKey(i.ErrorKey())
}
