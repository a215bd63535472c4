package system

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-program-sdk/pkg/solana"
)

func TestCreateAccount(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)

	command := make([]byte, 4)
	lamports := make([]byte, 8)
	binary.LittleEndian.PutUint64(lamports, 12345)
	size := make([]byte, 8)
	binary.LittleEndian.PutUint64(size, 67890)

	require.Len(t, instruction.Data, 52)
	assert.Equal(t, command, instruction.Data[0:4])
	assert.Equal(t, lamports, instruction.Data[4:12])
	assert.Equal(t, size, instruction.Data[12:20])
	assert.Equal(t, []byte(keys[2]), instruction.Data[20:52])
	assert.EqualValues(t, ProgramKey[:], instruction.Program)

	require.Len(t, instruction.Accounts, 2)
	for i, account := range instruction.Accounts {
		assert.EqualValues(t, keys[i], account.PublicKey)
		assert.True(t, account.IsSigner)
		assert.True(t, account.IsWritable)
	}

	args, err := DecodeInstructionData(instruction.Data)
	require.NoError(t, err)
	decoded, ok := args.(*CreateAccountArgs)
	require.True(t, ok)
	assert.EqualValues(t, 12345, decoded.Lamports)
	assert.EqualValues(t, 67890, decoded.Space)
	assert.EqualValues(t, keys[2], decoded.Owner)
}

func TestTransfer(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction := Transfer(keys[0], keys[1], 1_000_000)

	expected := make([]byte, 12)
	binary.LittleEndian.PutUint32(expected, uint32(CommandTransfer))
	binary.LittleEndian.PutUint64(expected[4:], 1_000_000)
	assert.Equal(t, expected, instruction.Data)

	require.Len(t, instruction.Accounts, 2)
	assert.True(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.False(t, instruction.Accounts[1].IsSigner)
	assert.True(t, instruction.Accounts[1].IsWritable)

	args, err := DecodeInstructionData(instruction.Data)
	require.NoError(t, err)
	assert.Equal(t, &TransferArgs{Lamports: 1_000_000}, args)
}

func TestAssignAndAllocate(t *testing.T) {
	keys := generateKeys(t, 2)

	assign := Assign(keys[0], keys[1])
	require.Len(t, assign.Data, 36)
	assert.EqualValues(t, CommandAssign, binary.LittleEndian.Uint32(assign.Data))

	args, err := DecodeInstructionData(assign.Data)
	require.NoError(t, err)
	assert.EqualValues(t, keys[1], args.(*AssignArgs).Owner)

	allocate := Allocate(keys[0], 128)
	require.Len(t, allocate.Data, 12)
	assert.EqualValues(t, CommandAllocate, binary.LittleEndian.Uint32(allocate.Data))
	assert.EqualValues(t, 8, CommandAllocate)

	args, err = DecodeInstructionData(allocate.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 128, args.(*AllocateArgs).Space)
}

func TestDecodeInstructionData_Invalid(t *testing.T) {
	keys := generateKeys(t, 2)
	instruction := Transfer(keys[0], keys[1], 1)

	for _, data := range [][]byte{
		nil,
		{1, 2},
		instruction.Data[:8],
		append(append([]byte(nil), instruction.Data...), 0),
		{byte(commandAdvanceNonceAccount), 0, 0, 0},
		{0xff, 0, 0, 0},
	} {
		_, err := DecodeInstructionData(data)
		assert.True(t, errors.Is(err, solana.ErrIncorrectInstruction), "%x", data)
	}
}

func TestEncodeInstructionData_InvalidKey(t *testing.T) {
	_, err := EncodeInstructionData(&AssignArgs{Owner: make([]byte, 31)})
	assert.Error(t, err)
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}

	return keys
}
