package entrypoint

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-program-sdk/pkg/solana/binary"
	"github.com/code-payments/code-program-sdk/pkg/solana/vm"
	"github.com/code-payments/code-program-sdk/pkg/testutil"
)

func TestDecode_Scenario(t *testing.T) {
	keys := testutil.NewKeyGenerator(t.Name())
	key, owner := keys.Next(), keys.Next()
	programID := testutil.FilledKey(3)
	payload := []byte{0xaa, 0xbb, 0xcc, 0xdd}

	buf, err := Serialize([]InputAccount{
		{
			Key:        key,
			Owner:      owner,
			Lamports:   1000,
			Data:       []byte{1, 2, 3},
			IsSigner:   true,
			IsWritable: true,
			RentEpoch:  7,
		},
	}, payload, programID)
	require.NoError(t, err)

	input, err := Deserialize(vm.NewRegion(vm.InputStart, buf), MaxAccounts)
	require.NoError(t, err)

	require.Len(t, input.Accounts, 1)
	raw := &input.Accounts[0].Raw
	assert.EqualValues(t, key, raw.Key())
	assert.EqualValues(t, owner, raw.Owner())
	assert.EqualValues(t, 1000, raw.Lamports())
	assert.Equal(t, []byte{1, 2, 3}, raw.Data())
	assert.True(t, raw.IsSigner())
	assert.True(t, raw.IsWritable())
	assert.False(t, raw.IsExecutable())
	assert.EqualValues(t, 7, raw.RentEpoch())
	assert.Equal(t, 3, raw.OriginalDataLen())
	assert.Equal(t, -1, raw.DuplicateOf())

	assert.Equal(t, payload, input.Data)
	assert.EqualValues(t, programID, input.ProgramID)

	// Raw views are zero copy: their addresses land inside the region.
	assert.Equal(t, vm.InputStart+8+8, raw.KeyAddr())
	assert.Equal(t, vm.InputStart+8+8+32, raw.OwnerAddr())
	assert.Equal(t, vm.InputStart+8+72, raw.LamportsAddr())
	assert.Equal(t, vm.InputStart+8+88, raw.DataAddr())
	assert.Same(t, &buf[8+8], &raw.Key()[0])
	assert.Same(t, &buf[len(buf)-32], &input.ProgramID[0])
}

type decodeScenario struct {
	name     string
	accounts []InputAccount
	data     []byte
}

func decodeScenarios(t *testing.T) []decodeScenario {
	keys := testutil.NewKeyGenerator(t.Name())
	owner := keys.Next()

	account := func(lamports uint64, dataLen int, signer, writable bool) InputAccount {
		data := make([]byte, dataLen)
		for i := range data {
			data[i] = byte(i + 1)
		}
		return InputAccount{
			Key:        keys.Next(),
			Owner:      owner,
			Lamports:   lamports,
			Data:       data,
			IsSigner:   signer,
			IsWritable: writable,
		}
	}

	a, b := account(10, 5, true, true), account(20, 0, false, true)

	var mixed []InputAccount
	for i := 0; i < 8; i++ {
		mixed = append(mixed, account(uint64(i)*100, i*3, i%2 == 0, i%3 != 0))
	}
	mixed = append(mixed, mixed[2], mixed[5])

	return []decodeScenario{
		{name: "single", accounts: []InputAccount{account(1000, 4, true, true)}, data: []byte{1}},
		{name: "multiple", accounts: []InputAccount{account(1, 8, true, false), account(2, 16, false, true), account(3, 1, false, false)}, data: []byte("transfer")},
		{name: "empty data", accounts: []InputAccount{account(5, 0, false, false)}},
		{name: "duplicates", accounts: []InputAccount{a, b, a, b, a}, data: []byte{9, 9}},
		{name: "mixed", accounts: mixed, data: bytes.Repeat([]byte{0x42}, 100)},
		{name: "no accounts", data: []byte{1, 2, 3}},
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	programID := testutil.NewKeyGenerator(t.Name()).Next()

	for _, tc := range decodeScenarios(t) {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := Serialize(tc.accounts, tc.data, programID)
			require.NoError(t, err)
			assert.Len(t, buf, SerializedSize(tc.accounts, tc.data))

			input, err := Deserialize(vm.NewRegion(vm.InputStart, buf), MaxAccounts)
			require.NoError(t, err)
			require.Len(t, input.Accounts, len(tc.accounts))

			for i, expected := range tc.accounts {
				value := input.Accounts[i].Value
				assert.EqualValues(t, expected.Key, value.Key)
				assert.EqualValues(t, expected.Owner, value.Owner)
				assert.Equal(t, expected.Lamports, value.Lamports)
				assert.Equal(t, len(expected.Data), len(value.Data))
				if len(expected.Data) > 0 {
					assert.Equal(t, expected.Data, value.Data)
				}
				assert.Equal(t, expected.IsSigner, value.IsSigner)
				assert.Equal(t, expected.IsWritable, value.IsWritable)
				assert.Equal(t, duplicateIndex(tc.accounts, i), value.DuplicateOf)
				assert.Equal(t, duplicateIndex(tc.accounts, i), input.Accounts[i].Raw.DuplicateOf())
			}
			assert.Equal(t, len(tc.data), len(input.Data))
			if len(tc.data) > 0 {
				assert.Equal(t, tc.data, input.Data)
			}
			assert.EqualValues(t, programID, input.ProgramID)
		})
	}
}

func TestDecode_DuplicateAliasing(t *testing.T) {
	keys := testutil.NewKeyGenerator(t.Name())
	a := InputAccount{Key: keys.Next(), Owner: keys.Next(), Lamports: 50, Data: []byte{1, 2}, IsWritable: true}
	b := InputAccount{Key: keys.Next(), Owner: a.Owner, Lamports: 70, IsWritable: true}

	buf, err := Serialize([]InputAccount{a, b, a}, nil, keys.Next())
	require.NoError(t, err)

	input, err := Deserialize(vm.NewRegion(vm.InputStart, buf), MaxAccounts)
	require.NoError(t, err)

	original, dup := &input.Accounts[0].Raw, &input.Accounts[2].Raw
	assert.True(t, dup.IsDuplicate())
	assert.Equal(t, 0, dup.DuplicateOf())
	assert.Equal(t, 2, dup.Index())
	assert.True(t, original.SameAccount(dup))
	assert.Equal(t, original.KeyAddr(), dup.KeyAddr())

	require.NoError(t, dup.SetLamports(12))
	data, err := original.MutableData()
	require.NoError(t, err)
	data[0] = 0xff

	// Raw views converge.
	assert.EqualValues(t, 12, original.Lamports())
	assert.EqualValues(t, 12, dup.Lamports())
	assert.Equal(t, []byte{0xff, 2}, dup.Data())

	// Value views are independent snapshots taken at decode time.
	assert.EqualValues(t, 50, input.Accounts[0].Value.Lamports)
	assert.EqualValues(t, 50, input.Accounts[2].Value.Lamports)
	assert.Equal(t, []byte{1, 2}, input.Accounts[2].Value.Data)
	input.Accounts[2].Value.Lamports = 99
	assert.EqualValues(t, 50, input.Accounts[0].Value.Lamports)
	assert.EqualValues(t, 12, dup.Lamports())

	snapshot := dup.Snapshot()
	assert.EqualValues(t, 12, snapshot.Lamports)
	assert.Equal(t, 0, snapshot.DuplicateOf)

	found, ok := input.AccountByKeyAddr(dup.KeyAddr())
	require.True(t, ok)
	assert.Equal(t, 0, found.Index())
}

func TestDecode_TooManyAccounts(t *testing.T) {
	keys := testutil.NewKeyGenerator(t.Name())

	accounts := make([]InputAccount, 3)
	for i := range accounts {
		accounts[i] = InputAccount{Key: keys.Next(), Owner: keys.Next()}
	}
	buf, err := Serialize(accounts, nil, keys.Next())
	require.NoError(t, err)

	region := vm.NewRegion(vm.InputStart, buf)

	_, err = Decode(region, make([]Record, 2))
	assert.True(t, errors.Is(err, ErrTooManyAccounts))

	input, err := Decode(region, make([]Record, 3))
	require.NoError(t, err)
	assert.Len(t, input.Accounts, 3)

	_, err = Deserialize(region, 0)
	assert.True(t, errors.Is(err, ErrTooManyAccounts))
}

func TestDecode_Truncated(t *testing.T) {
	keys := testutil.NewKeyGenerator(t.Name())
	a := InputAccount{Key: keys.Next(), Owner: keys.Next(), Lamports: 1, Data: []byte{1, 2, 3}}

	buf, err := Serialize([]InputAccount{a, a}, []byte{4, 5}, keys.Next())
	require.NoError(t, err)

	for n := 0; n < len(buf); n++ {
		_, err := Deserialize(vm.NewRegion(vm.InputStart, buf[:n]), MaxAccounts)
		require.Error(t, err, "length %d", n)
		assert.True(t, errors.Is(err, binary.ErrOutOfBounds), "length %d: %v", n, err)
	}
}

func TestDecode_OversizedLengths(t *testing.T) {
	keys := testutil.NewKeyGenerator(t.Name())
	a := InputAccount{Key: keys.Next(), Owner: keys.Next(), Data: []byte{1}}

	buf, err := Serialize([]InputAccount{a}, []byte{1}, keys.Next())
	require.NoError(t, err)

	corrupt := append([]byte(nil), buf...)
	binary.PutUint64At(corrupt, 8+dataLenOffset, ^uint64(0))
	_, err = Deserialize(vm.NewRegion(vm.InputStart, corrupt), MaxAccounts)
	assert.True(t, errors.Is(err, binary.ErrOutOfBounds))

	corrupt = append([]byte(nil), buf...)
	binary.PutUint64At(corrupt, len(corrupt)-32-1-8, ^uint64(0))
	_, err = Deserialize(vm.NewRegion(vm.InputStart, corrupt), MaxAccounts)
	assert.True(t, errors.Is(err, binary.ErrOutOfBounds))
}

func TestDecode_InvalidDuplicateReference(t *testing.T) {
	keys := testutil.NewKeyGenerator(t.Name())
	a := InputAccount{Key: keys.Next(), Owner: keys.Next()}

	buf, err := Serialize([]InputAccount{a, a}, nil, keys.Next())
	require.NoError(t, err)

	dupMarker := 8 + EntrySize(0)
	require.EqualValues(t, 0, buf[dupMarker])

	for _, ref := range []byte{1, 2, 0xfe} {
		corrupt := append([]byte(nil), buf...)
		corrupt[dupMarker] = ref
		_, err = Deserialize(vm.NewRegion(vm.InputStart, corrupt), MaxAccounts)
		assert.True(t, errors.Is(err, ErrInvalidDuplicateReference), "ref %d", ref)
	}

	corrupt := append([]byte(nil), buf...)
	corrupt[8] = 0
	_, err = Deserialize(vm.NewRegion(vm.InputStart, corrupt), MaxAccounts)
	assert.True(t, errors.Is(err, ErrInvalidDuplicateReference))
}

func TestDecode_WithoutSnapshots(t *testing.T) {
	keys := testutil.NewKeyGenerator(t.Name())
	a := InputAccount{Key: keys.Next(), Owner: keys.Next(), Lamports: 3}

	buf, err := Serialize([]InputAccount{a}, nil, keys.Next())
	require.NoError(t, err)

	input, err := Deserialize(vm.NewRegion(vm.InputStart, buf), MaxAccounts, WithoutSnapshots())
	require.NoError(t, err)
	assert.Nil(t, input.Accounts[0].Value.Key)
	assert.EqualValues(t, 3, input.Accounts[0].Raw.Lamports())
}

func TestDecode_NilRegion(t *testing.T) {
	_, err := Decode(nil, make([]Record, 1))
	assert.Error(t, err)
}

func TestSerialize_Layout(t *testing.T) {
	keys := testutil.NewKeyGenerator(t.Name())
	key := keys.Next()

	buf, err := Serialize([]InputAccount{{Key: key, Owner: keys.Next(), Data: []byte{1}}}, nil, ed25519.PublicKey(testutil.FilledKey(1)))
	require.NoError(t, err)

	assert.EqualValues(t, 1, binary.Uint64At(buf, 0))
	assert.EqualValues(t, NonDupMarker, buf[8])
	assert.EqualValues(t, key, buf[8+keyOffset:8+keyOffset+32])
	assert.Zero(t, (8+EntrySize(1))%8)
	assert.Len(t, buf, 8+EntrySize(1)+8+32)
}
